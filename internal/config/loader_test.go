package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad(t *testing.T) {
	t.Run("LoadDefaults", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		cfg, warnings, err := Load(newViper(t))
		require.NoError(t, err)
		require.NotNil(t, cfg)
		assert.Empty(t, warnings)

		// Verify server defaults
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 45*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, EnvironmentDevelopment, cfg.Server.Environment)
		assert.False(t, cfg.Server.IsProduction())
		assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)

		// Verify provider defaults
		assert.Equal(t, "gemini", cfg.Provider.Name)
		assert.Equal(t, 30*time.Second, cfg.Provider.GenerateTimeout)
		assert.Equal(t, 10*time.Second, cfg.Provider.AuxTimeout)
		assert.Equal(t, 1, cfg.Provider.Retry.Attempts)
		assert.Equal(t, 500*time.Millisecond, cfg.Provider.Retry.InitialBackoff)

		// Verify dedup defaults
		assert.True(t, cfg.Dedup.Enabled)
		assert.Equal(t, 60*time.Second, cfg.Dedup.MaxAge)

		assert.Empty(t, cfg.RateLimits)
		assert.Equal(t, 5*time.Minute, cfg.RateLimitSweepInterval)

		// Verify store defaults
		assert.Equal(t, "libsql", cfg.Store.Driver)
		expectedStorePath := filepath.Join(gfconfig.GetAppDataDir("draftsmith"), "draftsmith.db")
		assert.Equal(t, expectedStorePath, cfg.Store.Path)
		assert.Equal(t, "", cfg.Store.URL)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.Equal(t, "draftsmith", cfg.Metrics.Namespace)
		assert.True(t, cfg.Health.Enabled)
		assert.False(t, cfg.Debug.Enabled)

		assert.Same(t, cfg, GetConfig())
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("DRAFTSMITH_SERVER_PORT", "9999")
		t.Setenv("DRAFTSMITH_SERVER_ENVIRONMENT", "Production")
		t.Setenv("DRAFTSMITH_SERVER_ALLOWED_ORIGINS", "https://a.example, https://b.example/")
		t.Setenv("DRAFTSMITH_PROVIDER_MODEL", "gemini-test")
		t.Setenv("DRAFTSMITH_DEDUP_ENABLED", "false")

		cfg, _, err := Load(newViper(t))
		require.NoError(t, err)

		assert.Equal(t, 9999, cfg.Server.Port)
		assert.Equal(t, EnvironmentProduction, cfg.Server.Environment)
		assert.True(t, cfg.Server.IsProduction())
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
		assert.Equal(t, "gemini-test", cfg.Provider.Model)
		assert.False(t, cfg.Dedup.Enabled)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7070
rate_limits:
  generate:
    requests: 3
    window: 30s
provider:
  retry:
    attempts: 3
`), 0o600))

		v := newViper(t)
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())

		cfg, _, err := Load(v)
		require.NoError(t, err)

		assert.Equal(t, 7070, cfg.Server.Port)
		require.Contains(t, cfg.RateLimits, "generate")
		assert.Equal(t, 3, cfg.RateLimits["generate"].Requests)
		assert.Equal(t, 30*time.Second, cfg.RateLimits["generate"].Window)
		assert.Equal(t, 3, cfg.Provider.Retry.Attempts)
	})

	t.Run("InvalidEnvironment", func(t *testing.T) {
		v := newViper(t)
		v.Set("server.environment", "staging")

		_, _, err := Load(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.environment")
	})

	t.Run("InvalidRateLimit", func(t *testing.T) {
		v := newViper(t)
		v.Set("rate_limits", map[string]any{"generate": map[string]any{"requests": 0, "window": "1m"}})

		_, _, err := Load(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate_limits.generate")
	})
}

func TestNormalizeDedupMaxAge(t *testing.T) {
	cfg := &Config{
		Provider: ProviderConfig{GenerateTimeout: 30 * time.Second},
		Dedup:    DedupConfig{Enabled: true, MaxAge: 10 * time.Second},
		Store:    StoreConfig{Driver: "none"},
	}

	warnings, err := cfg.Normalize()
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, 35*time.Second, cfg.Dedup.MaxAge)
}

func TestNormalizeWriteTimeoutWarning(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{WriteTimeout: 10 * time.Second},
		Provider: ProviderConfig{GenerateTimeout: 30 * time.Second},
		Dedup:    DedupConfig{MaxAge: time.Minute},
		Store:    StoreConfig{Driver: "none"},
	}

	warnings, err := cfg.Normalize()
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "server.write_timeout")
}

func TestDefaultPaths(t *testing.T) {
	assert.Equal(t, filepath.Join(gfconfig.GetAppConfigDir("draftsmith"), "config.yaml"), DefaultConfigPath())
	assert.Contains(t, DefaultStorePath(), "draftsmith.db")
}
