// Package config loads draftsmith configuration through viper and decodes it
// into typed structs with mapstructure.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/draftsmith/draftsmith/internal/appid"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers every default on v. Keys must be registered for
// environment overrides to be picked up by Load.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "45s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.environment", EnvironmentDevelopment)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.max_body_bytes", 64*1024)

	// Provider defaults
	v.SetDefault("provider.name", "gemini")
	v.SetDefault("provider.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("provider.model", "gemini-1.5-flash")
	v.SetDefault("provider.generate_timeout", "30s")
	v.SetDefault("provider.aux_timeout", "10s")
	v.SetDefault("provider.csp_origin", "https://generativelanguage.googleapis.com")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.prompts_dir", "")
	v.SetDefault("provider.retry.attempts", 1)
	v.SetDefault("provider.retry.initial_backoff", "500ms")
	v.SetDefault("provider.retry.max_backoff", "4s")

	// Dedup defaults
	v.SetDefault("dedup.enabled", true)
	v.SetDefault("dedup.max_age", "60s")

	// Rate limit overrides (optional)
	v.SetDefault("rate_limits", map[string]any{})
	v.SetDefault("rate_limit_sweep_interval", "5m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.namespace", appid.BinaryName)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Debug defaults
	v.SetDefault("debug.enabled", false)
}

// BindEnv enables DRAFTSMITH_* environment overrides on v. Nested keys use
// underscores, e.g. DRAFTSMITH_SERVER_PORT.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(strings.TrimSuffix(appid.EnvPrefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the settings held by v into a Config, applies normalization
// and stores it as the current configuration. Warnings describe values that
// were adjusted.
func Load(v *viper.Viper) (*Config, []string, error) {
	if v == nil {
		v = viper.GetViper()
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	warnings, err := cfg.Normalize()
	if err != nil {
		return nil, warnings, err
	}

	setConfig(cfg)
	return cfg, warnings, nil
}

// Normalize validates cfg and fills derived values.
func (c *Config) Normalize() ([]string, error) {
	var warnings []string

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return nil, fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	env := strings.ToLower(strings.TrimSpace(c.Server.Environment))
	switch env {
	case "":
		env = EnvironmentDevelopment
	case EnvironmentDevelopment, EnvironmentProduction, EnvironmentTest:
	default:
		return nil, fmt.Errorf("server.environment must be development, production or test, got %q", c.Server.Environment)
	}
	c.Server.Environment = env

	origins := make([]string, 0, len(c.Server.AllowedOrigins))
	for _, origin := range c.Server.AllowedOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.Server.AllowedOrigins = origins

	if c.Provider.GenerateTimeout <= 0 {
		c.Provider.GenerateTimeout = 30 * time.Second
	}
	if c.Provider.AuxTimeout <= 0 {
		c.Provider.AuxTimeout = 10 * time.Second
	}
	if c.Provider.Retry.Attempts < 1 {
		c.Provider.Retry.Attempts = 1
	}

	// The dedup max age is a leak guard and must outlive the call deadline.
	if c.Dedup.MaxAge < c.Provider.GenerateTimeout {
		adjusted := c.Provider.GenerateTimeout + 5*time.Second
		warnings = append(warnings, fmt.Sprintf("dedup.max_age %s is shorter than provider.generate_timeout; using %s", c.Dedup.MaxAge, adjusted))
		c.Dedup.MaxAge = adjusted
	}

	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Provider.GenerateTimeout {
		warnings = append(warnings, fmt.Sprintf("server.write_timeout %s does not exceed provider.generate_timeout %s", c.Server.WriteTimeout, c.Provider.GenerateTimeout))
	}

	for endpoint, limit := range c.RateLimits {
		if limit.Requests <= 0 || limit.Window <= 0 {
			return warnings, fmt.Errorf("rate_limits.%s needs positive requests and window", endpoint)
		}
	}

	if c.RateLimitSweepInterval <= 0 {
		c.RateLimitSweepInterval = 5 * time.Minute
	}

	if strings.TrimSpace(c.Store.Driver) == "" {
		c.Store.Driver = "libsql"
	}
	if c.Store.Driver != "none" && strings.TrimSpace(c.Store.URL) == "" && strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = DefaultStorePath()
	}

	return warnings, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigDir returns the XDG-compliant config directory for the app.
func DefaultConfigDir() string {
	return gfconfig.GetAppConfigDir(appid.ConfigName)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := DefaultConfigDir()
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(appid.ConfigName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + appid.BinaryName + ".db"
	}
	return filepath.Join(dataDir, appid.BinaryName+".db")
}
