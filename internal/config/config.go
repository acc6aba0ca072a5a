package config

import (
	"strings"
	"time"

	"github.com/draftsmith/draftsmith/internal/ailink"
)

// Environment names.
const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
	EnvironmentTest        = "test"
)

// Config represents the complete application configuration. Values are
// layered as defaults, then the config file, then DRAFTSMITH_* environment
// variables, then command flags.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Provider ProviderConfig `mapstructure:"provider"`
	Dedup    DedupConfig    `mapstructure:"dedup"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Health   HealthConfig   `mapstructure:"health"`
	Debug    DebugConfig    `mapstructure:"debug"`

	// RateLimits overrides per-endpoint policies, keyed by endpoint name.
	RateLimits             map[string]RateLimitConfig `mapstructure:"rate_limits"`
	RateLimitSweepInterval time.Duration              `mapstructure:"rate_limit_sweep_interval"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Environment is development, production or test. Production enables the
	// HTTPS redirect and hides technical error details.
	Environment string `mapstructure:"environment"`

	// AllowedOrigins lists origins echoed back in CORS responses.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// MaxBodyBytes bounds request bodies on the API routes.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// IsProduction reports whether the server runs in production mode.
func (s ServerConfig) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(s.Environment), EnvironmentProduction)
}

// ProviderConfig configures the upstream generation provider.
type ProviderConfig struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`

	// GenerateTimeout is the hard deadline for a generation call.
	GenerateTimeout time.Duration `mapstructure:"generate_timeout"`
	// AuxTimeout bounds analytics and error log writes.
	AuxTimeout time.Duration `mapstructure:"aux_timeout"`

	// CSPOrigin is added to connect-src in the Content-Security-Policy.
	CSPOrigin string `mapstructure:"csp_origin"`

	// APIKey is used when a request carries no Authorization header.
	APIKey string `mapstructure:"api_key"`

	// PromptsDir optionally replaces the embedded prompt set.
	PromptsDir string `mapstructure:"prompts_dir"`

	Retry ailink.RetryPolicy `mapstructure:"retry"`
}

// DedupConfig configures in-flight request sharing.
type DedupConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	MaxAge  time.Duration `mapstructure:"max_age"`
}

// RateLimitConfig is one endpoint's fixed-window policy.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	// Driver is libsql, or none to disable event logging.
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: simple, structured
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated Prometheus exporter port
	Port int `mapstructure:"port"`

	// Namespace prefixes every metric name
	Namespace string `mapstructure:"namespace"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug configuration
type DebugConfig struct {
	// Enabled adds stack traces to error logs
	Enabled bool `mapstructure:"enabled"`
}
