package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Env      Environment `envconfig:"ENV" default:"development"`
	LogLevel string      `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool        `envconfig:"DEBUG" default:"false"`

	// Application
	App AppConfig

	// Server
	Server ServerConfig

	// Answer provider
	Provider ProviderConfig

	// Capture behavior
	Capture CaptureConfig

	// Browser driver
	Browser BrowserConfig

	// Security
	Security SecurityConfig
}

// AppConfig holds application metadata
type AppConfig struct {
	Name    string `envconfig:"APP_NAME" default:"formpilot"`
	Version string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	MaxRequestSize  int64         `envconfig:"SERVER_MAX_REQUEST_SIZE" default:"10485760"` // 10MB
}

// Addr returns the server listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ProviderConfig holds answer provider settings
type ProviderConfig struct {
	APIKey       string        `envconfig:"ANTHROPIC_API_KEY" default:""`
	Model        string        `envconfig:"PROVIDER_MODEL" default:"claude-sonnet-4-20250514"`
	MaxTokens    int           `envconfig:"PROVIDER_MAX_TOKENS" default:"4096"`
	Timeout      time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"120s"`
	RateLimitRPM int           `envconfig:"PROVIDER_RATE_LIMIT_RPM" default:"50"`
	MaxRetries   int           `envconfig:"PROVIDER_MAX_RETRIES" default:"3"`
}

// Enabled reports whether a provider can be constructed at all
func (c ProviderConfig) Enabled() bool {
	return c.APIKey != ""
}

// CaptureConfig holds fill-engine behavior settings
type CaptureConfig struct {
	AutoSubmit     bool          `envconfig:"CAPTURE_AUTO_SUBMIT" default:"false"`
	PageTextLimit  int           `envconfig:"CAPTURE_PAGE_TEXT_LIMIT" default:"20000"`
	ExchangeLog    int           `envconfig:"CAPTURE_EXCHANGE_LOG_SIZE" default:"50"`
	ExchangeLogAge time.Duration `envconfig:"CAPTURE_EXCHANGE_LOG_AGE" default:"1h"`
}

// BrowserConfig holds live-page driver settings
type BrowserConfig struct {
	Headless bool          `envconfig:"BROWSER_HEADLESS" default:"true"`
	Timeout  time.Duration `envconfig:"BROWSER_TIMEOUT" default:"30s"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	CORSEnabled        bool     `envconfig:"CORS_ENABLED" default:"true"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	if c.Capture.PageTextLimit <= 0 {
		errs = append(errs, "CAPTURE_PAGE_TEXT_LIMIT must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, "SERVER_PORT must be a valid port")
	}
	// The provider key is optional: without one the service still serves
	// deterministic fills from caller-supplied answers.
	if c.Env == EnvProduction && !c.Provider.Enabled() {
		errs = append(errs, "ANTHROPIC_API_KEY is required in production")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// GetLogLevel returns the appropriate zap log level
func (c *Config) GetLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
