package config

import (
	"os"
	"testing"
	"time"
)

func TestServerConfig_Addr(t *testing.T) {
	cfg := ServerConfig{
		Host: "127.0.0.1",
		Port: 9090,
	}

	if got := cfg.Addr(); got != "127.0.0.1:9090" {
		t.Errorf("Addr() = %v, want 127.0.0.1:9090", got)
	}
}

func TestProviderConfig_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		expected bool
	}{
		{
			name:     "with key",
			apiKey:   "test-key",
			expected: true,
		},
		{
			name:     "without key",
			apiKey:   "",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ProviderConfig{APIKey: tt.apiKey}
			if got := cfg.Enabled(); got != tt.expected {
				t.Errorf("Enabled() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name     string
		env      Environment
		expected bool
	}{
		{
			name:     "development",
			env:      EnvDevelopment,
			expected: true,
		},
		{
			name:     "staging",
			env:      EnvStaging,
			expected: false,
		},
		{
			name:     "production",
			env:      EnvProduction,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Env: tt.env}
			if got := cfg.IsDevelopment(); got != tt.expected {
				t.Errorf("IsDevelopment() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name     string
		env      Environment
		expected bool
	}{
		{
			name:     "development",
			env:      EnvDevelopment,
			expected: false,
		},
		{
			name:     "staging",
			env:      EnvStaging,
			expected: false,
		},
		{
			name:     "production",
			env:      EnvProduction,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Env: tt.env}
			if got := cfg.IsProduction(); got != tt.expected {
				t.Errorf("IsProduction() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfig_GetLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		debug    bool
		logLevel string
		expected string
	}{
		{
			name:     "debug mode overrides",
			debug:    true,
			logLevel: "info",
			expected: "debug",
		},
		{
			name:     "normal mode uses log level",
			debug:    false,
			logLevel: "warn",
			expected: "warn",
		},
		{
			name:     "normal mode info",
			debug:    false,
			logLevel: "info",
			expected: "info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Debug: tt.debug, LogLevel: tt.logLevel}
			if got := cfg.GetLogLevel(); got != tt.expected {
				t.Errorf("GetLogLevel() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name: "valid development config without provider key",
			config: &Config{
				Env:     EnvDevelopment,
				Server:  ServerConfig{Port: 8080},
				Capture: CaptureConfig{PageTextLimit: 20000},
			},
			wantErr: false,
		},
		{
			name: "invalid port zero",
			config: &Config{
				Env:     EnvDevelopment,
				Server:  ServerConfig{Port: 0},
				Capture: CaptureConfig{PageTextLimit: 20000},
			},
			wantErr: true,
		},
		{
			name: "invalid port too large",
			config: &Config{
				Env:     EnvDevelopment,
				Server:  ServerConfig{Port: 70000},
				Capture: CaptureConfig{PageTextLimit: 20000},
			},
			wantErr: true,
		},
		{
			name: "non-positive page text limit",
			config: &Config{
				Env:     EnvDevelopment,
				Server:  ServerConfig{Port: 8080},
				Capture: CaptureConfig{PageTextLimit: 0},
			},
			wantErr: true,
		},
		{
			name: "production without provider key",
			config: &Config{
				Env:     EnvProduction,
				Server:  ServerConfig{Port: 8080},
				Capture: CaptureConfig{PageTextLimit: 20000},
			},
			wantErr: true,
		},
		{
			name: "production with provider key",
			config: &Config{
				Env:      EnvProduction,
				Server:   ServerConfig{Port: 8080},
				Capture:  CaptureConfig{PageTextLimit: 20000},
				Provider: ProviderConfig{APIKey: "test-key"},
			},
			wantErr: false,
		},
		{
			name: "staging without provider key is fine",
			config: &Config{
				Env:     EnvStaging,
				Server:  ServerConfig{Port: 8080},
				Capture: CaptureConfig{PageTextLimit: 20000},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	// envconfig treats a set-but-empty variable as set, so the defaults
	// path needs the variables genuinely absent. t.Setenv registers the
	// restore; Unsetenv clears the value for the duration of the subtest.
	unset := func(t *testing.T, keys ...string) {
		t.Helper()
		for _, k := range keys {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}
	}

	t.Run("fills defaults", func(t *testing.T) {
		unset(t, "ENV", "SERVER_PORT", "CAPTURE_PAGE_TEXT_LIMIT", "ANTHROPIC_API_KEY",
			"CAPTURE_EXCHANGE_LOG_SIZE", "CAPTURE_EXCHANGE_LOG_AGE", "BROWSER_HEADLESS")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Env != EnvDevelopment {
			t.Errorf("Env = %v, want %v", cfg.Env, EnvDevelopment)
		}
		if cfg.Server.Port != 8080 {
			t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
		}
		if cfg.Capture.PageTextLimit != 20000 {
			t.Errorf("Capture.PageTextLimit = %d, want 20000", cfg.Capture.PageTextLimit)
		}
		if cfg.Capture.ExchangeLog != 50 {
			t.Errorf("Capture.ExchangeLog = %d, want 50", cfg.Capture.ExchangeLog)
		}
		if cfg.Capture.ExchangeLogAge != time.Hour {
			t.Errorf("Capture.ExchangeLogAge = %v, want 1h", cfg.Capture.ExchangeLogAge)
		}
		if !cfg.Browser.Headless {
			t.Error("Browser.Headless should default to true")
		}
		if cfg.Provider.Enabled() {
			t.Error("Provider should be disabled without an API key")
		}
	})

	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("ENV", "staging")
		t.Setenv("SERVER_PORT", "9191")
		t.Setenv("ANTHROPIC_API_KEY", "custom-api-key")
		t.Setenv("CAPTURE_AUTO_SUBMIT", "true")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Env != EnvStaging {
			t.Errorf("Env = %v, want %v", cfg.Env, EnvStaging)
		}
		if cfg.Server.Port != 9191 {
			t.Errorf("Server.Port = %d, want 9191", cfg.Server.Port)
		}
		if cfg.Provider.APIKey != "custom-api-key" {
			t.Errorf("Provider.APIKey = %v, want custom-api-key", cfg.Provider.APIKey)
		}
		if !cfg.Capture.AutoSubmit {
			t.Error("Capture.AutoSubmit should be true")
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		t.Setenv("ENV", "production")
		unset(t, "ANTHROPIC_API_KEY")

		if _, err := Load(); err == nil {
			t.Error("Load() should fail in production without an API key")
		}
	})
}

func TestEnvironmentConstants(t *testing.T) {
	if EnvDevelopment != "development" {
		t.Errorf("EnvDevelopment = %v, want development", EnvDevelopment)
	}
	if EnvStaging != "staging" {
		t.Errorf("EnvStaging = %v, want staging", EnvStaging)
	}
	if EnvProduction != "production" {
		t.Errorf("EnvProduction = %v, want production", EnvProduction)
	}
}

func TestSecurityConfig_Fields(t *testing.T) {
	cfg := SecurityConfig{
		CORSEnabled:        true,
		CORSAllowedOrigins: []string{"http://localhost", "https://example.com"},
	}

	if !cfg.CORSEnabled {
		t.Error("CORSEnabled should be true")
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Errorf("CORSAllowedOrigins len = %d, want 2", len(cfg.CORSAllowedOrigins))
	}
}
