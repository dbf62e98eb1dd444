// Package common provides shared utilities for fincollect
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for fincollect
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Auth        AuthConfig    `toml:"auth"`
	Clients     ClientsConfig `toml:"clients"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// AuthConfig holds the credential store: client credentials, the static API
// key, and JWT signing settings. Loaded once at startup, immutable thereafter.
type AuthConfig struct {
	ClientID         string `toml:"client_id"`
	ClientSecret     string `toml:"client_secret"`
	APIKey           string `toml:"api_key"`
	JWTSecret        string `toml:"jwt_secret"`
	JWTAlgorithm     string `toml:"jwt_algorithm"`      // HS256, HS384 or HS512
	JWTExpiryMinutes int    `toml:"jwt_expiry_minutes"` // 0 is legal: token expires at issuance
}

// GetTokenExpiry returns the configured token lifetime.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	return time.Duration(c.JWTExpiryMinutes) * time.Minute
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Yahoo YahooConfig `toml:"yahoo"`
}

// YahooConfig holds Yahoo Finance API configuration
type YahooConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *YahooConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Auth: AuthConfig{
			ClientID:         "sample_client_id",
			ClientSecret:     "sample_client_secret",
			APIKey:           "sample_api_key",
			JWTSecret:        "default_secret_key",
			JWTAlgorithm:     "HS256",
			JWTExpiryMinutes: 0,
		},
		Clients: ClientsConfig{
			Yahoo: YahooConfig{
				BaseURL:   "https://query1.finance.yahoo.com",
				RateLimit: 10,
				Timeout:   "30s",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Apply environment overrides
	applyEnvOverrides(config)

	return config, nil
}

// envString returns the first non-empty value among the named env vars.
func envString(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// applyEnvOverrides applies environment variable overrides to config.
// FINCOLLECT_* names take priority; the bare names match the original
// deployment environment and are kept for compatibility.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FINCOLLECT_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("FINCOLLECT_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("FINCOLLECT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FINCOLLECT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Credential store overrides
	if v := envString("FINCOLLECT_CLIENT_ID", "CLIENT_ID"); v != "" {
		config.Auth.ClientID = v
	}
	if v := envString("FINCOLLECT_CLIENT_SECRET", "CLIENT_SECRET"); v != "" {
		config.Auth.ClientSecret = v
	}
	if v := envString("FINCOLLECT_API_KEY", "API_KEY"); v != "" {
		config.Auth.APIKey = v
	}
	if v := envString("FINCOLLECT_JWT_SECRET", "JWT_SECRET_KEY"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := envString("FINCOLLECT_JWT_ALGORITHM", "JWT_ALGORITHM"); v != "" {
		config.Auth.JWTAlgorithm = v
	}
	if v := envString("FINCOLLECT_JWT_EXPIRY_MINUTES", "JWT_EXPIRATION_MINUTES"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			config.Auth.JWTExpiryMinutes = m
		}
	}

	if v := os.Getenv("FINCOLLECT_YAHOO_BASE_URL"); v != "" {
		config.Clients.Yahoo.BaseURL = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
