package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charybdis/charybdis/internal/core/hirez"
)

// Config represents the complete application configuration.
// Values are layered as defaults, the config file, environment variables and
// finally runtime overrides such as CLI flags.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// APIConfig holds the Hi-Rez credentials and client behaviour.
type APIConfig struct {
	DevID   string `mapstructure:"dev_id"`
	AuthKey string `mapstructure:"auth_key"`

	// Platform selects a known deployment. BaseURL wins when both are set.
	Platform string `mapstructure:"platform"`
	BaseURL  string `mapstructure:"base_url"`

	// Delay is the minimum spacing between signed calls.
	Delay time.Duration `mapstructure:"delay"`

	// Verify controls TLS certificate verification.
	Verify  bool          `mapstructure:"verify"`
	Timeout time.Duration `mapstructure:"timeout"`

	SessionTTL time.Duration `mapstructure:"session_ttl"`
	Workers    int           `mapstructure:"workers"`

	// PersistSessions stores session tokens so later invocations reuse them.
	PersistSessions bool `mapstructure:"persist_sessions"`
	// PersistRateLimit shares the spacing ledger through the store.
	PersistRateLimit bool `mapstructure:"persist_rate_limit"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level (SIMPLE or STRUCTURED).
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated Prometheus exporter port.
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ResolveBaseURL returns the explicit base URL or the platform's URL.
func (a APIConfig) ResolveBaseURL() (string, error) {
	if baseURL := strings.TrimSpace(a.BaseURL); baseURL != "" {
		return strings.TrimRight(baseURL, "/"), nil
	}
	platform, err := hirez.ParsePlatform(a.Platform)
	if err != nil {
		return "", err
	}
	baseURL, _ := platform.BaseURL()
	return baseURL, nil
}

// ClientOptions maps the API section onto hirez client options.
func (a APIConfig) ClientOptions() (hirez.Options, error) {
	baseURL, err := a.ResolveBaseURL()
	if err != nil {
		return hirez.Options{}, err
	}
	return hirez.Options{
		DevID:              strings.TrimSpace(a.DevID),
		AuthKey:            strings.TrimSpace(a.AuthKey),
		BaseURL:            baseURL,
		Delay:              a.Delay,
		Timeout:            a.Timeout,
		InsecureSkipVerify: !a.Verify,
		SessionTTL:         a.SessionTTL,
		Workers:            a.Workers,
	}, nil
}

// Validate checks the values every API-facing command depends on.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is not loaded")
	}
	if strings.TrimSpace(c.API.DevID) == "" || strings.TrimSpace(c.API.AuthKey) == "" {
		return hirez.ErrMissingCredentials
	}
	if _, err := c.API.ResolveBaseURL(); err != nil {
		return err
	}
	if c.API.Delay < 0 {
		return fmt.Errorf("api.delay must not be negative: %s", c.API.Delay)
	}
	if c.API.Workers < 0 {
		return fmt.Errorf("api.workers must not be negative: %d", c.API.Workers)
	}
	return nil
}
