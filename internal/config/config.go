package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	UniFi     UniFiConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

// DatabaseConfig holds database configuration. Driver "memory" runs without
// persistence and seeds a demo inventory.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/netcurfew.db"`
}

// UniFiConfig holds UniFi controller configuration.
type UniFiConfig struct {
	BaseURL            string `env:"UNIFI_BASE_URL"`
	APIKey             string `env:"UNIFI_API_KEY"`
	Site               string `env:"UNIFI_SITE" envDefault:"default"`
	InsecureSkipVerify bool   `env:"UNIFI_INSECURE_SKIP_VERIFY" envDefault:"false"`
	FileShim           string `env:"UNIFI_FILE_SHIM"` // Path to lock-state file for testing shim (disables real API)
}

// SchedulerConfig holds scheduler loop configuration.
type SchedulerConfig struct {
	Enabled  bool          `env:"SCHEDULER_ENABLED" envDefault:"true"`
	Interval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"60s"`
}

// LoggingConfig holds log output configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.UniFi); err != nil {
		return nil, fmt.Errorf("parsing unifi config: %w", err)
	}
	if err := env.Parse(&cfg.Scheduler); err != nil {
		return nil, fmt.Errorf("parsing scheduler config: %w", err)
	}
	if err := env.Parse(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("parsing logging config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres", "memory":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3, postgres, or memory")
	}

	// With the file shim there is no controller to talk to.
	if c.UniFi.FileShim == "" {
		if c.UniFi.BaseURL == "" {
			return fmt.Errorf("UNIFI_BASE_URL is required (or set UNIFI_FILE_SHIM for testing)")
		}
		if c.UniFi.APIKey == "" {
			return fmt.Errorf("UNIFI_API_KEY is required (or set UNIFI_FILE_SHIM for testing)")
		}
	}

	if c.Scheduler.Interval < time.Second {
		return fmt.Errorf("SCHEDULER_INTERVAL must be at least 1s")
	}

	return nil
}

// UseFileShim returns true if the file shim should be used instead of the real API.
func (c *Config) UseFileShim() bool {
	return c.UniFi.FileShim != ""
}
