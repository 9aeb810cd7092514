package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all engine configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// DatabaseConfig holds the relational store settings.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Retention time.Duration `yaml:"retention"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Audit: AuditConfig{
			Enabled:   true,
			Retention: 90 * 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "zoneauth",
			Insecure:    true,
		},
	}
}

// LoadConfig builds configuration from defaults, an optional YAML file named
// by ZONEAUTH_CONFIG_FILE, and ZONEAUTH_* environment variables, in that
// order of increasing precedence.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("ZONEAUTH_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) loadEnv() {
	c.Database.Driver = getEnv("ZONEAUTH_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("ZONEAUTH_DB_DSN", c.Database.DSN)
	c.Database.MaxOpenConns = getEnvInt("ZONEAUTH_DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("ZONEAUTH_DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvDuration("ZONEAUTH_DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)

	c.Log.Level = getEnv("ZONEAUTH_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("ZONEAUTH_LOG_FORMAT", c.Log.Format)

	c.Audit.Enabled = getEnvBool("ZONEAUTH_AUDIT_ENABLED", c.Audit.Enabled)
	c.Audit.Retention = getEnvDuration("ZONEAUTH_AUDIT_RETENTION", c.Audit.Retention)

	c.Metrics.Enabled = getEnvBool("ZONEAUTH_METRICS_ENABLED", c.Metrics.Enabled)

	c.Tracing.Enabled = getEnvBool("ZONEAUTH_OTEL_ENABLED", c.Tracing.Enabled)
	c.Tracing.Endpoint = getEnv("ZONEAUTH_OTEL_ENDPOINT", c.Tracing.Endpoint)
	c.Tracing.ServiceName = getEnv("ZONEAUTH_OTEL_SERVICE_NAME", c.Tracing.ServiceName)
	c.Tracing.Insecure = getEnvBool("ZONEAUTH_OTEL_INSECURE", c.Tracing.Insecure)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Log.Format)
	}

	if c.Audit.Enabled && c.Audit.Retention <= 0 {
		return fmt.Errorf("audit retention must be positive when auditing is enabled")
	}

	if c.Tracing.Enabled {
		if c.Tracing.Endpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when tracing is enabled")
		}
		if c.Tracing.ServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when tracing is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
