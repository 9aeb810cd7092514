package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ZONEAUTH_DB_DSN", "postgres://localhost/zoneauth?sslmode=disable")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, 90*24*time.Hour, cfg.Audit.Retention)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("ZONEAUTH_DB_DRIVER", "sqlite3")
	t.Setenv("ZONEAUTH_DB_DSN", "file:zoneauth.db")
	t.Setenv("ZONEAUTH_DB_MAX_OPEN_CONNS", "50")
	t.Setenv("ZONEAUTH_LOG_LEVEL", "debug")
	t.Setenv("ZONEAUTH_LOG_FORMAT", "text")
	t.Setenv("ZONEAUTH_AUDIT_RETENTION", "720h")
	t.Setenv("ZONEAUTH_OTEL_ENABLED", "true")
	t.Setenv("ZONEAUTH_OTEL_ENDPOINT", "collector:4317")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "file:zoneauth.db", cfg.Database.DSN)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 720*time.Hour, cfg.Audit.Retention)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "collector:4317", cfg.Tracing.Endpoint)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zoneauth.yaml")
	content := `
database:
  driver: postgres
  dsn: postgres://db.internal/pdns?sslmode=require
  max_open_conns: 10
log:
  level: warn
  format: text
audit:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("ZONEAUTH_CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://db.internal/pdns?sslmode=require", cfg.Database.DSN)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.Audit.Enabled)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zoneauth.yaml")
	content := `
database:
  dsn: postgres://file-value/pdns
log:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("ZONEAUTH_CONFIG_FILE", path)
	t.Setenv("ZONEAUTH_DB_DSN", "postgres://env-value/pdns")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-value/pdns", cfg.Database.DSN)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Database.DSN = "postgres://localhost/zoneauth"
		return cfg
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := valid()
		cfg.Database.Driver = "mysql"
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing DSN", func(t *testing.T) {
		cfg := valid()
		cfg.Database.DSN = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad log format", func(t *testing.T) {
		cfg := valid()
		cfg.Log.Format = "xml"
		assert.Error(t, cfg.Validate())
	})

	t.Run("audit retention must be positive", func(t *testing.T) {
		cfg := valid()
		cfg.Audit.Retention = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("tracing needs endpoint", func(t *testing.T) {
		cfg := valid()
		cfg.Tracing.Enabled = true
		cfg.Tracing.Endpoint = ""
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadConfigBadFile(t *testing.T) {
	t.Setenv("ZONEAUTH_CONFIG_FILE", "/nonexistent/zoneauth.yaml")

	_, err := LoadConfig()
	assert.Error(t, err)
}
