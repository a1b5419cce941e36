package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 7*24*time.Hour, cfg.LoanPeriod())
	assert.Equal(t, 3*24*time.Hour, cfg.DueSoonWindow())
	assert.Equal(t, 10*time.Second, cfg.CatalogTimeout())
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LIBRARY_DB_PATH", "LIBRARY_STORAGE", "LIBRARY_POSTGRES_DSN", "LIBRARY_LOG_LEVEL", "LIBRARY_CATALOG_ENDPOINT"} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "library.yaml")
	cfg := DefaultConfig()
	cfg.Storage.Backend = "memory"
	cfg.Lending.LoanDays = 14
	cfg.Auth.PasswordHash = "bcrypt"
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "library.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lending:\n  loan_days: 21\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 21, cfg.Lending.LoanDays)
	assert.Equal(t, 3, cfg.Lending.DueSoonDays)
	assert.Equal(t, "library.db", cfg.Storage.Path)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: [not, a, map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIBRARY_DB_PATH", "/tmp/x.db")
	t.Setenv("LIBRARY_STORAGE", "postgres")
	t.Setenv("LIBRARY_POSTGRES_DSN", "postgres://u@h/db")
	t.Setenv("LIBRARY_LOG_LEVEL", "debug")
	t.Setenv("LIBRARY_CATALOG_ENDPOINT", "http://localhost:9999")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/tmp/x.db", cfg.Storage.Path)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "postgres://u@h/db", cfg.Storage.PostgresDSN)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "http://localhost:9999", cfg.Catalog.Endpoint)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }},
		{"sqlite without path", func(c *Config) { c.Storage.Path = " " }},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"unknown hash", func(c *Config) { c.Auth.PasswordHash = "md5" }},
		{"zero loan days", func(c *Config) { c.Lending.LoanDays = 0 }},
		{"window beyond loan", func(c *Config) { c.Lending.DueSoonDays = 8 }},
		{"bad timeout", func(c *Config) { c.Catalog.Timeout = "soon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
