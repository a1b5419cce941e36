package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for configuration when --config is
// not given.
const DefaultPath = "library.yaml"

// Config holds all library configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Lending LendingConfig `yaml:"lending"`
	Catalog CatalogConfig `yaml:"catalog"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig selects and locates the record store backend.
type StorageConfig struct {
	Backend     string `yaml:"backend"` // sqlite, postgres, memory
	Path        string `yaml:"path"`    // sqlite database file
	PostgresDSN string `yaml:"postgres_dsn"`
}

// AuthConfig configures password digests and the first admin account.
type AuthConfig struct {
	PasswordHash  string `yaml:"password_hash"` // rolling, bcrypt
	AdminUsername string `yaml:"admin_username"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

// LendingConfig configures loan periods.
type LendingConfig struct {
	LoanDays    int `yaml:"loan_days"`
	DueSoonDays int `yaml:"due_soon_days"`
}

// CatalogConfig configures the Open Library client.
type CatalogConfig struct {
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    "library.db",
		},
		Auth: AuthConfig{
			PasswordHash:  "rolling",
			AdminUsername: "admin",
			AdminEmail:    "admin@library.com",
			AdminPassword: "admin123",
		},
		Lending: LendingConfig{
			LoanDays:    7,
			DueSoonDays: 3,
		},
		Catalog: CatalogConfig{
			Endpoint: "https://openlibrary.org",
			Timeout:  "10s",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults. A
// missing file is not an error. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LIBRARY_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("LIBRARY_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("LIBRARY_POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("LIBRARY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LIBRARY_CATALOG_ENDPOINT"); v != "" {
		c.Catalog.Endpoint = v
	}
}

// Validate checks the configuration for values the program cannot run with.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"sqlite", "postgres", "memory"}, c.Storage.Backend) {
		return fmt.Errorf("storage.backend must be sqlite, postgres or memory, got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "sqlite" && strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required for sqlite")
	}
	if c.Storage.Backend == "postgres" && strings.TrimSpace(c.Storage.PostgresDSN) == "" {
		return fmt.Errorf("storage.postgres_dsn is required for postgres")
	}
	if c.Auth.PasswordHash != "rolling" && c.Auth.PasswordHash != "bcrypt" {
		return fmt.Errorf("auth.password_hash must be rolling or bcrypt, got %q", c.Auth.PasswordHash)
	}
	if c.Lending.LoanDays < 1 {
		return fmt.Errorf("lending.loan_days must be at least 1")
	}
	if c.Lending.DueSoonDays < 0 || c.Lending.DueSoonDays > c.Lending.LoanDays {
		return fmt.Errorf("lending.due_soon_days must be between 0 and loan_days")
	}
	if _, err := time.ParseDuration(c.Catalog.Timeout); err != nil {
		return fmt.Errorf("catalog.timeout: %w", err)
	}
	return nil
}

// LoanPeriod is the configured loan length.
func (c *Config) LoanPeriod() time.Duration {
	return time.Duration(c.Lending.LoanDays) * 24 * time.Hour
}

// DueSoonWindow is the configured due-soon window.
func (c *Config) DueSoonWindow() time.Duration {
	return time.Duration(c.Lending.DueSoonDays) * 24 * time.Hour
}

// CatalogTimeout returns the catalog request timeout, 10s if unparsable.
func (c *Config) CatalogTimeout() time.Duration {
	d, err := time.ParseDuration(c.Catalog.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
