package config

import (
	"os"
	"strconv"
	"strings"

	"entitlements/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Source   SourceConfig
	Output   OutputConfig
	Database DatabaseConfig
	Server   ServerConfig
	LogLevel string
}

// SourceConfig holds the input spreadsheet settings
type SourceConfig struct {
	File  string
	Sheet string
	// NAValues overrides the reader's missing-value tokens when non-empty
	NAValues []string
}

// OutputConfig holds the document output settings
type OutputConfig struct {
	JSONPath string
}

// DatabaseConfig holds relational output settings
type DatabaseConfig struct {
	Driver string
	Path   string
	URL    string
	Atomic bool
}

// ServerConfig holds the dashboard server settings
type ServerConfig struct {
	Port         string
	GinMode      string
	DashboardDir string
}

// Load reads configuration from environment variables. Values that only
// matter to some commands are checked by Validate.
func Load() (*Config, error) {
	config := &Config{
		Source:   loadSourceConfig(),
		Output:   OutputConfig{JSONPath: getEnvOrDefault("JSON_OUTPUT", "data/entitlements.json")},
		Database: loadDatabaseConfig(),
		Server:   loadServerConfig(),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	switch config.Database.Driver {
	case "sqlite", "postgres":
	default:
		return nil, errors.Newf(errors.CodeConfigInvalid, "DB_DRIVER must be sqlite or postgres, got %q", config.Database.Driver)
	}

	return config, nil
}

func loadSourceConfig() SourceConfig {
	return SourceConfig{
		File:     getEnvOrDefault("ENTITLEMENTS_SOURCE", ""),
		Sheet:    getEnvOrDefault("SHEET_NAME", ""),
		NAValues: getEnvListOrDefault("NA_VALUES", nil),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver: strings.ToLower(getEnvOrDefault("DB_DRIVER", "sqlite")),
		Path:   getEnvOrDefault("DB_OUTPUT", "data/entitlements.db"),
		URL:    getEnvOrDefault("DATABASE_URL", ""),
		Atomic: getEnvBoolOrDefault("DB_ATOMIC", true),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:         getEnvOrDefault("SERVE_PORT", "8080"),
		GinMode:      getEnvOrDefault("GIN_MODE", "release"),
		DashboardDir: getEnvOrDefault("DASHBOARD_DIR", "dashboard"),
	}
}

// Validate checks the settings a pipeline run needs
func (c *Config) Validate() error {
	if c.Source.File == "" {
		return errors.ConfigInvalid("source file is required (ENTITLEMENTS_SOURCE or --source)")
	}
	return nil
}

// ValidateDatabase checks the database settings. Only commands that write the
// relational output call it.
func (c *Config) ValidateDatabase() error {
	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required when DB_DRIVER is postgres")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
