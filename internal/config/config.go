// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for the sqlite database (always absolute)
	LogLevel  string
	LogPretty bool
	Port      int

	// SweepSchedule is a robfig/cron expression driving the due-check sweep
	SweepSchedule string

	BrokerBaseURL           string
	BrokerDataURL           string
	BrokerRequestsPerSecond float64

	VenueBaseURL string

	HTTPTimeout time.Duration

	Backup *BackupConfig
}

// BackupConfig holds snapshot upload settings for S3-compatible storage
type BackupConfig struct {
	Bucket          string
	Endpoint        string // Empty means the AWS default resolver
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Schedule        string
}

// Enabled reports whether backups have somewhere to go
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("AUTOPILOT_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:                 absDataDir,
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogPretty:               getEnvAsBool("LOG_PRETTY", true),
		Port:                    getEnvAsInt("HTTP_PORT", 8080),
		SweepSchedule:           getEnv("SWEEP_SCHEDULE", "@every 15s"),
		BrokerBaseURL:           getEnv("BROKER_BASE_URL", "https://paper-api.alpaca.markets"),
		BrokerDataURL:           getEnv("BROKER_DATA_URL", "https://data.alpaca.markets"),
		BrokerRequestsPerSecond: getEnvAsFloat("BROKER_REQUESTS_PER_SECOND", 3),
		VenueBaseURL:            getEnv("VENUE_BASE_URL", "https://clob.polymarket.com"),
		HTTPTimeout:             time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		Backup:                  loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", c.Port)
	}
	if c.BrokerRequestsPerSecond <= 0 {
		return fmt.Errorf("BROKER_REQUESTS_PER_SECOND must be positive, got %v", c.BrokerRequestsPerSecond)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive")
	}
	if c.SweepSchedule == "" {
		return fmt.Errorf("SWEEP_SCHEDULE must not be empty")
	}
	return nil
}

// DatabasePath returns the location of the main sqlite file
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "autopilot.db")
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Bucket:          getEnv("BACKUP_BUCKET", ""),
		Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
		Region:          getEnv("BACKUP_REGION", "auto"),
		AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		Schedule:        getEnv("BACKUP_SCHEDULE", "@daily"),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
