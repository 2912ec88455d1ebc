// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/aristath/rampwatch/internal/archive"
	"github.com/aristath/rampwatch/internal/utils"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the database (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string
	// CacheTTL bounds how long analytics results are served from cache.
	CacheTTL time.Duration

	AlertSweepSchedule  string
	WALCheckSchedule    string
	RotationSchedule    string
	BackupSchedule      string
	MaintenanceSchedule string
	StatusInterval      time.Duration

	// SeedFile, when set, is loaded into warehouse settings at startup.
	SeedFile string

	Archive ArchiveConfig
}

// ArchiveConfig holds the object storage settings for tape archiving
type ArchiveConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int

	// BackupRetentionDays is how long database backups are kept.
	BackupRetentionDays int
}

// Enabled reports whether a bucket is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// ClientConfig converts the settings into an S3 client config.
func (a ArchiveConfig) ClientConfig() archive.Config {
	return archive.Config{
		Endpoint:        a.Endpoint,
		Region:          a.Region,
		Bucket:          a.Bucket,
		AccessKeyID:     a.AccessKeyID,
		SecretAccessKey: a.SecretAccessKey,
	}
}

// DatabasePath returns the path of the rampwatch database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "rampwatch.db")
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("RAMPWATCH_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                getEnvAsInt("RAMPWATCH_PORT", 8080),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		CORSOrigins:         utils.ParseCSV(getEnv("CORS_ORIGINS", "*")),
		CacheTTL:            getEnvAsDuration("CACHE_TTL", time.Minute),
		AlertSweepSchedule:  getEnv("ALERT_SWEEP_SCHEDULE", "0 */15 * * * *"),
		WALCheckSchedule:    getEnv("WAL_CHECK_SCHEDULE", "0 0 * * * *"),
		RotationSchedule:    getEnv("ARCHIVE_ROTATION_SCHEDULE", "0 30 2 * * *"),
		BackupSchedule:      getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 0 4 * * 0"),
		StatusInterval:      getEnvAsDuration("STATUS_INTERVAL", 30*time.Second),
		SeedFile:            getEnv("WAREHOUSE_SEED_FILE", ""),
		Archive: ArchiveConfig{
			Endpoint:            getEnv("ARCHIVE_ENDPOINT", ""),
			Region:              getEnv("ARCHIVE_REGION", ""),
			Bucket:              getEnv("ARCHIVE_BUCKET", ""),
			AccessKeyID:         getEnv("ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey:     getEnv("ARCHIVE_SECRET_ACCESS_KEY", ""),
			RetentionDays:       getEnvAsInt("ARCHIVE_RETENTION_DAYS", 365),
			BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var err error
	if c.Port <= 0 || c.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.CacheTTL <= 0 {
		err = multierr.Append(err, errors.New("CACHE_TTL must be positive"))
	}
	if c.StatusInterval <= 0 {
		err = multierr.Append(err, errors.New("STATUS_INTERVAL must be positive"))
	}
	if c.Archive.RetentionDays < 0 {
		err = multierr.Append(err, errors.New("ARCHIVE_RETENTION_DAYS must not be negative"))
	}
	if (c.Archive.AccessKeyID == "") != (c.Archive.SecretAccessKey == "") {
		err = multierr.Append(err, errors.New("archive access key id and secret must be set together"))
	}
	return err
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
