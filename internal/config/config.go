// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backend identifiers
const (
	BackendSQLite = "sqlite"
	BackendDynamo = "dynamo"
)

// Trading mode identifiers. In rehearsal mode fills are simulated against a
// virtual cash balance instead of real capital.
const (
	ModeLive      = "live"
	ModeRehearsal = "rehearsal"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the SQLite database and snapshot cache
	Port     int
	LogLevel string
	DevMode  bool

	TradingMode    string // "live" or "rehearsal"
	StorageBackend string // "sqlite" or "dynamo"

	// DynamoDB backend settings (only used when StorageBackend == "dynamo")
	AWSRegion      string
	DynamoTable    string
	DynamoEndpoint string // Non-empty = local DynamoDB endpoint with static credentials

	// S3 backup settings (empty bucket disables backups)
	BackupBucket string
	BackupPrefix string

	// Cron schedules for background jobs
	CheckpointSchedule string
	BackupSchedule     string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("LUMINA_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("LUMINA_PORT", 8010),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		TradingMode:    strings.ToLower(getEnv("LUMINA_TRADING_MODE", ModeRehearsal)),
		StorageBackend: strings.ToLower(getEnv("LUMINA_STORAGE_BACKEND", BackendSQLite)),

		AWSRegion:      getEnv("AWS_REGION", "eu-central-1"),
		DynamoTable:    getEnv("LUMINA_DYNAMO_TABLE", "lumina_accounting"),
		DynamoEndpoint: getEnv("LUMINA_DYNAMO_ENDPOINT", ""),

		BackupBucket: getEnv("LUMINA_BACKUP_BUCKET", ""),
		BackupPrefix: getEnv("LUMINA_BACKUP_PREFIX", "backups/ledger"),

		CheckpointSchedule: getEnv("LUMINA_CHECKPOINT_SCHEDULE", "@every 4h"),
		BackupSchedule:     getEnv("LUMINA_BACKUP_SCHEDULE", "0 3 * * *"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is consistent
func (c *Config) Validate() error {
	switch c.TradingMode {
	case ModeLive, ModeRehearsal:
	default:
		return fmt.Errorf("invalid trading mode %q (expected %q or %q)", c.TradingMode, ModeLive, ModeRehearsal)
	}

	switch c.StorageBackend {
	case BackendSQLite, BackendDynamo:
	default:
		return fmt.Errorf("invalid storage backend %q (expected %q or %q)", c.StorageBackend, BackendSQLite, BackendDynamo)
	}

	if c.StorageBackend == BackendDynamo && c.DynamoTable == "" {
		return fmt.Errorf("LUMINA_DYNAMO_TABLE is required for the dynamo backend")
	}

	return nil
}

// Rehearsal reports whether the engine runs against the simulated balance
func (c *Config) Rehearsal() bool {
	return c.TradingMode == ModeRehearsal
}

// LedgerDBPath returns the path of the SQLite ledger database file
func (c *Config) LedgerDBPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// SnapshotCachePath returns the path of the msgpack snapshot cache file
func (c *Config) SnapshotCachePath() string {
	return filepath.Join(c.DataDir, "snapshot.msgpack")
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
