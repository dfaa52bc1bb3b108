// Package cli provides common startup utilities for cmd/paytrack.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"paytrack/internal/config"
	applog "paytrack/internal/log"
	"paytrack/internal/receipts"
	"paytrack/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger initializes structured logging and sets the default logger.
func SetupLogger() {
	applog.Setup()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite initializes the SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		slog.Error("Failed to initialize SQLite storage", "error", err, "path", dbPath)
		os.Exit(1)
	}
	slog.Info("SQLite storage initialized", "path", dbPath)
	return repo
}

// InitReceiptStore initializes the receipt store directory.
// Returns the store or exits the process on failure.
func InitReceiptStore(dir string) *receipts.Store {
	store, err := receipts.NewStore(dir)
	if err != nil {
		slog.Error("Failed to initialize receipt store", "error", err, "dir", dir)
		os.Exit(1)
	}
	slog.Info("Receipt store initialized", "dir", dir)
	return store
}
