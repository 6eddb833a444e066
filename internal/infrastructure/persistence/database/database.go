// Package database provides the core functionality for creating and managing
// database connections in a clean, isolated manner.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// DB represents a wrapper around the standard SQL database connection.
type DB struct {
	*sql.DB
	UseTurso bool
}

// Config selects the driver: Turso when a URL and token are set, local
// SQLite otherwise.
type Config struct {
	SQLitePath      string
	TursoURL        string
	TursoToken      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects using cfg and applies the pool settings.
func Open(cfg Config, logger *logging.ChanneledLogger) (*DB, error) {
	if cfg.TursoURL != "" && cfg.TursoToken != "" {
		db, err := NewConnectionWithLogger("libsql", cfg.TursoURL+"?authToken="+cfg.TursoToken, logger)
		if err != nil {
			return nil, fmt.Errorf("turso connection failed: %w", err)
		}
		db.UseTurso = true
		applyPool(db, cfg)
		return db, nil
	}

	if cfg.SQLitePath != ":memory:" && !isURI(cfg.SQLitePath) {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := NewConnectionWithLogger("sqlite3", cfg.SQLitePath, logger)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection failed: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	applyPool(db, cfg)
	return db, nil
}

func applyPool(db *DB, cfg Config) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

func isURI(path string) bool {
	return len(path) > 5 && path[:5] == "file:"
}

// Info describes the active backend for startup logs.
func (db *DB) Info() string {
	if db.UseTurso {
		return "Turso (libsql)"
	}
	return "SQLite"
}

// NewConnectionWithLogger establishes a new database connection for the specified driver with logging.
func NewConnectionWithLogger(driverName, dataSourceName string, logger *logging.ChanneledLogger) (*DB, error) {
	start := time.Now()
	logger.Database().Debug("Creating new database connection", "driverName", driverName)

	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		logger.Database().Error("Failed to open database connection", "error", err.Error(), "driverName", driverName)
		return nil, err
	}

	if err = db.Ping(); err != nil {
		logger.Database().Error("Database ping failed", "error", err.Error(), "driverName", driverName)
		db.Close()
		return nil, err
	}

	duration := time.Since(start)
	logger.Database().Info("Database connection established", "driverName", driverName, "duration", duration)
	if duration > GetSlowQueryThreshold() {
		logger.LogSlowQuery("DATABASE_CONNECTION", duration, "system")
	}

	return &DB{DB: db}, nil
}
