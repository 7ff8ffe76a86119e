package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/balkashynov/tasktime/internal/log"
	"github.com/balkashynov/tasktime/internal/models"
)

// activeSessionIndex enforces at most one open session per (task, user).
const activeSessionIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_time_sessions_active
	ON time_sessions (task_id, user_id) WHERE end_time IS NULL`

// Options tune how a database is opened.
type Options struct {
	Verbose bool // log SQL through gorm's default logger
}

// OpenServer opens the authoritative session database and migrates its schema.
func OpenServer(path string, opts Options) (*gorm.DB, error) {
	db, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	if err := runServerMigrations(db); err != nil {
		_ = Close(db)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info(log.CatDB, "server database ready", "path", path)
	return db, nil
}

// OpenClient opens the device-local database that holds timer hints.
func OpenClient(path string, opts Options) (*gorm.DB, error) {
	db, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.TimerHint{}); err != nil {
		_ = Close(db)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func open(path string, opts Options) (*gorm.DB, error) {
	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	mode := logger.Silent
	if opts.Verbose {
		mode = logger.Info
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(mode),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// sqlite serializes writers anyway; one connection avoids SQLITE_BUSY between our own goroutines.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// runServerMigrations creates/updates the server schema
func runServerMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.TimeSession{},
		&models.Task{},
		&models.Membership{},
	); err != nil {
		return err
	}
	return db.Exec(activeSessionIndex).Error
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
