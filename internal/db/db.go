package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/expfactory/internal/config"
)

var (
	db     *sql.DB
	dbOnce sync.Once
	dbErr  error
)

// DSNOptions enables foreign keys on every pooled connection, makes BEGIN take the
// write lock immediately and waits on a busy database instead of failing.
const DSNOptions = "_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"

// GetDB returns the database connection, initializing if needed
func GetDB() (*sql.DB, error) {
	dbOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			dbErr = err
			return
		}
		db, dbErr = Open(cfg.DBPath)
	})
	return db, dbErr
}

// Open opens (creating if needed) the database at path and brings its schema up to date.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", path, DSNOptions))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := InitSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return conn, nil
}

// Close closes the database connection
func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// GetDBPath returns the path to the configured database file
func GetDBPath() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.DBPath, nil
}
