package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const dbFileName = "xref.db"

// pragmas applied to every pooled connection; cascading deletes depend on
// foreign_keys.
const pragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// DatabasePath returns the path to the database file in the .xref directory.
func DatabasePath(xrefDir string) string {
	return filepath.Join(xrefDir, dbFileName)
}

// Initialize creates the database file if needed and brings its schema up to
// date.
func Initialize(dbPath string) error {
	d, err := Open(dbPath)
	if err != nil {
		return err
	}
	return d.Close()
}

// Open opens the database at dbPath and applies pending migrations.
func Open(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	d, err := sql.Open("sqlite", dbPath+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := Migrate(d); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return d, nil
}
