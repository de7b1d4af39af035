package db

import (
	"database/sql"
	"fmt"
	"time"
)

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "initial_schema",
		SQL: `
			CREATE TABLE IF NOT EXISTS meta (
				key TEXT PRIMARY KEY,
				value TEXT
			);

			CREATE TABLE IF NOT EXISTS projects (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				repo_root TEXT UNIQUE NOT NULL,
				created_at TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE IF NOT EXISTS source_roots (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				project_id INTEGER NOT NULL,
				path TEXT NOT NULL,
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
			);
		`,
	},
	{
		Version: 2,
		Name:    "add_scans_and_files",
		SQL: `
			-- One row per completed scan
			CREATE TABLE IF NOT EXISTS scans (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				project_id INTEGER NOT NULL,
				scan_uid TEXT UNIQUE NOT NULL,
				started_at TEXT NOT NULL,
				finished_at TEXT NOT NULL,
				file_count INTEGER NOT NULL DEFAULT 0,
				symbol_count INTEGER NOT NULL DEFAULT 0,
				reference_count INTEGER NOT NULL DEFAULT 0,
				diagnostic_count INTEGER NOT NULL DEFAULT 0,
				FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_scans_project ON scans(project_id, id);

			-- Files seen by a scan
			CREATE TABLE IF NOT EXISTS files (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				scan_id INTEGER NOT NULL,
				path TEXT NOT NULL,
				xxhash TEXT NOT NULL DEFAULT '',
				size_bytes INTEGER NOT NULL DEFAULT 0,
				parse_error TEXT NOT NULL DEFAULT '',
				FOREIGN KEY (scan_id) REFERENCES scans(id) ON DELETE CASCADE,
				UNIQUE (scan_id, path)
			);
		`,
	},
	{
		Version: 3,
		Name:    "add_symbols_refs_and_diagnostics",
		SQL: `
			-- Cataloged symbols and their members
			CREATE TABLE IF NOT EXISTS symbols (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				scan_id INTEGER NOT NULL,
				symbol_id TEXT NOT NULL,
				owner_id TEXT NOT NULL DEFAULT '',
				name TEXT NOT NULL,
				kind TEXT NOT NULL,
				is_local INTEGER NOT NULL DEFAULT 0,
				module TEXT NOT NULL DEFAULT '',
				file TEXT NOT NULL DEFAULT '',
				start_line INTEGER NOT NULL DEFAULT 0,
				start_col INTEGER NOT NULL DEFAULT 0,
				end_line INTEGER NOT NULL DEFAULT 0,
				reference_count INTEGER NOT NULL DEFAULT 0,
				FOREIGN KEY (scan_id) REFERENCES scans(id) ON DELETE CASCADE,
				UNIQUE (scan_id, symbol_id)
			);
			CREATE INDEX IF NOT EXISTS idx_symbols_scan_name ON symbols(scan_id, name);

			-- Usage references, one row per occurrence
			CREATE TABLE IF NOT EXISTS refs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				scan_id INTEGER NOT NULL,
				symbol_id TEXT NOT NULL,
				file TEXT NOT NULL,
				line INTEGER NOT NULL,
				col INTEGER NOT NULL,
				context TEXT NOT NULL,
				context_line TEXT NOT NULL DEFAULT '',
				FOREIGN KEY (scan_id) REFERENCES scans(id) ON DELETE CASCADE
			);
			CREATE INDEX IF NOT EXISTS idx_refs_scan_symbol ON refs(scan_id, symbol_id);

			CREATE TABLE IF NOT EXISTS diagnostics (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				scan_id INTEGER NOT NULL,
				phase TEXT NOT NULL,
				severity TEXT NOT NULL,
				file TEXT NOT NULL DEFAULT '',
				symbol TEXT NOT NULL DEFAULT '',
				message TEXT NOT NULL,
				FOREIGN KEY (scan_id) REFERENCES scans(id) ON DELETE CASCADE
			);
		`,
	},
}

// Migrate runs all pending versioned migrations, each inside its own
// transaction. It creates the schema_migrations table if it does not exist.
func Migrate(d *sql.DB) error {
	if _, err := d.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name    TEXT NOT NULL,
			applied_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	current, err := CurrentVersion(d)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	if current > LatestVersion() {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, LatestVersion())
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(d, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func applyMigration(d *sql.DB, m migration) error {
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Name, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return tx.Commit()
}

// CurrentVersion returns the highest applied migration version (0 if none).
func CurrentVersion(d *sql.DB) (int, error) {
	var v int
	err := d.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
	return v, err
}

// LatestVersion returns the latest migration version defined in code.
func LatestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
