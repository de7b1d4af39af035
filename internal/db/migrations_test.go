package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func TestMigrateCreatesAllTables(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := Initialize(dbPath); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	d, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = d.Close() }()

	// All expected tables must exist.
	for _, table := range []string{"schema_migrations", "meta", "projects", "source_roots", "scans", "files", "symbols", "refs", "diagnostics"} {
		var name string
		err := d.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := Initialize(dbPath); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	d, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = d.Close() }()

	// Running migrate again should not error.
	if err := Migrate(d); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	v, err := CurrentVersion(d)
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if v != LatestVersion() {
		t.Errorf("version = %d, want %d", v, LatestVersion())
	}
}

func TestMigrateRecordsMigrationVersions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := Initialize(dbPath); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	d, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = d.Close() }()

	rows, err := d.Query(`SELECT version, name FROM schema_migrations ORDER BY version`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []int
	for rows.Next() {
		var v int
		var name string
		if err := rows.Scan(&v, &name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		versions = append(versions, v)
		if name == "" {
			t.Errorf("migration %d has empty name", v)
		}
	}

	if len(versions) != len(migrations) {
		t.Errorf("got %d migration records, want %d", len(versions), len(migrations))
	}
}

func TestMigrateAppliesOnlyPending(t *testing.T) {
	// Simulate a database created by a build that only knew version 1.
	dbPath := filepath.Join(t.TempDir(), "old.db")

	d, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := d.Exec(`CREATE TABLE schema_migrations (version INTEGER PRIMARY KEY, name TEXT NOT NULL, applied_at TEXT NOT NULL)`); err != nil {
		t.Fatalf("create schema_migrations: %v", err)
	}
	if err := applyMigration(d, migrations[0]); err != nil {
		t.Fatalf("apply v1: %v", err)
	}
	_ = d.Close()

	d2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = d2.Close() }()

	v, err := CurrentVersion(d2)
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if v != LatestVersion() {
		t.Errorf("version after upgrade = %d, want %d", v, LatestVersion())
	}

	var count int
	if err := d2.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = 1`).Scan(&count); err != nil {
		t.Fatalf("failed to query v1 migration record: %v", err)
	}
	if count != 1 {
		t.Errorf("v1 migration record count = %d, want 1", count)
	}
}

func TestMigrateRejectsNewerSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	d, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = d.Close() }()

	if _, err := d.Exec(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, 'future', '')`, LatestVersion()+1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := Migrate(d); err == nil {
		t.Fatal("Migrate on a newer schema: want error, got nil")
	}
}

func TestDeletingScanCascades(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = d.Close() }()

	stmts := []string{
		`INSERT INTO projects (id, repo_root) VALUES (1, '/repo')`,
		`INSERT INTO scans (id, project_id, scan_uid, started_at, finished_at) VALUES (1, 1, 'a', '', '')`,
		`INSERT INTO files (scan_id, path) VALUES (1, 'a.ts')`,
		`INSERT INTO symbols (scan_id, symbol_id, name, kind) VALUES (1, 'class:a.ts#A', 'A', 'class')`,
		`INSERT INTO refs (scan_id, symbol_id, file, line, col, context) VALUES (1, 'class:a.ts#A', 'b.ts', 1, 1, 'reference')`,
		`DELETE FROM scans WHERE id = 1`,
	}
	for _, q := range stmts {
		if _, err := d.Exec(q); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	for _, table := range []string{"files", "symbols", "refs"} {
		var n int
		if err := d.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s has %d rows after scan delete, want 0", table, n)
		}
	}
}

func TestInitializeCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	dbPath := filepath.Join(dir, "test.db")

	if err := Initialize(dbPath); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("db file not created: %v", err)
	}
}
