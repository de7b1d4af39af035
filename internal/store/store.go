// Package store persists scan results in the project database and answers
// lookups against the most recent scans.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/mesdx/xref/internal/projection"
	"github.com/mesdx/xref/internal/symbols"
)

// DefaultKeep is the number of scans retained per project.
const DefaultKeep = 5

// ErrNoScans is returned when the project has no stored scan.
var ErrNoScans = errors.New("no stored scan; run `xref scan` first")

// Store wraps DB operations for one project.
type Store struct {
	DB        *sql.DB
	ProjectID int64
	// Keep bounds the stored scan history; zero means DefaultKeep.
	Keep int
}

// Open returns a store bound to the project row for repoRoot, creating it
// when missing.
func Open(ctx context.Context, d *sql.DB, repoRoot string) (*Store, error) {
	s := &Store{DB: d}
	if err := s.ensureProject(ctx, repoRoot); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureProject(ctx context.Context, repoRoot string) error {
	var id int64
	err := sq.Select("id").
		From("projects").
		Where(sq.Eq{"repo_root": repoRoot}).
		RunWith(s.DB).
		QueryRowContext(ctx).
		Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		res, err := sq.Insert("projects").
			Columns("repo_root").
			Values(repoRoot).
			RunWith(s.DB).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		id, _ = res.LastInsertId()
	} else if err != nil {
		return fmt.Errorf("query project: %w", err)
	}
	s.ProjectID = id
	return nil
}

// SetSourceRoots replaces the stored source roots for the project.
func (s *Store) SetSourceRoots(ctx context.Context, roots []string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := sq.Delete("source_roots").
		Where(sq.Eq{"project_id": s.ProjectID}).
		RunWith(tx).
		ExecContext(ctx); err != nil {
		return fmt.Errorf("clear source roots: %w", err)
	}
	if len(roots) > 0 {
		ins := sq.Insert("source_roots").Columns("project_id", "path")
		for _, r := range roots {
			ins = ins.Values(s.ProjectID, r)
		}
		if _, err := ins.RunWith(tx).ExecContext(ctx); err != nil {
			return fmt.Errorf("insert source roots: %w", err)
		}
	}
	return tx.Commit()
}

// SourceRoots returns the stored source roots in insertion order.
func (s *Store) SourceRoots(ctx context.Context) ([]string, error) {
	rows, err := sq.Select("path").
		From("source_roots").
		Where(sq.Eq{"project_id": s.ProjectID}).
		OrderBy("id").
		RunWith(s.DB).
		QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FileInfo is the stored record of one scanned file.
type FileInfo struct {
	Path        string
	Fingerprint uint64
	Size        int64
	ParseError  string
}

// Run is everything SaveScan persists for one scan.
type Run struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Files      []FileInfo
	Projection *projection.Projection
}

// Scan is a stored scan header.
type Scan struct {
	ID          int64
	UID         string
	StartedAt   time.Time
	FinishedAt  time.Time
	Files       int
	Symbols     int
	References  int
	Diagnostics int
}

func (s *Store) keep() int {
	if s.Keep > 0 {
		return s.Keep
	}
	return DefaultKeep
}

// SaveScan writes one scan in a single transaction and prunes scans beyond
// the retention limit.
func (s *Store) SaveScan(ctx context.Context, run Run) (*Scan, error) {
	p := run.Projection
	if p == nil {
		return nil, errors.New("save scan: nil projection")
	}
	scan := &Scan{
		UID:         uuid.NewString(),
		StartedAt:   run.StartedAt.UTC(),
		FinishedAt:  run.FinishedAt.UTC(),
		Files:       len(run.Files),
		References:  p.Summary.References,
		Diagnostics: len(p.Diagnostics),
	}
	for _, e := range p.Entries() {
		scan.Symbols += 1 + len(e.Members)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := sq.Insert("scans").
		Columns("project_id", "scan_uid", "started_at", "finished_at",
			"file_count", "symbol_count", "reference_count", "diagnostic_count").
		Values(s.ProjectID, scan.UID,
			scan.StartedAt.Format(time.RFC3339Nano), scan.FinishedAt.Format(time.RFC3339Nano),
			scan.Files, scan.Symbols, scan.References, scan.Diagnostics).
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert scan: %w", err)
	}
	if scan.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("scan id: %w", err)
	}

	if err := insertFiles(ctx, tx, scan.ID, run.Files); err != nil {
		return nil, err
	}
	if err := insertSymbols(ctx, tx, scan.ID, p.Entries()); err != nil {
		return nil, err
	}
	if err := insertDiagnostics(ctx, tx, scan.ID, p); err != nil {
		return nil, err
	}
	if err := s.prune(ctx, tx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit scan: %w", err)
	}
	return scan, nil
}

func (s *Store) prune(ctx context.Context, tx *sql.Tx) error {
	_, err := sq.Delete("scans").
		Where(sq.Eq{"project_id": s.ProjectID}).
		Where("id NOT IN (SELECT id FROM scans WHERE project_id = ? ORDER BY id DESC LIMIT ?)", s.ProjectID, s.keep()).
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("prune scans: %w", err)
	}
	return nil
}

// prepare builds the statement once with squirrel and prepares it on tx.
func prepare(ctx context.Context, tx *sql.Tx, b sq.InsertBuilder, placeholders ...any) (*sql.Stmt, error) {
	query, _, err := b.Values(placeholders...).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql: %w", err)
	}
	return tx.PrepareContext(ctx, query)
}

func insertFiles(ctx context.Context, tx *sql.Tx, scanID int64, files []FileInfo) error {
	stmt, err := prepare(ctx, tx,
		sq.Insert("files").Columns("scan_id", "path", "xxhash", "size_bytes", "parse_error"),
		0, "", "", 0, "")
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, f := range files {
		if _, err := stmt.ExecContext(ctx, scanID, f.Path, FormatFingerprint(f.Fingerprint), f.Size, f.ParseError); err != nil {
			return fmt.Errorf("insert file %s: %w", f.Path, err)
		}
	}
	return nil
}

func insertSymbols(ctx context.Context, tx *sql.Tx, scanID int64, entries []projection.Entry) error {
	symStmt, err := prepare(ctx, tx,
		sq.Insert("symbols").Columns("scan_id", "symbol_id", "owner_id", "name", "kind", "is_local",
			"module", "file", "start_line", "start_col", "end_line", "reference_count"),
		0, "", "", "", "", false, "", "", 0, 0, 0, 0)
	if err != nil {
		return err
	}
	defer func() { _ = symStmt.Close() }()
	refStmt, err := prepare(ctx, tx,
		sq.Insert("refs").Columns("scan_id", "symbol_id", "file", "line", "col", "context", "context_line"),
		0, "", "", 0, 0, "", "")
	if err != nil {
		return err
	}
	defer func() { _ = refStmt.Close() }()

	addRefs := func(id string, refs []symbols.Reference) error {
		for _, r := range refs {
			if _, err := refStmt.ExecContext(ctx, scanID, id, r.Location.File, r.Location.Line,
				r.Location.Column, r.Context.String(), r.ContextLine); err != nil {
				return fmt.Errorf("insert reference of %s: %w", id, err)
			}
		}
		return nil
	}

	for _, e := range entries {
		var loc symbols.Location
		if e.Location != nil {
			loc = *e.Location
		}
		if _, err := symStmt.ExecContext(ctx, scanID, e.ID, "", e.Name, e.Kind.String(), e.IsLocal,
			e.Module, loc.File, loc.Line, loc.Column, loc.EndLine, e.ReferenceCount); err != nil {
			return fmt.Errorf("insert symbol %s: %w", e.ID, err)
		}
		if err := addRefs(e.ID, e.References); err != nil {
			return err
		}
		for _, m := range e.Members {
			if _, err := symStmt.ExecContext(ctx, scanID, m.ID, e.ID, m.Name, m.Kind.String(), e.IsLocal,
				"", m.Location.File, m.Location.Line, m.Location.Column, m.Location.EndLine, m.ReferenceCount); err != nil {
				return fmt.Errorf("insert member %s: %w", m.ID, err)
			}
			if err := addRefs(m.ID, m.References); err != nil {
				return err
			}
		}
	}
	return nil
}

func insertDiagnostics(ctx context.Context, tx *sql.Tx, scanID int64, p *projection.Projection) error {
	stmt, err := prepare(ctx, tx,
		sq.Insert("diagnostics").Columns("scan_id", "phase", "severity", "file", "symbol", "message"),
		0, "", "", "", "", "")
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, d := range p.Diagnostics {
		if _, err := stmt.ExecContext(ctx, scanID, string(d.Phase), string(d.Severity), d.File, d.Symbol, d.Message); err != nil {
			return fmt.Errorf("insert diagnostic: %w", err)
		}
	}
	return nil
}

// FormatFingerprint renders a content hash the way it is stored.
func FormatFingerprint(h uint64) string {
	return fmt.Sprintf("%016x", h)
}
