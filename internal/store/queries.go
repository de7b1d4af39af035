package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mesdx/xref/internal/symbols"
	"github.com/mesdx/xref/internal/xref"
)

// SymbolRow is a stored symbol or member.
type SymbolRow struct {
	SymbolID       string
	OwnerID        string // empty for top-level symbols
	Name           string
	Kind           symbols.Kind
	IsLocal        bool
	Module         string
	Location       symbols.Location
	ReferenceCount int
}

// IsMember reports whether the row is a class or interface member.
func (r SymbolRow) IsMember() bool { return r.OwnerID != "" }

var symbolColumns = []string{
	"symbol_id", "owner_id", "name", "kind", "is_local", "module",
	"file", "start_line", "start_col", "end_line", "reference_count",
}

func scanSymbol(rows *sql.Rows) (SymbolRow, error) {
	var r SymbolRow
	var kind string
	err := rows.Scan(&r.SymbolID, &r.OwnerID, &r.Name, &kind, &r.IsLocal, &r.Module,
		&r.Location.File, &r.Location.Line, &r.Location.Column, &r.Location.EndLine, &r.ReferenceCount)
	r.Kind = symbols.ParseKind(kind)
	return r, err
}

// LatestScan returns the most recent scan of the project.
func (s *Store) LatestScan(ctx context.Context) (*Scan, error) {
	var sc Scan
	var started, finished string
	err := sq.Select("id", "scan_uid", "started_at", "finished_at",
		"file_count", "symbol_count", "reference_count", "diagnostic_count").
		From("scans").
		Where(sq.Eq{"project_id": s.ProjectID}).
		OrderBy("id DESC").
		Limit(1).
		RunWith(s.DB).
		QueryRowContext(ctx).
		Scan(&sc.ID, &sc.UID, &started, &finished, &sc.Files, &sc.Symbols, &sc.References, &sc.Diagnostics)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoScans
	}
	if err != nil {
		return nil, fmt.Errorf("query latest scan: %w", err)
	}
	sc.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	sc.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return &sc, nil
}

// ScanCount returns the number of retained scans.
func (s *Store) ScanCount(ctx context.Context) (int, error) {
	var n int
	err := sq.Select("COUNT(*)").
		From("scans").
		Where(sq.Eq{"project_id": s.ProjectID}).
		RunWith(s.DB).
		QueryRowContext(ctx).
		Scan(&n)
	return n, err
}

// FindSymbols returns the symbols named name in a scan. "Owner.member"
// matches members of every symbol named Owner. Kinds, when given, filter
// the result.
func (s *Store) FindSymbols(ctx context.Context, scanID int64, name string, kinds ...symbols.Kind) ([]SymbolRow, error) {
	q := sq.Select(symbolColumns...).
		From("symbols").
		Where(sq.Eq{"scan_id": scanID}).
		OrderBy("file", "start_line", "symbol_id")

	if owner, member, ok := strings.Cut(name, "."); ok {
		owners := sq.Select("symbol_id").
			From("symbols").
			Where(sq.Eq{"scan_id": scanID, "name": owner, "owner_id": ""})
		sub, args, err := owners.ToSql()
		if err != nil {
			return nil, err
		}
		q = q.Where(sq.Eq{"name": member}).Where("owner_id IN ("+sub+")", args...)
	} else {
		q = q.Where(sq.Eq{"name": name, "owner_id": ""})
	}
	if len(kinds) > 0 {
		names := make([]string, 0, len(kinds))
		for _, k := range kinds {
			names = append(names, k.String())
		}
		q = q.Where(sq.Eq{"kind": names})
	}

	rows, err := q.RunWith(s.DB).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []SymbolRow
	for rows.Next() {
		r, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Members returns the members of a stored symbol in declaration order.
func (s *Store) Members(ctx context.Context, scanID int64, ownerID string) ([]SymbolRow, error) {
	rows, err := sq.Select(symbolColumns...).
		From("symbols").
		Where(sq.Eq{"scan_id": scanID, "owner_id": ownerID}).
		OrderBy("start_line", "start_col").
		RunWith(s.DB).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []SymbolRow
	for rows.Next() {
		r, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// References returns the stored references of a symbol or member, ordered
// by file, line and column.
func (s *Store) References(ctx context.Context, scanID int64, symbolID string) ([]symbols.Reference, error) {
	rows, err := sq.Select("file", "line", "col", "context", "context_line").
		From("refs").
		Where(sq.Eq{"scan_id": scanID, "symbol_id": symbolID}).
		OrderBy("file", "line", "col").
		RunWith(s.DB).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []symbols.Reference
	for rows.Next() {
		var r symbols.Reference
		var ctxName string
		if err := rows.Scan(&r.Location.File, &r.Location.Line, &r.Location.Column, &ctxName, &r.ContextLine); err != nil {
			return nil, err
		}
		r.Context = symbols.ParseContext(ctxName)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SymbolNames returns the distinct names in a scan: top-level names and
// "Owner.member" names, sorted.
func (s *Store) SymbolNames(ctx context.Context, scanID int64) ([]string, error) {
	rows, err := sq.Select("DISTINCT CASE WHEN m.owner_id = '' THEN m.name ELSE o.name || '.' || m.name END AS qualified").
		From("symbols m").
		LeftJoin("symbols o ON o.scan_id = m.scan_id AND o.symbol_id = m.owner_id").
		Where(sq.Eq{"m.scan_id": scanID}).
		OrderBy("qualified").
		RunWith(s.DB).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ContextCounts returns the number of references per context tag.
func (s *Store) ContextCounts(ctx context.Context, scanID int64) (map[symbols.Context]int, error) {
	rows, err := sq.Select("context", "COUNT(*)").
		From("refs").
		Where(sq.Eq{"scan_id": scanID}).
		GroupBy("context").
		RunWith(s.DB).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query context counts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := map[symbols.Context]int{}
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[symbols.ParseContext(name)] += n
	}
	return out, rows.Err()
}

// Files returns the files recorded by a scan, keyed by path.
func (s *Store) Files(ctx context.Context, scanID int64) (map[string]FileInfo, error) {
	rows, err := sq.Select("path", "xxhash", "size_bytes", "parse_error").
		From("files").
		Where(sq.Eq{"scan_id": scanID}).
		RunWith(s.DB).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := map[string]FileInfo{}
	for rows.Next() {
		var f FileInfo
		var hash string
		if err := rows.Scan(&f.Path, &hash, &f.Size, &f.ParseError); err != nil {
			return nil, err
		}
		if hash != "" {
			if f.Fingerprint, err = strconv.ParseUint(hash, 16, 64); err != nil {
				return nil, fmt.Errorf("file %s: bad fingerprint %q: %w", f.Path, hash, err)
			}
		}
		out[f.Path] = f
	}
	return out, rows.Err()
}

// Diagnostics returns the diagnostics recorded by a scan.
func (s *Store) Diagnostics(ctx context.Context, scanID int64) ([]xref.Diagnostic, error) {
	rows, err := sq.Select("phase", "severity", "file", "symbol", "message").
		From("diagnostics").
		Where(sq.Eq{"scan_id": scanID}).
		OrderBy("id").
		RunWith(s.DB).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []xref.Diagnostic
	for rows.Next() {
		var d xref.Diagnostic
		var phase, severity string
		if err := rows.Scan(&phase, &severity, &d.File, &d.Symbol, &d.Message); err != nil {
			return nil, err
		}
		d.Phase, d.Severity = xref.Phase(phase), xref.Severity(severity)
		out = append(out, d)
	}
	return out, rows.Err()
}
