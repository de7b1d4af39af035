package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesdx/xref/internal/catalog"
	"github.com/mesdx/xref/internal/db"
	"github.com/mesdx/xref/internal/projection"
	"github.com/mesdx/xref/internal/symbols"
	"github.com/mesdx/xref/internal/xref"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), ".xref", "xref.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), openDB(t), "/repo")
	require.NoError(t, err)
	return s
}

func sampleProjection(t *testing.T) *projection.Projection {
	t.Helper()
	c := catalog.New()
	foo := &symbols.Symbol{
		ID: "class:a.ts#Foo", Name: "Foo", Kind: symbols.KindClass, IsLocal: true,
		Location: &symbols.Location{File: "a.ts", Line: 1, Column: 1, EndLine: 5},
		References: []symbols.Reference{
			{Location: symbols.Location{File: "b.ts", Line: 4, Column: 10}, Context: symbols.ContextInstantiation, ContextLine: "return new Foo().bar();"},
		},
	}
	foo.Members = []*symbols.Member{{
		ID: "class:a.ts#Foo.bar", Name: "bar", Kind: symbols.KindMethod, Owner: foo.ID,
		Location: symbols.Location{File: "a.ts", Line: 2, Column: 3, EndLine: 4},
		References: []symbols.Reference{
			{Location: symbols.Location{File: "c.ts", Line: 9, Column: 2}, Context: symbols.ContextMethodCall},
			{Location: symbols.Location{File: "b.ts", Line: 4, Column: 20}, Context: symbols.ContextMethodCall},
		},
	}}
	require.NoError(t, c.Add(foo))
	require.NoError(t, c.Add(&symbols.Symbol{
		ID: catalog.ExternalID("events", "EventEmitter"), Name: "EventEmitter", Kind: symbols.KindExternal, Module: "events",
	}))
	report := &xref.Report{Diagnostics: []xref.Diagnostic{
		{Phase: xref.PhaseCatalog, Severity: xref.SeverityWarning, File: "broken.ts", Message: "syntax error at 3:1"},
	}}
	return projection.Build(c, projection.Options{Report: report})
}

func sampleRun(t *testing.T) Run {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return Run{
		StartedAt:  now,
		FinishedAt: now.Add(time.Second),
		Files: []FileInfo{
			{Path: "a.ts", Fingerprint: 0xdeadbeefcafef00d, Size: 120},
			{Path: "broken.ts", Fingerprint: 7, Size: 3, ParseError: "syntax error at 3:1"},
		},
		Projection: sampleProjection(t),
	}
}

func TestLatestScanWithoutScans(t *testing.T) {
	s := openStore(t)
	_, err := s.LatestScan(context.Background())
	assert.ErrorIs(t, err, ErrNoScans)
}

func TestOpenReusesProject(t *testing.T) {
	ctx := context.Background()
	d := openDB(t)
	a, err := Open(ctx, d, "/repo")
	require.NoError(t, err)
	b, err := Open(ctx, d, "/repo")
	require.NoError(t, err)
	c, err := Open(ctx, d, "/other")
	require.NoError(t, err)
	assert.Equal(t, a.ProjectID, b.ProjectID)
	assert.NotEqual(t, a.ProjectID, c.ProjectID)
}

func TestSourceRoots(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.SetSourceRoots(ctx, []string{"src", "lib"}))
	require.NoError(t, s.SetSourceRoots(ctx, []string{"app"}))
	roots, err := s.SourceRoots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, roots)
}

func TestSaveAndQueryScan(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	saved, err := s.SaveScan(ctx, sampleRun(t))
	require.NoError(t, err)
	assert.NotEmpty(t, saved.UID)

	latest, err := s.LatestScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, latest.ID)
	assert.Equal(t, saved.UID, latest.UID)
	assert.Equal(t, 2, latest.Files)
	assert.Equal(t, 3, latest.Symbols)
	assert.Equal(t, 3, latest.References)
	assert.Equal(t, 1, latest.Diagnostics)
	assert.True(t, latest.FinishedAt.After(latest.StartedAt))

	foo, err := s.FindSymbols(ctx, latest.ID, "Foo")
	require.NoError(t, err)
	require.Len(t, foo, 1)
	assert.Equal(t, symbols.KindClass, foo[0].Kind)
	assert.True(t, foo[0].IsLocal)
	assert.Equal(t, symbols.Location{File: "a.ts", Line: 1, Column: 1, EndLine: 5}, foo[0].Location)
	assert.Equal(t, 1, foo[0].ReferenceCount)

	bar, err := s.FindSymbols(ctx, latest.ID, "Foo.bar")
	require.NoError(t, err)
	require.Len(t, bar, 1)
	assert.True(t, bar[0].IsMember())
	assert.Equal(t, "class:a.ts#Foo", bar[0].OwnerID)

	none, err := s.FindSymbols(ctx, latest.ID, "Foo", symbols.KindInterface)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Empty(t, mustFind(t, s, latest.ID, "bar"), "members need their owner prefix")

	members, err := s.Members(ctx, latest.ID, "class:a.ts#Foo")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "bar", members[0].Name)

	refs, err := s.References(ctx, latest.ID, "class:a.ts#Foo.bar")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "b.ts", refs[0].Location.File)
	assert.Equal(t, symbols.ContextMethodCall, refs[0].Context)

	fooRefs, err := s.References(ctx, latest.ID, "class:a.ts#Foo")
	require.NoError(t, err)
	assert.Equal(t, "return new Foo().bar();", fooRefs[0].ContextLine)

	names, err := s.SymbolNames(ctx, latest.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"EventEmitter", "Foo", "Foo.bar"}, names)

	counts, err := s.ContextCounts(ctx, latest.ID)
	require.NoError(t, err)
	assert.Equal(t, map[symbols.Context]int{symbols.ContextInstantiation: 1, symbols.ContextMethodCall: 2}, counts)

	files, err := s.Files(ctx, latest.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeefcafef00d), files["a.ts"].Fingerprint)
	assert.Equal(t, "syntax error at 3:1", files["broken.ts"].ParseError)

	diags, err := s.Diagnostics(ctx, latest.ID)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, xref.PhaseCatalog, diags[0].Phase)
	assert.Equal(t, "broken.ts", diags[0].File)
}

func mustFind(t *testing.T, s *Store, scanID int64, name string) []SymbolRow {
	t.Helper()
	rows, err := s.FindSymbols(context.Background(), scanID, name)
	require.NoError(t, err)
	return rows
}

func TestSaveScanPrunesHistory(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	s.Keep = 2

	var last *Scan
	for i := 0; i < 3; i++ {
		var err error
		last, err = s.SaveScan(ctx, sampleRun(t))
		require.NoError(t, err)
	}

	n, err := s.ScanCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	latest, err := s.LatestScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, last.ID, latest.ID)

	var orphans int
	require.NoError(t, s.DB.QueryRow(`SELECT COUNT(*) FROM refs WHERE scan_id NOT IN (SELECT id FROM scans)`).Scan(&orphans))
	assert.Zero(t, orphans)
}

func TestSaveScanRequiresProjection(t *testing.T) {
	_, err := openStore(t).SaveScan(context.Background(), Run{})
	assert.Error(t, err)
}
