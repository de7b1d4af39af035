package xref

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mesdx/xref/internal/catalog"
	"github.com/mesdx/xref/internal/source/tsmodel"
	"github.com/mesdx/xref/internal/symbols"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func openModel(t *testing.T, dir string, logger *slog.Logger) *tsmodel.Model {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".ts" {
			files = append(files, e.Name())
		}
	}
	m, err := tsmodel.Open(context.Background(), dir, files, tsmodel.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func scanDir(t *testing.T, dir string, opts Options) (*catalog.Catalog, *Report) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quiet
	}
	cat, report, err := Scan(context.Background(), openModel(t, dir, opts.Logger), opts)
	require.NoError(t, err)
	return cat, report
}

func lookup(t *testing.T, cat *catalog.Catalog, name string) *symbols.Symbol {
	t.Helper()
	s := cat.Lookup(name)
	require.NotNil(t, s, "symbol %s", name)
	return s
}

func method(t *testing.T, cat *catalog.Catalog, owner, name string) *symbols.Member {
	t.Helper()
	m := lookup(t, cat, owner).Method(name)
	require.NotNil(t, m, "method %s.%s", owner, name)
	return m
}

type refAt struct {
	File    string
	Line    int
	Context symbols.Context
}

func refsAt(refs []symbols.Reference) []refAt {
	out := make([]refAt, 0, len(refs))
	for _, r := range refs {
		out = append(out, refAt{r.Location.File, r.Location.Line, r.Context})
	}
	return out
}

func TestScenarioInstantiationAndMethodCall(t *testing.T) {
	cat, report := scanDir(t, "testdata/scenario_a", Options{})
	assert.Empty(t, report.Diagnostics)

	foo := lookup(t, cat, "Foo")
	assert.True(t, foo.IsLocal)
	assert.Equal(t, []refAt{{"b.ts", 4, symbols.ContextInstantiation}}, refsAt(foo.References))
	assert.Equal(t, 1, foo.ReferenceCount())

	bar := method(t, cat, "Foo", "bar")
	assert.Equal(t, []refAt{{"b.ts", 4, symbols.ContextMethodCall}}, refsAt(bar.References))
	assert.Equal(t, "return new Foo().bar();", bar.References[0].ContextLine)

	run := lookup(t, cat, "run")
	assert.Equal(t, symbols.KindFunction, run.Kind)
	assert.Empty(t, run.References)
}

func TestScenarioPolymorphicCall(t *testing.T) {
	model := openModel(t, "testdata/scenario_b", quiet)
	e := NewEngine(Options{Logger: quiet})
	ctx := context.Background()

	cat, err := e.Build(ctx, model)
	require.NoError(t, err)
	require.NoError(t, e.ScanHeuristic(ctx, model, cat))
	require.NoError(t, e.Track(ctx, model, cat))

	draw := method(t, cat, "Shape", "draw")
	require.Equal(t, []refAt{{"render.ts", 4, symbols.ContextMethodCall}}, refsAt(draw.References))

	circleDraw := method(t, cat, "Circle", "draw")
	assert.Empty(t, circleDraw.References, "no propagation before cross-linking")
	before := append([]symbols.Reference(nil), circleDraw.References...)

	require.NoError(t, e.Crosslink(cat))
	assert.Equal(t, []refAt{{"render.ts", 4, symbols.ContextPolymorphicCall}}, refsAt(circleDraw.References))
	assert.Equal(t, draw.References[0].Location, circleDraw.References[0].Location)
	assert.Subset(t, circleDraw.References, before)

	diags := e.Report().Diagnostics
	require.Len(t, diags, 1)
	assert.Equal(t, PhaseCrosslink, diags[0].Phase)
	assert.Equal(t, "Square", diags[0].Symbol)
	assert.Equal(t, "shape.ts", diags[0].File)

	shape := lookup(t, cat, "Shape")
	assert.Equal(t, []refAt{
		{"render.ts", 3, symbols.ContextTypeAnnotation},
		{"shape.ts", 5, symbols.ContextImplementation},
		{"shape.ts", 9, symbols.ContextImplementation},
	}, refsAt(shape.References))
}

func TestCrosslinkRunsOnce(t *testing.T) {
	cat, _ := scanDir(t, "testdata/scenario_b", Options{})
	circleDraw := method(t, cat, "Circle", "draw")
	require.Len(t, circleDraw.References, 1)
	assert.True(t, cat.Crosslinked())

	_, err := Crosslink(cat)
	assert.ErrorIs(t, err, ErrAlreadyCrosslinked)
	assert.Len(t, circleDraw.References, 1, "refused cross-link must not mutate")

	assert.Equal(t, 1, ResetCrosslinks(cat))
	assert.Empty(t, circleDraw.References)
	assert.False(t, cat.Crosslinked())

	diags, err := Crosslink(cat)
	require.NoError(t, err)
	assert.Len(t, diags, 1)
	assert.Len(t, circleDraw.References, 1)
}

func TestScenarioSameNamedMethods(t *testing.T) {
	t.Run("shared bucket by default", func(t *testing.T) {
		cat, _ := scanDir(t, "testdata/scenario_c", Options{})
		want := []refAt{{"use.ts", 4, symbols.ContextMethodCall}}
		assert.Equal(t, want, refsAt(method(t, cat, "Alpha", "save").References))
		assert.Equal(t, want, refsAt(method(t, cat, "Beta", "save").References))
	})
	t.Run("partitioned by owner", func(t *testing.T) {
		cat, _ := scanDir(t, "testdata/scenario_c", Options{PartitionMembersByOwner: true})
		assert.Equal(t, []refAt{{"use.ts", 4, symbols.ContextMethodCall}},
			refsAt(method(t, cat, "Alpha", "save").References))
		assert.Empty(t, method(t, cat, "Beta", "save").References)
	})
}

func TestScenarioParseFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	cat, report := scanDir(t, "testdata/scenario_d", Options{Logger: logger})

	assert.NotNil(t, cat.Lookup("Good"))
	assert.Nil(t, cat.Lookup("Broken"))
	assert.Equal(t, []string{"broken.ts"}, report.Skipped)
	assert.Equal(t, 2, report.Files)

	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "broken.ts", report.Diagnostics[0].File)
	assert.Equal(t, PhaseCatalog, report.Diagnostics[0].Phase)
	assert.Equal(t, 1, report.Warnings())
	assert.Contains(t, logs.String(), "path=broken.ts")
}

func snapshot(cat *catalog.Catalog) map[string][]symbols.Reference {
	out := map[string][]symbols.Reference{}
	for _, s := range cat.Symbols() {
		out[s.ID] = s.References
		for _, m := range s.Members {
			out[m.ID] = m.References
		}
	}
	return out
}

func TestScansAreDeterministic(t *testing.T) {
	for _, dir := range []string{"testdata/scenario_a", "testdata/scenario_b", "testdata/scenario_c"} {
		first, _ := scanDir(t, dir, Options{Workers: 1})
		second, _ := scanDir(t, dir, Options{Workers: 4})
		assert.Equal(t, snapshot(first), snapshot(second), dir)
	}
}

func TestReferenceInvariants(t *testing.T) {
	dirs, err := filepath.Glob("testdata/scenario_*")
	require.NoError(t, err)
	sort.Strings(dirs)
	for _, dir := range dirs {
		cat, _ := scanDir(t, dir, Options{})
		for _, s := range cat.Symbols() {
			assert.Equal(t, len(s.References), s.ReferenceCount())
			for _, r := range s.References {
				assert.False(t, s.IsDeclarationSite(r.Location), "%s references its own declaration at %s", s.ID, r.Location)
			}
			for _, m := range s.Members {
				assert.Equal(t, len(m.References), m.ReferenceCount())
				for _, r := range m.References {
					assert.False(t, m.IsDeclarationSite(r.Location), "%s references its own declaration at %s", m.ID, r.Location)
				}
			}
		}
	}
}

func TestInstrumentationIsPerScan(t *testing.T) {
	inst := NewInstrumentation()
	_, report := scanDir(t, "testdata/scenario_a", Options{Instrumentation: inst})
	assert.Same(t, inst, report.Instrumentation)

	assert.Equal(t, 1.0, testutil.ToFloat64(inst.references.WithLabelValues("heuristic", "instantiation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(inst.references.WithLabelValues("track", "method_call")))
	assert.Equal(t, 2.0, testutil.ToFloat64(inst.files.WithLabelValues("cataloged")))

	var phases []Phase
	for _, timing := range report.Timings {
		phases = append(phases, timing.Phase)
	}
	assert.Equal(t, Phases(), phases)

	_, other := scanDir(t, "testdata/scenario_a", Options{})
	assert.NotSame(t, inst, other.Instrumentation)
	assert.Equal(t, 1.0, testutil.ToFloat64(other.Instrumentation.references.WithLabelValues("heuristic", "instantiation")))

	path := filepath.Join(t.TempDir(), "scan.prom")
	require.NoError(t, inst.WriteTextfile(path))
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "xref_references_total")
}

func TestScanCanceled(t *testing.T) {
	model := openModel(t, "testdata/scenario_a", quiet)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Scan(ctx, model, Options{Logger: quiet})
	assert.ErrorIs(t, err, context.Canceled)
}
