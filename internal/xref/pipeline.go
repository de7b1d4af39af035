// Package xref is the cross-reference engine: it catalogs declarations from a
// source model, records their usages, and propagates interface method usages
// onto implementing classes.
package xref

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mesdx/xref/internal/catalog"
	"github.com/mesdx/xref/internal/source"
	"github.com/mesdx/xref/internal/symbols"
)

// Options configures an Engine.
type Options struct {
	// Denylist replaces the default candidate denylist when non-nil.
	Denylist catalog.Denylist
	// Workers bounds per-file parallelism; zero means GOMAXPROCS.
	Workers int
	// PartitionMembersByOwner keys member reference buckets by owner and
	// name instead of by bare name.
	PartitionMembersByOwner bool
	Logger                  *slog.Logger
	// Instrumentation receives this scan's metrics; a fresh one is created
	// when nil.
	Instrumentation *Instrumentation
}

// Report summarizes a completed scan.
type Report struct {
	Files           int
	Skipped         []string
	Diagnostics     []Diagnostic
	Timings         []PhaseTiming
	Instrumentation *Instrumentation `json:"-" yaml:"-"`
}

// Warnings counts the warning diagnostics.
func (r *Report) Warnings() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// Engine runs the scan phases. Phases must run in order: Build, then
// ScanHeuristic and Track, then Crosslink. An Engine serves one scan.
type Engine struct {
	opts    Options
	deny    catalog.Denylist
	logger  *slog.Logger
	inst    *Instrumentation
	rec     *recorder
	files   int
	skipped map[string]bool
}

func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	inst := opts.Instrumentation
	if inst == nil {
		inst = NewInstrumentation()
	}
	deny := opts.Denylist
	if deny == nil {
		deny = catalog.DefaultDenylist()
	}
	return &Engine{
		opts:    opts,
		deny:    deny,
		logger:  logger,
		inst:    inst,
		rec:     &recorder{logger: logger, inst: inst},
		skipped: map[string]bool{},
	}
}

// Build catalogs every file of the model. Files the model cannot provide are
// skipped with a warning.
func (e *Engine) Build(ctx context.Context, model source.Model) (*catalog.Catalog, error) {
	defer e.inst.Phase(PhaseCatalog)()
	b := &catalog.Builder{
		Denylist: e.deny,
		Workers:  e.opts.Workers,
		Skipped: func(file string, err error) {
			e.skip(PhaseCatalog, file, err)
		},
	}
	cat, err := b.Build(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	e.files = len(model.Files())
	e.inst.addFiles("cataloged", e.files-len(e.skipped))
	e.logger.Debug("catalog built", "files", e.files, "symbols", cat.Len())
	return cat, nil
}

// skip records a file failure once, whichever phase sees it first.
func (e *Engine) skip(phase Phase, file string, err error) {
	if e.skipped[file] {
		return
	}
	e.skipped[file] = true
	e.inst.addFiles("skipped", 1)
	e.rec.warn(phase, file, "", fmt.Sprintf("file skipped: %v", err))
}

// Report returns the diagnostics and timings gathered so far.
func (e *Engine) Report() *Report {
	skipped := make([]string, 0, len(e.skipped))
	for f := range e.skipped {
		skipped = append(skipped, f)
	}
	sort.Strings(skipped)
	return &Report{
		Files:           e.files,
		Skipped:         skipped,
		Diagnostics:     append([]Diagnostic(nil), e.rec.list...),
		Timings:         e.inst.Timings(),
		Instrumentation: e.inst,
	}
}

// Scan runs the whole pipeline over model and returns the finished catalog.
// Per-file and per-symbol failures become diagnostics; only cancellation and
// internal errors fail the scan.
func Scan(ctx context.Context, model source.Model, opts Options) (*catalog.Catalog, *Report, error) {
	e := NewEngine(opts)
	cat, err := e.Build(ctx, model)
	if err != nil {
		return nil, nil, err
	}
	if err := e.ScanHeuristic(ctx, model, cat); err != nil {
		return nil, nil, err
	}
	if err := e.Track(ctx, model, cat); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := e.Crosslink(cat); err != nil {
		return nil, nil, err
	}
	return cat, e.Report(), nil
}

func sortReferences(refs []symbols.Reference) {
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Location.Less(refs[j].Location)
	})
}
