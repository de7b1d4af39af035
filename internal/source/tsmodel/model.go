// Package tsmodel is the tree-sitter backed source model for TypeScript and
// JavaScript projects.
package tsmodel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mesdx/xref/internal/source"
	"github.com/mesdx/xref/internal/treesitter"
)

// Options configures Open.
type Options struct {
	// Workers bounds parallel parsing; zero means GOMAXPROCS.
	Workers int
	// AllowSyntaxErrors keeps files whose trees contain error nodes.
	AllowSyntaxErrors bool
	// Progress is called once per file after it is parsed. It may be called
	// from several goroutines.
	Progress func(file string)
	Logger   *slog.Logger
}

// Model implements source.Model over a fixed set of project files.
type Model struct {
	root   string
	files  []string
	units  map[string]*fileUnit
	hier   *hierarchy
	logger *slog.Logger

	refs map[source.DeclRef]bool

	indexOnce sync.Once
	usages    map[source.DeclRef][]source.UsageSite
}

var _ source.Model = (*Model)(nil)

// Open reads and parses files (slash-separated, relative to root). Files that
// cannot be read or parsed are kept as failures: their per-file methods return
// a *source.ParseError and they contribute nothing to resolution.
func Open(ctx context.Context, root string, files []string, opts Options) (*Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	m := &Model{
		root:   root,
		files:  sorted,
		units:  make(map[string]*fileUnit, len(sorted)),
		logger: logger,
		refs:   map[source.DeclRef]bool{},
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	units := make([]*fileUnit, len(sorted))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range sorted {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			units[i] = m.load(path, !opts.AllowSyntaxErrors)
			if opts.Progress != nil {
				opts.Progress(path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.closeUnits(units)
		return nil, err
	}
	for _, u := range units {
		m.units[u.path] = u
	}

	if err := m.buildHierarchy(); err != nil {
		m.Close()
		return nil, fmt.Errorf("build type hierarchy: %w", err)
	}
	for _, path := range m.files {
		u := m.units[path]
		for _, d := range u.decls {
			d.finalize()
			m.refs[d.decl.Ref] = true
			for _, mi := range d.members {
				m.refs[mi.decl.Ref] = true
			}
		}
	}
	return m, nil
}

func (m *Model) load(path string, strict bool) *fileUnit {
	lang := treesitter.DetectLanguage(path)
	src, err := os.ReadFile(filepath.Join(m.root, filepath.FromSlash(path)))
	if err != nil {
		u := newFileUnit(path, lang, nil)
		u.err = &source.ParseError{File: path, Err: err}
		return u
	}
	u := newFileUnit(path, lang, src)
	u.fingerprint = xxhash.Sum64(src)

	parser, err := treesitter.NewParser(lang)
	if err != nil {
		u.err = &source.ParseError{File: path, Err: err}
		return u
	}
	defer parser.Close()
	tree, err := parser.Parse(src, strict)
	if err != nil {
		u.err = &source.ParseError{File: path, Err: err}
		m.logger.Debug("parse failed", "path", path, "error", err)
		return u
	}
	u.tree = tree
	u.extract()
	return u
}

func (m *Model) unit(file string) (*fileUnit, error) {
	u, ok := m.units[file]
	if !ok {
		return nil, &source.ParseError{File: file, Err: os.ErrNotExist}
	}
	if u.err != nil {
		return nil, u.err
	}
	return u, nil
}

// Files returns the sorted project-relative paths.
func (m *Model) Files() []string {
	return append([]string(nil), m.files...)
}

// Declarations returns the top-level declarations of file in source order.
func (m *Model) Declarations(file string) ([]source.Declaration, error) {
	u, err := m.unit(file)
	if err != nil {
		return nil, err
	}
	out := make([]source.Declaration, 0, len(u.decls))
	for _, d := range u.decls {
		decl := d.decl
		decl.Members = append([]source.MemberDecl(nil), d.decl.Members...)
		out = append(out, decl)
	}
	return out, nil
}

func (m *Model) Imports(file string) ([]source.Import, error) {
	u, err := m.unit(file)
	if err != nil {
		return nil, err
	}
	return append([]source.Import(nil), u.imports...), nil
}

func (m *Model) Identifiers(file string) ([]source.Token, error) {
	u, err := m.unit(file)
	if err != nil {
		return nil, err
	}
	return append([]source.Token(nil), u.tokens...), nil
}

// ResolveExactReferences returns the usage sites bound to decl by scope and
// type resolution, in document order. The usage index is built on first call.
func (m *Model) ResolveExactReferences(decl source.DeclRef) ([]source.UsageSite, error) {
	if !m.refs[decl] {
		return nil, fmt.Errorf("%w: %s", source.ErrUnknownDeclaration, decl)
	}
	m.indexOnce.Do(func() {
		m.usages = m.buildUsageIndex()
	})
	sites := append([]source.UsageSite(nil), m.usages[decl]...)
	sort.SliceStable(sites, func(i, j int) bool {
		return sites[i].Location.Less(sites[j].Location)
	})
	return sites, nil
}

// Fingerprint returns the content hash and size of a file.
func (m *Model) Fingerprint(file string) (uint64, int64, bool) {
	u, ok := m.units[file]
	if !ok {
		return 0, 0, false
	}
	return u.fingerprint, u.size, true
}

// Failures returns the files that could not be read or parsed, sorted.
func (m *Model) Failures() []*source.ParseError {
	var out []*source.ParseError
	for _, path := range m.files {
		if pe, ok := m.units[path].err.(*source.ParseError); ok {
			out = append(out, pe)
		}
	}
	return out
}

// Source returns the content of a file.
func (m *Model) Source(file string) ([]byte, bool) {
	u, ok := m.units[file]
	if !ok || u.src == nil {
		return nil, false
	}
	return u.src, true
}

// Close releases the syntax trees.
func (m *Model) Close() {
	for _, u := range m.units {
		if u.tree != nil {
			u.tree.Close()
			u.tree = nil
		}
	}
}

func (m *Model) closeUnits(units []*fileUnit) {
	for _, u := range units {
		if u != nil && u.tree != nil {
			u.tree.Close()
		}
	}
}
