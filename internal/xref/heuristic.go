package xref

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/mesdx/xref/internal/catalog"
	"github.com/mesdx/xref/internal/source"
	"github.com/mesdx/xref/internal/symbols"
)

type pendingRef struct {
	symbol *symbols.Symbol
	ref    symbols.Reference
}

type heuristicResult struct {
	refs []pendingRef
	err  error
}

// ScanHeuristic matches identifier tokens against the catalog for the kinds
// whose names are distinctive (classes, interfaces, enums, type aliases and
// external stubs). Files are scanned in parallel and merged in path order.
func (e *Engine) ScanHeuristic(ctx context.Context, model source.Model, cat *catalog.Catalog) error {
	defer e.inst.Phase(PhaseHeuristic)()

	files := model.Files()
	results := make([]heuristicResult, len(files))
	kinds := catalog.HeuristicKinds()

	workers := e.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		if e.skipped[file] {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tokens, err := model.Identifiers(file)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].refs = e.matchTokens(cat, tokens, kinds)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, file := range files {
		r := results[i]
		if r.err != nil {
			e.skip(PhaseHeuristic, file, r.err)
			continue
		}
		for _, p := range r.refs {
			p.symbol.References = append(p.symbol.References, p.ref)
			e.inst.reference(PhaseHeuristic, p.ref.Context)
		}
	}
	return nil
}

// matchTokens only reads the catalog, so it is safe to run per file in parallel.
func (e *Engine) matchTokens(cat *catalog.Catalog, tokens []source.Token, kinds []symbols.Kind) []pendingRef {
	var out []pendingRef
	for _, tok := range tokens {
		if tok.Syntax.Declaration || tok.Syntax.InImport {
			continue
		}
		if !catalog.Candidate(tok.Text, e.deny) {
			continue
		}
		sym := cat.Lookup(tok.Text, kinds...)
		if sym == nil || sym.IsDeclarationSite(tok.Location) {
			continue
		}
		if dl, ok := catalog.DeclarableFor(sym.Kind); !ok || !dl.Candidate(tok.Text, e.deny) {
			continue
		}
		out = append(out, pendingRef{
			symbol: sym,
			ref: symbols.Reference{
				Location:    tok.Location.Point(),
				Context:     ClassifyToken(tok.Syntax),
				ContextLine: tok.Line,
			},
		})
	}
	return out
}
