package xref

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/mesdx/xref/internal/catalog"
	"github.com/mesdx/xref/internal/symbols"
)

// ErrAlreadyCrosslinked is returned by Crosslink on a catalog that already
// carries propagated references. Call ResetCrosslinks first to run it again.
var ErrAlreadyCrosslinked = errors.New("catalog already crosslinked")

type ifaceUsage struct {
	iface  *symbols.Symbol
	method *symbols.Member
}

const ifacePrefix = "interface:"

// implementers builds the implementation links: interface name to the local
// classes whose implements clause names it, in catalog order.
func implementers(cat *catalog.Catalog) (map[string][]*symbols.Symbol, error) {
	g := graph.New(graph.StringHash, graph.Directed())
	classes := cat.OfKind(symbols.KindClass)
	order := map[string]int{}
	for i, c := range classes {
		if !c.IsLocal {
			continue
		}
		order[c.ID] = i
		if err := g.AddVertex(c.ID); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil, err
		}
		for _, name := range c.Implements {
			target := ifacePrefix + name
			if err := g.AddVertex(target); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, err
			}
			if err := g.AddEdge(c.ID, target); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, err
			}
		}
	}
	preds, err := g.PredecessorMap()
	if err != nil {
		return nil, err
	}
	links := map[string][]*symbols.Symbol{}
	for vertex, edges := range preds {
		name, ok := strings.CutPrefix(vertex, ifacePrefix)
		if !ok {
			continue
		}
		impls := make([]*symbols.Symbol, 0, len(edges))
		for src := range edges {
			impls = append(impls, cat.Symbol(src))
		}
		sort.Slice(impls, func(i, j int) bool {
			return order[impls[i].ID] < order[impls[j].ID]
		})
		links[name] = impls
	}
	return links, nil
}

// Crosslink copies every recorded usage of a local interface method onto the
// same-named method of each class implementing that interface, tagged
// polymorphic_call. A class lacking the method gets a diagnostic. It runs at
// most once per catalog.
func (e *Engine) Crosslink(cat *catalog.Catalog) error {
	if cat.Crosslinked() {
		return ErrAlreadyCrosslinked
	}
	defer e.inst.Phase(PhaseCrosslink)()

	var usages []ifaceUsage
	for _, iface := range cat.OfKind(symbols.KindInterface) {
		if !iface.IsLocal {
			continue
		}
		for _, m := range iface.Members {
			if m.Kind == symbols.KindMethod && len(m.References) > 0 {
				usages = append(usages, ifaceUsage{iface: iface, method: m})
			}
		}
	}

	links, err := implementers(cat)
	if err != nil {
		return fmt.Errorf("link implementations: %w", err)
	}

	touched := map[*symbols.Member]bool{}
	for _, u := range usages {
		for _, class := range links[u.iface.Name] {
			target := class.Method(u.method.Name)
			if target == nil {
				e.rec.warn(PhaseCrosslink, fileOf(class), class.Name,
					fmt.Sprintf("implements %s but declares no method %s", u.iface.Name, u.method.Name))
				continue
			}
			for _, r := range u.method.References {
				r.Context = symbols.ContextPolymorphicCall
				target.References = append(target.References, r)
				e.inst.reference(PhaseCrosslink, r.Context)
			}
			touched[target] = true
		}
	}
	for m := range touched {
		sortReferences(m.References)
	}
	cat.SetCrosslinked(true)
	return nil
}

// Crosslink runs the cross-linker on its own with default options.
func Crosslink(cat *catalog.Catalog) ([]Diagnostic, error) {
	e := NewEngine(Options{})
	err := e.Crosslink(cat)
	return e.rec.list, err
}

// ResetCrosslinks removes every polymorphic_call reference from class members
// and clears the crosslinked mark. It returns the number removed.
func ResetCrosslinks(cat *catalog.Catalog) int {
	removed := 0
	for _, class := range cat.OfKind(symbols.KindClass) {
		for _, m := range class.Members {
			kept := m.References[:0]
			for _, r := range m.References {
				if r.Context == symbols.ContextPolymorphicCall {
					removed++
					continue
				}
				kept = append(kept, r)
			}
			m.References = kept
		}
	}
	cat.SetCrosslinked(false)
	return removed
}
