package catalog

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/mesdx/xref/internal/source"
	"github.com/mesdx/xref/internal/symbols"
)

// Declarable describes one catalogable declaration kind. Every kind runs
// through the same build and scan control flow; only these hooks differ.
type Declarable struct {
	Kind symbols.Kind
	// ID derives the symbol id of a declaration in file.
	ID func(file string, d source.Declaration) string
	// Candidate reports whether a token with this name may refer to a symbol
	// of this kind during heuristic scanning.
	Candidate func(name string, deny Denylist) bool
	// Extract copies kind-specific structure onto the symbol.
	Extract func(s *symbols.Symbol, d source.Declaration)
	// Heuristic marks kinds whose references are found by token matching.
	Heuristic bool
}

func nameID(file string, d source.Declaration) string {
	return fmt.Sprintf("%s:%s#%s", d.Kind, file, d.Name)
}

func functionID(file string, d source.Declaration) string {
	return fmt.Sprintf("%s:%s#%s:%d", d.Kind, file, d.Name, d.Location.Line)
}

// ExternalID is the id of a stub for name imported from module.
func ExternalID(module, name string) string {
	return fmt.Sprintf("%s:%s#%s", symbols.KindExternal, module, name)
}

// MemberID is the id of a member of owner.
func MemberID(ownerID, name string) string {
	return ownerID + "." + name
}

func never(string, Denylist) bool { return false }

func extractClass(s *symbols.Symbol, d source.Declaration) {
	s.Abstract = d.Abstract
	s.Extends = append([]string(nil), d.Extends...)
	s.Implements = append([]string(nil), d.Implements...)
	addMembers(s, d)
}

func extractInterface(s *symbols.Symbol, d source.Declaration) {
	s.Extends = append([]string(nil), d.Extends...)
	addMembers(s, d)
}

func extractEnum(s *symbols.Symbol, d source.Declaration) {
	s.EnumMembers = append([]string(nil), d.EnumMembers...)
}

func extractFunction(s *symbols.Symbol, d source.Declaration) {
	s.Params = d.Params
	s.Async = d.Async
}

func addMembers(s *symbols.Symbol, d source.Declaration) {
	for _, md := range d.Members {
		s.Members = append(s.Members, &symbols.Member{
			ID:           MemberID(s.ID, md.Name),
			Name:         md.Name,
			Kind:         md.Kind,
			Owner:        s.ID,
			Location:     md.Location,
			NameLocation: md.NameLocation,
			Static:       md.Static,
			Abstract:     md.Abstract,
			Optional:     md.Optional,
		})
	}
}

// Declarables is the table of catalogable kinds.
var Declarables = []Declarable{
	{Kind: symbols.KindClass, ID: nameID, Candidate: Candidate, Extract: extractClass, Heuristic: true},
	{Kind: symbols.KindInterface, ID: nameID, Candidate: Candidate, Extract: extractInterface, Heuristic: true},
	{Kind: symbols.KindEnum, ID: nameID, Candidate: Candidate, Extract: extractEnum, Heuristic: true},
	{Kind: symbols.KindTypeAlias, ID: nameID, Candidate: Candidate, Heuristic: true},
	{Kind: symbols.KindFunction, ID: functionID, Candidate: never, Extract: extractFunction},
}

// DeclarableFor returns the table entry of a kind. External stubs share the
// class predicate.
func DeclarableFor(k symbols.Kind) (Declarable, bool) {
	if k == symbols.KindExternal {
		return Declarable{Kind: k, Candidate: Candidate, Heuristic: true}, true
	}
	for _, d := range Declarables {
		if d.Kind == k {
			return d, true
		}
	}
	return Declarable{}, false
}

// HeuristicKinds returns the kinds resolved by token matching.
func HeuristicKinds() []symbols.Kind {
	kinds := []symbols.Kind{}
	for _, d := range Declarables {
		if d.Heuristic {
			kinds = append(kinds, d.Kind)
		}
	}
	return append(kinds, symbols.KindExternal)
}

// Builder constructs a Catalog from a source model.
type Builder struct {
	Denylist Denylist
	Workers  int
	// Skipped is called for every file the model could not provide.
	Skipped func(file string, err error)
}

type fileResult struct {
	decls   []source.Declaration
	imports []source.Import
	err     error
}

// Build catalogs every file of the model. Files are read on up to Workers
// goroutines and merged in sorted path order, so ids and the name index do
// not depend on scheduling.
func (b *Builder) Build(ctx context.Context, model source.Model) (*Catalog, error) {
	deny := b.Denylist
	if deny == nil {
		deny = DefaultDenylist()
	}
	files := model.Files()
	results := make([]fileResult, len(files))

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := &results[i]
			if r.decls, r.err = model.Declarations(file); r.err != nil {
				return nil
			}
			r.imports, r.err = model.Imports(file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := New()
	for i, file := range files {
		r := results[i]
		if r.err != nil {
			if b.Skipped != nil {
				b.Skipped(file, r.err)
			}
			continue
		}
		for _, d := range r.decls {
			c.addLocal(file, d)
		}
		for _, imp := range r.imports {
			c.addStub(imp, deny)
		}
	}
	return c, nil
}

func (c *Catalog) addLocal(file string, d source.Declaration) {
	dl, ok := DeclarableFor(d.Kind)
	if !ok || d.Kind == symbols.KindExternal {
		return
	}
	id := dl.ID(file, d)
	if c.Has(id) {
		// same name declared twice in one file, e.g. in two namespaces
		id = fmt.Sprintf("%s:%d", id, d.Location.Line)
	}
	loc := d.Location
	nameLoc := d.NameLocation
	s := &symbols.Symbol{
		ID:           id,
		Name:         d.Name,
		Kind:         d.Kind,
		IsLocal:      true,
		Location:     &loc,
		NameLocation: &nameLoc,
		Exported:     d.Exported,
	}
	if dl.Extract != nil {
		dl.Extract(s, d)
	}
	if err := c.Add(s); err != nil {
		return
	}
	c.SetDeclRef(s.ID, d.Ref)
	for i, m := range s.Members {
		c.SetDeclRef(m.ID, d.Members[i].Ref)
	}
}

func (c *Catalog) addStub(imp source.Import, deny Denylist) {
	if !imp.IsExternal || !Candidate(imp.Name, deny) {
		return
	}
	id := ExternalID(imp.Module, imp.Name)
	if c.Has(id) {
		return
	}
	_ = c.Add(&symbols.Symbol{
		ID:     id,
		Name:   imp.Name,
		Kind:   symbols.KindExternal,
		Module: imp.Module,
	})
}
