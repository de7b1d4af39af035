// Package catalog holds the symbol registry of one scan: symbols by id plus a
// bare-name index, and the builder that fills it from a source model.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mesdx/xref/internal/source"
	"github.com/mesdx/xref/internal/symbols"
)

// ErrDuplicateID is returned by Add when the id is already registered.
var ErrDuplicateID = errors.New("duplicate symbol id")

// Catalog is the registry of one scan. It is not safe for concurrent mutation.
type Catalog struct {
	byID   map[string]*symbols.Symbol
	order  []string
	byName map[string][]string

	// decl nodes for precise resolution, keyed by symbol or member id
	declRefs map[string]source.DeclRef

	crosslinked bool
}

func New() *Catalog {
	return &Catalog{
		byID:     map[string]*symbols.Symbol{},
		byName:   map[string][]string{},
		declRefs: map[string]source.DeclRef{},
	}
}

// Add registers a symbol under its id and appends it to the name index.
func (c *Catalog) Add(s *symbols.Symbol) error {
	if s.ID == "" {
		return fmt.Errorf("add %q: empty id", s.Name)
	}
	if _, ok := c.byID[s.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, s.ID)
	}
	c.byID[s.ID] = s
	c.order = append(c.order, s.ID)
	c.byName[s.Name] = append(c.byName[s.Name], s.ID)
	return nil
}

// Has reports whether id is registered.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Symbol returns the symbol with the given id, or nil.
func (c *Catalog) Symbol(id string) *symbols.Symbol {
	return c.byID[id]
}

// Len returns the number of symbols.
func (c *Catalog) Len() int { return len(c.order) }

// Symbols returns every symbol in insertion order.
func (c *Catalog) Symbols() []*symbols.Symbol {
	out := make([]*symbols.Symbol, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// OfKind returns the symbols of the given kinds in insertion order.
func (c *Catalog) OfKind(kinds ...symbols.Kind) []*symbols.Symbol {
	var out []*symbols.Symbol
	for _, id := range c.order {
		if s := c.byID[id]; matchKind(s.Kind, kinds) {
			out = append(out, s)
		}
	}
	return out
}

// Lookup returns the symbol a bare name denotes. Any local candidate is
// preferred over every external one; among locals (or, failing that, among
// externals) the first in index order wins. With kinds given, only symbols
// of those kinds are considered.
func (c *Catalog) Lookup(name string, kinds ...symbols.Kind) *symbols.Symbol {
	var external *symbols.Symbol
	for _, id := range c.byName[name] {
		s := c.byID[id]
		if !matchKind(s.Kind, kinds) {
			continue
		}
		if s.IsLocal {
			return s
		}
		if external == nil {
			external = s
		}
	}
	return external
}

// LookupAll returns every symbol indexed under name, in index order.
func (c *Catalog) LookupAll(name string) []*symbols.Symbol {
	ids := c.byName[name]
	out := make([]*symbols.Symbol, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.byID[id])
	}
	return out
}

// Names returns the indexed names, sorted.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.byName))
	for name := range c.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SetDeclRef records the declaration node of a symbol or member id.
func (c *Catalog) SetDeclRef(id string, ref source.DeclRef) {
	c.declRefs[id] = ref
}

// DeclRef returns the declaration node recorded for a symbol or member id.
func (c *Catalog) DeclRef(id string) (source.DeclRef, bool) {
	ref, ok := c.declRefs[id]
	return ref, ok
}

// Crosslinked reports whether polymorphic references have been propagated.
func (c *Catalog) Crosslinked() bool { return c.crosslinked }

// SetCrosslinked marks or clears the propagated state.
func (c *Catalog) SetCrosslinked(v bool) { c.crosslinked = v }

func matchKind(k symbols.Kind, kinds []symbols.Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}
