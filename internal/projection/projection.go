// Package projection turns a scanned catalog into a flat, serializable view.
//
// A Projection is a copy: building one never mutates the catalog, and
// callers may keep it after the catalog is reset or discarded.
package projection

import (
	"sort"

	"github.com/mesdx/xref/internal/catalog"
	"github.com/mesdx/xref/internal/symbols"
	"github.com/mesdx/xref/internal/xref"
)

// DefaultTop is the number of most referenced symbols kept in the summary.
const DefaultTop = 10

// Member is the projected form of a class or interface member.
type Member struct {
	ID             string              `json:"id" yaml:"id"`
	Name           string              `json:"name" yaml:"name"`
	Kind           symbols.Kind        `json:"kind" yaml:"kind"`
	Location       symbols.Location    `json:"location" yaml:"location"`
	Static         bool                `json:"static,omitempty" yaml:"static,omitempty"`
	Abstract       bool                `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Optional       bool                `json:"optional,omitempty" yaml:"optional,omitempty"`
	References     []symbols.Reference `json:"references" yaml:"references"`
	ReferenceCount int                 `json:"referenceCount" yaml:"referenceCount"`
}

// Entry is the projected form of one cataloged symbol.
type Entry struct {
	ID       string            `json:"id" yaml:"id"`
	Name     string            `json:"name" yaml:"name"`
	Kind     symbols.Kind      `json:"kind" yaml:"kind"`
	IsLocal  bool              `json:"isLocal" yaml:"isLocal"`
	Module   string            `json:"module,omitempty" yaml:"module,omitempty"`
	Location *symbols.Location `json:"location,omitempty" yaml:"location,omitempty"`

	Exported    bool     `json:"exported,omitempty" yaml:"exported,omitempty"`
	Abstract    bool     `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Extends     []string `json:"extends,omitempty" yaml:"extends,omitempty"`
	Implements  []string `json:"implements,omitempty" yaml:"implements,omitempty"`
	EnumMembers []string `json:"enumMembers,omitempty" yaml:"enumMembers,omitempty"`
	Params      *int     `json:"params,omitempty" yaml:"params,omitempty"`
	Async       bool     `json:"async,omitempty" yaml:"async,omitempty"`

	Members        []Member            `json:"members,omitempty" yaml:"members,omitempty"`
	References     []symbols.Reference `json:"references" yaml:"references"`
	ReferenceCount int                 `json:"referenceCount" yaml:"referenceCount"`
}

// Ranked is one line of the most-referenced table.
type Ranked struct {
	ID             string       `json:"id" yaml:"id"`
	Name           string       `json:"name" yaml:"name"`
	Kind           symbols.Kind `json:"kind" yaml:"kind"`
	ReferenceCount int          `json:"referenceCount" yaml:"referenceCount"`
}

// Summary aggregates counts over the whole projection.
type Summary struct {
	Symbols    map[string]int `json:"symbols" yaml:"symbols"`
	Members    int            `json:"members" yaml:"members"`
	References int            `json:"references" yaml:"references"`
	Contexts   map[string]int `json:"contexts" yaml:"contexts"`
	Top        []Ranked       `json:"top" yaml:"top"`
}

// Projection groups entries by kind.
type Projection struct {
	Classes     []Entry           `json:"classes" yaml:"classes"`
	Functions   []Entry           `json:"functions" yaml:"functions"`
	Interfaces  []Entry           `json:"interfaces" yaml:"interfaces"`
	Enums       []Entry           `json:"enums" yaml:"enums"`
	Types       []Entry           `json:"types" yaml:"types"`
	Externals   []Entry           `json:"externals" yaml:"externals"`
	Summary     Summary           `json:"summary" yaml:"summary"`
	Diagnostics []xref.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Options tunes Build.
type Options struct {
	// Top bounds Summary.Top. Zero means DefaultTop; negative disables it.
	Top int
	// Report, when set, contributes its diagnostics.
	Report *xref.Report
}

// Build projects cat. The catalog is only read.
func Build(cat *catalog.Catalog, opts Options) *Projection {
	p := &Projection{
		Classes:    []Entry{},
		Functions:  []Entry{},
		Interfaces: []Entry{},
		Enums:      []Entry{},
		Types:      []Entry{},
		Externals:  []Entry{},
	}
	for _, s := range cat.Symbols() {
		e := entry(s)
		switch s.Kind {
		case symbols.KindClass:
			p.Classes = append(p.Classes, e)
		case symbols.KindFunction:
			p.Functions = append(p.Functions, e)
		case symbols.KindInterface:
			p.Interfaces = append(p.Interfaces, e)
		case symbols.KindEnum:
			p.Enums = append(p.Enums, e)
		case symbols.KindTypeAlias:
			p.Types = append(p.Types, e)
		case symbols.KindExternal:
			p.Externals = append(p.Externals, e)
		}
	}
	for _, list := range p.lists() {
		sortEntries(list)
	}
	if opts.Report != nil {
		p.Diagnostics = append([]xref.Diagnostic(nil), opts.Report.Diagnostics...)
	}
	p.Summary = summarize(p, opts.Top)
	return p
}

func (p *Projection) lists() [][]Entry {
	return [][]Entry{p.Classes, p.Functions, p.Interfaces, p.Enums, p.Types, p.Externals}
}

// Entries returns every entry in projection order.
func (p *Projection) Entries() []Entry {
	var out []Entry
	for _, list := range p.lists() {
		out = append(out, list...)
	}
	return out
}

func entry(s *symbols.Symbol) Entry {
	e := Entry{
		ID:          s.ID,
		Name:        s.Name,
		Kind:        s.Kind,
		IsLocal:     s.IsLocal,
		Module:      s.Module,
		Exported:    s.Exported,
		Abstract:    s.Abstract,
		Extends:     cloneStrings(s.Extends),
		Implements:  cloneStrings(s.Implements),
		EnumMembers: cloneStrings(s.EnumMembers),
		Async:       s.Async,
		References:  cloneRefs(s.References),
	}
	e.ReferenceCount = len(e.References)
	if s.Location != nil {
		loc := *s.Location
		e.Location = &loc
	}
	if s.Kind == symbols.KindFunction {
		n := s.Params
		e.Params = &n
	}
	for _, m := range s.Members {
		pm := Member{
			ID:         m.ID,
			Name:       m.Name,
			Kind:       m.Kind,
			Location:   m.Location,
			Static:     m.Static,
			Abstract:   m.Abstract,
			Optional:   m.Optional,
			References: cloneRefs(m.References),
		}
		pm.ReferenceCount = len(pm.References)
		e.Members = append(e.Members, pm)
	}
	return e
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}

// cloneRefs never returns nil so empty lists serialize as [].
func cloneRefs(in []symbols.Reference) []symbols.Reference {
	out := make([]symbols.Reference, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Location.Less(out[j].Location)
	})
	return out
}

func sortEntries(list []Entry) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Location == nil || b.Location == nil {
			if a.Module != b.Module {
				return a.Module < b.Module
			}
			return a.Name < b.Name
		}
		if a.Location.File != b.Location.File {
			return a.Location.File < b.Location.File
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		return a.Name < b.Name
	})
}

func summarize(p *Projection, top int) Summary {
	s := Summary{
		Symbols:  map[string]int{},
		Contexts: map[string]int{},
		Top:      []Ranked{},
	}
	var ranked []Ranked
	count := func(refs []symbols.Reference) {
		s.References += len(refs)
		for _, r := range refs {
			s.Contexts[r.Context.String()]++
		}
	}
	for _, e := range p.Entries() {
		s.Symbols[e.Kind.String()]++
		count(e.References)
		total := e.ReferenceCount
		for _, m := range e.Members {
			s.Members++
			count(m.References)
			total += m.ReferenceCount
		}
		if total > 0 {
			ranked = append(ranked, Ranked{ID: e.ID, Name: e.Name, Kind: e.Kind, ReferenceCount: total})
		}
	}
	if top == 0 {
		top = DefaultTop
	}
	if top < 0 {
		return s
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].ReferenceCount != ranked[j].ReferenceCount {
			return ranked[i].ReferenceCount > ranked[j].ReferenceCount
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > top {
		ranked = ranked[:top]
	}
	s.Top = append(s.Top, ranked...)
	return s
}
