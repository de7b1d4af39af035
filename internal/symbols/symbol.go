package symbols

import "fmt"

// Location describes a position in a source file.
// Lines and columns are 1-based; EndLine is zero for point locations.
type Location struct {
	File    string `json:"file" yaml:"file"`
	Line    int    `json:"line" yaml:"line"`
	Column  int    `json:"column" yaml:"column"`
	EndLine int    `json:"endLine,omitempty" yaml:"endLine,omitempty"`
}

// Point returns the location without its span.
func (l Location) Point() Location {
	return Location{File: l.File, Line: l.Line, Column: l.Column}
}

// SamePoint reports whether two locations start at the same position.
func (l Location) SamePoint(o Location) bool {
	return l.File == o.File && l.Line == o.Line && l.Column == o.Column
}

// Less orders locations by file, then line, then column.
func (l Location) Less(o Location) bool {
	if l.File != o.File {
		return l.File < o.File
	}
	if l.Line != o.Line {
		return l.Line < o.Line
	}
	return l.Column < o.Column
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Reference is one usage occurrence of a symbol or member.
type Reference struct {
	Location    Location `json:"location" yaml:"location"`
	Context     Context  `json:"context" yaml:"context"`
	ContextLine string   `json:"contextLine,omitempty" yaml:"contextLine,omitempty"`
}

// Member is a method, property or constructor of a class or interface.
type Member struct {
	ID           string
	Name         string
	Kind         Kind
	Owner        string // owning symbol id
	Location     Location
	NameLocation Location
	Static       bool
	Abstract     bool
	Optional     bool
	References   []Reference
}

// ReferenceCount is always derived from References.
func (m *Member) ReferenceCount() int { return len(m.References) }

// Symbol is a cataloged declaration, local or imported from an external module.
type Symbol struct {
	ID      string
	Name    string
	Kind    Kind
	IsLocal bool
	Module  string // external stubs only

	// Location and NameLocation are nil for external stubs.
	Location     *Location
	NameLocation *Location

	Members []*Member

	Exported    bool
	Abstract    bool
	Extends     []string
	Implements  []string
	EnumMembers []string
	Params      int
	Async       bool

	References []Reference
}

// ReferenceCount is always derived from References.
func (s *Symbol) ReferenceCount() int { return len(s.References) }

// Member returns the member with the given name and kind, or nil.
func (s *Symbol) Member(name string, kind Kind) *Member {
	for _, m := range s.Members {
		if m.Name == name && m.Kind == kind {
			return m
		}
	}
	return nil
}

// Method returns the method with the given name, or nil.
func (s *Symbol) Method(name string) *Member {
	return s.Member(name, KindMethod)
}

// Constructor returns the explicit constructor, or nil.
func (s *Symbol) Constructor() *Member {
	return s.Member("constructor", KindConstructor)
}

// IsDeclarationSite reports whether loc is the symbol's own declaring name token.
func (s *Symbol) IsDeclarationSite(loc Location) bool {
	if s.NameLocation != nil && s.NameLocation.SamePoint(loc) {
		return true
	}
	return s.Location != nil && s.Location.SamePoint(loc)
}

// IsDeclarationSite reports whether loc is the member's own declaring name token.
func (m *Member) IsDeclarationSite(loc Location) bool {
	return m.NameLocation.SamePoint(loc) || m.Location.SamePoint(loc)
}
