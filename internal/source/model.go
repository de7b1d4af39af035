// Package source defines the contract between the cross-reference engine and
// a language front end. A Model parses files into declarations, imports and
// identifier tokens, and resolves exact usages of a declaration.
package source

import (
	"errors"
	"fmt"

	"github.com/mesdx/xref/internal/symbols"
)

// ErrUnknownDeclaration is returned when a DeclRef does not name a declaration
// the model knows about.
var ErrUnknownDeclaration = errors.New("unknown declaration")

// Model is the parsing and resolution capability consumed by the engine.
// Implementations must be safe for concurrent calls of the per-file methods.
type Model interface {
	// Files returns the project-relative paths the model was opened with, sorted.
	Files() []string
	// Declarations returns the local declarations of one file.
	Declarations(file string) ([]Declaration, error)
	// Imports returns the import bindings of one file.
	Imports(file string) ([]Import, error)
	// Identifiers returns every identifier-like token of one file.
	Identifiers(file string) ([]Token, error)
	// ResolveExactReferences returns the exact usage sites of one declaration.
	ResolveExactReferences(decl DeclRef) ([]UsageSite, error)
}

// DeclRef addresses a declaration node: a top-level declaration when Member is
// empty, otherwise the named member of that declaration.
type DeclRef struct {
	File   string
	Owner  string
	Member string
	Kind   symbols.Kind
	Line   int // disambiguates same-named functions
}

func (r DeclRef) String() string {
	if r.Member != "" {
		return fmt.Sprintf("%s#%s.%s", r.File, r.Owner, r.Member)
	}
	return fmt.Sprintf("%s#%s", r.File, r.Owner)
}

// Declaration is the structural description of one local declaration.
type Declaration struct {
	Kind         symbols.Kind
	Name         string
	Location     symbols.Location
	NameLocation symbols.Location
	Ref          DeclRef

	Exported    bool
	Abstract    bool
	Async       bool
	Params      int
	Extends     []string
	Implements  []string
	EnumMembers []string
	Members     []MemberDecl
}

// MemberDecl describes a class or interface member.
type MemberDecl struct {
	Kind         symbols.Kind
	Name         string
	Location     symbols.Location
	NameLocation symbols.Location
	Static       bool
	Abstract     bool
	Optional     bool
	Ref          DeclRef
}

// Import is one name bound by an import statement.
type Import struct {
	Name       string // local binding
	Imported   string // exported name in the source module; "default" or "*" for those forms
	Module     string
	IsExternal bool
	Location   symbols.Location
}

// Syntax is the set of syntactic facts about a token's immediate surroundings.
// The engine maps these to reference contexts with an ordered decision list.
type Syntax struct {
	Instantiated bool // constructor position of a new expression
	Called       bool // callee of a call expression
	MemberAccess bool // property side of a member expression
	TypePosition bool // inside a type annotation or type argument
	Extends      bool // entry of an extends clause
	Implements   bool // entry of an implements clause
	VariableInit bool // initializer of a variable declarator
	Parameter    bool // parameter pattern or default
	PropertyDecl bool // class field or interface property
	Declaration  bool // the declaring name of some declaration
	InImport     bool // inside an import statement
}

// Token is one identifier-like occurrence in a file.
type Token struct {
	Text     string
	Location symbols.Location
	Line     string
	Syntax   Syntax
}

// UsageSite is one exact usage returned by resolution.
type UsageSite struct {
	Location symbols.Location
	Line     string
	Syntax   Syntax
}

// ParseError reports a file the model could not parse.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
