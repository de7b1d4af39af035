// Package sourcetest provides an in-memory source.Model for engine tests.
package sourcetest

import (
	"fmt"
	"sort"

	"github.com/mesdx/xref/internal/source"
)

// File is the canned content of one file.
type File struct {
	Declarations []source.Declaration
	Imports      []source.Import
	Tokens       []source.Token
	// Err makes every per-file call fail.
	Err error
}

// Model serves canned declarations, tokens and usages.
type Model struct {
	files       map[string]*File
	usages      map[source.DeclRef][]source.UsageSite
	resolveErrs map[source.DeclRef]error
	// Resolved counts ResolveExactReferences calls per declaration.
	Resolved map[source.DeclRef]int
}

var _ source.Model = (*Model)(nil)

func New() *Model {
	return &Model{
		files:       map[string]*File{},
		usages:      map[source.DeclRef][]source.UsageSite{},
		resolveErrs: map[source.DeclRef]error{},
		Resolved:    map[source.DeclRef]int{},
	}
}

// AddFile registers a file, replacing any previous content.
func (m *Model) AddFile(path string, f File) *Model {
	m.files[path] = &f
	return m
}

// AddUsage registers an exact usage of ref.
func (m *Model) AddUsage(ref source.DeclRef, sites ...source.UsageSite) *Model {
	m.usages[ref] = append(m.usages[ref], sites...)
	return m
}

// FailResolve makes resolution of ref return err.
func (m *Model) FailResolve(ref source.DeclRef, err error) *Model {
	m.resolveErrs[ref] = err
	return m
}

func (m *Model) Files() []string {
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *Model) file(path string) (*File, error) {
	f, ok := m.files[path]
	if !ok {
		return nil, &source.ParseError{File: path, Err: fmt.Errorf("no such file")}
	}
	if f.Err != nil {
		return nil, &source.ParseError{File: path, Err: f.Err}
	}
	return f, nil
}

func (m *Model) Declarations(path string) ([]source.Declaration, error) {
	f, err := m.file(path)
	if err != nil {
		return nil, err
	}
	return f.Declarations, nil
}

func (m *Model) Imports(path string) ([]source.Import, error) {
	f, err := m.file(path)
	if err != nil {
		return nil, err
	}
	return f.Imports, nil
}

func (m *Model) Identifiers(path string) ([]source.Token, error) {
	f, err := m.file(path)
	if err != nil {
		return nil, err
	}
	return f.Tokens, nil
}

// ResolveExactReferences is not safe for concurrent use; the engine calls it
// from one goroutine.
func (m *Model) ResolveExactReferences(ref source.DeclRef) ([]source.UsageSite, error) {
	m.Resolved[ref]++
	if err := m.resolveErrs[ref]; err != nil {
		return nil, err
	}
	return m.usages[ref], nil
}
