package xref

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesdx/xref/internal/catalog"
	"github.com/mesdx/xref/internal/source"
	"github.com/mesdx/xref/internal/source/sourcetest"
	"github.com/mesdx/xref/internal/symbols"
)

func at(file string, line, col int) symbols.Location {
	return symbols.Location{File: file, Line: line, Column: col}
}

func classDecl(file, name string, line int, members ...string) source.Declaration {
	d := source.Declaration{
		Kind:         symbols.KindClass,
		Name:         name,
		Location:     at(file, line, 1),
		NameLocation: at(file, line, 7),
		Ref:          source.DeclRef{File: file, Owner: name, Kind: symbols.KindClass, Line: line},
	}
	for i, m := range members {
		d.Members = append(d.Members, source.MemberDecl{
			Kind:         symbols.KindMethod,
			Name:         m,
			Location:     at(file, line+i+1, 3),
			NameLocation: at(file, line+i+1, 3),
			Ref:          source.DeclRef{File: file, Owner: name, Member: m, Kind: symbols.KindMethod, Line: line},
		})
	}
	return d
}

func TestClassifyOrder(t *testing.T) {
	tests := []struct {
		name   string
		syntax source.Syntax
		token  symbols.Context
		member symbols.Context
	}{
		{"new", source.Syntax{Instantiated: true, Called: true}, symbols.ContextInstantiation, symbols.ContextInstantiation},
		{"member call", source.Syntax{Called: true, MemberAccess: true}, symbols.ContextCall, symbols.ContextMethodCall},
		{"plain call", source.Syntax{Called: true}, symbols.ContextCall, symbols.ContextCall},
		{"member read", source.Syntax{MemberAccess: true, VariableInit: true}, symbols.ContextVariableDeclaration, symbols.ContextPropertyAccess},
		{"type over heritage", source.Syntax{TypePosition: true, Extends: true}, symbols.ContextTypeAnnotation, symbols.ContextTypeAnnotation},
		{"extends", source.Syntax{Extends: true}, symbols.ContextInheritance, symbols.ContextInheritance},
		{"implements", source.Syntax{Implements: true}, symbols.ContextImplementation, symbols.ContextImplementation},
		{"parameter default", source.Syntax{Parameter: true, PropertyDecl: true}, symbols.ContextParameter, symbols.ContextParameter},
		{"field", source.Syntax{PropertyDecl: true}, symbols.ContextPropertyDeclaration, symbols.ContextPropertyDeclaration},
		{"bare", source.Syntax{}, symbols.ContextReference, symbols.ContextReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.token, ClassifyToken(tt.syntax))
			assert.Equal(t, tt.member, ClassifyMember(tt.syntax))
		})
	}
}

func TestTrackSkipsFailedMember(t *testing.T) {
	foo := classDecl("a.ts", "Foo", 1, "bar", "baz")
	model := sourcetest.New().AddFile("a.ts", sourcetest.File{Declarations: []source.Declaration{foo}})
	model.FailResolve(foo.Members[0].Ref, errors.New("resolver exploded"))
	model.AddUsage(foo.Members[1].Ref,
		source.UsageSite{Location: at("b.ts", 7, 5), Syntax: source.Syntax{Called: true, MemberAccess: true}},
		source.UsageSite{Location: foo.Members[1].NameLocation, Syntax: source.Syntax{Declaration: true}},
	)

	cat, report, err := Scan(context.Background(), model, Options{Logger: quiet})
	require.NoError(t, err)

	foo1 := cat.Lookup("Foo")
	assert.Empty(t, foo1.Method("bar").References)
	assert.Equal(t, []refAt{{"b.ts", 7, symbols.ContextMethodCall}}, refsAt(foo1.Method("baz").References))

	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, PhaseTrack, report.Diagnostics[0].Phase)
	assert.Equal(t, "Foo.bar", report.Diagnostics[0].Symbol)
	assert.Contains(t, report.Diagnostics[0].Message, "resolver exploded")
}

func TestTrackResolvesEachMemberOnce(t *testing.T) {
	foo := classDecl("a.ts", "Foo", 1, "bar")
	model := sourcetest.New().AddFile("a.ts", sourcetest.File{Declarations: []source.Declaration{foo}})

	_, _, err := Scan(context.Background(), model, Options{Logger: quiet})
	require.NoError(t, err)
	assert.Equal(t, 1, model.Resolved[foo.Members[0].Ref])
	assert.Zero(t, model.Resolved[foo.Ref], "classes are not resolved precisely")
}

func TestHeuristicSkipsDeclarationAndImports(t *testing.T) {
	foo := classDecl("a.ts", "Foo", 1)
	model := sourcetest.New().
		AddFile("a.ts", sourcetest.File{
			Declarations: []source.Declaration{foo},
			Tokens: []source.Token{
				{Text: "Foo", Location: foo.NameLocation},
			},
		}).
		AddFile("b.ts", sourcetest.File{
			Imports: []source.Import{{Name: "Widget", Imported: "Widget", Module: "ui-kit", IsExternal: true}},
			Tokens: []source.Token{
				{Text: "Foo", Location: at("b.ts", 1, 10), Syntax: source.Syntax{InImport: true}},
				{Text: "Foo", Location: at("b.ts", 3, 7), Syntax: source.Syntax{Instantiated: true}},
				{Text: "Widget", Location: at("b.ts", 4, 12), Syntax: source.Syntax{TypePosition: true}},
				{Text: "Promise", Location: at("b.ts", 5, 1)},
				{Text: "foo", Location: at("b.ts", 6, 1)},
			},
		})

	cat, _, err := Scan(context.Background(), model, Options{Logger: quiet})
	require.NoError(t, err)

	assert.Equal(t, []refAt{{"b.ts", 3, symbols.ContextInstantiation}}, refsAt(cat.Lookup("Foo").References))
	widget := cat.Lookup("Widget")
	require.NotNil(t, widget)
	assert.False(t, widget.IsLocal)
	assert.Equal(t, []refAt{{"b.ts", 4, symbols.ContextTypeAnnotation}}, refsAt(widget.References))
}

func TestHeuristicPrefersLocalOverStub(t *testing.T) {
	local := classDecl("a.ts", "Logger", 1)
	model := sourcetest.New().
		AddFile("a.ts", sourcetest.File{Declarations: []source.Declaration{local}}).
		AddFile("b.ts", sourcetest.File{
			Imports: []source.Import{{Name: "Logger", Imported: "Logger", Module: "winston", IsExternal: true}},
			Tokens:  []source.Token{{Text: "Logger", Location: at("b.ts", 2, 9)}},
		})

	cat, _, err := Scan(context.Background(), model, Options{Logger: quiet})
	require.NoError(t, err)

	got := cat.Lookup("Logger")
	assert.True(t, got.IsLocal)
	assert.Len(t, got.References, 1)
	assert.Empty(t, cat.Symbol(catalog.ExternalID("winston", "Logger")).References)
}

func TestCustomDenylist(t *testing.T) {
	foo := classDecl("a.ts", "Foo", 1)
	model := sourcetest.New().AddFile("a.ts", sourcetest.File{
		Declarations: []source.Declaration{foo},
		Tokens:       []source.Token{{Text: "Foo", Location: at("a.ts", 9, 1)}},
	})

	cat, _, err := Scan(context.Background(), model, Options{Logger: quiet, Denylist: catalog.NewDenylist("Foo")})
	require.NoError(t, err)
	assert.Empty(t, cat.Lookup("Foo").References)
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Phase: PhaseTrack, File: "a.ts", Symbol: "Foo.bar", Message: "failed"}
	assert.Equal(t, "[track] a.ts Foo.bar: failed", d.String())
	assert.Equal(t, "[crosslink] failed", Diagnostic{Phase: PhaseCrosslink, Message: "failed"}.String())
}
