package symbols

import "testing"

func TestParseKindRoundTrip(t *testing.T) {
	for k, name := range kindNames {
		if got := ParseKind(name); got != k {
			t.Errorf("ParseKind(%q) = %v, want %v", name, got, k)
		}
	}
	if got := ParseKind("struct"); got != KindUnknown {
		t.Errorf("ParseKind(struct) = %v, want unknown", got)
	}
}

func TestParseContextFallsBackToReference(t *testing.T) {
	if got := ParseContext("method_call"); got != ContextMethodCall {
		t.Errorf("ParseContext(method_call) = %v", got)
	}
	if got := ParseContext("dynamic_dispatch"); got != ContextReference {
		t.Errorf("unknown context should map to reference, got %v", got)
	}
	if got := Context(99).String(); got != "reference" {
		t.Errorf("out of range context String() = %q", got)
	}
}

func TestContextsAreClosed(t *testing.T) {
	all := Contexts()
	if len(all) != len(contextNames) {
		t.Fatalf("Contexts() returned %d tags, want %d", len(all), len(contextNames))
	}
	seen := map[string]bool{}
	for _, c := range all {
		if seen[c.String()] {
			t.Errorf("duplicate context %s", c)
		}
		seen[c.String()] = true
	}
}

func TestReferenceCountIsDerived(t *testing.T) {
	s := &Symbol{Name: "Foo"}
	if s.ReferenceCount() != 0 {
		t.Fatalf("empty symbol count = %d", s.ReferenceCount())
	}
	s.References = append(s.References, Reference{Context: ContextCall}, Reference{Context: ContextReference})
	if s.ReferenceCount() != 2 {
		t.Errorf("count = %d, want 2", s.ReferenceCount())
	}
}

func TestIsDeclarationSite(t *testing.T) {
	s := &Symbol{
		Name:         "Foo",
		Location:     &Location{File: "a.ts", Line: 3, Column: 1, EndLine: 9},
		NameLocation: &Location{File: "a.ts", Line: 3, Column: 14},
	}
	if !s.IsDeclarationSite(Location{File: "a.ts", Line: 3, Column: 14}) {
		t.Error("name token should be the declaration site")
	}
	if s.IsDeclarationSite(Location{File: "b.ts", Line: 3, Column: 14}) {
		t.Error("other file is not the declaration site")
	}
	stub := &Symbol{Name: "Bar"}
	if stub.IsDeclarationSite(Location{File: "a.ts", Line: 1, Column: 1}) {
		t.Error("stubs have no declaration site")
	}
}
