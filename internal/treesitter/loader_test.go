package treesitter

import (
	"errors"
	"testing"
)

func TestLoadLanguage(t *testing.T) {
	lang, err := LoadLanguage("typescript")
	if err != nil {
		t.Fatalf("LoadLanguage(typescript): %v", err)
	}
	if lang == nil {
		t.Fatal("LoadLanguage(typescript) returned nil language")
	}
	if lang.Name() != "typescript" {
		t.Errorf("Language.Name() = %q, want %q", lang.Name(), "typescript")
	}
}

func TestLoadLanguageUnsupported(t *testing.T) {
	_, err := LoadLanguage("cobol")
	if err == nil {
		t.Error("LoadLanguage(cobol) should fail for unsupported language")
	}
}

func TestLanguageCache(t *testing.T) {
	lang1, err := LoadLanguage("tsx")
	if err != nil {
		t.Fatalf("LoadLanguage(tsx): %v", err)
	}
	lang2, err := LoadLanguage("tsx")
	if err != nil {
		t.Fatalf("LoadLanguage(tsx) second time: %v", err)
	}
	if lang1 != lang2 {
		t.Error("LoadLanguage should return cached language instance")
	}

	CloseAll()

	lang3, err := LoadLanguage("tsx")
	if err != nil {
		t.Fatalf("LoadLanguage(tsx) after CloseAll: %v", err)
	}
	if lang3 == lang1 {
		t.Error("LoadLanguage after CloseAll should return new instance")
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"src/a.ts", "typescript"},
		{"src/types.d.ts", "typescript"},
		{"src/App.TSX", "tsx"},
		{"lib/util.mjs", "javascript"},
		{"lib/util.jsx", "javascript"},
		{"README.md", ""},
		{"main.go", ""},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.path); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParseStrict(t *testing.T) {
	p, err := NewParser("typescript")
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	defer p.Close()

	tree, err := p.Parse([]byte("class Foo { bar(): void {} }\n"), true)
	if err != nil {
		t.Fatalf("Parse(valid): %v", err)
	}
	if got := tree.RootNode().Kind(); got != "program" {
		t.Errorf("root kind = %q, want program", got)
	}
	tree.Close()

	_, err = p.Parse([]byte("class Foo {\n  bar( {\n"), true)
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("Parse(broken, strict) error = %v, want ErrSyntax", err)
	}

	tree, err = p.Parse([]byte("class Foo {\n  bar( {\n"), false)
	if err != nil {
		t.Fatalf("Parse(broken, lenient): %v", err)
	}
	if !tree.RootNode().HasError() {
		t.Error("lenient parse should keep the error nodes")
	}
	tree.Close()
}
