package treesitter

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Language wraps a tree-sitter language.
type Language struct {
	lang *tree_sitter.Language
	name string
}

var (
	languageCache = make(map[string]*Language)
	cacheMu       sync.RWMutex
)

// languageMap contains all statically compiled language parsers.
var languageMap = map[string]func() unsafe.Pointer{
	"typescript": tree_sitter_typescript.LanguageTypescript,
	"tsx":        tree_sitter_typescript.LanguageTSX,
	"javascript": tree_sitter_javascript.Language,
}

// extLanguages maps file extensions to grammar names.
var extLanguages = map[string]string{
	".ts":  "typescript",
	".mts": "typescript",
	".cts": "typescript",
	".tsx": "tsx",
	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
}

// LoadLanguage loads a tree-sitter language by name ("typescript", "tsx", "javascript").
func LoadLanguage(langName string) (*Language, error) {
	cacheMu.RLock()
	if lang, ok := languageCache[langName]; ok {
		cacheMu.RUnlock()
		return lang, nil
	}
	cacheMu.RUnlock()

	langFunc, ok := languageMap[langName]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", langName)
	}

	langPtr := langFunc()
	if langPtr == nil {
		return nil, fmt.Errorf("failed to get language pointer for %s", langName)
	}

	lang := &Language{
		lang: tree_sitter.NewLanguage(langPtr),
		name: langName,
	}

	cacheMu.Lock()
	if cached, ok := languageCache[langName]; ok {
		cacheMu.Unlock()
		return cached, nil
	}
	languageCache[langName] = lang
	cacheMu.Unlock()

	return lang, nil
}

// TSLanguage returns the underlying tree-sitter language.
func (l *Language) TSLanguage() *tree_sitter.Language {
	return l.lang
}

// Name returns the language name.
func (l *Language) Name() string {
	return l.name
}

// CloseAll clears the language cache.
func CloseAll() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	languageCache = make(map[string]*Language)
}

// DetectLanguage returns the grammar name for a path, or "" if unsupported.
// Declaration files (.d.ts) parse with the TypeScript grammar.
func DetectLanguage(path string) string {
	return extLanguages[strings.ToLower(filepath.Ext(path))]
}

// IsTypeScript reports whether the grammar understands type syntax.
func IsTypeScript(langName string) bool {
	return langName == "typescript" || langName == "tsx"
}
