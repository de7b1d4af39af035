package treesitter

import (
	"errors"
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrSyntax is wrapped by Parse when the tree contains error or missing nodes.
var ErrSyntax = errors.New("syntax error")

// Parser is a single-goroutine tree-sitter parser bound to one language.
type Parser struct {
	p    *tree_sitter.Parser
	lang *Language
}

// NewParser creates a parser for the named language.
func NewParser(langName string) (*Parser, error) {
	lang, err := LoadLanguage(langName)
	if err != nil {
		return nil, err
	}
	p := tree_sitter.NewParser()
	if err := p.SetLanguage(lang.TSLanguage()); err != nil {
		p.Close()
		return nil, fmt.Errorf("set language %s: %w", langName, err)
	}
	return &Parser{p: p, lang: lang}, nil
}

// Parse parses source and returns the tree. When strict is set, a tree that
// contains syntax errors is closed and reported as ErrSyntax with the first
// error position.
func (p *Parser) Parse(source []byte, strict bool) (*tree_sitter.Tree, error) {
	tree := p.p.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse source")
	}
	root := tree.RootNode()
	if strict && root.HasError() {
		pos := FirstErrorPosition(root)
		tree.Close()
		return nil, fmt.Errorf("%w at line %d column %d", ErrSyntax, pos.Row+1, pos.Column+1)
	}
	return tree, nil
}

// Language returns the parser's language.
func (p *Parser) Language() *Language {
	return p.lang
}

// Close releases the parser.
func (p *Parser) Close() {
	if p.p != nil {
		p.p.Close()
		p.p = nil
	}
}

// FirstErrorPosition returns the start of the first ERROR or missing node in
// document order, or the root start if none is found.
func FirstErrorPosition(root *tree_sitter.Node) tree_sitter.Point {
	var found *tree_sitter.Node
	Walk(root, func(n *tree_sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.IsError() || n.IsMissing() {
			found = n
			return false
		}
		return n.HasError()
	})
	if found == nil {
		return root.StartPosition()
	}
	return found.StartPosition()
}
