package tsmodel

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mesdx/xref/internal/source"
	"github.com/mesdx/xref/internal/treesitter"
)

// collectTokens returns every identifier-like token of the file in document order.
func (u *fileUnit) collectTokens() []source.Token {
	var out []source.Token
	treesitter.Walk(u.tree.RootNode(), func(n *tree_sitter.Node) bool {
		if n.Kind() == "comment" {
			return false
		}
		if !tokenKinds[n.Kind()] {
			return true
		}
		loc := u.loc(n)
		out = append(out, source.Token{
			Text:     u.text(n),
			Location: loc,
			Line:     u.lineText(loc.Line),
			Syntax:   describe(n),
		})
		return false
	})
	return out
}
