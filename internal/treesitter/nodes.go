package treesitter

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Walk visits n and its descendants depth-first in document order.
// Returning false from fn skips the node's children.
func Walk(n *tree_sitter.Node, fn func(*tree_sitter.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		Walk(n.Child(i), fn)
	}
}

// Text returns the source text of a node, or "" for nil.
func Text(n *tree_sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(source)
}

// FindChildByKind returns the first direct child of the given kind.
func FindChildByKind(n *tree_sitter.Node, kind string) *tree_sitter.Node {
	if n == nil {
		return nil
	}
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		ch := n.Child(i)
		if ch != nil && ch.Kind() == kind {
			return ch
		}
	}
	return nil
}

// ChildrenByKind returns all direct children of the given kind.
func ChildrenByKind(n *tree_sitter.Node, kind string) []*tree_sitter.Node {
	if n == nil {
		return nil
	}
	var out []*tree_sitter.Node
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		ch := n.Child(i)
		if ch != nil && ch.Kind() == kind {
			out = append(out, ch)
		}
	}
	return out
}

// NamedChildren returns the named direct children of n.
func NamedChildren(n *tree_sitter.Node) []*tree_sitter.Node {
	if n == nil {
		return nil
	}
	count := n.NamedChildCount()
	out := make([]*tree_sitter.Node, 0, count)
	for i := uint(0); i < count; i++ {
		if ch := n.NamedChild(i); ch != nil {
			out = append(out, ch)
		}
	}
	return out
}

// Same reports whether a and b denote the same node. Child accessors return
// fresh wrappers, so pointer equality is not meaningful.
func Same(a, b *tree_sitter.Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}

// IsField reports whether child is the node stored in parent's named field.
func IsField(parent *tree_sitter.Node, field string, child *tree_sitter.Node) bool {
	if parent == nil || child == nil {
		return false
	}
	return Same(parent.ChildByFieldName(field), child)
}

// HasChildKind reports whether n has a direct child (named or anonymous) of the given kind.
func HasChildKind(n *tree_sitter.Node, kind string) bool {
	return FindChildByKind(n, kind) != nil
}
