package tsmodel

import (
	"bytes"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mesdx/xref/internal/source"
	"github.com/mesdx/xref/internal/symbols"
	"github.com/mesdx/xref/internal/treesitter"
)

// fileUnit holds one parsed file and everything precomputed from it.
type fileUnit struct {
	path        string
	lang        string
	src         []byte
	lines       []string
	tree        *tree_sitter.Tree
	fingerprint uint64
	size        int64
	err         error

	decls   []*declInfo
	imports []source.Import
	tokens  []source.Token

	// top maps top-level names to declarations. Functions keep their
	// implementation (or first signature) under the name.
	top map[string]*declInfo
	// importsByName maps local import bindings to their import.
	importsByName map[string]*source.Import
	// exports maps exported names to local names; "default" for the default export.
	exports map[string]string
	// reexports maps exported names to (module, name) pairs re-exported from elsewhere.
	reexports map[string]reexport
	// starExports lists modules re-exported with export *.
	starExports []string
	// declByStart finds the declaration a node starts, by start byte.
	declByStart map[uint]*declInfo
}

type reexport struct {
	module string
	name   string
}

// declInfo is a top-level declaration plus the syntax nodes resolution needs.
type declInfo struct {
	unit *fileUnit
	node *tree_sitter.Node
	decl source.Declaration

	// members by name; a name declared twice keeps its first declaration.
	members map[string]*memberInfo
	// heritage type nodes, resolved once the whole project is loaded.
	extendsNodes    []*tree_sitter.Node
	implementsNodes []*tree_sitter.Node
	// returnType is the return type annotation of a function.
	returnType *tree_sitter.Node
	// aliasValue is the right-hand side of a type alias.
	aliasValue *tree_sitter.Node
	// hasBody distinguishes function implementations from signatures.
	hasBody bool
}

func (d *declInfo) key() string {
	return d.decl.Ref.String()
}

func (d *declInfo) name() string { return d.decl.Name }

func (d *declInfo) kind() symbols.Kind { return d.decl.Kind }

// memberInfo is a class or interface member with its type nodes.
type memberInfo struct {
	owner    *declInfo
	decl     source.MemberDecl
	typeNode *tree_sitter.Node // property type, or method return type
}

func newFileUnit(path, lang string, src []byte) *fileUnit {
	return &fileUnit{
		path:          path,
		lang:          lang,
		src:           src,
		lines:         splitLines(src),
		size:          int64(len(src)),
		top:           map[string]*declInfo{},
		importsByName: map[string]*source.Import{},
		exports:       map[string]string{},
		reexports:     map[string]reexport{},
		declByStart:   map[uint]*declInfo{},
	}
}

func splitLines(src []byte) []string {
	raw := bytes.Split(src, []byte("\n"))
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimRight(string(l), "\r")
	}
	return lines
}

// lineText returns the trimmed text of a 1-based line.
func (u *fileUnit) lineText(line int) string {
	if line < 1 || line > len(u.lines) {
		return ""
	}
	return strings.TrimSpace(u.lines[line-1])
}

func (u *fileUnit) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(u.src)
}

// loc returns the start point of n as a 1-based location.
func (u *fileUnit) loc(n *tree_sitter.Node) symbols.Location {
	p := n.StartPosition()
	return symbols.Location{File: u.path, Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// span returns the start of n with its end line.
func (u *fileUnit) span(n *tree_sitter.Node) symbols.Location {
	l := u.loc(n)
	l.EndLine = int(n.EndPosition().Row) + 1
	return l
}

func (u *fileUnit) isTypeScript() bool {
	return treesitter.IsTypeScript(u.lang)
}
