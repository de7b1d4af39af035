package tsmodel

import (
	"path"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mesdx/xref/internal/source"
	"github.com/mesdx/xref/internal/symbols"
)

const maxResolveDepth = 16

var moduleSuffixes = []string{
	"", ".ts", ".tsx", ".d.ts", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs",
	"/index.ts", "/index.tsx", "/index.d.ts", "/index.js", "/index.jsx",
}

// resolveModule maps a relative import specifier to a parsed file.
func (m *Model) resolveModule(from, module string) *fileUnit {
	if !isRelativeModule(module) {
		return nil
	}
	base := path.Clean(path.Join(path.Dir(from), module))
	if strings.HasPrefix(module, "/") {
		base = path.Clean(strings.TrimPrefix(module, "/"))
	}
	candidates := []string{base}
	// ESM-style TypeScript imports name the emitted .js file
	for _, ext := range []string{".js", ".jsx", ".mjs", ".cjs"} {
		if strings.HasSuffix(base, ext) {
			candidates = append(candidates, strings.TrimSuffix(base, ext))
		}
	}
	for _, c := range candidates {
		for _, suffix := range moduleSuffixes {
			if u, ok := m.units[c+suffix]; ok && u.err == nil {
				return u
			}
		}
	}
	return nil
}

// resolveImport follows an import binding to a declaration, or to the target
// file for namespace imports.
func (m *Model) resolveImport(u *fileUnit, imp *source.Import, depth int) (*declInfo, *fileUnit) {
	if imp == nil || imp.IsExternal || depth > maxResolveDepth {
		return nil, nil
	}
	target := m.resolveModule(u.path, imp.Module)
	if target == nil {
		return nil, nil
	}
	if imp.Imported == "*" {
		return nil, target
	}
	return m.exportedDecl(target, imp.Imported, depth+1), nil
}

// exportedDecl returns the declaration a module exports under name.
func (m *Model) exportedDecl(u *fileUnit, name string, depth int) *declInfo {
	if u == nil || depth > maxResolveDepth {
		return nil
	}
	if local, ok := u.exports[name]; ok {
		if d := u.top[local]; d != nil {
			return d
		}
		if imp := u.importsByName[local]; imp != nil {
			d, _ := m.resolveImport(u, imp, depth+1)
			return d
		}
	}
	if re, ok := u.reexports[name]; ok {
		return m.exportedDecl(m.resolveModule(u.path, re.module), re.name, depth+1)
	}
	if name == "default" {
		return nil
	}
	for _, module := range u.starExports {
		if d := m.exportedDecl(m.resolveModule(u.path, module), name, depth+1); d != nil {
			return d
		}
	}
	return nil
}

// resolveTypeName resolves a name in a file's top-level scope: local
// declarations first, then imports.
func (m *Model) resolveTypeName(u *fileUnit, name string) *declInfo {
	if d := u.top[name]; d != nil {
		return d
	}
	if imp := u.importsByName[name]; imp != nil {
		d, _ := m.resolveImport(u, imp, 0)
		return d
	}
	return nil
}

// resolveHeritage resolves an extends or implements entry to a declaration.
func (m *Model) resolveHeritage(u *fileUnit, n *tree_sitter.Node) *declInfo {
	var d *declInfo
	switch n.Kind() {
	case "identifier", "type_identifier":
		d = m.resolveTypeName(u, u.text(n))
	case "generic_type":
		return m.resolveHeritage(u, n.ChildByFieldName("name"))
	case "nested_type_identifier":
		d = m.qualifiedDecl(u, n.ChildByFieldName("module"), u.text(n.ChildByFieldName("name")))
	case "member_expression":
		d = m.qualifiedDecl(u, n.ChildByFieldName("object"), u.text(n.ChildByFieldName("property")))
	}
	if d == nil || (d.kind() != symbols.KindClass && d.kind() != symbols.KindInterface) {
		return nil
	}
	return d
}

// qualifiedDecl resolves ns.Name where ns is a namespace import.
func (m *Model) qualifiedDecl(u *fileUnit, nsNode *tree_sitter.Node, name string) *declInfo {
	if nsNode == nil || nsNode.Kind() != "identifier" {
		return nil
	}
	imp := u.importsByName[u.text(nsNode)]
	if imp == nil || imp.Imported != "*" {
		return nil
	}
	_, target := m.resolveImport(u, imp, 0)
	return m.exportedDecl(target, name, 0)
}
