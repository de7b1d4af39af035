package tsmodel

import (
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mesdx/xref/internal/source"
	"github.com/mesdx/xref/internal/symbols"
	"github.com/mesdx/xref/internal/treesitter"
)

// extract walks the top level of the file and fills decls, imports and exports.
func (u *fileUnit) extract() {
	u.collectTop(u.tree.RootNode(), false)
	u.tokens = u.collectTokens()
}

func (u *fileUnit) collectTop(container *tree_sitter.Node, exported bool) {
	for _, ch := range treesitter.NamedChildren(container) {
		switch ch.Kind() {
		case "export_statement":
			u.collectExport(ch)
		case "import_statement":
			u.collectImport(ch)
		case "ambient_declaration":
			u.collectTop(ch, exported)
		case "expression_statement":
			// namespace Foo { ... } parses as an expression statement in TypeScript
			if inner := ch.NamedChild(0); inner != nil && (inner.Kind() == "internal_module" || inner.Kind() == "module") {
				u.collectTop(inner.ChildByFieldName("body"), exported)
			}
		case "internal_module", "module":
			u.collectTop(ch.ChildByFieldName("body"), exported)
		default:
			u.addDecl(ch, exported)
		}
	}
}

func (u *fileUnit) collectExport(n *tree_sitter.Node) {
	isDefault := treesitter.HasChildKind(n, "default")
	if decl := n.ChildByFieldName("declaration"); decl != nil {
		d := u.addDecl(decl, true)
		if isDefault && d != nil {
			u.exports["default"] = d.name()
		}
		return
	}
	if value := n.ChildByFieldName("value"); value != nil && isDefault {
		if value.Kind() == "identifier" {
			u.exports["default"] = u.text(value)
		}
		return
	}

	module := unquote(u.text(n.ChildByFieldName("source")))
	clause := treesitter.FindChildByKind(n, "export_clause")
	if clause == nil {
		if module != "" && treesitter.HasChildKind(n, "*") && treesitter.FindChildByKind(n, "namespace_export") == nil {
			u.starExports = append(u.starExports, module)
		}
		return
	}
	for _, spec := range treesitter.ChildrenByKind(clause, "export_specifier") {
		name := u.text(spec.ChildByFieldName("name"))
		exported := name
		if alias := spec.ChildByFieldName("alias"); alias != nil {
			exported = u.text(alias)
		}
		if name == "" {
			continue
		}
		if module != "" {
			u.reexports[exported] = reexport{module: module, name: name}
		} else {
			u.exports[exported] = name
		}
	}
}

func (u *fileUnit) collectImport(n *tree_sitter.Node) {
	module := unquote(u.text(n.ChildByFieldName("source")))
	req := treesitter.FindChildByKind(n, "import_require_clause")
	if module == "" && req != nil {
		module = unquote(u.text(req.ChildByFieldName("source")))
	}
	if module == "" {
		return
	}
	external := !isRelativeModule(module)
	add := func(nameNode *tree_sitter.Node, imported string) {
		if nameNode == nil {
			return
		}
		imp := source.Import{
			Name:       u.text(nameNode),
			Imported:   imported,
			Module:     module,
			IsExternal: external,
			Location:   u.loc(nameNode),
		}
		u.imports = append(u.imports, imp)
	}

	if req != nil {
		add(treesitter.FindChildByKind(req, "identifier"), "*")
	}
	clause := treesitter.FindChildByKind(n, "import_clause")
	for _, ch := range treesitter.NamedChildren(clause) {
		switch ch.Kind() {
		case "identifier":
			add(ch, "default")
		case "namespace_import":
			add(treesitter.FindChildByKind(ch, "identifier"), "*")
		case "named_imports":
			for _, spec := range treesitter.ChildrenByKind(ch, "import_specifier") {
				name := spec.ChildByFieldName("name")
				local := name
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					local = alias
				}
				add(local, u.text(name))
			}
		}
	}
	// appends may have moved the backing array
	for i := range u.imports {
		u.importsByName[u.imports[i].Name] = &u.imports[i]
	}
}

// addDecl catalogs one top-level declaration node. Non-declarations return nil.
func (u *fileUnit) addDecl(n *tree_sitter.Node, exported bool) *declInfo {
	switch n.Kind() {
	case "class_declaration", "abstract_class_declaration", "class":
		return u.addClass(n, exported)
	case "interface_declaration":
		return u.addInterface(n, exported)
	case "enum_declaration":
		return u.addEnum(n, exported)
	case "type_alias_declaration":
		d := u.newDecl(n, n.ChildByFieldName("name"), symbols.KindTypeAlias, exported)
		if d != nil {
			d.aliasValue = n.ChildByFieldName("value")
			u.register(d)
		}
		return d
	case "function_declaration", "generator_function_declaration", "function_signature":
		return u.addFunction(n, exported)
	case "lexical_declaration", "variable_declaration":
		if exported {
			for _, decl := range treesitter.ChildrenByKind(n, "variable_declarator") {
				if name := decl.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
					u.exports[u.text(name)] = u.text(name)
				}
			}
		}
	}
	return nil
}

func (u *fileUnit) newDecl(n, nameNode *tree_sitter.Node, kind symbols.Kind, exported bool) *declInfo {
	if nameNode == nil {
		return nil
	}
	name := u.text(nameNode)
	if name == "" {
		return nil
	}
	span := u.span(n)
	d := &declInfo{unit: u, node: n, members: map[string]*memberInfo{}}
	d.decl = source.Declaration{
		Kind:         kind,
		Name:         name,
		Location:     span,
		NameLocation: u.loc(nameNode),
		Exported:     exported,
		Ref:          source.DeclRef{File: u.path, Owner: name, Kind: kind, Line: span.Line},
	}
	return d
}

func (u *fileUnit) register(d *declInfo) {
	u.decls = append(u.decls, d)
	u.declByStart[d.node.StartByte()] = d
	name := d.name()
	if prev, ok := u.top[name]; !ok || preferDecl(d, prev) {
		u.top[name] = d
	}
	if d.decl.Exported {
		u.exports[name] = name
	}
}

// preferDecl decides which same-named declaration a name binds to: classes win
// over merged interfaces, and function implementations over overload signatures.
func preferDecl(d, prev *declInfo) bool {
	switch {
	case d.kind() == symbols.KindClass && prev.kind() == symbols.KindInterface:
		return true
	case d.kind() == symbols.KindFunction && prev.kind() == symbols.KindFunction:
		return d.hasBody && !prev.hasBody
	}
	return false
}

func (u *fileUnit) addClass(n *tree_sitter.Node, exported bool) *declInfo {
	d := u.newDecl(n, n.ChildByFieldName("name"), symbols.KindClass, exported)
	if d == nil {
		return nil
	}
	d.decl.Abstract = n.Kind() == "abstract_class_declaration"

	if heritage := treesitter.FindChildByKind(n, "class_heritage"); heritage != nil {
		extends := treesitter.FindChildByKind(heritage, "extends_clause")
		if extends == nil && !u.isTypeScript() {
			extends = heritage
		}
		for _, v := range treesitter.NamedChildren(extends) {
			if v.Kind() == "type_arguments" || v.Kind() == "comment" {
				continue
			}
			d.extendsNodes = append(d.extendsNodes, v)
			d.decl.Extends = append(d.decl.Extends, u.heritageName(v))
		}
		for _, v := range treesitter.NamedChildren(treesitter.FindChildByKind(heritage, "implements_clause")) {
			if v.Kind() == "comment" {
				continue
			}
			d.implementsNodes = append(d.implementsNodes, v)
			d.decl.Implements = append(d.decl.Implements, u.heritageName(v))
		}
	}

	for _, m := range treesitter.NamedChildren(n.ChildByFieldName("body")) {
		u.addClassMember(d, m)
	}
	u.register(d)
	return d
}

func (u *fileUnit) addClassMember(d *declInfo, m *tree_sitter.Node) {
	switch m.Kind() {
	case "method_definition", "method_signature", "abstract_method_signature":
		nameNode := m.ChildByFieldName("name")
		name := u.text(nameNode)
		kind := symbols.KindMethod
		switch {
		case name == "constructor":
			kind = symbols.KindConstructor
		case treesitter.HasChildKind(m, "get") || treesitter.HasChildKind(m, "set"):
			kind = symbols.KindProperty
		}
		mi := u.addMember(d, kind, name, m, nameNode)
		if mi == nil {
			return
		}
		if m.Kind() == "abstract_method_signature" || treesitter.HasChildKind(m, "abstract") {
			mi.decl.Abstract = true
		}
		if mi.typeNode == nil && kind != symbols.KindConstructor {
			mi.typeNode = m.ChildByFieldName("return_type")
		}
		if kind == symbols.KindConstructor {
			u.addParameterProperties(d, m.ChildByFieldName("parameters"))
		}
	case "public_field_definition", "field_definition":
		nameNode := m.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = m.ChildByFieldName("property")
		}
		mi := u.addMember(d, symbols.KindProperty, u.text(nameNode), m, nameNode)
		if mi != nil && mi.typeNode == nil {
			mi.typeNode = m.ChildByFieldName("type")
			if treesitter.HasChildKind(m, "abstract") {
				mi.decl.Abstract = true
			}
		}
	}
}

// addParameterProperties catalogs constructor parameters declared with an
// accessibility modifier or readonly, which TypeScript turns into properties.
func (u *fileUnit) addParameterProperties(d *declInfo, params *tree_sitter.Node) {
	for _, p := range treesitter.NamedChildren(params) {
		if p.Kind() != "required_parameter" && p.Kind() != "optional_parameter" {
			continue
		}
		if !treesitter.HasChildKind(p, "accessibility_modifier") && !treesitter.HasChildKind(p, "readonly") {
			continue
		}
		pat := p.ChildByFieldName("pattern")
		if pat == nil || pat.Kind() != "identifier" {
			continue
		}
		if mi := u.addMember(d, symbols.KindProperty, u.text(pat), p, pat); mi != nil && mi.typeNode == nil {
			mi.typeNode = p.ChildByFieldName("type")
		}
	}
}

func (u *fileUnit) addInterface(n *tree_sitter.Node, exported bool) *declInfo {
	d := u.newDecl(n, n.ChildByFieldName("name"), symbols.KindInterface, exported)
	if d == nil {
		return nil
	}
	for _, v := range treesitter.NamedChildren(treesitter.FindChildByKind(n, "extends_type_clause")) {
		if v.Kind() == "comment" {
			continue
		}
		d.extendsNodes = append(d.extendsNodes, v)
		d.decl.Extends = append(d.decl.Extends, u.heritageName(v))
	}
	for _, m := range treesitter.NamedChildren(n.ChildByFieldName("body")) {
		switch m.Kind() {
		case "method_signature":
			nameNode := m.ChildByFieldName("name")
			if mi := u.addMember(d, symbols.KindMethod, u.text(nameNode), m, nameNode); mi != nil && mi.typeNode == nil {
				mi.typeNode = m.ChildByFieldName("return_type")
			}
		case "property_signature":
			nameNode := m.ChildByFieldName("name")
			if mi := u.addMember(d, symbols.KindProperty, u.text(nameNode), m, nameNode); mi != nil && mi.typeNode == nil {
				mi.typeNode = m.ChildByFieldName("type")
			}
		}
	}
	u.register(d)
	return d
}

func (u *fileUnit) addEnum(n *tree_sitter.Node, exported bool) *declInfo {
	d := u.newDecl(n, n.ChildByFieldName("name"), symbols.KindEnum, exported)
	if d == nil {
		return nil
	}
	for _, m := range treesitter.NamedChildren(n.ChildByFieldName("body")) {
		switch m.Kind() {
		case "property_identifier", "string":
			d.decl.EnumMembers = append(d.decl.EnumMembers, unquote(u.text(m)))
		case "enum_assignment":
			d.decl.EnumMembers = append(d.decl.EnumMembers, unquote(u.text(m.ChildByFieldName("name"))))
		}
	}
	u.register(d)
	return d
}

func (u *fileUnit) addFunction(n *tree_sitter.Node, exported bool) *declInfo {
	d := u.newDecl(n, n.ChildByFieldName("name"), symbols.KindFunction, exported)
	if d == nil {
		return nil
	}
	d.returnType = n.ChildByFieldName("return_type")
	d.hasBody = n.ChildByFieldName("body") != nil
	d.decl.Async = treesitter.HasChildKind(n, "async")
	for _, p := range treesitter.NamedChildren(n.ChildByFieldName("parameters")) {
		if p.Kind() != "comment" {
			d.decl.Params++
		}
	}
	u.register(d)
	return d
}

func (u *fileUnit) addMember(d *declInfo, kind symbols.Kind, name string, n, nameNode *tree_sitter.Node) *memberInfo {
	if name == "" || nameNode == nil {
		return nil
	}
	name = unquote(name)
	if mi, ok := d.members[name]; ok {
		return mi
	}
	mi := &memberInfo{owner: d}
	mi.decl = source.MemberDecl{
		Kind:         kind,
		Name:         name,
		Location:     u.span(n),
		NameLocation: u.loc(nameNode),
		Static:       treesitter.HasChildKind(n, "static"),
		Optional:     treesitter.HasChildKind(n, "?"),
		Ref: source.DeclRef{
			File:   u.path,
			Owner:  d.name(),
			Member: name,
			Kind:   kind,
			Line:   d.decl.Ref.Line,
		},
	}
	d.members[name] = mi
	return mi
}

// finalize copies member declarations into the public declaration in source order.
func (d *declInfo) finalize() {
	d.decl.Members = d.decl.Members[:0]
	for _, mi := range d.members {
		d.decl.Members = append(d.decl.Members, mi.decl)
	}
	sortMembers(d.decl.Members)
}

func sortMembers(members []source.MemberDecl) {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].NameLocation.Less(members[j].NameLocation)
	})
}

// heritageName returns the bare type name of an extends/implements entry.
func (u *fileUnit) heritageName(n *tree_sitter.Node) string {
	switch n.Kind() {
	case "generic_type":
		return u.heritageName(n.ChildByFieldName("name"))
	case "nested_type_identifier":
		return u.text(n.ChildByFieldName("name"))
	case "member_expression":
		return u.text(n.ChildByFieldName("property"))
	case "call_expression":
		return u.heritageName(n.ChildByFieldName("function"))
	}
	return u.text(n)
}

func unquote(s string) string {
	return strings.Trim(s, "'\"`")
}

func isRelativeModule(module string) bool {
	return strings.HasPrefix(module, ".") || strings.HasPrefix(module, "/")
}
