package tsmodel

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mesdx/xref/internal/source"
	"github.com/mesdx/xref/internal/symbols"
	"github.com/mesdx/xref/internal/treesitter"
)

// typeRef is the inferred type of an expression. At most one field is set.
type typeRef struct {
	decl    *declInfo // class, interface or enum
	ns      *fileUnit // namespace import
	elem    *typeRef  // array element
	awaited *typeRef  // Promise payload
}

// binding is what a name refers to in a scope.
type binding struct {
	decl     *declInfo
	imp      *source.Import
	typeNode *tree_sitter.Node
	value    *tree_sitter.Node
	elemOf   bool // value is iterated with for..of
	scope    *scope
	unit     *fileUnit
}

type scope struct {
	parent    *scope
	unit      *fileUnit
	names     map[string]*binding
	thisSet   bool
	thisClass *declInfo
}

func (s *scope) child() *scope {
	return &scope{parent: s, unit: s.unit, names: map[string]*binding{}}
}

func (s *scope) lookup(name string) *binding {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.names[name]; ok {
			return b
		}
	}
	return nil
}

func (s *scope) bindIfAbsent(name string, b *binding) {
	if _, ok := s.names[name]; !ok {
		s.names[name] = b
	}
}

// this returns the class `this` refers to, or nil when unknown.
func (s *scope) this() *declInfo {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.thisSet {
			return cur.thisClass
		}
	}
	return nil
}

type usageKey struct {
	ref source.DeclRef
	loc symbols.Location
}

// resolver walks every file once and records exact usages of members and functions.
type resolver struct {
	m      *Model
	usages map[source.DeclRef][]source.UsageSite
	seen   map[usageKey]bool
}

func (m *Model) buildUsageIndex() map[source.DeclRef][]source.UsageSite {
	r := &resolver{
		m:      m,
		usages: map[source.DeclRef][]source.UsageSite{},
		seen:   map[usageKey]bool{},
	}
	for _, path := range m.files {
		u := m.units[path]
		if u.err != nil || u.tree == nil {
			continue
		}
		r.walkFile(u)
	}
	return r.usages
}

func (r *resolver) walkFile(u *fileUnit) {
	root := u.tree.RootNode()
	sc := &scope{unit: u, names: map[string]*binding{}, thisSet: true}
	for name, d := range u.top {
		sc.names[name] = &binding{decl: d, unit: u}
	}
	for i := range u.imports {
		imp := &u.imports[i]
		sc.bindIfAbsent(imp.Name, &binding{imp: imp, unit: u})
	}
	r.hoist(root, sc)
	r.walkChildren(root, sc)
}

func (r *resolver) record(ref source.DeclRef, u *fileUnit, n *tree_sitter.Node) {
	loc := u.loc(n)
	key := usageKey{ref: ref, loc: loc}
	if r.seen[key] {
		return
	}
	r.seen[key] = true
	r.usages[ref] = append(r.usages[ref], source.UsageSite{
		Location: loc,
		Line:     u.lineText(loc.Line),
		Syntax:   describe(n),
	})
}

func (r *resolver) walkChildren(n *tree_sitter.Node, sc *scope) {
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		if ch := n.Child(i); ch != nil {
			r.walk(ch, sc)
		}
	}
}

func (r *resolver) walk(n *tree_sitter.Node, sc *scope) {
	switch n.Kind() {
	case "comment", "import_statement":
		return
	case "statement_block", "class_static_block":
		inner := sc.child()
		r.hoist(n, inner)
		r.walkChildren(n, inner)
		return
	case "function_declaration", "generator_function_declaration", "function_expression",
		"function", "generator_function", "arrow_function", "method_definition":
		r.walkFunction(n, sc)
		return
	case "class_declaration", "abstract_class_declaration", "class":
		r.walkClass(n, sc)
		return
	case "for_statement":
		inner := sc.child()
		if init := n.ChildByFieldName("initializer"); init != nil {
			r.hoistDecl(init, inner)
		}
		r.walkChildren(n, inner)
		return
	case "for_in_statement":
		r.walkForIn(n, sc)
		return
	case "catch_clause":
		inner := sc.child()
		if p := n.ChildByFieldName("parameter"); p != nil {
			r.bindPattern(p, inner)
		}
		r.walkChildren(n, inner)
		return
	case "variable_declarator":
		for _, field := range []string{"type", "value"} {
			if ch := n.ChildByFieldName(field); ch != nil {
				r.walk(ch, sc)
			}
		}
		if name := n.ChildByFieldName("name"); name != nil && name.Kind() != "identifier" {
			r.walk(name, sc)
		}
		return
	case "member_expression":
		r.visitMember(n, sc)
		return
	case "new_expression":
		r.visitNew(n, sc)
	case "call_expression":
		if fn := n.ChildByFieldName("function"); fn != nil && fn.Kind() == "super" {
			r.visitSuperCall(fn, sc)
		}
	case "identifier", "shorthand_property_identifier":
		r.visitIdentifier(n, sc)
		return
	}
	r.walkChildren(n, sc)
}

// hoist binds the declarations directly inside a block before walking it.
func (r *resolver) hoist(block *tree_sitter.Node, sc *scope) {
	for _, ch := range treesitter.NamedChildren(block) {
		r.hoistDecl(ch, sc)
	}
}

func (r *resolver) hoistDecl(n *tree_sitter.Node, sc *scope) {
	u := sc.unit
	switch n.Kind() {
	case "export_statement":
		if d := n.ChildByFieldName("declaration"); d != nil {
			r.hoistDecl(d, sc)
		}
	case "lexical_declaration", "variable_declaration":
		for _, decl := range treesitter.ChildrenByKind(n, "variable_declarator") {
			name := decl.ChildByFieldName("name")
			if name == nil {
				continue
			}
			if name.Kind() != "identifier" {
				r.bindPattern(name, sc)
				continue
			}
			sc.bindIfAbsent(u.text(name), &binding{
				typeNode: decl.ChildByFieldName("type"),
				value:    decl.ChildByFieldName("value"),
				scope:    sc,
				unit:     u,
			})
		}
	case "function_declaration", "generator_function_declaration", "function_signature",
		"class_declaration", "abstract_class_declaration", "enum_declaration",
		"interface_declaration", "type_alias_declaration":
		name := u.text(n.ChildByFieldName("name"))
		if name == "" {
			return
		}
		b := &binding{unit: u}
		if _, cataloged := u.declByStart[n.StartByte()]; cataloged {
			b.decl = u.top[name]
		}
		sc.bindIfAbsent(name, b)
	}
}

// bindPattern binds every name in a destructuring pattern with no known type.
func (r *resolver) bindPattern(p *tree_sitter.Node, sc *scope) {
	treesitter.Walk(p, func(n *tree_sitter.Node) bool {
		switch n.Kind() {
		case "identifier", "shorthand_property_identifier_pattern":
			sc.names[sc.unit.text(n)] = &binding{unit: sc.unit}
			return false
		case "type_annotation", "object_assignment_pattern":
			return n.Kind() == "object_assignment_pattern"
		}
		return true
	})
}

func (r *resolver) bindParam(p *tree_sitter.Node, sc *scope) {
	u := sc.unit
	switch p.Kind() {
	case "required_parameter", "optional_parameter":
		pat := p.ChildByFieldName("pattern")
		if pat == nil || pat.Kind() == "this" {
			return
		}
		if pat.Kind() != "identifier" {
			r.bindPattern(pat, sc)
			return
		}
		sc.names[u.text(pat)] = &binding{
			typeNode: p.ChildByFieldName("type"),
			value:    p.ChildByFieldName("value"),
			scope:    sc.parent,
			unit:     u,
		}
	case "identifier":
		sc.names[u.text(p)] = &binding{unit: u}
	case "assignment_pattern":
		left := p.ChildByFieldName("left")
		if left != nil && left.Kind() == "identifier" {
			sc.names[u.text(left)] = &binding{value: p.ChildByFieldName("right"), scope: sc.parent, unit: u}
		} else if left != nil {
			r.bindPattern(left, sc)
		}
	default:
		r.bindPattern(p, sc)
	}
}

func (r *resolver) walkFunction(n *tree_sitter.Node, sc *scope) {
	inner := sc.child()
	switch n.Kind() {
	case "arrow_function":
	case "method_definition":
		inner.thisSet = true
		inner.thisClass = sc.this()
	default:
		inner.thisSet = true
	}
	if n.Kind() == "function_expression" || n.Kind() == "function" {
		if name := n.ChildByFieldName("name"); name != nil {
			inner.names[sc.unit.text(name)] = &binding{unit: sc.unit}
		}
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		for _, p := range treesitter.NamedChildren(params) {
			r.bindParam(p, inner)
		}
	}
	if single := n.ChildByFieldName("parameter"); single != nil {
		r.bindParam(single, inner)
	}

	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		ch := n.Child(i)
		if ch == nil {
			continue
		}
		switch {
		case treesitter.IsField(n, "name", ch), treesitter.IsField(n, "return_type", ch),
			treesitter.IsField(n, "type_parameters", ch):
			continue
		case treesitter.IsField(n, "parameters", ch), treesitter.IsField(n, "parameter", ch),
			treesitter.IsField(n, "body", ch):
			r.walk(ch, inner)
		default:
			r.walk(ch, sc)
		}
	}
}

func (r *resolver) walkClass(n *tree_sitter.Node, sc *scope) {
	d := sc.unit.declByStart[n.StartByte()]
	body := n.ChildByFieldName("body")
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		ch := n.Child(i)
		if ch == nil || treesitter.IsField(n, "name", ch) || treesitter.Same(ch, body) {
			continue
		}
		r.walk(ch, sc)
	}
	if body == nil {
		return
	}
	inner := sc.child()
	inner.thisSet = true
	inner.thisClass = d
	for _, m := range treesitter.NamedChildren(body) {
		r.walk(m, inner)
	}
}

func (r *resolver) walkForIn(n *tree_sitter.Node, sc *scope) {
	inner := sc.child()
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	declares := n.ChildByFieldName("kind") != nil
	if left != nil && declares {
		if left.Kind() == "identifier" {
			b := &binding{unit: sc.unit}
			if op := n.ChildByFieldName("operator"); op != nil && sc.unit.text(op) == "of" {
				b.value, b.elemOf, b.scope = right, true, sc
			}
			inner.names[sc.unit.text(left)] = b
		} else {
			r.bindPattern(left, inner)
		}
	} else if left != nil {
		r.walk(left, sc)
	}
	if right != nil {
		r.walk(right, sc)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		r.walk(body, inner)
	}
}

func (r *resolver) visitIdentifier(n *tree_sitter.Node, sc *scope) {
	if parent := n.Parent(); parent != nil && isDeclarationName(n, parent) {
		return
	}
	d := r.m.bindingDecl(sc.lookup(sc.unit.text(n)))
	if d != nil && d.kind() == symbols.KindFunction {
		r.record(d.decl.Ref, sc.unit, n)
	}
}

func (r *resolver) visitMember(n *tree_sitter.Node, sc *scope) {
	obj := n.ChildByFieldName("object")
	prop := n.ChildByFieldName("property")
	if prop != nil && (prop.Kind() == "property_identifier" || prop.Kind() == "private_property_identifier") {
		name := sc.unit.text(prop)
		if t := r.m.typeOf(obj, sc, 0); t != nil {
			switch {
			case t.ns != nil:
				if d := r.m.exportedDecl(t.ns, name, 0); d != nil && d.kind() == symbols.KindFunction {
					r.record(d.decl.Ref, sc.unit, prop)
				}
			case t.decl != nil:
				if mi := r.m.lookupMember(t.decl, name); mi != nil {
					r.record(mi.decl.Ref, sc.unit, prop)
				}
			}
		}
	}
	if obj != nil {
		r.walk(obj, sc)
	}
}

func (r *resolver) visitNew(n *tree_sitter.Node, sc *scope) {
	ctor := n.ChildByFieldName("constructor")
	if ctor == nil {
		return
	}
	t := r.m.typeOf(ctor, sc, 0)
	if t == nil || t.decl == nil || t.decl.kind() != symbols.KindClass {
		return
	}
	mi, ok := t.decl.members["constructor"]
	if !ok {
		return
	}
	site := ctor
	if ctor.Kind() == "member_expression" {
		site = ctor.ChildByFieldName("property")
	}
	if site != nil {
		r.record(mi.decl.Ref, sc.unit, site)
	}
}

// visitSuperCall records super(...) as a usage of the base constructor.
func (r *resolver) visitSuperCall(superNode *tree_sitter.Node, sc *scope) {
	this := sc.this()
	if this == nil {
		return
	}
	for _, base := range r.m.hier.bases(this) {
		if mi, ok := base.members["constructor"]; ok {
			r.record(mi.decl.Ref, sc.unit, superNode)
			return
		}
	}
}

// bindingDecl returns the top-level declaration a binding names, following imports.
func (m *Model) bindingDecl(b *binding) *declInfo {
	if b == nil {
		return nil
	}
	if b.decl != nil {
		return b.decl
	}
	if b.imp != nil {
		d, _ := m.resolveImport(b.unit, b.imp, 0)
		return d
	}
	return nil
}

func (m *Model) bindingType(b *binding, depth int) *typeRef {
	if b == nil || depth > maxResolveDepth {
		return nil
	}
	switch {
	case b.decl != nil:
		return m.declType(b.decl, depth)
	case b.imp != nil:
		d, ns := m.resolveImport(b.unit, b.imp, 0)
		if ns != nil {
			return &typeRef{ns: ns}
		}
		return m.declType(d, depth)
	case b.typeNode != nil:
		return m.typeFromNode(b.unit, b.typeNode, depth+1)
	case b.value != nil && b.scope != nil:
		t := m.typeOf(b.value, b.scope, depth+1)
		if b.elemOf {
			if t == nil {
				return nil
			}
			return t.elem
		}
		return t
	}
	return nil
}

// declType is the type a declaration name denotes when used as a value or type.
func (m *Model) declType(d *declInfo, depth int) *typeRef {
	if d == nil {
		return nil
	}
	switch d.kind() {
	case symbols.KindClass, symbols.KindInterface, symbols.KindEnum:
		return &typeRef{decl: d}
	case symbols.KindTypeAlias:
		return m.typeFromNode(d.unit, d.aliasValue, depth+1)
	}
	return nil
}

// typeOf infers the type of an expression.
func (m *Model) typeOf(n *tree_sitter.Node, sc *scope, depth int) *typeRef {
	if n == nil || depth > maxResolveDepth {
		return nil
	}
	u := sc.unit
	switch n.Kind() {
	case "this":
		if d := sc.this(); d != nil {
			return &typeRef{decl: d}
		}
	case "super":
		if d := sc.this(); d != nil {
			if bases := m.hier.bases(d); len(bases) > 0 {
				return &typeRef{decl: bases[0]}
			}
		}
	case "identifier":
		return m.bindingType(sc.lookup(u.text(n)), depth+1)
	case "new_expression":
		t := m.typeOf(n.ChildByFieldName("constructor"), sc, depth+1)
		if t != nil && t.decl != nil && t.decl.kind() == symbols.KindClass {
			return t
		}
	case "member_expression":
		obj := m.typeOf(n.ChildByFieldName("object"), sc, depth+1)
		name := u.text(n.ChildByFieldName("property"))
		if obj == nil {
			return nil
		}
		if obj.ns != nil {
			return m.declType(m.exportedDecl(obj.ns, name, 0), depth+1)
		}
		mi := m.lookupMember(obj.decl, name)
		if mi == nil || mi.decl.Kind == symbols.KindMethod {
			return nil
		}
		return m.typeFromNode(mi.owner.unit, mi.typeNode, depth+1)
	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return nil
		}
		switch fn.Kind() {
		case "member_expression":
			obj := m.typeOf(fn.ChildByFieldName("object"), sc, depth+1)
			if obj == nil {
				return nil
			}
			name := u.text(fn.ChildByFieldName("property"))
			if obj.ns != nil {
				d := m.exportedDecl(obj.ns, name, 0)
				if d != nil && d.kind() == symbols.KindFunction {
					return m.typeFromNode(d.unit, d.returnType, depth+1)
				}
				return nil
			}
			if mi := m.lookupMember(obj.decl, name); mi != nil && mi.decl.Kind == symbols.KindMethod {
				return m.typeFromNode(mi.owner.unit, mi.typeNode, depth+1)
			}
		case "identifier":
			d := m.bindingDecl(sc.lookup(u.text(fn)))
			if d != nil && d.kind() == symbols.KindFunction {
				return m.typeFromNode(d.unit, d.returnType, depth+1)
			}
		}
	case "await_expression":
		t := m.typeOf(n.NamedChild(0), sc, depth+1)
		if t != nil && t.awaited != nil {
			return t.awaited
		}
		return t
	case "parenthesized_expression", "non_null_expression", "satisfies_expression":
		return m.typeOf(n.NamedChild(0), sc, depth+1)
	case "as_expression":
		if count := n.NamedChildCount(); count > 1 {
			return m.typeFromNode(u, n.NamedChild(count-1), depth+1)
		}
	case "type_assertion":
		if args := treesitter.FindChildByKind(n, "type_arguments"); args != nil {
			return m.typeFromNode(u, args.NamedChild(0), depth+1)
		}
	case "subscript_expression":
		if t := m.typeOf(n.ChildByFieldName("object"), sc, depth+1); t != nil {
			return t.elem
		}
	}
	return nil
}

// typeFromNode interprets a type annotation or type expression.
func (m *Model) typeFromNode(u *fileUnit, n *tree_sitter.Node, depth int) *typeRef {
	if n == nil || depth > maxResolveDepth {
		return nil
	}
	switch n.Kind() {
	case "type_annotation", "opt_type_annotation", "parenthesized_type", "readonly_type":
		if count := n.NamedChildCount(); count > 0 {
			return m.typeFromNode(u, n.NamedChild(count-1), depth+1)
		}
	case "type_identifier", "identifier":
		return m.declType(m.resolveTypeName(u, u.text(n)), depth+1)
	case "nested_type_identifier":
		return m.declType(m.qualifiedDecl(u, n.ChildByFieldName("module"), u.text(n.ChildByFieldName("name"))), depth+1)
	case "generic_type":
		name := n.ChildByFieldName("name")
		var first *tree_sitter.Node
		if args := n.ChildByFieldName("type_arguments"); args != nil {
			first = args.NamedChild(0)
		}
		switch u.text(name) {
		case "Promise", "PromiseLike":
			if inner := m.typeFromNode(u, first, depth+1); inner != nil {
				return &typeRef{awaited: inner}
			}
			return nil
		case "Array", "ReadonlyArray":
			if inner := m.typeFromNode(u, first, depth+1); inner != nil {
				return &typeRef{elem: inner}
			}
			return nil
		}
		return m.typeFromNode(u, name, depth+1)
	case "array_type":
		if inner := m.typeFromNode(u, n.NamedChild(0), depth+1); inner != nil {
			return &typeRef{elem: inner}
		}
	case "union_type":
		var members []*tree_sitter.Node
		flattenUnion(u, n, &members)
		if len(members) == 1 {
			return m.typeFromNode(u, members[0], depth+1)
		}
	}
	return nil
}

// flattenUnion collects the non-nullish members of a union type.
func flattenUnion(u *fileUnit, n *tree_sitter.Node, out *[]*tree_sitter.Node) {
	for _, ch := range treesitter.NamedChildren(n) {
		if ch.Kind() == "union_type" {
			flattenUnion(u, ch, out)
			continue
		}
		switch u.text(ch) {
		case "null", "undefined", "void":
			continue
		}
		*out = append(*out, ch)
	}
}
