package tsmodel

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mesdx/xref/internal/source"
	"github.com/mesdx/xref/internal/treesitter"
)

// tokenKinds are the identifier-like node kinds reported by Identifiers.
var tokenKinds = map[string]bool{
	"identifier":                            true,
	"type_identifier":                       true,
	"property_identifier":                   true,
	"shorthand_property_identifier":         true,
	"shorthand_property_identifier_pattern": true,
}

// namedDeclKinds declare the node in their "name" field.
var namedDeclKinds = map[string]bool{
	"class_declaration":              true,
	"abstract_class_declaration":     true,
	"class":                          true,
	"interface_declaration":          true,
	"enum_declaration":               true,
	"type_alias_declaration":         true,
	"function_declaration":           true,
	"generator_function_declaration": true,
	"function_signature":             true,
	"function_expression":            true,
	"method_definition":              true,
	"method_signature":               true,
	"abstract_method_signature":      true,
	"public_field_definition":        true,
	"property_signature":             true,
	"variable_declarator":            true,
	"type_parameter":                 true,
	"enum_assignment":                true,
	"internal_module":                true,
	"module":                         true,
}

// typeWrapperKinds are type constructs a type name can be nested in.
var typeWrapperKinds = map[string]bool{
	"generic_type":           true,
	"type_arguments":         true,
	"union_type":             true,
	"intersection_type":      true,
	"array_type":             true,
	"parenthesized_type":     true,
	"nested_type_identifier": true,
	"tuple_type":             true,
	"readonly_type":          true,
	"optional_type":          true,
	"rest_type":              true,
	"lookup_type":            true,
	"index_type_query":       true,
	"type_query":             true,
	"conditional_type":       true,
	"infer_type":             true,
	"function_type":          true,
	"constructor_type":       true,
	"object_type":            true,
	"type_predicate":         true,
	"keyof_type":             true,
}

// typeTerminalKinds end a type position.
var typeTerminalKinds = map[string]bool{
	"type_annotation":           true,
	"opt_type_annotation":       true,
	"omitting_type_annotation":  true,
	"adding_type_annotation":    true,
	"asserts_annotation":        true,
	"type_predicate_annotation": true,
	"as_expression":             true,
	"satisfies_expression":      true,
	"type_assertion":            true,
	"type_alias_declaration":    true,
	"constraint":                true,
	"default_type":              true,
	"mapped_type_clause":        true,
}

// describe collects the syntactic facts about an identifier-like node.
func describe(n *tree_sitter.Node) source.Syntax {
	var s source.Syntax
	s.InImport = inImport(n)

	parent := n.Parent()
	if parent == nil {
		return s
	}
	pk := parent.Kind()

	if isDeclarationName(n, parent) {
		s.Declaration = true
		return s
	}

	// property side of a.b, and the expression the member expression sits in
	expr := n
	if pk == "member_expression" && treesitter.IsField(parent, "property", n) {
		s.MemberAccess = true
		expr = parent
	} else if pk == "nested_type_identifier" && treesitter.IsField(parent, "name", n) {
		expr = parent
	}
	ep := expr.Parent()
	epk := ""
	if ep != nil {
		epk = ep.Kind()
	}

	switch {
	case epk == "new_expression" && treesitter.IsField(ep, "constructor", expr):
		s.Instantiated = true
	case epk == "call_expression" && treesitter.IsField(ep, "function", expr):
		s.Called = true
	}

	s.TypePosition = inTypePosition(n)

	switch epk {
	case "extends_clause":
		s.Extends = true
	case "class_heritage":
		// JavaScript grammar: class_heritage holds the base expression directly
		s.Extends = true
	case "extends_type_clause":
		s.Extends = true
	case "implements_clause":
		s.Implements = true
	case "generic_type":
		if treesitter.IsField(ep, "name", expr) {
			if gp := ep.Parent(); gp != nil {
				switch gp.Kind() {
				case "extends_type_clause":
					s.Extends = true
				case "implements_clause":
					s.Implements = true
				}
			}
		}
	case "variable_declarator":
		s.VariableInit = treesitter.IsField(ep, "value", expr)
	case "required_parameter", "optional_parameter", "formal_parameters":
		s.Parameter = true
	case "assignment_pattern":
		if gp := ep.Parent(); gp != nil && gp.Kind() == "formal_parameters" {
			s.Parameter = true
		}
	case "public_field_definition", "field_definition", "property_signature":
		s.PropertyDecl = true
	}
	return s
}

// isDeclarationName reports whether n is the declaring name of its parent.
func isDeclarationName(n, parent *tree_sitter.Node) bool {
	pk := parent.Kind()
	if namedDeclKinds[pk] && treesitter.IsField(parent, "name", n) {
		return true
	}
	switch pk {
	case "field_definition":
		return treesitter.IsField(parent, "property", n)
	case "enum_body":
		return true
	case "required_parameter", "optional_parameter":
		// constructor parameter properties declare a class member
		return treesitter.IsField(parent, "pattern", n) &&
			(treesitter.HasChildKind(parent, "accessibility_modifier") || treesitter.HasChildKind(parent, "readonly"))
	}
	return false
}

// inTypePosition climbs through type constructs and reports whether n sits in a
// type annotation, cast, alias body or type argument list. Heritage entries are
// not type positions unless they are type arguments.
func inTypePosition(n *tree_sitter.Node) bool {
	sawTypeArgs := false
	cur := n
	for {
		p := cur.Parent()
		if p == nil {
			return false
		}
		k := p.Kind()
		if typeTerminalKinds[k] {
			switch k {
			case "type_alias_declaration":
				return !treesitter.IsField(p, "name", cur)
			case "as_expression", "satisfies_expression":
				// the operand comes first, the type last
				return !treesitter.Same(p.NamedChild(0), cur)
			case "type_assertion":
				return cur.Kind() == "type_arguments"
			}
			return true
		}
		if !typeWrapperKinds[k] {
			return sawTypeArgs
		}
		if k == "type_arguments" {
			sawTypeArgs = true
		}
		cur = p
	}
}

func inImport(n *tree_sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Kind() {
		case "import_statement":
			return true
		case "export_statement":
			return p.ChildByFieldName("source") != nil
		case "program", "statement_block", "class_body":
			return false
		}
	}
	return false
}
