package xref

import (
	"github.com/mesdx/xref/internal/source"
	"github.com/mesdx/xref/internal/symbols"
)

type rule struct {
	ctx   symbols.Context
	match func(source.Syntax) bool
}

// tokenRules is the decision list for top-level symbols. The first match wins.
var tokenRules = []rule{
	{symbols.ContextInstantiation, func(s source.Syntax) bool { return s.Instantiated }},
	{symbols.ContextCall, func(s source.Syntax) bool { return s.Called }},
	{symbols.ContextTypeAnnotation, func(s source.Syntax) bool { return s.TypePosition }},
	{symbols.ContextInheritance, func(s source.Syntax) bool { return s.Extends }},
	{symbols.ContextImplementation, func(s source.Syntax) bool { return s.Implements }},
	{symbols.ContextVariableDeclaration, func(s source.Syntax) bool { return s.VariableInit }},
	{symbols.ContextParameter, func(s source.Syntax) bool { return s.Parameter }},
	{symbols.ContextPropertyDeclaration, func(s source.Syntax) bool { return s.PropertyDecl }},
}

// memberRules specializes the list for member access patterns.
var memberRules = []rule{
	{symbols.ContextInstantiation, func(s source.Syntax) bool { return s.Instantiated }},
	{symbols.ContextMethodCall, func(s source.Syntax) bool { return s.Called && s.MemberAccess }},
	{symbols.ContextCall, func(s source.Syntax) bool { return s.Called }},
	{symbols.ContextPropertyAccess, func(s source.Syntax) bool { return s.MemberAccess }},
	{symbols.ContextTypeAnnotation, func(s source.Syntax) bool { return s.TypePosition }},
	{symbols.ContextInheritance, func(s source.Syntax) bool { return s.Extends }},
	{symbols.ContextImplementation, func(s source.Syntax) bool { return s.Implements }},
	{symbols.ContextVariableDeclaration, func(s source.Syntax) bool { return s.VariableInit }},
	{symbols.ContextParameter, func(s source.Syntax) bool { return s.Parameter }},
	{symbols.ContextPropertyDeclaration, func(s source.Syntax) bool { return s.PropertyDecl }},
}

func classify(rules []rule, s source.Syntax) symbols.Context {
	for _, r := range rules {
		if r.match(s) {
			return r.ctx
		}
	}
	return symbols.ContextReference
}

// ClassifyToken maps the syntax of a symbol usage to its context.
func ClassifyToken(s source.Syntax) symbols.Context {
	return classify(tokenRules, s)
}

// ClassifyMember maps the syntax of a member usage to its context.
func ClassifyMember(s source.Syntax) symbols.Context {
	return classify(memberRules, s)
}
