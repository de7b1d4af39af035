package symbols

import "fmt"

// Kind represents the type of a cataloged declaration or member.
type Kind int

const (
	KindUnknown     Kind = 0
	KindClass       Kind = 1
	KindInterface   Kind = 2
	KindEnum        Kind = 3
	KindTypeAlias   Kind = 4
	KindFunction    Kind = 5
	KindMethod      Kind = 6
	KindProperty    Kind = 7
	KindConstructor Kind = 8
	KindExternal    Kind = 9
)

var kindNames = map[Kind]string{
	KindUnknown:     "unknown",
	KindClass:       "class",
	KindInterface:   "interface",
	KindEnum:        "enum",
	KindTypeAlias:   "type_alias",
	KindFunction:    "function",
	KindMethod:      "method",
	KindProperty:    "property",
	KindConstructor: "constructor",
	KindExternal:    "external",
}

var nameToKind map[string]Kind

func init() {
	nameToKind = make(map[string]Kind, len(kindNames))
	for k, v := range kindNames {
		nameToKind[v] = k
	}
	nameToContext = make(map[string]Context, len(contextNames))
	for c, v := range contextNames {
		nameToContext[v] = c
	}
}

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a string name to a Kind.
// Returns KindUnknown if the name is not recognized.
func ParseKind(name string) Kind {
	if k, ok := nameToKind[name]; ok {
		return k
	}
	return KindUnknown
}

// IsMember reports whether the kind names a class or interface member.
func (k Kind) IsMember() bool {
	return k == KindMethod || k == KindProperty || k == KindConstructor
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Context is the closed set of syntactic roles a reference can have.
type Context int

const (
	ContextReference Context = iota
	ContextInstantiation
	ContextMethodCall
	ContextCall
	ContextTypeAnnotation
	ContextInheritance
	ContextImplementation
	ContextPropertyAccess
	ContextVariableDeclaration
	ContextParameter
	ContextPropertyDeclaration
	ContextPolymorphicCall
)

var contextNames = map[Context]string{
	ContextReference:           "reference",
	ContextInstantiation:       "instantiation",
	ContextMethodCall:          "method_call",
	ContextCall:                "call",
	ContextTypeAnnotation:      "type_annotation",
	ContextInheritance:         "inheritance",
	ContextImplementation:      "implementation",
	ContextPropertyAccess:      "property_access",
	ContextVariableDeclaration: "variable_declaration",
	ContextParameter:           "parameter",
	ContextPropertyDeclaration: "property_declaration",
	ContextPolymorphicCall:     "polymorphic_call",
}

var nameToContext map[string]Context

// String returns the wire name of the context tag.
func (c Context) String() string {
	if s, ok := contextNames[c]; ok {
		return s
	}
	return contextNames[ContextReference]
}

// ParseContext converts a wire name to a Context.
// Unknown names fall back to ContextReference.
func ParseContext(name string) Context {
	if c, ok := nameToContext[name]; ok {
		return c
	}
	return ContextReference
}

// MarshalText implements encoding.TextMarshaler.
func (c Context) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Context) UnmarshalText(b []byte) error {
	*c = ParseContext(string(b))
	return nil
}

// Contexts returns every context tag in declaration order.
func Contexts() []Context {
	out := make([]Context, 0, len(contextNames))
	for c := ContextReference; c <= ContextPolymorphicCall; c++ {
		out = append(out, c)
	}
	return out
}
