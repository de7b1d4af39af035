package catalog

import (
	"unicode"
	"unicode/utf8"
)

// Denylist is a set of names never treated as symbol candidates.
type Denylist map[string]struct{}

// defaultDenied are ambient globals and built-in types of the JavaScript and
// TypeScript runtimes.
var defaultDenied = []string{
	"Array", "ArrayBuffer", "BigInt", "Boolean", "DataView", "Date", "Function",
	"Map", "Number", "Object", "Promise", "PromiseLike", "Proxy", "Reflect",
	"RegExp", "Set", "String", "Symbol", "WeakMap", "WeakRef", "WeakSet",
	"Int8Array", "Int16Array", "Int32Array", "Uint8Array", "Uint16Array",
	"Uint32Array", "Float32Array", "Float64Array", "BigInt64Array", "BigUint64Array",
	"JSON", "Math", "Intl", "Atomics", "NaN", "Infinity", "Console",
	"Error", "EvalError", "RangeError", "ReferenceError", "SyntaxError",
	"TypeError", "URIError", "AggregateError",
	"Partial", "Required", "Readonly", "Record", "Pick", "Omit", "Exclude",
	"Extract", "NonNullable", "ReturnType", "Parameters", "InstanceType",
	"Awaited", "ReadonlyArray", "Iterable", "Iterator", "AsyncIterable",
	"Buffer", "URL", "URLSearchParams", "Headers", "Request", "Response",
}

// DefaultDenylist returns a fresh copy of the built-in denylist.
func DefaultDenylist() Denylist {
	return NewDenylist(defaultDenied...)
}

func NewDenylist(names ...string) Denylist {
	d := make(Denylist, len(names))
	for _, n := range names {
		d[n] = struct{}{}
	}
	return d
}

// With returns a copy of d extended by names.
func (d Denylist) With(names ...string) Denylist {
	out := make(Denylist, len(d)+len(names))
	for n := range d {
		out[n] = struct{}{}
	}
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func (d Denylist) Contains(name string) bool {
	_, ok := d[name]
	return ok
}

// Candidate reports whether name could denote a cataloged class, interface,
// enum or type alias: it starts with an upper-case letter, is longer than one
// character and is not denied.
func Candidate(name string, deny Denylist) bool {
	if utf8.RuneCountInString(name) < 2 {
		return false
	}
	first, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsUpper(first) {
		return false
	}
	return !deny.Contains(name)
}
