/*
Package ir holds the intermediate representation of a binding run.

All entities are constructed fresh from symbol database metadata at the
start of a run and discarded at the end. Only [Fingerprint] values survive
across runs (via the incremental cache).
*/
package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Kind describes what sort of declaration a [TypeDef] is.
type Kind int

const (
	KindStruct Kind = iota
	KindEnum
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindOpaque:
		return "opaque"
	default:
		panic(fmt.Sprintf("invalid type kind: %d", int(k)))
	}
}

// ParseKind parses the symbol database's textual kind representation.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "struct":
		return KindStruct, true
	case "enum":
		return KindEnum, true
	case "opaque":
		return KindOpaque, true
	}
	return 0, false
}

// Receiver is the form a method binds its receiver with.
type Receiver int

const (
	RecvValue Receiver = iota
	RecvRef
	RecvMutRef
	RecvStatic
	// RecvUnsupported stands in for any other receiver form the symbol
	// database reports. Methods using it are dropped from bindings, not
	// treated as malformed metadata.
	RecvUnsupported
)

func (r Receiver) String() string {
	switch r {
	case RecvValue:
		return "value"
	case RecvRef:
		return "ref"
	case RecvMutRef:
		return "mut-ref"
	case RecvStatic:
		return "static"
	case RecvUnsupported:
		return "unsupported"
	default:
		panic(fmt.Sprintf("invalid receiver form: %d", int(r)))
	}
}

// Supported reports whether the receiver is one of the four forms the
// binding templates can express.
func (r Receiver) Supported() bool {
	return r == RecvValue || r == RecvRef || r == RecvMutRef || r == RecvStatic
}

// ParseReceiver parses the symbol database's textual receiver
// representation. Unknown forms parse to RecvUnsupported.
func ParseReceiver(s string) (Receiver, bool) {
	switch s {
	case "value":
		return RecvValue, true
	case "ref":
		return RecvRef, true
	case "mut-ref":
		return RecvMutRef, true
	case "static":
		return RecvStatic, true
	}
	return RecvUnsupported, false
}

// TypeRef is a lazily resolved reference to a TypeDef, possibly in another
// module, or to a primitive kind. It is never a direct pointer: resolution
// happens through an index so that dangling references degrade to
// ineligibility instead of crashing.
//
// Exactly one of Prim or Name is set in a valid reference. Module may be
// empty, in which case the reference resolves by name across all modules
// and must match exactly one TypeDef.
type TypeRef struct {
	Prim   string `json:"prim,omitempty"`
	Module string `json:"module,omitempty"`
	Name   string `json:"type,omitempty"`
}

// IsZero reports whether the reference is absent (e.g. a method without a
// return value).
func (r TypeRef) IsZero() bool {
	return r.Prim == "" && r.Name == ""
}

// IsPrimitive reports whether the reference names a primitive kind.
func (r TypeRef) IsPrimitive() bool {
	return r.Prim != ""
}

func (r TypeRef) String() string {
	if r.IsZero() {
		return "<none>"
	}
	if r.IsPrimitive() {
		return r.Prim
	}
	if r.Module == "" {
		return r.Name
	}
	return r.Module + "::" + r.Name
}

// GenericParam is a single generic parameter of a TypeDef, together with
// the concrete type it is bound to. An unbound (unconstrained) parameter
// has a zero Binding and always makes its TypeDef ineligible.
type GenericParam struct {
	Name    string  `json:"name"`
	Binding TypeRef `json:"binding"`
}

// Field is a reflected struct field.
type Field struct {
	Name string  `json:"name"`
	Type TypeRef `json:"type"`
	Doc  string  `json:"doc,omitempty"`
	// Carries the symbol database's reflect-ignore marker. Ignored
	// fields are dropped from bindings without a warning.
	Ignore bool `json:"ignore,omitempty"`

	// Computed by the eligibility resolver, never read from metadata.
	Eligible bool `json:"-"`
}

// Method is a callable bound to a TypeDef.
type Method struct {
	Name     string    `json:"name"`
	Receiver Receiver  `json:"-"`
	Params   []TypeRef `json:"params,omitempty"`
	// Zero Return means the method returns nothing.
	Return TypeRef `json:"return,omitempty"`
	Doc    string  `json:"doc,omitempty"`

	// Computed by the eligibility resolver, never read from metadata.
	Eligible bool `json:"-"`
}

// TypeDef is a single reflected type declaration.
type TypeDef struct {
	// Identifier of the module declaring the type.
	Module   string         `json:"-"`
	Name     string         `json:"name"`
	Kind     Kind           `json:"-"`
	Doc      string         `json:"doc,omitempty"`
	Reflect  bool           `json:"reflect,omitempty"`
	Exported bool           `json:"exported,omitempty"`
	Generics []GenericParam `json:"generics,omitempty"`
	Fields   []*Field       `json:"fields,omitempty"`
	Methods  []*Method      `json:"methods,omitempty"`

	// Computed by the eligibility resolver, never read from metadata.
	Eligible bool `json:"-"`
}

// Ref returns the fully qualified reference to the type itself.
func (t *TypeDef) Ref() TypeRef {
	return TypeRef{Module: t.Module, Name: t.Name}
}

// EligibleMethods returns the methods that survived eligibility
// resolution, in declaration order.
func (t *TypeDef) EligibleMethods() []*Method {
	var res []*Method
	for _, m := range t.Methods {
		if m.Eligible {
			res = append(res, m)
		}
	}
	return res
}

// EligibleFields returns the fields that survived eligibility resolution,
// in declaration order.
func (t *TypeDef) EligibleFields() []*Field {
	var res []*Field
	for _, f := range t.Fields {
		if f.Eligible {
			res = append(res, f)
		}
	}
	return res
}

// Module is one unit of the analyzed workspace ("crate" in compiler
// terms): an identifier, its reflected types and the identifiers of the
// modules it imports from.
type Module struct {
	// Name uniquely identifies the module within a run.
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	// Path is the import path generated code uses to reference the
	// module. Defaults to Name if the metadata leaves it empty.
	Path string `json:"path,omitempty"`
	// SelfHost marks the module hosting the script-support scaffolding.
	// Self-reference is a flag, not a dependency edge, so the dependency
	// graph stays a DAG.
	SelfHost bool `json:"self_host,omitempty"`
	// Deps never contains Name itself.
	Deps  []string   `json:"deps,omitempty"`
	Types []*TypeDef `json:"types,omitempty"`
}

// Type returns the TypeDef declared in this module under the given name,
// or nil.
func (m *Module) Type(name string) *TypeDef {
	for _, t := range m.Types {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Clone returns a deep copy. The eligibility resolver annotates copies,
// never its input.
func (m *Module) Clone() *Module {
	res := *m
	res.Deps = slices.Clone(m.Deps)
	res.Types = make([]*TypeDef, len(m.Types))
	for i, t := range m.Types {
		td := *t
		td.Generics = slices.Clone(t.Generics)
		td.Fields = make([]*Field, len(t.Fields))
		for j, f := range t.Fields {
			fd := *f
			td.Fields[j] = &fd
		}
		td.Methods = make([]*Method, len(t.Methods))
		for j, mt := range t.Methods {
			md := *mt
			md.Params = slices.Clone(mt.Params)
			td.Methods[j] = &md
		}
		res.Types[i] = &td
	}
	return &res
}

// ImportDecl is one "use"-style import of a generated binding module.
type ImportDecl struct {
	Alias string `json:"alias"`
	Path  string `json:"path"`
	// SelfSubstitute marks the fixed declaration emitted for the
	// self-host module in place of a self-import. The generated file
	// lives inside that module's own compilation unit, so a regular
	// import of it would not compile.
	SelfSubstitute bool `json:"self_substitute,omitempty"`
}

// BindingModule is the emission unit: one per input module, holding the
// final deduplicated import list and the ordered eligible types to render.
type BindingModule struct {
	Module  *Module
	Imports []ImportDecl
	// Eligible types in deterministic declaration order.
	Types []*TypeDef
}

// EligibleMethodCount counts eligible methods over all included types.
func (b *BindingModule) EligibleMethodCount() int {
	n := 0
	for _, t := range b.Types {
		n += len(t.EligibleMethods())
	}
	return n
}

// Empty reports whether the module ended up with zero eligible types and
// methods. Empty modules still render (so script code can observe the
// module), but the generator raises an empty-output warning.
func (b *BindingModule) Empty() bool {
	return len(b.Types) == 0
}

func writeRef(b *strings.Builder, r TypeRef) {
	b.WriteString(r.String())
	b.WriteByte(';')
}
