/*
Package resolve decides, per type and per method, whether a symbol
qualifies for script exposure.

A TypeDef is eligible iff it carries the reflection marker, is exported
from its module root and every generic parameter is bound to an eligible
type (unconstrained generics are always ineligible; this is a design
limitation, not a bug). A method on an eligible type is eligible iff its
receiver form is supported and every parameter and return reference
resolves to an eligible type or an allow-listed primitive kind.

Ineligible members are dropped from the binding with an accumulated
warning, never an error: partial binding of a type is expected. A type
with zero eligible methods is still emitted so script code can receive
and pass values of it.
*/
package resolve

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/kestrel-engine/bindgen/ir"
)

var (
	ErrNoReflectMarker      = errors.New("missing reflection marker")
	ErrNotExported          = errors.New("not exported from module root")
	ErrUnresolvedRef        = errors.New("unresolved type reference")
	ErrAmbiguousRef         = errors.New("ambiguous type reference")
	ErrUnconstrainedGeneric = errors.New("unconstrained generic parameter")
	ErrIneligibleRef        = errors.New("reference to ineligible type")
	ErrUnsupportedReceiver  = errors.New("unsupported receiver form")
	ErrUnknownPrimitive     = errors.New("primitive kind not in allow-list")
)

// defaultPrimitives is the fixed allow-list of primitive kinds usable in
// method signatures and generic bindings without resolution. The config
// layer may extend it.
var defaultPrimitives = []string{
	"bool",
	"int", "int8", "int16", "int32", "int64",
	"uint", "uint8", "uint16", "uint32", "uint64",
	"float32", "float64",
	"string", "byte", "rune",
}

// Index resolves TypeRefs to TypeDefs across all loaded modules.
// A reference must resolve to exactly one TypeDef; anything else is an
// error the caller converts into ineligibility.
type Index struct {
	byModule map[string]map[string]*ir.TypeDef
	byName   map[string][]*ir.TypeDef
}

func NewIndex(mods []*ir.Module) *Index {
	ix := &Index{
		byModule: map[string]map[string]*ir.TypeDef{},
		byName:   map[string][]*ir.TypeDef{},
	}
	for _, m := range mods {
		types := make(map[string]*ir.TypeDef, len(m.Types))
		for _, t := range m.Types {
			types[t.Name] = t
			ix.byName[t.Name] = append(ix.byName[t.Name], t)
		}
		ix.byModule[m.Name] = types
	}
	return ix
}

// Lookup resolves ref to its single defining TypeDef.
func (ix *Index) Lookup(ref ir.TypeRef) (*ir.TypeDef, error) {
	if ref.IsZero() || ref.IsPrimitive() {
		panic("programmer error: Lookup requires a named type reference")
	}
	if ref.Module != "" {
		td, ok := ix.byModule[ref.Module][ref.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnresolvedRef, ref)
		}
		return td, nil
	}
	switch cands := ix.byName[ref.Name]; len(cands) {
	case 0:
		return nil, fmt.Errorf("%w: %v", ErrUnresolvedRef, ref)
	case 1:
		return cands[0], nil
	default:
		return nil, fmt.Errorf("%w: %v (defined in %v modules)", ErrAmbiguousRef, ref, len(cands))
	}
}

type typeKey struct {
	module, name string
}

// Resolver computes and memoizes eligibility. All type-level eligibility
// is computed up front in [New], so [Resolver.Resolve] only reads shared
// state and is safe to call concurrently for different modules.
type Resolver struct {
	ix     *Index
	prims  map[string]struct{}
	state  map[typeKey]bool
	reason map[typeKey]error // why an ineligible type was rejected
}

// New builds a Resolver over mods and precomputes eligibility for every
// type. extraPrims extends the primitive allow-list.
//
// Eligibility is computed in two passes. The first checks each type's
// local conditions (marker, visibility, unbound or unresolvable generic
// bindings). The second propagates ineligibility through named generic
// bindings until a fixed point: a type bound to an ineligible type
// becomes ineligible itself, and that may poison further types, no
// matter how the bindings cycle.
func New(mods []*ir.Module, extraPrims ...string) *Resolver {
	r := &Resolver{
		ix:     NewIndex(mods),
		prims:  map[string]struct{}{},
		state:  map[typeKey]bool{},
		reason: map[typeKey]error{},
	}
	for _, p := range defaultPrimitives {
		r.prims[p] = struct{}{}
	}
	for _, p := range extraPrims {
		r.prims[p] = struct{}{}
	}

	for _, m := range mods {
		for _, t := range m.Types {
			key := typeKey{t.Module, t.Name}
			ok, reason := r.checkLocal(t)
			r.state[key] = ok
			if reason != nil {
				r.reason[key] = reason
			}
		}
	}

	// A pass only ever flips types from eligible to ineligible, so the
	// loop terminates.
	for changed := true; changed; {
		changed = false
		for _, m := range mods {
			for _, t := range m.Types {
				key := typeKey{t.Module, t.Name}
				if !r.state[key] {
					continue
				}
				if err := r.bindingsEligible(t); err != nil {
					r.state[key] = false
					r.reason[key] = err
					changed = true
				}
			}
		}
	}
	return r
}

// checkLocal verifies the conditions that don't depend on another
// type's eligibility.
func (r *Resolver) checkLocal(td *ir.TypeDef) (bool, error) {
	if !td.Reflect {
		return false, ErrNoReflectMarker
	}
	if !td.Exported {
		return false, ErrNotExported
	}
	for _, g := range td.Generics {
		if g.Binding.IsZero() {
			return false, fmt.Errorf("%w: %v", ErrUnconstrainedGeneric, g.Name)
		}
		if g.Binding.IsPrimitive() {
			if _, ok := r.prims[g.Binding.Prim]; !ok {
				return false, fmt.Errorf("generic parameter %v: %w: %v", g.Name, ErrUnknownPrimitive, g.Binding.Prim)
			}
			continue
		}
		if _, err := r.ix.Lookup(g.Binding); err != nil {
			return false, fmt.Errorf("generic parameter %v: %w", g.Name, err)
		}
	}
	return true, nil
}

// bindingsEligible re-checks the named generic bindings of a type whose
// local conditions already passed.
func (r *Resolver) bindingsEligible(td *ir.TypeDef) error {
	for _, g := range td.Generics {
		if g.Binding.IsPrimitive() {
			continue
		}
		if err := r.refEligible(g.Binding); err != nil {
			return fmt.Errorf("generic parameter %v: %w", g.Name, err)
		}
	}
	return nil
}

// refEligible reports whether a reference may appear in an eligible
// signature: an allow-listed primitive kind or an eligible TypeDef.
func (r *Resolver) refEligible(ref ir.TypeRef) error {
	if ref.IsPrimitive() {
		if _, ok := r.prims[ref.Prim]; !ok {
			return fmt.Errorf("%w: %v", ErrUnknownPrimitive, ref.Prim)
		}
		return nil
	}
	td, err := r.ix.Lookup(ref)
	if err != nil {
		return err
	}
	if !r.state[typeKey{td.Module, td.Name}] {
		return fmt.Errorf("%w: %v", ErrIneligibleRef, ref)
	}
	return nil
}

func (r *Resolver) methodEligible(m *ir.Method) error {
	if !m.Receiver.Supported() {
		return ErrUnsupportedReceiver
	}
	for i, p := range m.Params {
		if err := r.refEligible(p); err != nil {
			return fmt.Errorf("parameter %v: %w", i, err)
		}
	}
	if !m.Return.IsZero() {
		if err := r.refEligible(m.Return); err != nil {
			return fmt.Errorf("return: %w", err)
		}
	}
	return nil
}

// Resolve returns an annotated deep copy of mod with every eligibility
// flag set, plus accumulated per-symbol warnings. Warnings never indicate
// run failure; a *multierror.Error (or nil) is returned.
//
// Resolve is idempotent: resolving its own output again changes nothing,
// because eligibility depends only on metadata fields Resolve never
// touches.
func (r *Resolver) Resolve(mod *ir.Module) (*ir.Module, error) {
	var warns *multierror.Error
	res := mod.Clone()
	for _, td := range res.Types {
		key := typeKey{td.Module, td.Name}
		td.Eligible = r.state[key]
		if !td.Eligible {
			// Types without the marker are simply not part of the
			// script API; everything else was meant to be exposed
			// and deserves a warning.
			if reason := r.reason[key]; reason != nil && !errors.Is(reason, ErrNoReflectMarker) {
				warns = multierror.Append(warns, fmt.Errorf("%v/%v: excluded: %w", mod.Name, td.Name, reason))
			}
			continue
		}
		for i := range td.Generics {
			r.qualify(&td.Generics[i].Binding)
		}
		for _, m := range td.Methods {
			if err := r.methodEligible(m); err != nil {
				warns = multierror.Append(warns, fmt.Errorf("%v/%v.%v: dropped: %w", mod.Name, td.Name, m.Name, err))
				continue
			}
			m.Eligible = true
			for i := range m.Params {
				r.qualify(&m.Params[i])
			}
			r.qualify(&m.Return)
		}
		for _, f := range td.Fields {
			if f.Ignore {
				continue // explicit marker, no warning
			}
			if err := r.refEligible(f.Type); err != nil {
				warns = multierror.Append(warns, fmt.Errorf("%v/%v.%v: dropped: %w", mod.Name, td.Name, f.Name, err))
				continue
			}
			f.Eligible = true
			r.qualify(&f.Type)
		}
	}
	return res, warns.ErrorOrNil()
}

// qualify resolves an unqualified named reference to its (module, name)
// pair in place, completing lazy resolution. Only called on references
// that already passed eligibility, so Lookup cannot fail here.
func (r *Resolver) qualify(ref *ir.TypeRef) {
	if ref.IsZero() || ref.IsPrimitive() || ref.Module != "" {
		return
	}
	td, err := r.ix.Lookup(*ref)
	if err != nil {
		panic("programmer error: qualify called on unresolvable reference: " + ref.String())
	}
	ref.Module = td.Module
}

// EligibleTypes filters an annotated module down to its eligible types,
// in declaration order.
func EligibleTypes(mod *ir.Module) []*ir.TypeDef {
	var res []*ir.TypeDef
	for _, t := range mod.Types {
		if t.Eligible {
			res = append(res, t)
		}
	}
	return res
}
