package namespace

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-engine/bindgen/ir"
)

func eligibleType(module, name string) *ir.TypeDef {
	return &ir.TypeDef{
		Module:   module,
		Name:     name,
		Kind:     ir.KindStruct,
		Reflect:  true,
		Exported: true,
		Eligible: true,
	}
}

func TestReconcile(t *testing.T) {
	core := &ir.Module{Name: "core", Path: "kestrel.dev/kestrel/core"}
	mathMod := &ir.Module{Name: "math", Path: "kestrel.dev/kestrel/math"}
	unused := &ir.Module{Name: "audio", Path: "kestrel.dev/kestrel/audio"}

	shape := eligibleType("geometry", "Shape")
	shape.Fields = []*ir.Field{
		{Name: "Origin", Type: ir.TypeRef{Module: "core", Name: "Point"}, Eligible: true},
		{Name: "Angle", Type: ir.TypeRef{Module: "math", Name: "Rad"}, Eligible: true},
		// Ineligible members contribute no imports.
		{Name: "dirty", Type: ir.TypeRef{Module: "audio", Name: "Buffer"}},
	}
	shape.Methods = []*ir.Method{
		{
			Name:     "Translate",
			Receiver: ir.RecvMutRef,
			Params:   []ir.TypeRef{{Module: "core", Name: "Point"}},
			Return:   ir.TypeRef{Module: "geometry", Name: "Shape"},
			Eligible: true,
		},
	}
	geometry := &ir.Module{
		Name:  "geometry",
		Path:  "kestrel.dev/kestrel/geometry",
		Deps:  []string{"core", "math"},
		Types: []*ir.TypeDef{shape},
	}

	ordered := []*ir.Module{core, mathMod, unused, geometry}
	imports := Reconcile(geometry, ordered)

	// One declaration per referenced dependency, in emission order; the
	// module itself never appears.
	require.Equal(t, []ir.ImportDecl{
		{Alias: "core", Path: "kestrel.dev/kestrel/core"},
		{Alias: "math", Path: "kestrel.dev/kestrel/math"},
	}, imports)
}

func TestReconcileSelfHost(t *testing.T) {
	transform := eligibleType("core", "Transform")
	core := &ir.Module{
		Name:     "core",
		Path:     "kestrel.dev/kestrel/core",
		SelfHost: true,
		Types:    []*ir.TypeDef{transform},
	}

	imports := Reconcile(core, []*ir.Module{core})

	// The self-host module gets the substitute declaration even with no
	// cross-module references, never a self-import.
	require.Equal(t, []ir.ImportDecl{
		{Alias: SelfAlias, Path: "kestrel.dev/kestrel/core", SelfSubstitute: true},
	}, imports)
}

func TestReconcileSelfHostFirst(t *testing.T) {
	base := &ir.Module{Name: "base", Path: "kestrel.dev/kestrel/base"}

	widget := eligibleType("core", "Widget")
	widget.Fields = []*ir.Field{
		{Name: "Anchor", Type: ir.TypeRef{Module: "base", Name: "Anchor"}, Eligible: true},
	}
	core := &ir.Module{
		Name:     "core",
		Path:     "kestrel.dev/kestrel/core",
		SelfHost: true,
		Deps:     []string{"base"},
		Types:    []*ir.TypeDef{widget},
	}

	imports := Reconcile(core, []*ir.Module{base, core})
	require.Len(t, imports, 2)
	require.True(t, imports[0].SelfSubstitute)
	require.Equal(t, "base", imports[1].Alias)
}

func TestReconcileEmptyModule(t *testing.T) {
	mod := &ir.Module{Name: "empty", Path: "kestrel.dev/kestrel/empty"}
	require.Empty(t, Reconcile(mod, []*ir.Module{mod}))
}

func TestAmbiguities(t *testing.T) {
	a := &ir.Module{Name: "a", Types: []*ir.TypeDef{
		eligibleType("a", "Point"),
		eligibleType("a", "Rect"),
	}}
	poisoned := eligibleType("b", "Rect")
	poisoned.Eligible = false
	b := &ir.Module{Name: "b", Types: []*ir.TypeDef{
		eligibleType("b", "Point"),
		// Ineligible types never reach bindings, so they can't collide.
		poisoned,
	}}
	ordered := []*ir.Module{a, b}

	imports := []ir.ImportDecl{
		{Alias: "a", Path: "a"},
		{Alias: "b", Path: "b"},
	}
	require.Equal(t, []string{"Point"}, Ambiguities(imports, ordered))

	// A single import can't be ambiguous.
	require.Empty(t, Ambiguities(imports[:1], ordered))

	// The substitute declaration is not a module alias.
	withSub := append([]ir.ImportDecl{{Alias: SelfAlias, Path: "x", SelfSubstitute: true}}, imports...)
	require.Equal(t, []string{"Point"}, Ambiguities(withSub, ordered))
}
