/*
Package namespace computes the import declarations a generated binding
module needs to reference types from other modules.

One declaration is produced per referenced dependency module, ordered by
the global emission order so output is reproducible. The module's own
identifier never appears as an import; when the module is the self-host
(the one carrying the script-support scaffolding), a fixed substitute
declaration is emitted instead, because the generated file lives inside
that module's own compilation unit.

If two dependencies export a type under the same name, both imports are
kept and downstream references stay fully qualified; ambiguity surfaces
when the generated code is compiled, never here.
*/
package namespace

import (
	"slices"

	"github.com/kestrel-engine/bindgen/ir"
)

// SelfAlias is the alias under which the self-host module's scaffolding
// is referenced, both by external modules and by the substitute
// declaration inside the self-host module itself.
const SelfAlias = "scriptcore"

// Reconcile returns the ordered, duplicate-free import list for mod.
// ordered is the global emission order produced by the dependency
// orderer; imports follow it so that identical input yields identical
// declarations.
func Reconcile(mod *ir.Module, ordered []*ir.Module) []ir.ImportDecl {
	referenced := map[string]bool{}

	addRef := func(ref ir.TypeRef) {
		if ref.IsZero() || ref.IsPrimitive() {
			return
		}
		if ref.Module != "" && ref.Module != mod.Name {
			referenced[ref.Module] = true
		}
	}

	for _, td := range mod.Types {
		if !td.Eligible {
			continue
		}
		for _, g := range td.Generics {
			addRef(g.Binding)
		}
		for _, f := range td.Fields {
			if !f.Eligible {
				continue
			}
			addRef(f.Type)
		}
		for _, m := range td.Methods {
			if !m.Eligible {
				continue
			}
			for _, p := range m.Params {
				addRef(p)
			}
			addRef(m.Return)
		}
	}

	var res []ir.ImportDecl
	if mod.SelfHost {
		res = append(res, ir.ImportDecl{
			Alias:          SelfAlias,
			Path:           mod.Path,
			SelfSubstitute: true,
		})
	}
	for _, dep := range ordered {
		if dep.Name == mod.Name || !referenced[dep.Name] {
			continue
		}
		res = append(res, ir.ImportDecl{Alias: dep.Name, Path: dep.Path})
	}
	return res
}

// Ambiguities lists type names exported by more than one of mod's
// referenced dependencies. Nothing is dropped because of these (generated
// references are fully qualified); the generator surfaces them as
// warnings so a later rename isn't a surprise.
//
// ordered must hold resolved modules: only types that actually end up in
// bindings can collide.
func Ambiguities(imports []ir.ImportDecl, ordered []*ir.Module) []string {
	byName := map[string]*ir.Module{}
	for _, m := range ordered {
		byName[m.Name] = m
	}
	seen := map[string]int{}
	for _, imp := range imports {
		dep, ok := byName[imp.Alias]
		if !ok {
			continue
		}
		for _, t := range dep.Types {
			if t.Eligible {
				seen[t.Name]++
			}
		}
	}
	var res []string
	for name, n := range seen {
		if n > 1 {
			res = append(res, name)
		}
	}
	slices.Sort(res)
	return res
}
