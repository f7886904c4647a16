/*
Package depgraph orders workspace modules so that a module's bindings are
emitted only after every module it imports from.

An edge A→B means "A imports from B". Self-reference is carried as a flag
on [ir.Module], never as an edge, so the graph is expected to be a DAG.
Cycles are fatal: generated code uses plain forward imports with no
deferred-linkage mechanism, so there is nothing sensible to emit for a
cyclic group.
*/
package depgraph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kestrel-engine/bindgen/ir"
)

// CycleError reports a dependency cycle. Participants holds every module
// that lies on at least one cycle, sorted, so the user can break it.
type CycleError struct {
	Participants []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle between modules: %v",
		strings.Join(e.Participants, ", "))
}

// Order topologically sorts mods. Among modules whose dependencies are
// all satisfied, the lexicographically smallest identifier goes first,
// so the order is reproducible across runs with identical input.
//
// Dependencies on modules outside the given set are treated as already
// satisfied (they belong to the toolchain, not the workspace).
func Order(mods []*ir.Module) ([]*ir.Module, error) {
	byName := make(map[string]*ir.Module, len(mods))
	for _, m := range mods {
		byName[m.Name] = m
	}

	// Remaining in-set dependency count per module, and the inverse
	// edges used to release dependents.
	pending := make(map[string]int, len(mods))
	dependents := map[string][]string{}
	for _, m := range mods {
		n := 0
		for _, dep := range m.Deps {
			if _, ok := byName[dep]; !ok {
				continue
			}
			n++
			dependents[dep] = append(dependents[dep], m.Name)
		}
		pending[m.Name] = n
	}

	var ready []string
	for _, m := range mods {
		if pending[m.Name] == 0 {
			ready = append(ready, m.Name)
		}
	}
	slices.Sort(ready)

	res := make([]*ir.Module, 0, len(mods))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		res = append(res, byName[name])
		for _, dep := range dependents[name] {
			pending[dep]--
			if pending[dep] == 0 {
				i, _ := slices.BinarySearch(ready, dep)
				ready = slices.Insert(ready, i, dep)
			}
		}
	}

	if len(res) != len(mods) {
		return nil, &CycleError{Participants: cycleParticipants(mods, byName, pending)}
	}
	return res, nil
}

// cycleParticipants narrows the modules left over by the sort down to
// those actually on a cycle: a module is on a cycle iff it can reach
// itself through in-set edges.
func cycleParticipants(mods []*ir.Module, byName map[string]*ir.Module, pending map[string]int) []string {
	edges := func(name string) []string {
		var res []string
		for _, dep := range byName[name].Deps {
			if _, ok := byName[dep]; ok {
				res = append(res, dep)
			}
		}
		return res
	}

	var participants []string
	for _, m := range mods {
		if pending[m.Name] == 0 {
			continue // sorted fine, can't be cyclic
		}
		if _, ok := Reachable(edges(m.Name), edges)[m.Name]; ok {
			participants = append(participants, m.Name)
		}
	}
	slices.Sort(participants)
	return participants
}

// DOT renders the module dependency graph as graphviz DOT code, for
// debugging workspace layering.
func DOT(mods []*ir.Module) []byte {
	byName := make(map[string]*ir.Module, len(mods))
	names := make([]string, 0, len(mods))
	for _, m := range mods {
		byName[m.Name] = m
		names = append(names, m.Name)
	}
	slices.Sort(names)
	edges := func(name string) []string {
		var res []string
		for _, dep := range byName[name].Deps {
			if _, ok := byName[dep]; ok {
				res = append(res, dep)
			}
		}
		return res
	}
	return DOTCode(names, edges, "module_deps", "node[shape=box]",
		func(name string) string {
			if byName[name].SelfHost {
				return fmt.Sprintf("[label=%q, style=filled]", name)
			}
			return fmt.Sprintf("[label=%q]", name)
		})
}
