// Generic helpers for directed graphs, represented as a mapping from
// node keys to edges.

package depgraph

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
)

// Reachable returns the set of nodes reachable from roots (including the
// roots themselves).
func Reachable[K comparable](roots []K, edges func(K) []K) map[K]struct{} {
	reachable := map[K]struct{}{}
	var visit func(K)
	visit = func(node K) {
		if _, ok := reachable[node]; ok {
			return
		}
		reachable[node] = struct{}{}
		for _, next := range edges(node) {
			visit(next)
		}
	}
	for _, root := range roots {
		visit(root)
	}
	return reachable
}

// DOTCode generates graphviz DOT code to visualize a graph.
// nodes represents all nodes included in the graph.
// name is the name of the digraph, prelude DOT code inserted
// in the beginning, and nodeAttrs should return a string representing
// a node's attributes (in []).
func DOTCode[K comparable](nodes []K, edges func(K) []K, name, prelude string, nodeAttrs func(K) string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "digraph %v {\n", name)
	for ln := range strings.Lines(strings.TrimSpace(prelude)) {
		b.WriteString("  ")
		b.WriteString(strings.TrimRight(ln, "\n"))
		b.WriteByte('\n')
	}
	nodeIDs := map[K]int{}
	for id, key := range nodes {
		fmt.Fprintf(&b, "  %v", id)
		if attrs := nodeAttrs(key); attrs != "" {
			b.WriteByte(' ')
			b.WriteString(attrs)
		}
		b.WriteByte('\n')
		nodeIDs[key] = id
	}
	for id, key := range nodes {
		edgs := edges(key)
		edgs = slices.DeleteFunc(slices.Clone(edgs), func(k K) bool {
			_, ok := nodeIDs[k]
			return !ok
		})
		if len(edgs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %v -> {", id)
		for i, edg := range edgs {
			if i != 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%v", nodeIDs[edg])
		}
		fmt.Fprintf(&b, "}\n")
	}
	fmt.Fprintf(&b, "}\n")
	return b.Bytes()
}
