package graph

import (
	"slices"
	"strings"
)

// StronglyConnected returns the strongly connected components of g using
// Tarjan's algorithm. Each component is sorted, and components are
// ordered by their smallest node.
func StronglyConnected(g *Graph) [][]string {
	nodes, adj := g.adjacency()
	return tarjan(nodes, adj, nil)
}

// tarjan computes the components of the subgraph induced by nodes. in,
// when set, reports node membership of that subgraph.
func tarjan(nodes []string, adj map[string][]string, in map[string]bool) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int, len(nodes))
		lowlink = make(map[string]int, len(nodes))
		onStack = make(map[string]bool, len(nodes))
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if in != nil && !in[w] {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is the root of a component: pop it off the stack.
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, v := range nodes {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}

	slices.SortFunc(sccs, func(a, b []string) int {
		return strings.Compare(a[0], b[0])
	})
	return sccs
}
