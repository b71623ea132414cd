// Package graph holds the module dependency graph and its cycle detector.
//
// Detection runs in two passes. Tarjan's algorithm splits the graph into
// strongly connected components; only components with more than one node,
// or a self-loop, can hold cycles. Johnson's algorithm then enumerates the
// elementary cycles inside each such component, up to a per-component cap
// so dense components cannot blow up the scan.
package graph

import (
	"fmt"
	"slices"
	"sync"
)

// Error reports reference data that could not be added to the graph.
type Error struct {
	From   string
	To     string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("graph edge %q -> %q: %s", e.From, e.To, e.Reason)
}

// Graph is a directed graph of module identifiers. It is safe for
// concurrent use; edges are deduplicated.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]struct{}
	edges map[string]map[string]struct{}
	count int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]struct{}),
		edges: make(map[string]map[string]struct{}),
	}
}

// AddNode adds a node without edges.
func (g *Graph) AddNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[id] = struct{}{}
}

// AddEdge adds the edge from -> to, creating both nodes.
func (g *Graph) AddEdge(from, to string) error {
	if from == "" || to == "" {
		return &Error{From: from, To: to, Reason: "empty node identifier"}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[from] = struct{}{}
	g.nodes[to] = struct{}{}
	out := g.edges[from]
	if out == nil {
		out = make(map[string]struct{})
		g.edges[from] = out
	}
	if _, ok := out[to]; !ok {
		out[to] = struct{}{}
		g.count++
	}
	return nil
}

// HasEdge reports whether from -> to exists.
func (g *Graph) HasEdge(from, to string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edges[from][to]
	return ok
}

// Nodes returns every node in sorted order.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Successors returns the targets of id's edges in sorted order.
func (g *Graph) Successors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.edges[id]))
	for n := range g.edges[id] {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.count
}

// adjacency snapshots the graph as sorted successor lists.
func (g *Graph) adjacency() ([]string, map[string][]string) {
	nodes := g.Nodes()
	adj := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		adj[n] = g.Successors(n)
	}
	return nodes, adj
}
