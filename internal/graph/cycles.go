package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/warden/internal/ir"
)

// RuleCycle is the rule ID of cycle findings.
const RuleCycle = "CYCLE001"

// DefaultMaxCyclesPerComponent caps enumeration inside one component.
const DefaultMaxCyclesPerComponent = 100

// Options tunes cycle detection.
type Options struct {
	// MaxCyclesPerComponent stops enumeration in a component after this
	// many cycles. Zero means DefaultMaxCyclesPerComponent.
	MaxCyclesPerComponent int
}

// Result is the outcome of cycle detection.
type Result struct {
	Cycles []ir.Cycle

	// Truncated is set when some component hit the enumeration cap.
	Truncated bool

	// Components counts the cyclic components found.
	Components int
}

// DetectCycles reports every elementary cycle of g with default options.
func DetectCycles(g *Graph) Result {
	return DetectCyclesWith(g, Options{})
}

// DetectCyclesWith reports the elementary cycles of g. Each cycle starts
// and ends at its smallest node; a self-loop is reported as [A, A].
// Cycles are ordered by path.
func DetectCyclesWith(g *Graph, opts Options) Result {
	limit := opts.MaxCyclesPerComponent
	if limit <= 0 {
		limit = DefaultMaxCyclesPerComponent
	}

	nodes, adj := g.adjacency()
	var res Result
	for _, scc := range tarjan(nodes, adj, nil) {
		if len(scc) == 1 && !slices.Contains(adj[scc[0]], scc[0]) {
			continue
		}
		res.Components++
		cycles, truncated := johnson(scc, adj, limit)
		res.Cycles = append(res.Cycles, cycles...)
		res.Truncated = res.Truncated || truncated
	}
	slices.SortFunc(res.Cycles, func(a, b ir.Cycle) int {
		return slices.Compare(a.Path, b.Path)
	})
	return res
}

// johnson enumerates the elementary cycles of one component. After the
// cycles through the smallest node are found, that node is dropped and
// the remainder is split into components again. It stops after limit
// cycles.
func johnson(scc []string, adj map[string][]string, limit int) ([]ir.Cycle, bool) {
	var (
		cycles  []ir.Cycle
		stack   []string
		member  map[string]bool
		blocked map[string]bool
		blockOf map[string]map[string]bool
		start   string
		full    bool
	)

	var unblock func(string)
	unblock = func(u string) {
		blocked[u] = false
		for w := range blockOf[u] {
			delete(blockOf[u], w)
			if blocked[w] {
				unblock(w)
			}
		}
	}

	var circuit func(string) bool
	circuit = func(v string) bool {
		found := false
		stack = append(stack, v)
		blocked[v] = true
		for _, w := range adj[v] {
			if full {
				break
			}
			if !member[w] {
				continue
			}
			if w == start {
				path := append(slices.Clone(stack), start)
				cycles = append(cycles, ir.Cycle{Path: path})
				found = true
				if len(cycles) >= limit {
					full = true
				}
			} else if !blocked[w] && circuit(w) {
				found = true
			}
		}
		if found {
			unblock(v)
		} else {
			for _, w := range adj[v] {
				if !member[w] {
					continue
				}
				if blockOf[w] == nil {
					blockOf[w] = make(map[string]bool)
				}
				blockOf[w][v] = true
			}
		}
		stack = stack[:len(stack)-1]
		return found
	}

	queue := [][]string{scc}
	for len(queue) > 0 && !full {
		comp := queue[0]
		queue = queue[1:]
		if len(comp) == 1 && !slices.Contains(adj[comp[0]], comp[0]) {
			continue
		}

		member = make(map[string]bool, len(comp))
		for _, n := range comp {
			member[n] = true
		}
		start = comp[0]
		blocked = make(map[string]bool)
		blockOf = make(map[string]map[string]bool)
		circuit(start)

		rest := comp[1:]
		if len(rest) == 0 {
			continue
		}
		delete(member, start)
		queue = append(queue, tarjan(rest, adj, member)...)
	}
	return cycles, full
}

// Finding converts a cycle into a finding located at file:line, the first
// reference of the cycle.
func Finding(c ir.Cycle, file string, line, col int) ir.Finding {
	f := ir.Finding{
		RuleID:     RuleCycle,
		Category:   ir.CategoryCycle,
		Severity:   ir.SeverityMedium,
		File:       file,
		Line:       line,
		Column:     col,
		Message:    fmt.Sprintf("import cycle: %s", c.String()),
		Suggestion: "break the cycle by moving shared code into a lower layer or inverting a dependency",
	}
	if len(c.Path) == 2 {
		f.Message = fmt.Sprintf("module %s imports itself", c.Path[0])
		f.Suggestion = "remove the self-import"
	}
	f.ID = ir.MustFindingID(f)
	return f
}

// Describe renders a cycle result for logs and text output.
func Describe(res Result) string {
	var b strings.Builder
	for _, c := range res.Cycles {
		b.WriteString(c.String())
		b.WriteByte('\n')
	}
	if res.Truncated {
		b.WriteString("(cycle enumeration truncated)\n")
	}
	return b.String()
}
