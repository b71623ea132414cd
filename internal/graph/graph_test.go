package graph

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/ir"
)

func build(t *testing.T, edges ...[2]string) *Graph {
	t.Helper()
	g := New()
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func paths(res Result) [][]string {
	out := make([][]string, len(res.Cycles))
	for i, c := range res.Cycles {
		out[i] = c.Path
	}
	return out
}

func TestThreeNodeCycle(t *testing.T) {
	g := build(t, [2]string{"A", "B"}, [2]string{"B", "C"}, [2]string{"C", "A"})
	res := DetectCycles(g)
	assert.Equal(t, [][]string{{"A", "B", "C", "A"}}, paths(res))
	assert.Equal(t, 1, res.Components)
	assert.False(t, res.Truncated)
}

func TestCycleStartsAtSmallestNode(t *testing.T) {
	g := build(t, [2]string{"C", "A"}, [2]string{"B", "C"}, [2]string{"A", "B"})
	assert.Equal(t, [][]string{{"A", "B", "C", "A"}}, paths(DetectCycles(g)))
}

func TestDAGHasNoCycles(t *testing.T) {
	g := build(t,
		[2]string{"routes", "services"},
		[2]string{"services", "database"},
		[2]string{"routes", "database"},
		[2]string{"database", "commons"},
	)
	res := DetectCycles(g)
	assert.Empty(t, res.Cycles)
	assert.Zero(t, res.Components)
}

func TestSelfLoop(t *testing.T) {
	g := build(t, [2]string{"A", "A"}, [2]string{"A", "B"})
	assert.Equal(t, [][]string{{"A", "A"}}, paths(DetectCycles(g)))
}

func TestEveryElementaryCycleIsReported(t *testing.T) {
	// Two cycles sharing A, plus an unrelated two-cycle.
	g := build(t,
		[2]string{"A", "B"}, [2]string{"B", "A"},
		[2]string{"A", "C"}, [2]string{"C", "D"}, [2]string{"D", "A"},
		[2]string{"X", "Y"}, [2]string{"Y", "X"},
		[2]string{"D", "Z"},
	)
	res := DetectCycles(g)
	assert.Equal(t, [][]string{
		{"A", "B", "A"},
		{"A", "C", "D", "A"},
		{"X", "Y", "X"},
	}, paths(res))
	assert.Equal(t, 2, res.Components)
}

func TestCompleteGraphCycles(t *testing.T) {
	// K4 has 20 elementary cycles: 6 of length 2, 8 of length 3, 6 of length 4.
	nodes := []string{"a", "b", "c", "d"}
	g := New()
	for _, from := range nodes {
		for _, to := range nodes {
			if from != to {
				require.NoError(t, g.AddEdge(from, to))
			}
		}
	}
	res := DetectCycles(g)
	assert.Len(t, res.Cycles, 20)
	for _, c := range res.Cycles {
		assert.Equal(t, c.Path[0], c.Path[len(c.Path)-1])
		seen := map[string]bool{}
		for _, n := range c.Path[:len(c.Path)-1] {
			assert.False(t, seen[n], "repeated node in %v", c.Path)
			seen[n] = true
			assert.GreaterOrEqual(t, n, c.Path[0])
		}
	}
}

func TestEnumerationIsCappedPerComponent(t *testing.T) {
	g := New()
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			if i != j {
				require.NoError(t, g.AddEdge(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", j)))
			}
		}
	}
	res := DetectCyclesWith(g, Options{MaxCyclesPerComponent: 10})
	assert.Len(t, res.Cycles, 10)
	assert.True(t, res.Truncated)
}

func TestLongChainTerminates(t *testing.T) {
	g := New()
	const n = 20000
	for i := 0; i < n; i++ {
		require.NoError(t, g.AddEdge(fmt.Sprintf("m%05d", i), fmt.Sprintf("m%05d", (i+1)%n)))
	}
	res := DetectCycles(g)
	require.Len(t, res.Cycles, 1)
	assert.Len(t, res.Cycles[0].Path, n+1)
}

func TestStronglyConnected(t *testing.T) {
	g := build(t, [2]string{"A", "B"}, [2]string{"B", "A"}, [2]string{"B", "C"})
	assert.Equal(t, [][]string{{"A", "B"}, {"C"}}, StronglyConnected(g))
}

func TestAddEdgeDeduplicatesAndIsConcurrent(t *testing.T) {
	g := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.AddEdge("A", "B")
			_ = g.AddEdge("B", "C")
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, 3, g.Len())
	assert.True(t, g.HasEdge("A", "B"))
	assert.Equal(t, []string{"B"}, g.Successors("A"))
}

func TestAddEdgeRejectsEmptyNode(t *testing.T) {
	err := New().AddEdge("A", "")
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "A", gerr.From)
}

func TestFinding(t *testing.T) {
	f := Finding(ir.Cycle{Path: []string{"app.a", "app.b", "app.a"}}, "app/a.py", 3, 1)
	assert.Equal(t, RuleCycle, f.RuleID)
	assert.Equal(t, ir.SeverityMedium, f.Severity)
	assert.Contains(t, f.Message, "app.a")

	self := Finding(ir.Cycle{Path: []string{"app.a", "app.a"}}, "app/a.py", 1, 1)
	assert.Equal(t, "module app.a imports itself", self.Message)
}
