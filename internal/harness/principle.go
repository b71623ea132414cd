package harness

import (
	"fmt"
	"slices"

	"github.com/roach88/warden/internal/engine"
	"github.com/roach88/warden/internal/ir"
)

// Principles generates one scenario per reachable terminal state of a
// feature: the shortest transition path from the initial state, each step
// expected to succeed, ending with no transitions allowed. Ties between
// equally short paths go to the transition declared first.
//
// Terminal states that cannot be reached produce no scenario; the rule
// store reports them as warnings.
func Principles(spec *ir.FeatureSpec) ([]*Scenario, error) {
	table, err := engine.Compile(spec)
	if err != nil {
		return nil, err
	}

	parent := map[string]string{table.Initial(): ""}
	queue := []string{table.Initial()}
	for len(queue) > 0 {
		state := queue[0]
		queue = queue[1:]
		for _, next := range table.Allowed(state) {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = state
			queue = append(queue, next)
		}
	}

	var scenarios []*Scenario
	for _, st := range spec.States {
		if !table.IsTerminal(st.Name) {
			continue
		}
		if _, reached := parent[st.Name]; !reached {
			continue
		}

		var path []string
		for s := st.Name; s != table.Initial(); s = parent[s] {
			path = append(path, s)
		}
		slices.Reverse(path)

		steps := make([]Step, 0, len(path))
		for _, to := range path {
			steps = append(steps, Step{Transition: to})
		}
		if len(steps) == 0 {
			// The initial state is itself terminal; a sync to it is a no-op.
			steps = append(steps, Step{Sync: st.Name})
		}
		steps[len(steps)-1].Allowed = []string{}

		s := &Scenario{
			Name:        fmt.Sprintf("%s/%s", spec.Name, st.Name),
			Description: fmt.Sprintf("%s reaches terminal state %s", spec.Name, st.Name),
			Feature:     spec.Source,
			Steps:       steps,
			FinalState:  st.Name,
			spec:        spec,
		}
		if len(path) > 0 {
			s.Assertions = []Assertion{{Type: AssertFinalState, State: st.Name}}
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
