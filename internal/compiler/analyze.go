package compiler

import (
	"fmt"

	"github.com/roach88/warden/internal/ir"
)

// Warning codes (W200-W299)
const (
	WarnUnreachableState = "W201" // state cannot be reached from the initial state
	WarnDeadEnd          = "W202" // non-terminal state with no outgoing transition
)

// FeatureWarning is a non-fatal observation about a feature definition.
//
// Unreachable and dead-end states are warnings, not errors, because they
// may be intentional:
//   - States entered only through external sync (e.g. set by a webhook)
//   - Features still being built out
type FeatureWarning struct {
	Code    string `json:"code"`
	Feature string `json:"feature"`
	State   string `json:"state"`
	Message string `json:"message"`
	Level   string `json:"level"` // "warning" or "info"
}

// AnalyzeFeature reports states unreachable from the initial state and
// non-terminal states with no way out. The spec is assumed to have passed
// ValidateFeature. Warnings follow state declaration order.
func AnalyzeFeature(spec *ir.FeatureSpec) []FeatureWarning {
	adjacency := make(map[string][]string)
	for _, tr := range spec.Transitions {
		adjacency[tr.From] = append(adjacency[tr.From], tr.To)
	}

	// Breadth-first reachability from the initial state
	reached := map[string]bool{spec.InitialState: true}
	queue := []string{spec.InitialState}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[cur] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}

	warnings := []FeatureWarning{}
	for _, st := range spec.States {
		if !reached[st.Name] {
			warnings = append(warnings, FeatureWarning{
				Code:    WarnUnreachableState,
				Feature: spec.Name,
				State:   st.Name,
				Message: fmt.Sprintf("state %q is unreachable from initial state %q", st.Name, spec.InitialState),
				Level:   "warning",
			})
		}
		if len(adjacency[st.Name]) == 0 && !st.Terminal && !(st.Name == spec.InitialState && spec.AllowEmpty) {
			warnings = append(warnings, FeatureWarning{
				Code:    WarnDeadEnd,
				Feature: spec.Name,
				State:   st.Name,
				Message: fmt.Sprintf("state %q has no outgoing transitions; mark it terminal if that is intended", st.Name),
				Level:   "info",
			})
		}
	}
	return warnings
}
