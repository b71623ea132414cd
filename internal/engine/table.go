package engine

import (
	"fmt"

	"github.com/roach88/warden/internal/ir"
)

type edge struct {
	from, to string
}

// Table is the compiled, immutable transition table of one feature. It is
// built once when the feature is loaded and shared by reference between
// every Machine of that feature.
type Table struct {
	spec     *ir.FeatureSpec
	hash     string
	states   map[string]ir.StateDef
	allowed  map[string][]string
	edges    map[edge]struct{}
	terminal map[string]bool
}

// Compile builds a Table from a feature definition. The definition is
// expected to have passed compiler.ValidateFeature; Compile only rejects
// what would make the table unusable (undeclared endpoints).
func Compile(spec *ir.FeatureSpec) (*Table, error) {
	hash, err := ir.FeatureHash(spec)
	if err != nil {
		return nil, err
	}

	t := &Table{
		spec:     spec,
		hash:     hash,
		states:   make(map[string]ir.StateDef, len(spec.States)),
		allowed:  make(map[string][]string, len(spec.States)),
		edges:    make(map[edge]struct{}, len(spec.Transitions)),
		terminal: make(map[string]bool),
	}
	for _, st := range spec.States {
		t.states[st.Name] = st
	}
	if _, ok := t.states[spec.InitialState]; !ok {
		return nil, fmt.Errorf("feature %q: %w: initial state %q", spec.Name, ErrUnknownState, spec.InitialState)
	}

	for _, tr := range spec.Transitions {
		for _, end := range []string{tr.From, tr.To} {
			if _, ok := t.states[end]; !ok {
				return nil, fmt.Errorf("feature %q: %w: %q in transition %s -> %s",
					spec.Name, ErrUnknownState, end, tr.From, tr.To)
			}
		}
		e := edge{tr.From, tr.To}
		if _, dup := t.edges[e]; dup {
			continue
		}
		t.edges[e] = struct{}{}
		t.allowed[tr.From] = append(t.allowed[tr.From], tr.To)
	}

	for _, st := range spec.States {
		if st.Terminal || len(t.allowed[st.Name]) == 0 {
			t.terminal[st.Name] = true
		}
	}
	return t, nil
}

// MustCompile is like Compile but panics on error.
// Use only in tests or when the definition is known to be valid.
func MustCompile(spec *ir.FeatureSpec) *Table {
	t, err := Compile(spec)
	if err != nil {
		panic(err)
	}
	return t
}

// Feature returns the feature name.
func (t *Table) Feature() string { return t.spec.Name }

// Initial returns the initial state.
func (t *Table) Initial() string { return t.spec.InitialState }

// Spec returns the definition the table was compiled from.
func (t *Table) Spec() *ir.FeatureSpec { return t.spec }

// Hash returns the content hash of the definition.
func (t *Table) Hash() string { return t.hash }

// HasState reports whether state is declared.
func (t *Table) HasState(state string) bool {
	_, ok := t.states[state]
	return ok
}

// Allows reports whether from -> to is a declared transition.
func (t *Table) Allows(from, to string) bool {
	_, ok := t.edges[edge{from, to}]
	return ok
}

// Allowed returns the targets reachable in one step from state, in
// declaration order. The returned slice is shared and must not be modified.
func (t *Table) Allowed(state string) []string {
	return t.allowed[state]
}

// IsTerminal reports whether state has no way out.
func (t *Table) IsTerminal(state string) bool {
	return t.terminal[state]
}
