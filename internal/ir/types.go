package ir

import "slices"

// FeatureSpec is a compiled feature definition: its states and the
// directed set of permitted transitions between them.
type FeatureSpec struct {
	Name         string          `json:"feature"`
	InitialState string          `json:"initial_state"`
	States       []StateDef      `json:"states"`
	Transitions  []TransitionDef `json:"transitions"`

	// AllowEmpty permits an initial state without outgoing transitions.
	AllowEmpty bool `json:"allow_empty,omitempty"`

	// Source is the file the feature was loaded from, if any.
	Source string `json:"-"`
}

// StateDef is a declared state.
type StateDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Terminal    bool   `json:"terminal,omitempty"`
}

// TransitionDef is a single permitted from -> to edge.
type TransitionDef struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Description string `json:"description,omitempty"`
}

// HasState reports whether name is a declared state.
func (f *FeatureSpec) HasState(name string) bool {
	for _, s := range f.States {
		if s.Name == name {
			return true
		}
	}
	return false
}

// StateNames returns the declared state names in declaration order.
func (f *FeatureSpec) StateNames() []string {
	names := make([]string, len(f.States))
	for i, s := range f.States {
		names[i] = s.Name
	}
	return names
}

// LayerRules is the ordered layer hierarchy, outermost layer first.
type LayerRules struct {
	Layers []LayerDef `json:"layers"`
}

// LayerDef names a layer, the path patterns that place a file in it, and
// the layers its files may reference.
type LayerDef struct {
	Name  string   `json:"name"`
	Paths []string `json:"paths"`
	Allow []string `json:"allow"`
}

// Index returns the position of the named layer, or -1.
func (r *LayerRules) Index(name string) int {
	if r == nil {
		return -1
	}
	for i, l := range r.Layers {
		if l.Name == name {
			return i
		}
	}
	return -1
}

// RegistrySpec configures the package registry used for typosquat checks.
// Trusted extends the built-in registry; Allow lists identifiers that are
// always accepted regardless of distance.
type RegistrySpec struct {
	Trusted []string `json:"trusted"`
	Allow   []string `json:"allow"`
}

// RuleSettings adjusts the built-in rules by ID.
type RuleSettings struct {
	Disable  []string            `json:"disable"`
	Severity map[string]Severity `json:"severity"`
}

// Disabled reports whether rule id is switched off.
func (s RuleSettings) Disabled(id string) bool {
	return slices.Contains(s.Disable, id)
}

// Apply returns f with any severity override applied. ok is false when
// the finding's rule is disabled.
func (s RuleSettings) Apply(f Finding) (out Finding, ok bool) {
	if s.Disabled(f.RuleID) {
		return f, false
	}
	if sev, found := s.Severity[f.RuleID]; found {
		f.Severity = sev
	}
	return f, true
}

// ProjectConfig is the compiled project configuration (warden.cue).
type ProjectConfig struct {
	Layers   *LayerRules  `json:"layers,omitempty"`
	Registry RegistrySpec `json:"registry"`
	Rules    RuleSettings `json:"rules"`
}
