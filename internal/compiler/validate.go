package compiler

import (
	"fmt"
	"strings"

	"github.com/moby/patternmatcher"

	"github.com/roach88/warden/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedType = "E100" // unsupported type for validation

	// FeatureSpec errors (E101-E109)
	ErrFeatureNameEmpty       = "E101" // feature name is required
	ErrInitialStateMissing    = "E102" // initial_state is required
	ErrInitialStateUndeclared = "E103" // initial state is not a declared state
	ErrUndeclaredState        = "E104" // transition references an undeclared state
	ErrDuplicateName          = "E105" // duplicate state or transition
	ErrTerminalHasExits       = "E106" // terminal state has outgoing transitions
	ErrInitialNoExits         = "E107" // initial state has no outgoing transition
	ErrNoStates               = "E108" // at least one state is required
	ErrDuplicateFeature       = "E109" // feature declared twice

	// Layer rule errors (E120-E129)
	ErrLayerNameEmpty     = "E120" // layer name is required
	ErrDuplicateLayer     = "E121" // layer declared twice
	ErrUnknownLayerTarget = "E122" // allow references an undeclared layer
	ErrLayerNoPaths       = "E123" // layer has no path patterns
	ErrInvalidPattern     = "E124" // path pattern does not parse

	// Registry and rule settings errors (E130-E139)
	ErrEmptyIdentifier = "E130" // empty package identifier
	ErrUnknownRule     = "E131" // rule settings reference an unknown rule
	ErrInvalidSeverity = "E132" // severity override is not a known severity
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled definitions against schema rules.
// Returns all errors found (does not fail-fast).
// Supports FeatureSpec, LayerRules and ProjectConfig.
func Validate(v any) []ValidationError {
	switch val := v.(type) {
	case *ir.FeatureSpec:
		return ValidateFeature(val)
	case ir.FeatureSpec:
		return ValidateFeature(&val)
	case *ir.LayerRules:
		return ValidateLayers(val)
	case *ir.ProjectConfig:
		return ValidateProject(val, nil)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

// ValidateFeature checks a feature definition for internal consistency.
func ValidateFeature(spec *ir.FeatureSpec) []ValidationError {
	var errs []ValidationError

	// E101: name is required
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "feature",
			Message: "feature name is required and must be non-empty",
			Code:    ErrFeatureNameEmpty,
		})
	}

	// E108: at least one state
	if len(spec.States) == 0 {
		errs = append(errs, ValidationError{
			Field:   "states",
			Message: "at least one state is required",
			Code:    ErrNoStates,
		})
	}

	declared := make(map[string]ir.StateDef, len(spec.States))
	for i, st := range spec.States {
		if strings.TrimSpace(st.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("states[%d]", i),
				Message: "state name must be non-empty",
				Code:    ErrDuplicateName,
			})
			continue
		}
		// E105: duplicate state
		if _, dup := declared[st.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("states[%d]", i),
				Message: fmt.Sprintf("duplicate state name: %q", st.Name),
				Code:    ErrDuplicateName,
			})
			continue
		}
		declared[st.Name] = st
	}

	// E102/E103: initial state
	switch {
	case spec.InitialState == "":
		errs = append(errs, ValidationError{
			Field:   "initial_state",
			Message: "initial_state is required",
			Code:    ErrInitialStateMissing,
		})
	case len(spec.States) > 0:
		if _, ok := declared[spec.InitialState]; !ok {
			errs = append(errs, ValidationError{
				Field:   "initial_state",
				Message: fmt.Sprintf("initial state %q is not a declared state", spec.InitialState),
				Code:    ErrInitialStateUndeclared,
			})
		}
	}

	seen := make(map[[2]string]bool, len(spec.Transitions))
	outgoing := make(map[string]int)
	for i, tr := range spec.Transitions {
		field := fmt.Sprintf("transitions[%d]", i)

		// E104: both ends must be declared
		ends := []string{tr.From, tr.To}
		if tr.From == tr.To {
			ends = ends[:1]
		}
		for _, end := range ends {
			if _, ok := declared[end]; !ok {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("transition %s -> %s references undeclared state %q", tr.From, tr.To, end),
					Code:    ErrUndeclaredState,
				})
			}
		}

		// E105: duplicate transition
		key := [2]string{tr.From, tr.To}
		if seen[key] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate transition %s -> %s", tr.From, tr.To),
				Code:    ErrDuplicateName,
			})
		}
		seen[key] = true
		outgoing[tr.From]++

		// E106: terminal states have no exits
		if st, ok := declared[tr.From]; ok && st.Terminal {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("terminal state %q cannot have outgoing transition to %q", tr.From, tr.To),
				Code:    ErrTerminalHasExits,
			})
		}
	}

	// E107: the initial state must lead somewhere unless explicitly allowed
	if _, ok := declared[spec.InitialState]; ok && outgoing[spec.InitialState] == 0 && !spec.AllowEmpty {
		errs = append(errs, ValidationError{
			Field:   "initial_state",
			Message: fmt.Sprintf("initial state %q has no outgoing transition (set allow_empty to permit)", spec.InitialState),
			Code:    ErrInitialNoExits,
		})
	}

	return errs
}

// ValidateLayers checks a layer hierarchy.
func ValidateLayers(rules *ir.LayerRules) []ValidationError {
	if rules == nil {
		return nil
	}
	var errs []ValidationError

	names := make(map[string]bool, len(rules.Layers))
	for i, l := range rules.Layers {
		field := fmt.Sprintf("layers[%d]", i)
		if strings.TrimSpace(l.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "layer name is required",
				Code:    ErrLayerNameEmpty,
			})
			continue
		}
		if names[l.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate layer %q", l.Name),
				Code:    ErrDuplicateLayer,
			})
		}
		names[l.Name] = true
	}

	for i, l := range rules.Layers {
		field := fmt.Sprintf("layers[%d]", i)
		if len(l.Paths) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".paths",
				Message: fmt.Sprintf("layer %q needs at least one path pattern", l.Name),
				Code:    ErrLayerNoPaths,
			})
		}
		for j, p := range l.Paths {
			if _, err := patternmatcher.New([]string{p}); err != nil || strings.TrimSpace(p) == "" {
				msg := "pattern is empty"
				if err != nil {
					msg = err.Error()
				}
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.paths[%d]", field, j),
					Message: fmt.Sprintf("invalid pattern %q: %s", p, msg),
					Code:    ErrInvalidPattern,
				})
			}
		}
		for j, target := range l.Allow {
			if !names[target] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.allow[%d]", field, j),
					Message: fmt.Sprintf("layer %q allows undeclared layer %q", l.Name, target),
					Code:    ErrUnknownLayerTarget,
				})
			}
		}
	}

	return errs
}

// ValidateProject checks a project configuration. knownRules, when non-nil,
// is the set of rule IDs that rule settings may reference.
func ValidateProject(cfg *ir.ProjectConfig, knownRules map[string]bool) []ValidationError {
	errs := ValidateLayers(cfg.Layers)

	for _, group := range []struct {
		field string
		ids   []string
	}{
		{"registry.trusted", cfg.Registry.Trusted},
		{"registry.allow", cfg.Registry.Allow},
	} {
		for i, id := range group.ids {
			if strings.TrimSpace(id) == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s[%d]", group.field, i),
					Message: "package identifier must be non-empty",
					Code:    ErrEmptyIdentifier,
				})
			}
		}
	}

	for i, id := range cfg.Rules.Disable {
		if knownRules != nil && !knownRules[id] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rules.disable[%d]", i),
				Message: fmt.Sprintf("unknown rule %q", id),
				Code:    ErrUnknownRule,
			})
		}
	}
	for _, id := range sortedKeys(cfg.Rules.Severity) {
		if knownRules != nil && !knownRules[id] {
			errs = append(errs, ValidationError{
				Field:   "rules.severity." + id,
				Message: fmt.Sprintf("unknown rule %q", id),
				Code:    ErrUnknownRule,
			})
		}
		if cfg.Rules.Severity[id].Rank() == 0 {
			errs = append(errs, ValidationError{
				Field:   "rules.severity." + id,
				Message: fmt.Sprintf("unknown severity %q", cfg.Rules.Severity[id]),
				Code:    ErrInvalidSeverity,
			})
		}
	}

	return errs
}
