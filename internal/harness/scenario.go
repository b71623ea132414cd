package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"facette.io/natsort"
	"gopkg.in/yaml.v3"

	"github.com/roach88/warden/internal/ir"
)

// Scenario defines a workflow test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Feature is the path to the feature file (YAML or CUE). Relative
	// paths are resolved against the scenario file's directory.
	Feature string `yaml:"feature"`

	// Tenant names the workflow in the audit store. Defaults to "harness".
	Tenant string `yaml:"tenant,omitempty"`

	// Start, if set, is synced before the first step.
	Start string `yaml:"start,omitempty"`

	Steps []Step `yaml:"steps"`

	// FinalState, if set, is the state the machine must end in.
	FinalState string `yaml:"final_state,omitempty"`

	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Path is the file the scenario was loaded from.
	Path string `yaml:"-"`

	// spec is set for generated scenarios that have no feature file.
	spec *ir.FeatureSpec
}

// Step is a single action. Exactly one of Transition, Sync, Guard,
// Restart and Resume is set.
type Step struct {
	Transition string     `yaml:"transition,omitempty"`
	Sync       string     `yaml:"sync,omitempty"`
	Guard      *GuardStep `yaml:"guard,omitempty"`

	// Restart replaces the machine with a fresh one at the initial state.
	// The audit store is kept.
	Restart bool `yaml:"restart,omitempty"`

	// Resume replaces the machine with a fresh one synced to the state
	// last recorded in the audit store.
	Resume bool `yaml:"resume,omitempty"`

	// Expect is the expected outcome. Defaults to ok.
	Expect string `yaml:"expect,omitempty"`

	// Error is a substring the step's error message must contain.
	Error string `yaml:"error,omitempty"`

	// Allowed, if set, lists the transitions allowed after the step.
	// An empty list asserts a terminal state.
	Allowed []string `yaml:"allowed,omitempty"`
}

// GuardStep runs transitions as one guarded unit of work.
type GuardStep struct {
	Transitions []string `yaml:"transitions"`

	// Fail makes the work return an error with this message after the
	// transitions ran.
	Fail string `yaml:"fail,omitempty"`

	// Panic makes the work panic with this value after the transitions ran.
	Panic string `yaml:"panic,omitempty"`
}

// Step outcomes.
const (
	ExpectOK             = "ok"
	ExpectError          = "error"
	ExpectUnchanged      = "unchanged"
	ExpectRolledBack     = "rolled-back"
	ExpectRollbackFailed = "rollback-failed"
)

var expectations = []string{ExpectOK, ExpectError, ExpectUnchanged, ExpectRolledBack, ExpectRollbackFailed}

// Assertion validates the trace or the persisted state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state.
	Type string `yaml:"type"`

	// Kind filters events (trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// From and To filter events (trace_contains; To also trace_count).
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count,omitempty"`

	// States is the expected order of entered states (trace_order).
	States []string `yaml:"states,omitempty"`

	// State is the expected persisted state (final_state).
	State string `yaml:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// op names the action a step performs.
func (s Step) op() string {
	var ops []string
	if s.Transition != "" {
		ops = append(ops, "transition")
	}
	if s.Sync != "" {
		ops = append(ops, "sync")
	}
	if s.Guard != nil {
		ops = append(ops, "guard")
	}
	if s.Restart {
		ops = append(ops, "restart")
	}
	if s.Resume {
		ops = append(ops, "resume")
	}
	return strings.Join(ops, "+")
}

func (s Step) expect() string {
	if s.Expect == "" {
		return ExpectOK
	}
	return s.Expect
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected and the feature path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	scenario.Path = path

	if scenario.Feature != "" && !filepath.IsAbs(scenario.Feature) {
		scenario.Feature = filepath.Join(filepath.Dir(path), scenario.Feature)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file directly under dir, in
// natural file name order.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		names = append(names, e.Name())
	}
	natsort.Sort(names)

	scenarios := make([]*Scenario, 0, len(names))
	seen := map[string]string{}
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("scenario %q declared in both %s and %s", s.Name, prev, name)
		}
		seen[s.Name] = name
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Feature == "" && s.spec == nil {
		return fmt.Errorf("feature is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.spec == nil {
		if _, err := os.Stat(s.Feature); err != nil {
			return fmt.Errorf("feature file not found: %s", s.Feature)
		}
	}

	for i, step := range s.Steps {
		op := step.op()
		switch op {
		case "":
			return fmt.Errorf("steps[%d]: one of transition, sync, guard, restart, resume is required", i)
		case "transition", "sync", "guard", "restart", "resume":
		default:
			return fmt.Errorf("steps[%d]: only one action per step, got %s", i, op)
		}
		if !slices.Contains(expectations, step.expect()) {
			return fmt.Errorf("steps[%d]: unknown expect %q", i, step.Expect)
		}
		if step.Guard != nil {
			if step.Guard.Fail != "" && step.Guard.Panic != "" {
				return fmt.Errorf("steps[%d].guard: fail and panic are exclusive", i)
			}
		} else if e := step.expect(); e != ExpectOK && e != ExpectError {
			return fmt.Errorf("steps[%d]: expect %q applies to guard steps only", i, e)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Kind == "" && a.From == "" && a.To == "" {
			return fmt.Errorf("assertions[%d]: trace_contains needs kind, from or to", index)
		}
	case AssertTraceOrder:
		if len(a.States) == 0 {
			return fmt.Errorf("assertions[%d]: states list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
