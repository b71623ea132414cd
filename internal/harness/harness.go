package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/warden/internal/compiler"
	"github.com/roach88/warden/internal/engine"
	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/rules"
	"github.com/roach88/warden/internal/store"
)

// RunID tags every audit record a scenario writes.
const RunID = "harness-run"

// DefaultTenant is the workflow tenant when a scenario names none.
const DefaultTenant = "harness"

// Harness is the execution state of one scenario run.
type Harness struct {
	table  *engine.Table
	store  *store.Store
	wf     store.Workflow
	clock  *engine.Clock
	logger *slog.Logger

	machine *engine.Machine
	// saved counts the machine's history events already in the store.
	saved int
}

// Option configures a run.
type Option func(*Harness)

// WithLogger sets the logger passed to the guard. Logs are discarded by
// default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each run uses a fresh in-memory audit store and a logical clock starting
// at zero. An error is returned only when the scenario cannot run at all
// (the feature does not load or the store cannot be opened); failed
// expectations are reported in the result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	spec, err := loadFeature(scenario)
	if err != nil {
		return nil, err
	}
	rs, err := rules.New(spec)
	if err != nil {
		return nil, err
	}
	table, err := rs.Table(spec.Name)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		table:  table,
		store:  st,
		wf:     store.Workflow{Feature: spec.Name, Tenant: scenario.Tenant},
		clock:  engine.NewClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if h.wf.Tenant == "" {
		h.wf.Tenant = DefaultTenant
	}
	for _, opt := range opts {
		opt(h)
	}
	h.machine = engine.New(table, engine.WithClock(h.clock))

	result := NewResult()
	if scenario.Start != "" {
		if err := h.machine.Sync(scenario.Start); err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		if err := h.save(ctx, 0, result); err != nil {
			return nil, err
		}
	}

	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h.execute(ctx, i+1, step, result)
	}

	result.FinalState = h.machine.Current()
	if result.Persisted, _, err = st.CurrentState(ctx, h.wf); err != nil {
		return nil, err
	}
	if scenario.FinalState != "" && result.FinalState != scenario.FinalState {
		result.AddError(fmt.Sprintf("final state: expected %q, got %q", scenario.FinalState, result.FinalState))
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step and checks its expectations.
func (h *Harness) execute(ctx context.Context, n int, step Step, result *Result) {
	from := h.machine.Current()
	var (
		err    error
		target string
	)
	switch {
	case step.Transition != "":
		target = step.Transition
		err = h.machine.Transition(step.Transition)
	case step.Sync != "":
		target = step.Sync
		err = h.machine.Sync(step.Sync)
	case step.Guard != nil:
		target = strings.Join(step.Guard.Transitions, ",")
		err = engine.Guard(ctx, h.machine, guardWork(step.Guard),
			engine.WithLogger(h.logger),
			engine.WithTenant(h.wf.Tenant),
			engine.WithRunID(RunID),
		)
	case step.Restart:
		h.restart()
	case step.Resume:
		h.restart()
		var state string
		if state, _, err = h.store.CurrentState(ctx, h.wf); err == nil && state != "" {
			target = state
			err = h.machine.Sync(state)
		}
	}

	if saveErr := h.save(ctx, n, result); saveErr != nil {
		result.AddError(fmt.Sprintf("step %d: %v", n, saveErr))
	}
	if err != nil {
		result.Trace = append(result.Trace, TraceEvent{
			Step:  n,
			Kind:  KindRejected,
			From:  from,
			To:    target,
			Error: err.Error(),
		})
	}

	got := outcome(err)
	if want := step.expect(); want != got && (want != ExpectError || got == ExpectOK) {
		msg := fmt.Sprintf("step %d (%s): expected %s, got %s", n, step.op(), want, got)
		if err != nil {
			msg += ": " + err.Error()
		}
		result.AddError(msg)
	}
	if step.Error != "" && (err == nil || !strings.Contains(err.Error(), step.Error)) {
		result.AddError(fmt.Sprintf("step %d (%s): expected error containing %q, got %v", n, step.op(), step.Error, err))
	}
	if step.Allowed != nil {
		if allowed := h.machine.AllowedTransitions(); !slices.Equal(allowed, step.Allowed) {
			result.AddError(fmt.Sprintf("step %d (%s): expected allowed %v, got %v", n, step.op(), step.Allowed, allowed))
		}
	}
}

// restart discards the machine. The replacement starts at the initial
// state with no history.
func (h *Harness) restart() {
	h.machine = engine.New(h.table, engine.WithClock(h.clock))
	h.saved = 0
}

// save appends new machine events to the audit store and the trace.
func (h *Harness) save(ctx context.Context, n int, result *Result) error {
	history := h.machine.History()
	fresh := history[h.saved:]
	if len(fresh) == 0 {
		return nil
	}
	h.saved = len(history)
	for _, ev := range fresh {
		result.Trace = append(result.Trace, TraceEvent{
			Step: n,
			Kind: string(ev.Kind),
			From: ev.From,
			To:   ev.To,
			Seq:  ev.Seq,
		})
	}
	return h.store.AppendEvents(ctx, h.wf, RunID, h.table.Hash(), fresh)
}

func guardWork(g *GuardStep) engine.Work {
	return func(_ context.Context, m *engine.Machine) error {
		for _, to := range g.Transitions {
			if err := m.Transition(to); err != nil {
				return err
			}
		}
		if g.Panic != "" {
			panic(g.Panic)
		}
		if g.Fail != "" {
			return errors.New(g.Fail)
		}
		return nil
	}
}

// outcome classifies a step error.
func outcome(err error) string {
	if err == nil {
		return ExpectOK
	}
	var ge *engine.GuardError
	if errors.As(err, &ge) {
		return string(ge.Outcome)
	}
	return ExpectError
}

// loadFeature returns the scenario's feature, decoding its file if needed.
func loadFeature(s *Scenario) (*ir.FeatureSpec, error) {
	if s.spec != nil {
		return s.spec, nil
	}
	data, err := os.ReadFile(s.Feature)
	if err != nil {
		return nil, fmt.Errorf("failed to read feature: %w", err)
	}
	if filepath.Ext(s.Feature) != ".cue" {
		return compiler.DecodeFeatureYAML(data, s.Feature)
	}
	specs, err := compiler.CompileFeatureSource(data, s.Feature)
	if err != nil {
		return nil, err
	}
	if len(specs) != 1 {
		return nil, fmt.Errorf("%s: expected exactly one feature, found %d", s.Feature, len(specs))
	}
	return specs[0], nil
}
