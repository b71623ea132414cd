package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/compiler"
)

const ordersFeature = "testdata/features/orders.yaml"

func ordersScenario(steps ...Step) *Scenario {
	return &Scenario{Name: "inline", Feature: ordersFeature, Steps: steps}
}

func TestRun_HappyPath(t *testing.T) {
	result, err := Run(context.Background(), ordersScenario(
		Step{Transition: "Confirmed"},
		Step{Transition: "Delivered", Allowed: []string{}},
	))
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, "Delivered", result.FinalState)
	assert.Equal(t, "Delivered", result.Persisted)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, TraceEvent{Step: 1, Kind: KindTransition, From: "Pending", To: "Confirmed", Seq: 1}, result.Trace[0])
}

// A process that restarts must sync the machine from the audit store. A
// fresh machine starts at the initial state, so the next legitimate
// transition is rejected.
func TestRun_RestartWithoutSyncIsIllegal(t *testing.T) {
	result, err := Run(context.Background(), ordersScenario(
		Step{Transition: "Confirmed"},
		Step{Restart: true},
		Step{Transition: "Delivered"},
	))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 3 (transition): expected ok, got error")
	assert.Contains(t, result.Errors[0], `illegal transition from "Pending" to "Delivered"`)
	assert.Equal(t, "Pending", result.FinalState)
	assert.Equal(t, "Confirmed", result.Persisted)
}

func TestRun_ResumeSyncsFromStore(t *testing.T) {
	result, err := Run(context.Background(), ordersScenario(
		Step{Transition: "Confirmed"},
		Step{Resume: true, Allowed: []string{"Delivered"}},
		Step{Transition: "Delivered"},
	))
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 3)
	assert.Equal(t, KindSync, result.Trace[1].Kind)
	assert.Equal(t, 2, result.Trace[1].Step)
	assert.Equal(t, "Pending", result.Trace[1].From)
	assert.Equal(t, "Confirmed", result.Trace[1].To)
}

func TestRun_ResumeEmptyStore(t *testing.T) {
	result, err := Run(context.Background(), ordersScenario(
		Step{Resume: true, Allowed: []string{"Confirmed"}},
	))
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Trace)
	assert.Empty(t, result.Persisted)
}

func TestRun_StartState(t *testing.T) {
	s := ordersScenario(Step{Transition: "Delivered"})
	s.Start = "Confirmed"
	s.FinalState = "Delivered"

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, TraceEvent{Step: 0, Kind: KindSync, From: "Pending", To: "Confirmed", Seq: 1}, result.Trace[0])
}

func TestRun_StartUnknownState(t *testing.T) {
	s := ordersScenario(Step{Transition: "Confirmed"})
	s.Start = "Lost"

	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown state")
}

func TestRun_ReportsUnmetExpectations(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want string
	}{
		{
			name: "unexpected failure",
			step: Step{Transition: "Delivered"},
			want: "step 1 (transition): expected ok, got error",
		},
		{
			name: "unexpected success",
			step: Step{Transition: "Confirmed", Expect: ExpectError},
			want: "step 1 (transition): expected error, got ok",
		},
		{
			name: "wrong error",
			step: Step{Transition: "Delivered", Expect: ExpectError, Error: "terminal"},
			want: `expected error containing "terminal"`,
		},
		{
			name: "wrong allowed",
			step: Step{Transition: "Confirmed", Allowed: []string{}},
			want: "expected allowed [], got [Delivered]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(context.Background(), ordersScenario(tt.step))
			require.NoError(t, err)

			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.want)
		})
	}
}

func TestRun_FinalStateMismatch(t *testing.T) {
	s := ordersScenario(Step{Transition: "Confirmed"})
	s.FinalState = "Delivered"

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, []string{`final state: expected "Delivered", got "Confirmed"`}, result.Errors)
}

func TestRun_SyncUnknownState(t *testing.T) {
	result, err := Run(context.Background(), ordersScenario(
		Step{Sync: "Lost", Expect: ExpectError, Error: "unknown state"},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, "Pending", result.FinalState)
}

func TestRun_GuardOutcomes(t *testing.T) {
	payment := "testdata/features/payment.yaml"

	tests := []struct {
		name  string
		guard GuardStep
		want  string
		final string
	}{
		{
			name:  "success",
			guard: GuardStep{Transitions: []string{"Processing", "Paid"}},
			want:  ExpectOK,
			final: "Paid",
		},
		{
			name:  "failure before any transition",
			guard: GuardStep{Fail: "no funds"},
			want:  ExpectUnchanged,
			final: "Idle",
		},
		{
			name:  "panic is rolled back",
			guard: GuardStep{Transitions: []string{"Processing"}, Panic: "boom"},
			want:  ExpectRolledBack,
			final: "Idle",
		},
		{
			name:  "illegal transition inside work",
			guard: GuardStep{Transitions: []string{"Paid"}},
			want:  ExpectUnchanged,
			final: "Idle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.guard
			result, err := Run(context.Background(), &Scenario{
				Name:       tt.name,
				Feature:    payment,
				Steps:      []Step{{Guard: &g, Expect: tt.want}},
				FinalState: tt.final,
			}, WithLogger(slogt.New(t)))
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
}

func TestRun_ExpectErrorMatchesGuardFailures(t *testing.T) {
	result, err := Run(context.Background(), &Scenario{
		Name:    "any failure",
		Feature: "testdata/features/payment.yaml",
		Steps: []Step{{
			Guard:  &GuardStep{Transitions: []string{"Processing"}, Panic: "boom"},
			Expect: ExpectError,
			Error:  "guarded work panicked: boom",
		}},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_CUEFeature(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signup.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
feature: signup: {
	initial_state: "Started"
	states: {
		Started: {}
		Verified: terminal: true
	}
	transitions: [{from: "Started", to: "Verified"}]
}
`), 0o644))

	result, err := Run(context.Background(), &Scenario{
		Name:       "cue",
		Feature:    path,
		Steps:      []Step{{Transition: "Verified", Allowed: []string{}}},
		FinalState: "Verified",
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_InvalidFeature(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
feature: broken
initial_state: Nowhere
states:
  A: {}
transitions: []
`), 0o644))

	_, err := Run(context.Background(), &Scenario{
		Name:    "broken",
		Feature: path,
		Steps:   []Step{{Transition: "A"}},
	})
	require.Error(t, err)

	var ce *compiler.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.HasCode(compiler.ErrInitialStateUndeclared))
}

func TestRun_MissingFeature(t *testing.T) {
	_, err := Run(context.Background(), &Scenario{
		Name:    "missing",
		Feature: "testdata/features/nope.yaml",
		Steps:   []Step{{Transition: "A"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read feature")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, ordersScenario(Step{Transition: "Confirmed"}))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_ScenarioFiles(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 3)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
}
