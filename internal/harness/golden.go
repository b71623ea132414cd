package harness

import (
	"context"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/warden/internal/ir"
)

// TraceSnapshot captures the trace of a scenario execution.
type TraceSnapshot struct {
	Scenario   string       `json:"scenario"`
	FinalState string       `json:"final_state"`
	Trace      []TraceEvent `json:"trace"`
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/<name>.golden, where slashes in the name become
// underscores. The snapshot is canonical JSON.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, GoldenName(name), data)
	return nil
}

// Snapshot renders a result's trace as canonical JSON with a trailing
// newline, the golden file format.
func Snapshot(name string, result *Result) ([]byte, error) {
	data, err := ir.MarshalCanonical(TraceSnapshot{
		Scenario:   name,
		FinalState: result.FinalState,
		Trace:      result.Trace,
	})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// GoldenName maps a scenario name to its golden file base name.
func GoldenName(name string) string {
	return strings.ReplaceAll(name, "/", "_")
}
