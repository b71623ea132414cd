package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] step %d %s %s -> %s", i+1, ev.Step, ev.Kind, ev.From, ev.To)
		if ev.Error != "" {
			fmt.Fprintf(&buf, " (%s)", ev.Error)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// matches reports whether ev satisfies every filter set in a.
func (a Assertion) matches(ev TraceEvent) bool {
	return (a.Kind == "" || ev.Kind == a.Kind) &&
		(a.From == "" || ev.From == a.From) &&
		(a.To == "" || ev.To == a.To)
}

func (a Assertion) describe() string {
	var parts []string
	if a.Kind != "" {
		parts = append(parts, "kind="+a.Kind)
	}
	if a.From != "" {
		parts = append(parts, "from="+a.From)
	}
	if a.To != "" {
		parts = append(parts, "to="+a.To)
	}
	return strings.Join(parts, " ")
}

// assertTraceContains checks that some event matches the filters.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if a.matches(ev) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event with %s", a.describe()),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the states are entered in the given order,
// not necessarily consecutively. Rejected steps enter no state.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	var entered []string
	for _, ev := range trace {
		if ev.Kind != KindRejected {
			entered = append(entered, ev.To)
		}
	}

	next := 0
	for _, state := range entered {
		if next < len(a.States) && state == a.States[next] {
			next++
		}
	}
	if next == len(a.States) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("states entered in order %v", a.States),
		Actual:   fmt.Sprintf("entered %v, %q not reached in order", entered, a.States[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks the exact number of matching events.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if a.matches(ev) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d events with %s", a.Count, a.describe()),
		Actual:   fmt.Sprintf("%d events", count),
		Trace:    trace,
	}
}

// assertFinalState checks the state last recorded in the audit store.
func assertFinalState(result *Result, a Assertion) error {
	if result.Persisted == a.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("persisted state %q", a.State),
		Actual:   fmt.Sprintf("persisted state %q", result.Persisted),
		Trace:    result.Trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(result, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
