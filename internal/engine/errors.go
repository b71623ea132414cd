package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownState is returned when a state name is not declared by the
// feature (for example when syncing to a stale persisted value).
var ErrUnknownState = errors.New("unknown state")

// TransitionError reports an attempted state change that the feature does
// not declare. It is business-rule feedback, not a system fault: callers
// are expected to surface the message verbatim.
type TransitionError struct {
	Feature string
	From    string
	To      string

	// Allowed lists the legal targets from From. Empty for terminal states.
	Allowed []string
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	allowed := "none, state is terminal"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	return fmt.Sprintf("illegal transition from %q to %q in feature %q (allowed: %s)",
		e.From, e.To, e.Feature, allowed)
}

// IsTransitionError returns true if err is or wraps a TransitionError.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// GuardOutcome describes what the guard did after the work failed.
type GuardOutcome string

const (
	// OutcomeUnchanged means the work failed without changing state, so no
	// compensating transition was attempted.
	OutcomeUnchanged GuardOutcome = "unchanged"

	// OutcomeRolledBack means the compensating transition succeeded.
	OutcomeRolledBack GuardOutcome = "rolled-back"

	// OutcomeRollbackFailed means the compensating transition was rejected
	// and the machine is left in the state the work reached.
	OutcomeRollbackFailed GuardOutcome = "rollback-failed"
)

// GuardError wraps the failure of a guarded unit of work.
//
// Err is always the work's own error. When the compensating transition
// also fails, RollbackErr holds that failure; both are reachable through
// errors.Is and errors.As.
type GuardError struct {
	Feature string
	RunID   string
	Tenant  string

	// Initial is the state snapshot taken before the work ran.
	Initial string
	// Reached is the state the work left the machine in.
	Reached string

	Outcome     GuardOutcome
	Err         error
	RollbackErr error
}

// Error implements the error interface.
func (e *GuardError) Error() string {
	switch e.Outcome {
	case OutcomeRolledBack:
		return fmt.Sprintf("%v (rolled back %s -> %s)", e.Err, e.Reached, e.Initial)
	case OutcomeRollbackFailed:
		return fmt.Sprintf("%v; rollback from %s to %s failed: %v", e.Err, e.Reached, e.Initial, e.RollbackErr)
	default:
		return e.Err.Error()
	}
}

// Unwrap exposes both the original and the rollback error.
func (e *GuardError) Unwrap() []error {
	if e.RollbackErr != nil {
		return []error{e.Err, e.RollbackErr}
	}
	return []error{e.Err}
}

// IsRollbackFailure returns true if err carries a failed compensating
// transition. Uses errors.As to handle wrapped errors.
func IsRollbackFailure(err error) bool {
	var ge *GuardError
	if errors.As(err, &ge) {
		return ge.Outcome == OutcomeRollbackFailed
	}
	return false
}

// IsRolledBack returns true if err is a guarded failure whose state change
// was successfully undone.
func IsRolledBack(err error) bool {
	var ge *GuardError
	if errors.As(err, &ge) {
		return ge.Outcome == OutcomeRolledBack
	}
	return false
}

// PanicError wraps a panic recovered from guarded work.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("guarded work panicked: %v", e.Value)
}
