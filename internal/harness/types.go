package harness

// Trace event kinds. Machine events use the engine's kinds; failed steps
// are recorded as rejected so traces show what was attempted.
const (
	KindTransition = "transition"
	KindSync       = "sync"
	KindRollback   = "rollback"
	KindRejected   = "rejected"
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Step  int    `json:"step"`
	Kind  string `json:"kind"`
	From  string `json:"from"`
	To    string `json:"to"`
	Seq   int64  `json:"seq,omitempty"`
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds machine events and rejected steps in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`

	// FinalState is the machine's state after the last step.
	FinalState string `json:"final_state"`

	// Persisted is the state recorded last in the audit store.
	Persisted string `json:"persisted"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
