// Package harness runs workflow scenarios against compiled features.
//
// A scenario drives one state machine through a list of steps and checks
// the outcome of each step, the machine's final state, and assertions over
// the recorded trace. Every event the machine records is also appended to
// an in-memory audit store, so scenarios can model a process restart and
// check that resuming from the persisted state needs an explicit sync.
//
// # Scenario Format
//
//	name: orders_happy_path
//	description: "An order is confirmed and delivered"
//	feature: ../features/orders/state.yaml
//	start: Pending              # optional, synced before the first step
//	steps:
//	  - transition: Confirmed
//	  - guard:
//	      transitions: [Delivered]
//	      fail: "courier unavailable"
//	    expect: rollback-failed
//	    error: courier unavailable
//	  - restart: true             # fresh machine at the initial state
//	  - resume: true              # fresh machine synced to the stored state
//	    allowed: []
//	final_state: Delivered
//	assertions:
//	  - type: trace_count
//	    kind: rollback
//	    count: 0
//
// Step expectations are ok (the default), error, unchanged, rolled-back
// and rollback-failed. The last three are guard outcomes; error matches
// any failure.
//
// # Assertion Types
//
//   - trace_contains: an event with the given kind, from and to exists
//   - trace_order: the given states are entered in order
//   - trace_count: exactly count events match kind (and to, if set)
//   - final_state: the audit store's current state for the workflow
//
// # Deterministic Testing
//
// Events are stamped from a logical clock and the run ID is fixed, so
// traces are identical across runs and can be compared against golden
// files with RunWithGolden.
package harness
