// Package store provides SQLite-backed durable storage for warden.
//
// Two append-only logs are kept:
//   - transitions: every state change of every feature workflow, keyed by
//     feature and tenant, with the hash of the feature definition that
//     validated it
//   - scans: project scan reports as canonical JSON, with their
//     fingerprints for change detection
//
// The transition log is what makes external sync explicit: a caller reads
// CurrentState for its feature and tenant, syncs a fresh machine to it,
// and only then validates the next transition.
//
// # Ordering
//
// All queries order by seq ASC, id ASC COLLATE BINARY. seq is a logical
// clock, so results are identical regardless of wall time. Sync events
// that a caller chooses not to persist still draw a seq from the machine
// clock unless the caller reuses the restated record's seq, so gaps in a
// workflow's seq are allowed.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
