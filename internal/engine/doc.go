// Package engine implements the feature state machine and the transactional
// guard that wraps units of work around it.
//
// ARCHITECTURE:
//
// Compiled Tables:
// Each feature definition is compiled once into a Table: adjacency lists
// plus a pair set. Tables are immutable and shared by reference, so every
// lookup a Machine performs (current state, allowed transitions, validation
// of a single transition) is O(1) relative to the size of the feature.
//
// One Machine per Unit of Work:
// A Machine holds the current state of one workflow instance. It is owned
// by exactly one in-flight unit of work and is NOT safe for concurrent use.
// Concurrent or multi-tenant callers create one Machine per request.
//
// External Sync:
// A fresh Machine starts at the feature's initial state. Callers that
// persist state elsewhere must call Sync with the stored state before
// transitioning; forgetting to do so surfaces as an illegal transition
// rather than silently succeeding. Sync is recorded in History so audits
// can tell a reconciliation from a transition.
//
// Guard:
// Guard snapshots the current state, runs the work, and on failure tries
// the compensating transition back to the snapshot. The original error is
// always returned; a failed compensation is reported next to it, never in
// place of it.
//
// CRITICAL PATTERNS:
//
// Logical Clock
// Every history event is stamped with a monotonic seq from Clock.Next().
// NEVER use wall-clock timestamps for ordering.
package engine
