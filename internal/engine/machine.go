package engine

import (
	"fmt"
	"slices"
)

// EventKind classifies history events.
type EventKind string

const (
	EventTransition EventKind = "transition"
	EventSync       EventKind = "sync"
	EventRollback   EventKind = "rollback"
)

// Event is one state change recorded by a Machine.
type Event struct {
	Seq     int64     `json:"seq"`
	Feature string    `json:"feature"`
	Kind    EventKind `json:"kind"`
	From    string    `json:"from"`
	To      string    `json:"to"`
}

// Machine is one workflow instance of a feature.
//
// A Machine is owned by one unit of work and is not safe for concurrent
// use. Create one per request or tenant.
type Machine struct {
	table   *Table
	clock   *Clock
	current string
	history []Event
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithClock stamps history events from a shared clock. By default each
// machine has its own clock starting at zero.
func WithClock(c *Clock) MachineOption {
	return func(m *Machine) { m.clock = c }
}

// New creates a machine at the feature's initial state.
func New(table *Table, opts ...MachineOption) *Machine {
	m := &Machine{table: table, current: table.Initial()}
	for _, opt := range opts {
		opt(m)
	}
	if m.clock == nil {
		m.clock = NewClock()
	}
	return m
}

// Feature returns the feature name.
func (m *Machine) Feature() string { return m.table.Feature() }

// Table returns the compiled table backing the machine.
func (m *Machine) Table() *Table { return m.table }

// Current returns the current state.
func (m *Machine) Current() string { return m.current }

// AllowedTransitions returns the legal next states, in declaration order.
// Terminal states return an empty slice.
func (m *Machine) AllowedTransitions() []string {
	allowed := m.table.Allowed(m.current)
	if len(allowed) == 0 {
		return []string{}
	}
	return slices.Clone(allowed)
}

// CanTransition reports whether Transition(to) would succeed.
func (m *Machine) CanTransition(to string) bool {
	return m.table.Allows(m.current, to)
}

// IsTerminal reports whether the current state has no way out.
func (m *Machine) IsTerminal() bool {
	return m.table.IsTerminal(m.current)
}

// Transition moves to the target state if the feature declares the pair
// (current, to). On failure the state is unchanged and a *TransitionError
// carrying the allowed targets is returned.
func (m *Machine) Transition(to string) error {
	return m.move(to, EventTransition)
}

func (m *Machine) move(to string, kind EventKind) error {
	if !m.table.Allows(m.current, to) {
		return &TransitionError{
			Feature: m.table.Feature(),
			From:    m.current,
			To:      to,
			Allowed: m.AllowedTransitions(),
		}
	}
	m.record(kind, to)
	return nil
}

// Sync sets the current state without transition validation, to reconcile
// with durable storage. The next Transition is validated against the new
// state. Undeclared states are rejected.
func (m *Machine) Sync(state string) error {
	if !m.table.HasState(state) {
		return fmt.Errorf("sync feature %q: %w %q", m.table.Feature(), ErrUnknownState, state)
	}
	if state == m.current {
		return nil
	}
	m.record(EventSync, state)
	return nil
}

// History returns the events recorded so far, oldest first.
func (m *Machine) History() []Event {
	return slices.Clone(m.history)
}

func (m *Machine) record(kind EventKind, to string) {
	m.history = append(m.history, Event{
		Seq:     m.clock.Next(),
		Feature: m.table.Feature(),
		Kind:    kind,
		From:    m.current,
		To:      to,
	})
	m.current = to
}
