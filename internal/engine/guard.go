package engine

import (
	"context"
	"log/slog"
)

// GuardOption configures a single guarded call.
type GuardOption func(*guardConfig)

type guardConfig struct {
	logger *slog.Logger
	tenant string
	runID  string
}

// WithLogger sets the logger for contract events. Defaults to slog.Default().
func WithLogger(l *slog.Logger) GuardOption {
	return func(c *guardConfig) { c.logger = l }
}

// WithTenant tags the call with a tenant or request identifier. The guard
// never reads ambient context for this; it must be passed explicitly.
func WithTenant(id string) GuardOption {
	return func(c *guardConfig) { c.tenant = id }
}

// WithRunID tags the call with a run identifier.
func WithRunID(id string) GuardOption {
	return func(c *guardConfig) { c.runID = id }
}

// Work is a unit of work bound to a machine.
type Work func(ctx context.Context, m *Machine) error

// Guard runs work against m transactionally.
//
// The current state is snapshotted before work runs. If work returns an
// error or panics:
//   - state unchanged: the error is returned as a *GuardError with
//     OutcomeUnchanged and no transition is attempted
//   - state changed: the guard attempts Transition(snapshot) as a
//     compensating action; the result is OutcomeRolledBack or
//     OutcomeRollbackFailed
//
// The work's error is always reachable with errors.Is/As on the result.
func Guard(ctx context.Context, m *Machine, work Work, opts ...GuardOption) error {
	_, err := Do(ctx, m, func(ctx context.Context, m *Machine) (struct{}, error) {
		return struct{}{}, work(ctx, m)
	}, opts...)
	return err
}

// Do is Guard for work that returns a value. On failure the zero value is
// returned.
func Do[T any](ctx context.Context, m *Machine, work func(ctx context.Context, m *Machine) (T, error), opts ...GuardOption) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	cfg := guardConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.logger.With("feature", m.Feature())
	if cfg.runID != "" {
		log = log.With("run_id", cfg.runID)
	}
	if cfg.tenant != "" {
		log = log.With("tenant", cfg.tenant)
	}

	initial := m.Current()
	log.Debug("contract started", "state", initial)

	result, err := runRecovered(ctx, m, work)
	if err == nil {
		log.Debug("contract completed", "from", initial, "to", m.Current())
		return result, nil
	}

	ge := &GuardError{
		Feature: m.Feature(),
		RunID:   cfg.runID,
		Tenant:  cfg.tenant,
		Initial: initial,
		Reached: m.Current(),
		Outcome: OutcomeUnchanged,
		Err:     err,
	}

	if ge.Reached == initial {
		log.Warn("contract failed", "state", initial, "error", err)
		return zero, ge
	}

	if rbErr := m.move(initial, EventRollback); rbErr != nil {
		ge.Outcome = OutcomeRollbackFailed
		ge.RollbackErr = rbErr
		log.Error("contract rollback failed",
			"reached", ge.Reached,
			"target", initial,
			"error", err,
			"rollback_error", rbErr,
		)
		return zero, ge
	}

	ge.Outcome = OutcomeRolledBack
	log.Warn("contract rolled back", "from", ge.Reached, "to", initial, "error", err)
	return zero, ge
}

func runRecovered[T any](ctx context.Context, m *Machine, work func(context.Context, *Machine) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return work(ctx, m)
}

// Contract binds a feature to the guard so each call gets a fresh machine,
// a run ID, and explicit per-call context.
type Contract struct {
	Table  *Table
	Clock  *Clock
	Logger *slog.Logger
	IDs    RunIDGenerator
}

// Run executes work on a new machine at the feature's initial state. The
// machine is returned so its history can be persisted, on failure too.
func (c *Contract) Run(ctx context.Context, tenant string, work Work) (*Machine, error) {
	m := c.machine()
	return m, Guard(ctx, m, work, c.options(tenant)...)
}

// RunFrom is Run for a workflow whose state lives in durable storage: the
// machine is synced to persisted before work runs. An empty persisted
// state means the workflow has not started.
func (c *Contract) RunFrom(ctx context.Context, tenant, persisted string, work Work) (*Machine, error) {
	m := c.machine()
	if persisted != "" {
		if err := m.Sync(persisted); err != nil {
			return m, err
		}
	}
	return m, Guard(ctx, m, work, c.options(tenant)...)
}

func (c *Contract) machine() *Machine {
	var opts []MachineOption
	if c.Clock != nil {
		opts = append(opts, WithClock(c.Clock))
	}
	return New(c.Table, opts...)
}

func (c *Contract) options(tenant string) []GuardOption {
	opts := []GuardOption{WithTenant(tenant)}
	if c.Logger != nil {
		opts = append(opts, WithLogger(c.Logger))
	}
	ids := c.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return append(opts, WithRunID(ids.Generate()))
}
