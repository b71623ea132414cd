package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/engine"
	"github.com/roach88/warden/internal/store"
)

// TransitionOptions holds flags for the transition command.
type TransitionOptions struct {
	*RootOptions
	Rules  string
	DB     string
	Tenant string
}

// TransitionResult is a persisted state change.
type TransitionResult struct {
	Feature  string   `json:"feature"`
	Tenant   string   `json:"tenant"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Seq      int64    `json:"seq"`
	RunID    string   `json:"run_id"`
	Allowed  []string `json:"allowed"`
	Terminal bool     `json:"terminal"`
}

// TransitionFailure describes a rejected state change.
type TransitionFailure struct {
	Feature string   `json:"feature"`
	Tenant  string   `json:"tenant"`
	State   string   `json:"state"`
	Target  string   `json:"target"`
	Allowed []string `json:"allowed"`
}

// NewTransitionCommand creates the transition command.
func NewTransitionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransitionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transition <feature> <target>",
		Short: "Move a persisted workflow to a new state",
		Long: `Load a tenant's workflow from the audit database, sync a fresh machine
to the persisted state, and apply one validated transition. The change is
recorded only if the feature allows it.

Exit codes:
  0 - Transition applied
  1 - Transition not allowed from the current state
  2 - Command error (unknown feature, unreadable database, etc.)

Examples:
  warden transition orders Paid --tenant acme
  warden transition orders Shipped --tenant acme --db ./audit.db --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Rules, "rules", ".", "rules directory")
	cmd.Flags().StringVar(&opts.DB, "db", "", "audit database (default from settings)")
	cmd.Flags().StringVar(&opts.Tenant, "tenant", DefaultTenant, "workflow tenant")

	return cmd
}

func runTransition(ctx context.Context, opts *TransitionOptions, feature, target string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if ctx == nil {
		ctx = context.Background()
	}

	rs, err := loadRules(f, opts.Rules)
	if err != nil {
		return err
	}
	table, err := featureTable(f, rs, feature)
	if err != nil {
		return err
	}

	db := opts.DB
	if db == "" {
		db = opts.settings().Database
	}
	st, err := openStore(f, db)
	if err != nil {
		return err
	}
	defer st.Close()

	wf := store.Workflow{Feature: feature, Tenant: opts.Tenant}
	persisted, seq, err := st.CurrentState(ctx, wf)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read workflow state", err)
	}

	// The sync onto the persisted state restates its record and is not
	// saved, so it reuses that record's seq and the log stays gapless.
	start := seq
	if persisted != "" && persisted != table.Initial() {
		start--
	}

	runID := engine.UUIDv7Generator{}.Generate()
	contract := engine.Contract{
		Table:  table,
		Clock:  engine.NewClockAt(start),
		Logger: opts.logger(),
		IDs:    engine.NewFixedGenerator(runID),
	}
	m, err := contract.RunFrom(ctx, opts.Tenant, persisted, func(_ context.Context, m *engine.Machine) error {
		return m.Transition(target)
	})

	var te *engine.TransitionError
	switch {
	case errors.Is(err, engine.ErrUnknownState):
		return f.Fail(ExitCommandError, ErrCodeUnknown,
			fmt.Sprintf("persisted state %q is not declared by feature %s", persisted, feature), nil)
	case errors.As(err, &te):
		failure := TransitionFailure{
			Feature: feature,
			Tenant:  opts.Tenant,
			State:   te.From,
			Target:  target,
			Allowed: te.Allowed,
		}
		if f.JSON() {
			_ = f.Failure(failure, ErrCodeTransition, te.Error())
		} else {
			_ = f.Failure(nil, ErrCodeTransition, te.Error())
		}
		return WrapExitError(ExitFailure, ErrCodeTransition+": transition rejected", err)
	case err != nil:
		return f.Fail(ExitCommandError, ErrCodeGeneric, "transition failed", err)
	}

	// Syncs only restate what the store already holds.
	var events []engine.Event
	for _, ev := range m.History() {
		if ev.Kind != engine.EventSync {
			events = append(events, ev)
		}
	}
	if err := st.AppendEvents(ctx, wf, runID, table.Hash(), events); err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to record transition", err)
	}

	from := persisted
	if from == "" {
		from = table.Initial()
	}
	result := TransitionResult{
		Feature:  feature,
		Tenant:   opts.Tenant,
		From:     from,
		To:       m.Current(),
		Seq:      events[len(events)-1].Seq,
		RunID:    runID,
		Allowed:  m.AllowedTransitions(),
		Terminal: m.IsTerminal(),
	}

	if f.JSON() {
		return f.Success(result)
	}
	fmt.Fprintln(f.Writer, successStyle.Render(fmt.Sprintf("✓ %s/%s: %s → %s", feature, opts.Tenant, result.From, result.To)))
	switch {
	case result.Terminal:
		fmt.Fprintln(f.Writer, mutedStyle.Render("  terminal state"))
	case len(result.Allowed) > 0:
		fmt.Fprintln(f.Writer, mutedStyle.Render("  next: "+strings.Join(result.Allowed, ", ")))
	}
	return nil
}
