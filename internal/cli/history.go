package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB     string
	Tenant string
	Scans  bool
	Latest bool
	Limit  int
}

// WorkflowHistory is the audit trail of one workflow.
type WorkflowHistory struct {
	Tenant  string                   `json:"tenant"`
	Current string                   `json:"current"`
	Records []store.TransitionRecord `json:"records"`
}

// HistoryResult is the audit trail of a feature.
type HistoryResult struct {
	Feature   string            `json:"feature"`
	Workflows []WorkflowHistory `json:"workflows"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <feature> | --scans [root]",
		Short: "Show recorded transitions or scans",
		Long: `Show the audit trail of a feature's workflows, one tenant or all of
them, in seq order. With --scans, list the recorded scans of a root
instead, newest first; --latest prints the most recent report in full.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if opts.Scans {
				root := "."
				if len(args) == 1 {
					root = args[0]
				}
				return runScanHistory(ctx, opts, root, cmd)
			}
			if len(args) != 1 {
				return opts.formatter(cmd).Fail(ExitCommandError, ErrCodeGeneric, "history requires a feature name or --scans", nil)
			}
			return runHistory(ctx, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "audit database (default from settings)")
	cmd.Flags().StringVar(&opts.Tenant, "tenant", "", "show one tenant's workflow (default: all)")
	cmd.Flags().BoolVar(&opts.Scans, "scans", false, "list recorded scans instead of transitions")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "with --scans, print the latest report")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "with --scans, the number of scans to list (0 for all)")

	return cmd
}

func (o *HistoryOptions) open(f *OutputFormatter) (*store.Store, error) {
	db := o.DB
	if db == "" {
		db = o.settings().Database
	}
	return openStore(f, db)
}

func runHistory(ctx context.Context, opts *HistoryOptions, feature string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, err := opts.open(f)
	if err != nil {
		return err
	}
	defer st.Close()

	tenants := []string{opts.Tenant}
	if opts.Tenant == "" {
		if tenants, err = st.Tenants(ctx, feature); err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to list tenants", err)
		}
	}

	result := HistoryResult{Feature: feature, Workflows: []WorkflowHistory{}}
	for _, tenant := range tenants {
		records, err := st.History(ctx, store.Workflow{Feature: feature, Tenant: tenant})
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to read history", err)
		}
		wh := WorkflowHistory{Tenant: tenant, Records: records}
		if n := len(records); n > 0 {
			wh.Current = records[n-1].To
		}
		result.Workflows = append(result.Workflows, wh)
	}

	if f.JSON() {
		return f.Success(result)
	}

	recorded := 0
	for _, wh := range result.Workflows {
		if len(wh.Records) == 0 {
			continue
		}
		recorded++
		fmt.Fprintf(f.Writer, "%s %s\n", titleStyle.Render(feature+"/"+wh.Tenant), mutedStyle.Render("(current: "+wh.Current+")"))
		for _, rec := range wh.Records {
			fmt.Fprintf(f.Writer, "  %4d  %-10s %s → %s\n", rec.Seq, rec.Kind, rec.From, rec.To)
		}
	}
	if recorded == 0 {
		fmt.Fprintf(f.Writer, "No recorded transitions for %s.\n", feature)
	}
	return nil
}

func runScanHistory(ctx context.Context, opts *HistoryOptions, root string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, err := opts.open(f)
	if err != nil {
		return err
	}
	defer st.Close()

	// Reports record the root in this form.
	root = filepath.ToSlash(filepath.Clean(root))

	if opts.Latest {
		rec, err := st.LatestScan(ctx, root)
		if errors.Is(err, store.ErrNotFound) {
			return f.Fail(ExitCommandError, ErrCodeNotFound, "no recorded scans of "+root, nil)
		}
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to read scan", err)
		}
		if f.JSON() {
			return f.Success(rec)
		}
		writeReportText(f, rec.Report)
		return nil
	}

	scans, err := st.ListScans(ctx, root, opts.Limit)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to list scans", err)
	}
	if f.JSON() {
		return f.Success(scans)
	}
	if len(scans) == 0 {
		fmt.Fprintf(f.Writer, "No recorded scans of %s.\n", root)
		return nil
	}
	fmt.Fprintln(f.Writer, titleStyle.Render(root))
	for _, s := range scans {
		fmt.Fprintf(f.Writer, "  %4d  %s  %d finding(s)\n", s.Seq, s.Fingerprint, s.Findings)
	}
	return nil
}
