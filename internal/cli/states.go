package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/store"
)

// StateInfo describes one declared state.
type StateInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Terminal    bool     `json:"terminal"`
	Allowed     []string `json:"allowed"`
}

// StatesResult lists a feature's states.
type StatesResult struct {
	Feature string      `json:"feature"`
	Initial string      `json:"initial"`
	Tenant  string      `json:"tenant,omitempty"`
	Current string      `json:"current,omitempty"`
	States  []StateInfo `json:"states"`
}

// NewStatesCommand creates the states command.
func NewStatesCommand(rootOpts *RootOptions) *cobra.Command {
	var rulesDir, db, tenant string

	cmd := &cobra.Command{
		Use:   "states <feature>",
		Short: "List a feature's states and transitions",
		Long: `List the states of a feature in declaration order with the targets
each one allows. With --tenant, the workflow's persisted state is marked.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStates(rootOpts, rulesDir, db, tenant, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&rulesDir, "rules", ".", "rules directory")
	cmd.Flags().StringVar(&db, "db", "", "audit database (default from settings)")
	cmd.Flags().StringVar(&tenant, "tenant", "", "show the current state of this tenant's workflow")

	return cmd
}

func runStates(opts *RootOptions, rulesDir, db, tenant, feature string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	rs, err := loadRules(f, rulesDir)
	if err != nil {
		return err
	}
	table, err := featureTable(f, rs, feature)
	if err != nil {
		return err
	}

	spec := table.Spec()
	result := StatesResult{Feature: spec.Name, Initial: spec.InitialState, States: []StateInfo{}}
	for _, s := range spec.States {
		allowed := table.Allowed(s.Name)
		if allowed == nil {
			allowed = []string{}
		}
		result.States = append(result.States, StateInfo{
			Name:        s.Name,
			Description: s.Description,
			Terminal:    table.IsTerminal(s.Name),
			Allowed:     allowed,
		})
	}

	if tenant != "" {
		if db == "" {
			db = opts.settings().Database
		}
		st, err := openStore(f, db)
		if err != nil {
			return err
		}
		defer st.Close()
		current, _, err := st.CurrentState(cmd.Context(), store.Workflow{Feature: feature, Tenant: tenant})
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to read workflow state", err)
		}
		result.Tenant = tenant
		result.Current = current
		if result.Current == "" {
			result.Current = spec.InitialState
		}
	}

	if f.JSON() {
		return f.Success(result)
	}

	fmt.Fprintln(f.Writer, titleStyle.Render(result.Feature))
	for _, s := range result.States {
		marker := "  "
		if s.Name == result.Current {
			marker = successStyle.Render("▶ ")
		}
		var tags []string
		if s.Name == result.Initial {
			tags = append(tags, "initial")
		}
		if s.Terminal {
			tags = append(tags, "terminal")
		}
		line := marker + s.Name
		if len(tags) > 0 {
			line += " " + mutedStyle.Render("("+strings.Join(tags, ", ")+")")
		}
		fmt.Fprintln(f.Writer, line)
		if len(s.Allowed) > 0 {
			fmt.Fprintf(f.Writer, "    → %s\n", strings.Join(s.Allowed, ", "))
		}
	}
	return nil
}
