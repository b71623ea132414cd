package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/graph"
	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/scan"
)

// CyclesResult is the outcome of cycle detection over a tree.
type CyclesResult struct {
	Modules    int        `json:"modules"`
	Edges      int        `json:"edges"`
	Components int        `json:"components"`
	Cycles     []ir.Cycle `json:"cycles"`
	Truncated  bool       `json:"truncated,omitempty"`
}

// NewCyclesCommand creates the cycles command.
func NewCyclesCommand(rootOpts *RootOptions) *cobra.Command {
	var rulesDir string

	cmd := &cobra.Command{
		Use:   "cycles [root]",
		Short: "Find import cycles",
		Long: `Build the module graph of a source tree and list its elementary
import cycles. Enumeration stops after max_cycles per strongly connected
component.

Exit codes:
  0 - No cycles
  1 - One or more cycles
  2 - Command error`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			if rulesDir == "" {
				rulesDir = root
			}
			return runCycles(rootOpts, root, rulesDir, cmd)
		},
	}

	cmd.Flags().StringVar(&rulesDir, "rules", "", "rules directory (default: the root)")

	return cmd
}

func runCycles(opts *RootOptions, root, rulesDir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("root not found: %s", root), nil)
	}
	rs, err := loadRules(f, rulesDir)
	if err != nil {
		return err
	}
	scanner, err := checkerFor(opts, rs, scan.CheckCycles)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScanError, "invalid scan configuration", err)
	}
	g, err := scanner.BuildGraph(cmd.Context(), root)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScanError, "failed to build module graph", err)
	}

	res := graph.DetectCyclesWith(g, graph.Options{MaxCyclesPerComponent: opts.settings().MaxCycles})
	result := CyclesResult{
		Modules:    g.Len(),
		Edges:      g.EdgeCount(),
		Components: res.Components,
		Cycles:     res.Cycles,
		Truncated:  res.Truncated,
	}
	if result.Cycles == nil {
		result.Cycles = []ir.Cycle{}
	}

	message := fmt.Sprintf("%d import cycle(s)", len(result.Cycles))
	if f.JSON() {
		if len(result.Cycles) > 0 {
			_ = f.Failure(result, graph.RuleCycle, message)
			return NewExitError(ExitFailure, message)
		}
		return f.Success(result)
	}

	fmt.Fprintln(f.Writer, mutedStyle.Render(fmt.Sprintf("%d module(s), %d edge(s)", result.Modules, result.Edges)))
	if len(result.Cycles) == 0 {
		fmt.Fprintln(f.Writer, successStyle.Render("✓ No import cycles"))
		return nil
	}
	fmt.Fprint(f.Writer, graph.Describe(res))
	_ = f.Failure(nil, graph.RuleCycle, message)
	return NewExitError(ExitFailure, message)
}
