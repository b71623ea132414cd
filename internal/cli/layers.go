package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/layers"
	"github.com/roach88/warden/internal/scan"
)

// LayersResult is the outcome of a layer check.
type LayersResult struct {
	Layers     []string     `json:"layers"`
	Violations int          `json:"violations"`
	Findings   []ir.Finding `json:"findings"`
}

// NewLayersCommand creates the layers command.
func NewLayersCommand(rootOpts *RootOptions) *cobra.Command {
	var rulesDir string

	cmd := &cobra.Command{
		Use:   "layers [root]",
		Short: "Check architectural layer rules",
		Long: `Classify every source file into the layers declared in warden.cue and
report references that cross a boundary the rules do not allow.

Unclassified files are reported but do not fail the check.

Exit codes:
  0 - No violations
  1 - One or more layer violations
  2 - Command error (no layers declared, root not found, etc.)`,
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
			return runLayers(rootOpts, root, rulesDir, cmd)
		},
	}

	cmd.Flags().StringVar(&rulesDir, "rules", "", "rules directory (default: the root)")

	return cmd
}

func runLayers(opts *RootOptions, root, rulesDir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	rs, err := loadRules(f, rulesDir)
	if err != nil {
		return err
	}
	layerRules := rs.Layers()
	if layerRules == nil || len(layerRules.Layers) == 0 {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "no layers declared in "+rulesDir, nil)
	}

	findings, err := scan.CheckLayers(cmd.Context(), root, layerRules)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScanError, "layer check failed", err)
	}

	result := LayersResult{Findings: findings}
	for _, l := range layerRules.Layers {
		result.Layers = append(result.Layers, l.Name)
	}
	for _, fd := range findings {
		if fd.RuleID == layers.RuleViolation {
			result.Violations++
		}
	}

	message := fmt.Sprintf("%d layer violation(s)", result.Violations)
	if f.JSON() {
		if result.Violations > 0 {
			_ = f.Failure(result, layers.RuleViolation, message)
			return NewExitError(ExitFailure, message)
		}
		return f.Success(result)
	}

	writeFindings(f, findings)
	if result.Violations > 0 {
		_ = f.Failure(nil, layers.RuleViolation, message)
		return NewExitError(ExitFailure, message)
	}
	fmt.Fprintln(f.Writer, successStyle.Render(fmt.Sprintf("✓ No layer violations across %d layer(s)", len(result.Layers))))
	return nil
}
