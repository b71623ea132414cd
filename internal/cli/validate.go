package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Features []string                   `json:"features,omitempty"`
	Layers   int                        `json:"layers,omitempty"`
	Sources  []string                   `json:"sources,omitempty"`
	Warnings []compiler.FeatureWarning  `json:"warnings,omitempty"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rules-dir>",
		Short: "Validate features, layers and rule settings",
		Long: `Load warden.cue and every feature file under a directory and report
all problems at once. Nothing is registered unless everything is valid.

Exit codes:
  0 - Rules are valid (warnings may be printed)
  1 - One or more problems
  2 - Command error (directory not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	rs, err := loadRules(f, dir)
	if err != nil {
		return err
	}

	result := ValidationResult{
		Valid:    true,
		Features: rs.FeatureNames(),
		Sources:  rs.Sources(),
		Warnings: rs.Warnings(),
	}
	if l := rs.Layers(); l != nil {
		result.Layers = len(l.Layers)
	}

	if f.JSON() {
		return f.Success(result)
	}

	fmt.Fprintln(f.Writer, successStyle.Render("✓ All rules valid"))
	fmt.Fprintf(f.Writer, "  %d feature(s), %d layer(s), %d file(s)\n", len(result.Features), result.Layers, len(result.Sources))
	for _, w := range result.Warnings {
		fmt.Fprintf(f.Writer, "  %s [%s] %s: %s\n", mutedStyle.Render(w.Level), w.Code, w.Feature, w.Message)
	}
	return nil
}
