package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/scan"
)

// LintOptions holds flags for the lint command.
type LintOptions struct {
	*RootOptions
	Rules  string
	FailOn string
}

// LintResult is the outcome of pattern-checking individual files.
type LintResult struct {
	Files    int            `json:"files"`
	Findings []ir.Finding   `json:"findings"`
	Errors   []ir.FileError `json:"errors"`
}

// NewLintCommand creates the lint command.
func NewLintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lint <file>...",
		Short: "Run pattern rules over individual files",
		Long: `Run the insecure-pattern and anti-pattern rules over the given files
without walking a tree. Rule settings from the rules directory apply.

Exit codes:
  0 - No findings at or above --fail-on
  1 - Findings at or above --fail-on
  2 - Command error`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Rules, "rules", ".", "rules directory")
	cmd.Flags().StringVar(&opts.FailOn, "fail-on", "", "fail on findings at or above this severity, or \"none\" (default from settings)")

	return cmd
}

func runLint(opts *LintOptions, files []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	threshold, failing, err := failThreshold(opts.FailOn, opts.settings().FailOn)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid --fail-on", err)
	}
	rs, err := loadRules(f, opts.Rules)
	if err != nil {
		return err
	}
	settings := rs.RuleSettings()

	result := LintResult{Findings: []ir.Finding{}, Errors: []ir.FileError{}}
	for _, path := range files {
		found, err := scan.ScanFile(path, rs.PatternRules())
		if err != nil {
			var fe *ir.FileError
			if !errors.As(err, &fe) {
				return f.Fail(ExitCommandError, ErrCodeScanError, "lint failed", err)
			}
			result.Errors = append(result.Errors, *fe)
			continue
		}
		result.Files++
		for _, fd := range found {
			if fd, ok := settings.Apply(fd); ok {
				result.Findings = append(result.Findings, fd)
			}
		}
	}
	slices.SortStableFunc(result.Findings, ir.CompareFindings)

	over := 0
	if failing {
		report := ir.Report{Findings: result.Findings}
		over = report.CountAtOrAbove(threshold)
	}
	message := fmt.Sprintf("%d finding(s) at or above %s", over, threshold)

	if f.JSON() {
		if over > 0 {
			_ = f.Failure(result, ErrCodeFindings, message)
			return NewExitError(ExitFailure, message)
		}
		return f.Success(result)
	}

	writeFindings(f, result.Findings)
	for _, e := range result.Errors {
		fmt.Fprintf(f.Writer, "%s %s\n", e.File, mutedStyle.Render("(skipped, "+e.Kind+": "+e.Message+")"))
	}
	if over > 0 {
		_ = f.Failure(nil, ErrCodeFindings, message)
		return NewExitError(ExitFailure, message)
	}
	if len(result.Findings) == 0 {
		fmt.Fprintln(f.Writer, successStyle.Render(fmt.Sprintf("✓ %d file(s) checked, no findings", result.Files)))
	} else {
		fmt.Fprintf(f.Writer, "%d file(s) checked, %d finding(s)\n", result.Files, len(result.Findings))
	}
	return nil
}
