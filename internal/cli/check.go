package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/deps"
)

// CheckResult is the classification of package names.
type CheckResult struct {
	Ecosystem  deps.Ecosystem `json:"ecosystem"`
	Results    []deps.Result  `json:"results"`
	Suspicious int            `json:"suspicious"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		rulesDir  string
		ecosystem string
	)

	cmd := &cobra.Command{
		Use:   "check <package>...",
		Short: "Classify package names against the trusted registry",
		Long: `Classify package names as valid, suspicious (a likely typosquat of a
trusted package) or unknown. The embedded registry is extended by the
registry section of warden.cue in the rules directory.

Exit codes:
  0 - No suspicious names
  1 - One or more suspicious names
  2 - Command error (unknown ecosystem, etc.)

Examples:
  warden check requests reqeusts --ecosystem pypi
  warden check lodash --ecosystem npm --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, rulesDir, deps.Ecosystem(ecosystem), args, cmd)
		},
	}

	cmd.Flags().StringVar(&rulesDir, "rules", ".", "rules directory")
	cmd.Flags().StringVar(&ecosystem, "ecosystem", string(deps.PyPI), "package ecosystem (go, npm, pypi)")

	return cmd
}

func runCheck(opts *RootOptions, rulesDir string, eco deps.Ecosystem, names []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if !slices.Contains(deps.Ecosystems, eco) {
		return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("unknown ecosystem %q, want one of %v", eco, deps.Ecosystems), nil)
	}
	rs, err := loadRules(f, rulesDir)
	if err != nil {
		return err
	}
	registries := deps.NewSet(rs.Registry())

	result := CheckResult{Ecosystem: eco}
	for _, name := range names {
		res := registries.Check(eco, name)
		if res.Class == deps.ClassSuspicious {
			result.Suspicious++
		}
		result.Results = append(result.Results, res)
	}

	message := fmt.Sprintf("%d suspicious package name(s)", result.Suspicious)
	if f.JSON() {
		if result.Suspicious > 0 {
			_ = f.Failure(result, deps.RuleTyposquat, message)
			return NewExitError(ExitFailure, message)
		}
		return f.Success(result)
	}

	for _, res := range result.Results {
		switch res.Class {
		case deps.ClassValid:
			fmt.Fprintf(f.Writer, "%s %s\n", successStyle.Render("✓"), res.Name)
		case deps.ClassSuspicious:
			fmt.Fprintf(f.Writer, "%s %s %s\n", failStyle.Render("!"), res.Name,
				mutedStyle.Render(fmt.Sprintf("(did you mean %q? distance %d)", res.Suggestion, res.Distance)))
		default:
			fmt.Fprintf(f.Writer, "%s %s %s\n", mutedStyle.Render("?"), res.Name, mutedStyle.Render("(not in registry)"))
		}
	}
	if result.Suspicious > 0 {
		_ = f.Failure(nil, deps.RuleTyposquat, message)
		return NewExitError(ExitFailure, message)
	}
	return nil
}
