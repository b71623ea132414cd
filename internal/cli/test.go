package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update     bool   // regenerate golden files
	Filter     string // scenario filter (glob pattern on the name)
	GoldenDir  string // golden file directory
	Principles string // rules directory whose features get principle scenarios
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name       string   `json:"name"`
	Pass       bool     `json:"pass"`
	FinalState string   `json:"final_state,omitempty"`
	Golden     string   `json:"golden,omitempty"` // match, mismatch, missing or updated
	Errors     []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [scenarios-dir]",
		Short: "Run workflow scenarios",
		Long: `Run scenario files against their features, checking step
expectations, assertions and golden traces.

Golden files live in a golden directory next to the scenarios directory
unless --golden says otherwise. Scenarios without a golden file are
checked on assertions alone.

With --principles, every feature in the rules directory is also exercised
along the shortest path to each of its terminal states.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  warden test ./scenarios
  warden test ./scenarios --filter "orders/*"
  warden test ./scenarios --update
  warden test --principles ./rules`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runTests(cmd.Context(), opts, dir, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default <scenarios-dir>/../golden)")
	cmd.Flags().StringVar(&opts.Principles, "principles", "", "rules directory to derive principle scenarios from")

	return cmd
}

func runTests(ctx context.Context, opts *TestOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if ctx == nil {
		ctx = context.Background()
	}
	if dir == "" && opts.Principles == "" {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "a scenarios directory or --principles is required", nil)
	}
	if _, err := path.Match(opts.Filter, ""); err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid filter pattern", err)
	}

	var scenarios []*harness.Scenario
	if dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
		}
		loaded, err := harness.LoadScenarios(dir)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to load scenarios", err)
		}
		scenarios = append(scenarios, loaded...)
	}

	golden := opts.GoldenDir
	if golden == "" && dir != "" {
		golden = filepath.Join(filepath.Dir(filepath.Clean(dir)), "golden")
	}

	// Principle scenarios have no golden files.
	derived := map[*harness.Scenario]bool{}
	if opts.Principles != "" {
		rs, err := loadRules(f, opts.Principles)
		if err != nil {
			return err
		}
		for _, spec := range rs.Features() {
			ps, err := harness.Principles(spec)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to derive scenarios for "+spec.Name, err)
			}
			for _, s := range ps {
				derived[s] = true
			}
			scenarios = append(scenarios, ps...)
		}
	}

	result := TestResult{Scenarios: []ScenarioResult{}}
	for _, s := range scenarios {
		if opts.Filter != "" {
			if ok, _ := path.Match(opts.Filter, s.Name); !ok {
				continue
			}
		}
		dirForGolden := golden
		if derived[s] {
			dirForGolden = ""
		}
		sr := runScenario(ctx, opts, s, dirForGolden)
		if !f.JSON() {
			printScenario(f, sr)
		}
		result.Scenarios = append(result.Scenarios, sr)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	return outputTestResult(f, result)
}

// runScenario executes one scenario and compares its trace with the
// golden file in goldenDir, if any.
func runScenario(ctx context.Context, opts *TestOptions, s *harness.Scenario, goldenDir string) ScenarioResult {
	sr := ScenarioResult{Name: s.Name}

	result, err := harness.Run(ctx, s, harness.WithLogger(opts.logger()))
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.FinalState = result.FinalState
	sr.Errors = result.Errors

	if goldenDir != "" {
		status, err := checkGolden(goldenDir, s.Name, result, opts.Update)
		if err != nil {
			sr.Errors = append(sr.Errors, err.Error())
		}
		sr.Golden = status
	}
	sr.Pass = len(sr.Errors) == 0 && result.Pass
	return sr
}

// checkGolden compares or rewrites the golden file for a scenario.
func checkGolden(dir, name string, result *harness.Result, update bool) (string, error) {
	data, err := harness.Snapshot(name, result)
	if err != nil {
		return "", fmt.Errorf("failed to snapshot trace: %w", err)
	}
	file := filepath.Join(dir, harness.GoldenName(name)+".golden")

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(file, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write golden file: %w", err)
		}
		return "updated", nil
	}

	want, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return "missing", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, data) {
		return "mismatch", fmt.Errorf("trace does not match %s (run with --update to regenerate)", file)
	}
	return "match", nil
}

func printScenario(f *OutputFormatter, sr ScenarioResult) {
	if !sr.Pass {
		fmt.Fprintln(f.Writer, failStyle.Render("✗ "+sr.Name))
		for _, e := range sr.Errors {
			fmt.Fprintf(f.Writer, "  %s\n", e)
		}
		return
	}
	line := successStyle.Render("✓ " + sr.Name)
	if sr.Golden == "updated" {
		line += mutedStyle.Render(" (golden updated)")
	}
	fmt.Fprintln(f.Writer, line)
}

func outputTestResult(f *OutputFormatter, result TestResult) error {
	if result.Failed > 0 {
		message := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		if f.JSON() {
			_ = f.Failure(result, ErrCodeGeneric, message)
		} else {
			fmt.Fprintln(f.Writer)
			fmt.Fprintf(f.Writer, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
		}
		return NewExitError(ExitFailure, message)
	}

	if f.JSON() {
		return f.Success(result)
	}
	if result.Total == 0 {
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}
	fmt.Fprintln(f.Writer)
	fmt.Fprintf(f.Writer, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	fmt.Fprintln(f.Writer, successStyle.Render("✓ All scenarios passed"))
	return nil
}
