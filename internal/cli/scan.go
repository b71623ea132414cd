package cli

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/graph"
	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/metrics"
	"github.com/roach88/warden/internal/rules"
	"github.com/roach88/warden/internal/scan"
)

// ScanOptions holds flags for the scan command.
type ScanOptions struct {
	*RootOptions
	Rules       string        // rules directory (default: the scan root)
	DB          string        // audit database to record the report in
	FailOn      string        // severity threshold, or "none"
	Exclude     []string      // path patterns to leave out
	Workers     int           // worker count (default: settings)
	Watch       bool          // rescan on change
	Debounce    time.Duration // quiet period before a rescan
	MetricsAddr string        // listen address for /metrics in watch mode
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan [root]",
		Short: "Scan a source tree",
		Long: `Scan a source tree for insecure patterns, suspicious dependencies,
layer violations and import cycles.

Rules (warden.cue and features/) are read from the scan root unless
--rules points elsewhere. Findings are reported in a stable order; the
report fingerprint changes only when findings or cycles change.

Exit codes:
  0 - No findings at or above --fail-on
  1 - Findings at or above --fail-on
  2 - Command error (root not found, invalid rules path, etc.)

Examples:
  warden scan .
  warden scan ./service --fail-on medium --exclude "vendor/**"
  warden scan . --db .warden/warden.db --format json
  warden scan . --watch --metrics-addr :9090`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runScan(cmd.Context(), opts, root, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Rules, "rules", "", "rules directory (default: the scan root)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "record the report in this audit database")
	cmd.Flags().StringVar(&opts.FailOn, "fail-on", "", "fail on findings at or above this severity, or \"none\" (default from settings)")
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "path patterns to exclude, relative to the root")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "number of workers (default from settings)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "rescan whenever files change")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", scan.DefaultDebounce, "quiet period before a rescan in watch mode")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address in watch mode")

	return cmd
}

func runScan(ctx context.Context, opts *ScanOptions, root string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg := opts.settings()
	if ctx == nil {
		ctx = context.Background()
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scan root not found: %s", root), nil)
	}

	threshold, failing, err := failThreshold(opts.FailOn, cfg.FailOn)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid --fail-on", err)
	}

	rs, err := loadRules(f, cmp.Or(opts.Rules, root))
	if err != nil {
		return err
	}

	var collectors *metrics.Collectors
	var registry *prometheus.Registry
	if opts.Watch && opts.MetricsAddr != "" {
		registry = prometheus.NewRegistry()
		collectors = metrics.New(registry)
	}

	scanner, err := scan.New(scan.Config{
		Rules:       rs,
		Workers:     cmp.Or(opts.Workers, cfg.Workers),
		MaxFileSize: cfg.MaxFileSize,
		SkipDirs:    cfg.SkipDirs,
		Exclude:     opts.Exclude,
		MaxCycles:   cfg.MaxCycles,
		Logger:      opts.logger(),
		Metrics:     collectors,
	})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScanError, "invalid scan configuration", err)
	}

	if opts.Watch {
		return watchScan(ctx, opts, f, scanner, registry, root)
	}

	report, err := scanner.ScanProject(ctx, root)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScanError, "scan failed", err)
	}
	if err := recordScan(ctx, opts, f, report); err != nil {
		return err
	}
	return outputReport(f, report, threshold, failing)
}

// failThreshold resolves the --fail-on flag against the settings default.
func failThreshold(flag, fallback string) (ir.Severity, bool, error) {
	value := cmp.Or(flag, fallback)
	if value == "none" {
		return "", false, nil
	}
	sev, ok := ir.ParseSeverity(value)
	if !ok {
		return "", false, fmt.Errorf("%q is not one of %v or none", value, ir.ValidSeverities)
	}
	return sev, true, nil
}

// recordScan saves the report to the audit database when --db is set.
func recordScan(ctx context.Context, opts *ScanOptions, f *OutputFormatter, report *ir.Report) error {
	if opts.DB == "" {
		return nil
	}
	st, err := openStore(f, opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.SaveScan(ctx, report)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to record scan", err)
	}
	f.VerboseLog("Recorded scan %s in %s", id, opts.DB)
	return nil
}

// watchScan rescans on change until interrupted. Findings never fail a
// watch run.
func watchScan(ctx context.Context, opts *ScanOptions, f *OutputFormatter, scanner *scan.Scanner, registry *prometheus.Registry, root string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if registry != nil {
		srv := &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           metricsMux(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				opts.logger().Error("metrics server stopped", "addr", opts.MetricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		opts.logger().Info("serving metrics", "addr", opts.MetricsAddr)
	}

	err := scanner.Watch(ctx, root, scan.WatchOptions{
		Debounce: opts.Debounce,
		OnReport: func(report *ir.Report, err error) {
			if err != nil {
				_ = f.Error(ErrCodeScanError, fmt.Sprintf("scan failed: %v", err), nil)
				return
			}
			if err := recordScan(ctx, opts, f, report); err != nil {
				return
			}
			_ = outputReport(f, report, "", false)
			f.VerboseLog("%d file(s) analysed since watch started", scanner.Analysed())
		},
	})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScanError, "watch failed", err)
	}
	return nil
}

func metricsMux(registry *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}

// outputReport writes a report and returns an ExitFailure error when
// failing is set and findings reach threshold.
func outputReport(f *OutputFormatter, report *ir.Report, threshold ir.Severity, failing bool) error {
	over := 0
	if failing {
		over = report.CountAtOrAbove(threshold)
	}

	if f.JSON() {
		if over > 0 {
			message := fmt.Sprintf("%d finding(s) at or above %s", over, threshold)
			_ = f.Failure(report, ErrCodeFindings, message)
			return NewExitError(ExitFailure, message)
		}
		return f.Success(report)
	}

	writeReportText(f, report)
	if over > 0 {
		message := fmt.Sprintf("%d finding(s) at or above %s", over, threshold)
		_ = f.Failure(nil, ErrCodeFindings, message)
		return NewExitError(ExitFailure, message)
	}
	return nil
}

func writeReportText(f *OutputFormatter, report *ir.Report) {
	w := f.Writer
	writeFindings(f, report.Findings)

	if len(report.Cycles) > 0 {
		fmt.Fprintln(w, titleStyle.Render("Import cycles"))
		res := graph.Result{Cycles: report.Cycles, Truncated: report.Truncated}
		for _, line := range strings.Split(strings.TrimSuffix(graph.Describe(res), "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
		fmt.Fprintln(w)
	}

	if len(report.Errors) > 0 {
		fmt.Fprintln(w, titleStyle.Render("Skipped"))
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  %s %s\n", e.File, mutedStyle.Render("("+e.Kind+": "+e.Message+")"))
		}
		fmt.Fprintln(w)
	}

	stats := report.Stats
	summary := fmt.Sprintf("%d file(s) scanned, %d finding(s), %d cycle(s)", stats.FilesScanned, stats.Findings, stats.Cycles)
	if stats.FilesFailed > 0 {
		summary += fmt.Sprintf(", %d file(s) skipped", stats.FilesFailed)
	}
	if stats.Findings == 0 && stats.Cycles == 0 {
		fmt.Fprintln(w, successStyle.Render("✓ "+summary))
	} else {
		fmt.Fprintln(w, summary)
		var parts []string
		for _, sev := range ir.ValidSeverities {
			if n := stats.BySeverity[sev]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s: %d", sev, n))
			}
		}
		if len(parts) > 0 {
			fmt.Fprintln(w, mutedStyle.Render("  "+strings.Join(parts, ", ")))
		}
	}
	fmt.Fprintln(w, mutedStyle.Render("  fingerprint "+report.Fingerprint))
}

// writeFindings prints findings grouped by file, in report order.
func writeFindings(f *OutputFormatter, findings []ir.Finding) {
	w := f.Writer
	file := ""
	for _, fd := range findings {
		if fd.File != file {
			if file != "" {
				fmt.Fprintln(w)
			}
			file = fd.File
			fmt.Fprintln(w, titleStyle.Render(file))
		}
		loc := fmt.Sprintf("%d", fd.Line)
		if fd.Column > 0 {
			loc = fmt.Sprintf("%d:%d", fd.Line, fd.Column)
		}
		fmt.Fprintf(w, "  %-8s %s %-10s %s\n", loc, severityLabel(fd.Severity), fd.RuleID, fd.Message)
		if fd.Suggestion != "" {
			fmt.Fprintf(w, "  %s\n", mutedStyle.Render("         → "+fd.Suggestion))
		}
	}
	if file != "" {
		fmt.Fprintln(w)
	}
}

// checkerFor returns a scanner restricted to checks, built from the
// resolved settings.
func checkerFor(opts *RootOptions, rs *rules.Store, checks scan.Check) (*scan.Scanner, error) {
	cfg := opts.settings()
	return scan.New(scan.Config{
		Rules:       rs,
		Checks:      checks,
		Workers:     cfg.Workers,
		MaxFileSize: cfg.MaxFileSize,
		SkipDirs:    cfg.SkipDirs,
		MaxCycles:   cfg.MaxCycles,
		Logger:      opts.logger(),
	})
}
