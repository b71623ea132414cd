package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/roach88/warden/internal/compiler"
	"github.com/roach88/warden/internal/rules"
	"github.com/roach88/warden/internal/store"
)

// newLogger returns a slog logger that writes human-readable records to w.
func newLogger(w io.Writer, level string) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		Prefix:          "warden",
		ReportTimestamp: true,
	})
	if lvl, err := log.ParseLevel(level); err == nil {
		handler.SetLevel(lvl)
	}
	return slog.New(handler)
}

// loadRules loads the rule store from dir. Failures are written through
// f and returned as an ExitError: invalid rules exit 1, a missing
// directory exits 2.
func loadRules(f *OutputFormatter, dir string) (*rules.Store, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("rules directory not found: %s", dir), nil)
	}

	rs, err := rules.Load(dir)
	if err == nil {
		f.VerboseLog("Loaded %d feature(s) from %d file(s) in %s", len(rs.FeatureNames()), len(rs.Sources()), dir)
		return rs, nil
	}

	var ce *compiler.ConfigError
	if !errors.As(err, &ce) {
		return nil, f.Fail(ExitCommandError, ErrCodeGeneric, "failed to load rules", err)
	}
	problems := configProblems(ce)
	if f.JSON() {
		_ = f.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: problems},
			Error:  &CLIError{Code: problems[0].Code, Message: problems[0].Message},
		})
	} else {
		fmt.Fprintln(f.Writer, failStyle.Render("✗ Invalid rules in "+dir))
		for _, p := range problems {
			fmt.Fprintf(f.Writer, "  %s\n", p)
		}
	}
	return nil, WrapExitError(ExitFailure, fmt.Sprintf("invalid rules (%d problem(s))", len(problems)), err)
}

// configProblems flattens a ConfigError into validation errors. Compile
// failures have no code of their own and are reported as E001.
func configProblems(ce *compiler.ConfigError) []compiler.ValidationError {
	problems := append([]compiler.ValidationError(nil), ce.Errors...)
	if ce.Err == nil {
		return problems
	}

	var joined interface{ Unwrap() []error }
	causes := []error{ce.Err}
	if errors.As(ce.Err, &joined) {
		causes = joined.Unwrap()
	}
	for _, cause := range causes {
		ve := compiler.ValidationError{Field: "load", Message: cause.Error(), Code: ErrCodeGeneric}
		var cErr *compiler.CompileError
		if errors.As(cause, &cErr) {
			ve.Field = cErr.Field
			ve.Message = cErr.Message
			ve.Line = cErr.Line
			if cErr.Pos.IsValid() {
				ve.Line = cErr.Pos.Line()
			}
		}
		problems = append(problems, ve)
	}
	return problems
}

// openStore opens the audit store at path, creating its directory.
func openStore(f *OutputFormatter, path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, f.Fail(ExitCommandError, ErrCodeStore, "failed to create database directory", err)
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	return st, nil
}
