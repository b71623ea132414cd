package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/warden/internal/engine"
	"github.com/roach88/warden/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func event(seq int64, kind engine.EventKind, from, to string) engine.Event {
	return engine.Event{Seq: seq, Feature: "orders", Kind: kind, From: from, To: to}
}

// createTestReport builds a small report for root with one finding.
func createTestReport(root string) *ir.Report {
	f := ir.Finding{
		RuleID:   "SEC004",
		Category: ir.CategorySecurity,
		Severity: ir.SeverityMedium,
		File:     "app/hash.py",
		Line:     3,
		Message:  "weak hash algorithm md5",
	}
	f.ID = ir.MustFindingID(f)
	stats := ir.NewStats()
	stats.FilesScanned = 1
	stats.Count(f)
	return &ir.Report{
		Version:     ir.ReportVersion,
		Tool:        "warden",
		Root:        root,
		Ruleset:     "test",
		Fingerprint: "fp-" + root,
		Files:       []ir.FileSummary{{Path: "app/hash.py", Language: "python", Digest: "d", Findings: 1}},
		Findings:    []ir.Finding{f},
		Cycles:      []ir.Cycle{},
		Errors:      []ir.FileError{},
		Stats:       stats,
	}
}
