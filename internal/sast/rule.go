package sast

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/lang"
)

// Hit is a rule match position.
type Hit struct {
	Line   int
	Column int
}

// Matcher finds rule matches in lexed source.
type Matcher func(src *lang.Source) []Hit

// Rule is one pattern rule.
type Rule struct {
	ID         string
	Name       string
	Category   ir.Category
	Severity   ir.Severity
	Message    string
	Suggestion string

	// Languages limits the rule to these languages. Empty means all.
	Languages []lang.Language

	Match Matcher
}

// AppliesTo reports whether the rule runs on files of language l.
func (r Rule) AppliesTo(l lang.Language) bool {
	if l == lang.Unknown {
		return false
	}
	return len(r.Languages) == 0 || slices.Contains(r.Languages, l)
}

func (r Rule) finding(path string, h Hit) ir.Finding {
	f := ir.Finding{
		RuleID:     r.ID,
		Category:   r.Category,
		Severity:   r.Severity,
		File:       path,
		Line:       h.Line,
		Column:     h.Column,
		Message:    r.Message,
		Suggestion: r.Suggestion,
	}
	f.ID = ir.MustFindingID(f)
	return f
}

// Configure returns rules with settings applied: disabled rules removed
// and severities overridden. The input slice is not modified.
func Configure(rules []Rule, settings ir.RuleSettings) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if settings.Disabled(r.ID) {
			continue
		}
		if sev, ok := settings.Severity[r.ID]; ok {
			r.Severity = sev
		}
		out = append(out, r)
	}
	return out
}

// Scanner runs a fixed rule set.
type Scanner struct {
	rules  []Rule
	logger *slog.Logger
}

// NewScanner creates a scanner. A nil logger discards output.
func NewScanner(rules []Rule, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{rules: rules, logger: logger}
}

// Rules returns the scanner's rules in evaluation order.
func (s *Scanner) Rules() []Rule {
	return slices.Clone(s.rules)
}

// Scan lexes text as the language of path and runs every applicable rule.
func (s *Scanner) Scan(path, text string) []ir.Finding {
	return s.ScanSource(lang.Lex(path, lang.Detect(path), text))
}

// ScanSource runs every applicable rule over already lexed source.
// Findings come back in report order.
func (s *Scanner) ScanSource(src *lang.Source) []ir.Finding {
	var findings []ir.Finding
	for _, r := range s.rules {
		if !r.AppliesTo(src.Lang) {
			continue
		}
		hits, err := runRule(r, src)
		if err != nil {
			s.logger.Warn("rule failed", "rule", r.ID, "file", src.Path, "error", err)
			continue
		}
		for _, h := range hits {
			findings = append(findings, r.finding(src.Path, h))
		}
	}
	slices.SortStableFunc(findings, ir.CompareFindings)
	return findings
}

func runRule(r Rule, src *lang.Source) (hits []Hit, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in rule %s: %v", r.ID, rec)
		}
	}()
	return r.Match(src), nil
}
