package ir

import "strings"

// Severity ranks a finding.
type Severity string

// Severity levels, highest first. SeverityInfo is reserved for
// informational findings that are not security issues.
const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
	SeverityInfo   Severity = "info"
)

// ValidSeverities lists every accepted severity.
var ValidSeverities = []Severity{SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// Rank orders severities; higher is more severe. Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// ParseSeverity accepts a severity name in any case.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if sev.Rank() == 0 {
		return "", false
	}
	return sev, true
}

// Category groups findings for statistics.
type Category string

// Finding categories.
const (
	CategorySecurity       Category = "security"
	CategoryAntipattern    Category = "antipattern"
	CategoryTyposquat      Category = "typosquat"
	CategoryUnknownPackage Category = "unknown-package"
	CategoryLayer          Category = "layer-violation"
	CategoryUnclassified   Category = "unclassified"
	CategoryCycle          Category = "cycle"
)

// Finding is one reported issue at a source location.
type Finding struct {
	ID         string   `json:"id"`
	RuleID     string   `json:"rule_id"`
	Category   Category `json:"category"`
	Severity   Severity `json:"severity"`
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Column     int      `json:"column,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Less orders findings by file, line, rule ID, then column and message so
// the order is total and independent of discovery order.
func (f Finding) Less(o Finding) bool {
	return CompareFindings(f, o) < 0
}

// CompareFindings is the three-way form of Less, for slices.SortFunc.
func CompareFindings(a, b Finding) int {
	if c := strings.Compare(a.File, b.File); c != 0 {
		return c
	}
	if a.Line != b.Line {
		if a.Line < b.Line {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.RuleID, b.RuleID); c != 0 {
		return c
	}
	if a.Column != b.Column {
		if a.Column < b.Column {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Message, b.Message)
}

// Cycle is an elementary dependency cycle. The first node is repeated at
// the end: A -> B -> C -> A is [A, B, C, A]; a self-loop is [A, A].
type Cycle struct {
	Path []string `json:"path"`
}

// String renders the cycle as "a → b → a".
func (c Cycle) String() string {
	return strings.Join(c.Path, " → ")
}

// FileError kinds.
const (
	FileErrorRead     = "read"
	FileErrorDecode   = "decode"
	FileErrorTooLarge = "too-large"
	FileErrorGraph    = "graph"
	FileErrorManifest = "manifest"
)

// FileError records a file that could not be fully analysed. Per-file
// failures never abort a scan; they are collected here instead.
type FileError struct {
	File    string `json:"file"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Error implements error.
func (e *FileError) Error() string {
	return e.Kind + " " + e.File + ": " + e.Message
}
