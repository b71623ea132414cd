package ir

// FileSummary describes one analysed file.
type FileSummary struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Layer    string `json:"layer,omitempty"`
	Digest   string `json:"digest"`
	Findings int    `json:"findings"`
}

// Stats aggregates a scan. Map entries exist only for non-zero counts.
// DurationMS is wall time and is excluded from the report fingerprint.
type Stats struct {
	FilesScanned int              `json:"files_scanned"`
	FilesFailed  int              `json:"files_failed"`
	Findings     int              `json:"findings"`
	Cycles       int              `json:"cycles"`
	ByCategory   map[Category]int `json:"by_category"`
	BySeverity   map[Severity]int `json:"by_severity"`
	ByRule       map[string]int   `json:"by_rule"`
	DurationMS   int64            `json:"duration_ms"`
}

// NewStats returns Stats with initialised maps.
func NewStats() Stats {
	return Stats{
		ByCategory: map[Category]int{},
		BySeverity: map[Severity]int{},
		ByRule:     map[string]int{},
	}
}

// Count adds one finding to the aggregates.
func (s *Stats) Count(f Finding) {
	s.Findings++
	s.ByCategory[f.Category]++
	s.BySeverity[f.Severity]++
	s.ByRule[f.RuleID]++
}

// Report is the result of scanning a project.
type Report struct {
	Version     string        `json:"version"`
	Tool        string        `json:"tool"`
	Root        string        `json:"root"`
	Ruleset     string        `json:"ruleset"`
	Fingerprint string        `json:"fingerprint"`
	Files       []FileSummary `json:"files"`
	Findings    []Finding     `json:"findings"`
	Cycles      []Cycle       `json:"cycles"`
	Truncated   bool          `json:"cycles_truncated,omitempty"`
	Errors      []FileError   `json:"errors"`
	Stats       Stats         `json:"stats"`
}

// CountAtOrAbove returns the number of findings whose severity ranks at
// least min.
func (r *Report) CountAtOrAbove(min Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity.Rank() >= min.Rank() {
			n++
		}
	}
	return n
}
