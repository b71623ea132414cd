// Package metrics defines the Prometheus collectors warden exports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/warden/internal/ir"
)

// Collectors groups scan and transition metrics. A nil *Collectors is
// valid and records nothing.
type Collectors struct {
	scans       *prometheus.CounterVec
	files       prometheus.Counter
	fileErrors  *prometheus.CounterVec
	findings    *prometheus.CounterVec
	duration    prometheus.Histogram
	transitions *prometheus.CounterVec
}

// New registers collectors with reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collectors{
		scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_scans_total",
			Help: "Total number of project scans by outcome (ok, findings, error)",
		}, []string{"outcome"}),
		files: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_files_scanned_total",
			Help: "Total number of source files analysed",
		}),
		fileErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_file_errors_total",
			Help: "Total number of files that could not be fully analysed, by kind",
		}, []string{"kind"}),
		findings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_findings_total",
			Help: "Total number of findings by rule and severity",
		}, []string{"rule", "severity"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_scan_duration_seconds",
			Help:    "Wall time of project scans",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_transitions_total",
			Help: "Total number of state transitions by feature and outcome (ok, rejected, sync)",
		}, []string{"feature", "outcome"}),
	}
}

// ObserveFile counts one analysed file.
func (c *Collectors) ObserveFile() {
	if c == nil {
		return
	}
	c.files.Inc()
}

// ObserveFileError counts one file error.
func (c *Collectors) ObserveFileError(kind string) {
	if c == nil {
		return
	}
	c.fileErrors.WithLabelValues(kind).Inc()
}

// ObserveReport records a finished scan.
func (c *Collectors) ObserveReport(r *ir.Report, elapsed time.Duration) {
	if c == nil {
		return
	}
	outcome := "ok"
	if len(r.Findings) > 0 {
		outcome = "findings"
	}
	c.scans.WithLabelValues(outcome).Inc()
	c.duration.Observe(elapsed.Seconds())
	for _, f := range r.Findings {
		c.findings.WithLabelValues(f.RuleID, string(f.Severity)).Inc()
	}
}

// ObserveScanError records a scan that did not produce a report.
func (c *Collectors) ObserveScanError() {
	if c == nil {
		return
	}
	c.scans.WithLabelValues("error").Inc()
}

// ObserveTransition records a state change attempt.
func (c *Collectors) ObserveTransition(feature, outcome string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(feature, outcome).Inc()
}
