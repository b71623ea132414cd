package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/warden/internal/ir"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveFile()
	c.ObserveFile()
	c.ObserveFileError(ir.FileErrorDecode)
	c.ObserveReport(&ir.Report{Findings: []ir.Finding{
		{RuleID: "SEC001", Severity: ir.SeverityHigh},
		{RuleID: "SEC001", Severity: ir.SeverityHigh},
		{RuleID: "AP001", Severity: ir.SeverityLow},
	}}, 250*time.Millisecond)
	c.ObserveReport(&ir.Report{}, time.Millisecond)
	c.ObserveScanError()
	c.ObserveTransition("orders", "ok")

	assert.InDelta(t, 2, testutil.ToFloat64(c.files), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.fileErrors.WithLabelValues("decode")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.findings.WithLabelValues("SEC001", "high")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.scans.WithLabelValues("findings")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.scans.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.scans.WithLabelValues("error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.transitions.WithLabelValues("orders", "ok")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestNilCollectors(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.ObserveFile()
		c.ObserveFileError("read")
		c.ObserveReport(&ir.Report{}, time.Second)
		c.ObserveScanError()
		c.ObserveTransition("orders", "ok")
	})
}
