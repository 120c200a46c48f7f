package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_SessionLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SessionOpened(false)
	c.SessionOpened(false)
	c.SessionOpened(true)
	c.SessionRemoved(ReasonClosed)
	c.SessionRemoved(ReasonExpired)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.sessionsActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.sessionsOpened))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.sessionsRecovered))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.sessionsRemoved.WithLabelValues(ReasonExpired)))
}

func TestCollector_Ingestion(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ExtractionMerged("payslip")
	c.ExtractionMerged("payslip")
	c.ExtractionMerged("other")
	c.IngestionError()

	assert.Equal(t, float64(2), testutil.ToFloat64(c.extractions.WithLabelValues("payslip")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.ingestionErrors))

	count, err := testutil.GatherAndCount(reg, "dossier_extractions_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ExtractionMerged("payslip")
		c.IngestionError()
		c.SessionOpened(true)
		c.SessionRemoved(ReasonClosed)
	})
}

func TestNewCollector_WithoutRegistry(t *testing.T) {
	c := NewCollector(nil)
	c.ExtractionMerged("tax_return")
	assert.Equal(t, float64(1), testutil.ToFloat64(c.extractions.WithLabelValues("tax_return")))
}
