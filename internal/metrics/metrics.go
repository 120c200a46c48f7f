// Package metrics exposes Prometheus instrumentation for extraction ingestion
// and the session lifecycle.
//
// Labels are kept bounded:
//
//   - document_type: one of the known document types or "other"
//   - reason:        why a session left the registry ("closed" or "expired")
//
// A nil *Collector is valid and records nothing, so components can be built
// without metrics in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Session removal reasons.
const (
	ReasonClosed  = "closed"
	ReasonExpired = "expired"
)

// Collector groups the ingestion and session collectors.
type Collector struct {
	extractions       *prometheus.CounterVec
	ingestionErrors   prometheus.Counter
	sessionsActive    prometheus.Gauge
	sessionsOpened    prometheus.Counter
	sessionsRemoved   *prometheus.CounterVec
	sessionsRecovered prometheus.Counter
}

// NewCollector builds the collectors and registers them with reg when reg is not nil.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dossier_extractions_total",
				Help: "Extractions merged into client aggregators, by document type.",
			},
			[]string{"document_type"},
		),
		ingestionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dossier_ingestion_errors_total",
			Help: "Files reported as failed by the ingestion caller.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dossier_sessions_active",
			Help: "Sessions currently held in the registry.",
		}),
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dossier_sessions_opened_total",
			Help: "Sessions created in the registry.",
		}),
		sessionsRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dossier_sessions_removed_total",
				Help: "Sessions removed from the registry, by reason.",
			},
			[]string{"reason"},
		),
		sessionsRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dossier_sessions_recovered_total",
			Help: "Sessions rebuilt from a persisted summary.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.extractions,
			c.ingestionErrors,
			c.sessionsActive,
			c.sessionsOpened,
			c.sessionsRemoved,
			c.sessionsRecovered,
		)
	}
	return c
}

// ExtractionMerged counts one merged extraction.
func (c *Collector) ExtractionMerged(documentType string) {
	if c == nil {
		return
	}
	c.extractions.WithLabelValues(documentType).Inc()
}

// IngestionError counts one caller-reported failure.
func (c *Collector) IngestionError() {
	if c == nil {
		return
	}
	c.ingestionErrors.Inc()
}

// SessionOpened records a session entering the registry.
func (c *Collector) SessionOpened(recovered bool) {
	if c == nil {
		return
	}
	c.sessionsActive.Inc()
	if recovered {
		c.sessionsRecovered.Inc()
		return
	}
	c.sessionsOpened.Inc()
}

// SessionRemoved records a session leaving the registry.
func (c *Collector) SessionRemoved(reason string) {
	if c == nil {
		return
	}
	c.sessionsActive.Dec()
	c.sessionsRemoved.WithLabelValues(reason).Inc()
}
