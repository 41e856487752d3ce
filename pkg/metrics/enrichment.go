package metrics

import "github.com/prometheus/client_golang/prometheus"

// EnrichmentMetrics tracks outcomes of background enrichment runs per step
// (geocode, classify, patch, publish).
type EnrichmentMetrics struct {
	completed *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewEnrichmentMetrics registers enrichment counters on the provided registerer.
func NewEnrichmentMetrics(reg prometheus.Registerer) *EnrichmentMetrics {
	if reg == nil {
		return &EnrichmentMetrics{}
	}
	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_step_completed",
		Help: "Enrichment pipeline steps that completed.",
	}, []string{"step"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_step_failed",
		Help: "Enrichment pipeline steps that failed.",
	}, []string{"step"})
	reg.MustRegister(completed, failed)
	return &EnrichmentMetrics{completed: completed, failed: failed}
}

// IncCompleted increments the completion counter for the named step.
func (m *EnrichmentMetrics) IncCompleted(step string) {
	if m == nil || m.completed == nil {
		return
	}
	m.completed.WithLabelValues(normalizeLabel(step)).Inc()
}

// IncFailed increments the failure counter for the named step.
func (m *EnrichmentMetrics) IncFailed(step string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(step)).Inc()
}
