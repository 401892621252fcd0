package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/themis/pkg/config"
)

// PolicyMetrics tracks metrics for the version store and approval workflow.
//
// Metrics:
//   - themis_engine_version_transitions_total: Version state transitions by target status
//   - themis_engine_promotions_total: Version promotions by outcome
//   - themis_engine_approval_decisions_total: Approval decisions by decision
type PolicyMetrics struct {
	// Version state transitions, labeled by target status
	transitionsTotal *prometheus.CounterVec

	// Promotions, labeled by outcome ("activated", "conflict")
	promotionsTotal *prometheus.CounterVec

	// Approval decisions, labeled by decision ("approved", "rejected")
	decisionsTotal *prometheus.CounterVec
}

// NewPolicyMetrics creates and registers policy metrics with the provided registry.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "version_transitions_total",
				Help:      "Total number of policy version state transitions",
			},
			[]string{"to_status"},
		),
		promotionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "promotions_total",
				Help:      "Total number of version promotion attempts by outcome",
			},
			[]string{"outcome"},
		),
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "approval_decisions_total",
				Help:      "Total number of approval decisions",
			},
			[]string{"decision"},
		),
	}

	registry.MustRegister(pm.transitionsTotal, pm.promotionsTotal, pm.decisionsTotal)
	return pm
}

// RecordTransition records one version state transition.
func (pm *PolicyMetrics) RecordTransition(toStatus string) {
	pm.transitionsTotal.WithLabelValues(toStatus).Inc()
}

// RecordPromotion records one promotion attempt.
func (pm *PolicyMetrics) RecordPromotion(outcome string) {
	pm.promotionsTotal.WithLabelValues(outcome).Inc()
}

// RecordDecision records one approval decision.
func (pm *PolicyMetrics) RecordDecision(decision string) {
	pm.decisionsTotal.WithLabelValues(decision).Inc()
}
