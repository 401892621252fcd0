package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/themis/pkg/config"
)

// SLAMetrics tracks metrics for the SLA sweep and escalation walk.
//
// Metrics:
//   - themis_engine_sweeps_total: Completed sweep passes
//   - themis_engine_sweep_duration_seconds: Sweep duration histogram
//   - themis_engine_sweep_errors_total: Per-request processing errors
//   - themis_engine_breaches_total: Requests transitioned to breached
//   - themis_engine_escalations_total: Escalation notifications by level
//   - themis_engine_reminders_total: Reminder notifications
type SLAMetrics struct {
	sweepsTotal   prometheus.Counter
	sweepDuration prometheus.Histogram
	sweepErrors   prometheus.Counter
	breachesTotal prometheus.Counter
	escalations   *prometheus.CounterVec
	reminders     prometheus.Counter
}

// NewSLAMetrics creates and registers SLA metrics with the provided registry.
func NewSLAMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SLAMetrics {
	sm := &SLAMetrics{
		sweepsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sweeps_total",
				Help:      "Total number of completed SLA sweep passes",
			},
		),
		sweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of SLA sweep passes in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0},
			},
		),
		sweepErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sweep_errors_total",
				Help:      "Total number of per-request processing errors during sweeps",
			},
		),
		breachesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "breaches_total",
				Help:      "Total number of acknowledgment requests transitioned to breached",
			},
		),
		escalations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "escalations_total",
				Help:      "Total number of escalation notifications by level",
			},
			[]string{"level"},
		),
		reminders: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "reminders_total",
				Help:      "Total number of reminder notifications",
			},
		),
	}

	registry.MustRegister(sm.sweepsTotal, sm.sweepDuration, sm.sweepErrors,
		sm.breachesTotal, sm.escalations, sm.reminders)
	return sm
}

// RecordSweep records one completed sweep pass and its duration.
func (sm *SLAMetrics) RecordSweep(d time.Duration) {
	sm.sweepsTotal.Inc()
	sm.sweepDuration.Observe(d.Seconds())
}

// RecordSweepError records one isolated per-request processing error.
func (sm *SLAMetrics) RecordSweepError() {
	sm.sweepErrors.Inc()
}

// RecordBreach records one breach transition.
func (sm *SLAMetrics) RecordBreach() {
	sm.breachesTotal.Inc()
}

// RecordEscalation records one escalation notification at the given level.
func (sm *SLAMetrics) RecordEscalation(level int) {
	sm.escalations.WithLabelValues(strconv.Itoa(level)).Inc()
}

// RecordReminder records one reminder notification.
func (sm *SLAMetrics) RecordReminder() {
	sm.reminders.Inc()
}
