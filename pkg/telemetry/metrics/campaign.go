package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/themis/pkg/config"
)

// CampaignMetrics tracks metrics for campaign expansion and acknowledgments.
//
// Metrics:
//   - themis_engine_campaigns_created_total: Campaigns created by type
//   - themis_engine_requests_created_total: Requests created by expansion
//   - themis_engine_expand_duplicates_total: Expansion no-ops on existing requests
//   - themis_engine_acknowledgments_total: Recorded acknowledgments by timeliness
type CampaignMetrics struct {
	campaignsCreated *prometheus.CounterVec
	requestsCreated  prometheus.Counter
	expandDuplicates prometheus.Counter
	acknowledgments  *prometheus.CounterVec
}

// NewCampaignMetrics creates and registers campaign metrics with the provided registry.
func NewCampaignMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CampaignMetrics {
	cm := &CampaignMetrics{
		campaignsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "campaigns_created_total",
				Help:      "Total number of acknowledgment campaigns created",
			},
			[]string{"type"},
		),
		requestsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_created_total",
				Help:      "Total number of acknowledgment requests created by expansion",
			},
		),
		expandDuplicates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "expand_duplicates_total",
				Help:      "Total number of expansion no-ops on already existing requests",
			},
		),
		acknowledgments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "acknowledgments_total",
				Help:      "Total number of recorded acknowledgments by timeliness",
			},
			[]string{"timeliness"}, // "on_time" or "late"
		),
	}

	registry.MustRegister(cm.campaignsCreated, cm.requestsCreated, cm.expandDuplicates, cm.acknowledgments)
	return cm
}

// RecordCampaign records one created campaign.
func (cm *CampaignMetrics) RecordCampaign(campaignType string) {
	cm.campaignsCreated.WithLabelValues(campaignType).Inc()
}

// RecordRequestsCreated records requests created by one expansion.
func (cm *CampaignMetrics) RecordRequestsCreated(n int) {
	cm.requestsCreated.Add(float64(n))
}

// RecordExpandDuplicates records expansion no-ops.
func (cm *CampaignMetrics) RecordExpandDuplicates(n int) {
	cm.expandDuplicates.Add(float64(n))
}

// RecordAcknowledgment records one acknowledgment.
func (cm *CampaignMetrics) RecordAcknowledgment(late bool) {
	timeliness := "on_time"
	if late {
		timeliness = "late"
	}
	cm.acknowledgments.WithLabelValues(timeliness).Inc()
}
