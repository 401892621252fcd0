package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/themis/pkg/config"
)

// Collector is the orchestrator for all Prometheus metrics in Themis. It
// manages metric registration and provides a unified interface for recording
// metrics across the policy lifecycle, campaign, and SLA components.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Policy lifecycle metrics
	policyMetrics *PolicyMetrics

	// Campaign/acknowledgment metrics
	campaignMetrics *CampaignMetrics

	// SLA sweep metrics
	slaMetrics *SLAMetrics
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a fresh registry
// is used.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "themis"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "engine"
	}

	return &Collector{
		config:          cfg,
		registry:        registry,
		policyMetrics:   NewPolicyMetrics(cfg, registry),
		campaignMetrics: NewCampaignMetrics(cfg, registry),
		slaMetrics:      NewSLAMetrics(cfg, registry),
	}
}

// Policy returns the policy lifecycle metrics.
func (c *Collector) Policy() *PolicyMetrics { return c.policyMetrics }

// Campaign returns the campaign/acknowledgment metrics.
func (c *Collector) Campaign() *CampaignMetrics { return c.campaignMetrics }

// SLA returns the SLA sweep metrics.
func (c *Collector) SLA() *SLAMetrics { return c.slaMetrics }

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }
