// Package metrics provides Prometheus metrics for the compliance engine.
//
// The Collector owns a prometheus.Registry and groups metrics by concern:
// policy lifecycle (version transitions, promotions, approval decisions),
// campaigns (creation, expansion, acknowledgments), and the SLA sweep
// (passes, breaches, escalations per level). Components receive the metric
// group they need; a nil group disables recording.
package metrics
