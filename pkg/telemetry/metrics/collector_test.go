package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/themis/pkg/config"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()

	cfg := &config.MetricsConfig{
		Enabled:   true,
		Namespace: "themis",
		Subsystem: "engine",
	}
	return NewCollector(cfg, prometheus.NewRegistry())
}

func gather(t *testing.T, c *Collector) map[string]bool {
	t.Helper()

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestCollector_RecordsAllFamilies(t *testing.T) {
	c := newTestCollector(t)

	c.Policy().RecordTransition("pending_approval")
	c.Policy().RecordPromotion("activated")
	c.Policy().RecordDecision("approved")
	c.Campaign().RecordCampaign("periodic")
	c.Campaign().RecordRequestsCreated(10)
	c.Campaign().RecordExpandDuplicates(3)
	c.Campaign().RecordAcknowledgment(true)
	c.SLA().RecordSweep(120 * time.Millisecond)
	c.SLA().RecordBreach()
	c.SLA().RecordEscalation(2)
	c.SLA().RecordReminder()

	names := gather(t, c)
	want := []string{
		"themis_engine_version_transitions_total",
		"themis_engine_promotions_total",
		"themis_engine_approval_decisions_total",
		"themis_engine_campaigns_created_total",
		"themis_engine_requests_created_total",
		"themis_engine_expand_duplicates_total",
		"themis_engine_acknowledgments_total",
		"themis_engine_sweeps_total",
		"themis_engine_sweep_duration_seconds",
		"themis_engine_breaches_total",
		"themis_engine_escalations_total",
		"themis_engine_reminders_total",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("Metric family %s not gathered", name)
		}
	}
}

func TestCollector_Handler(t *testing.T) {
	c := newTestCollector(t)
	c.SLA().RecordBreach()
	c.SLA().RecordBreach()

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}

	if !strings.Contains(string(data), "themis_engine_breaches_total 2") {
		t.Errorf("Exposition missing breach counter:\n%s", data)
	}
}
