package sla

import (
	"context"
	"testing"
	"time"

	"mercator-hq/themis/pkg/compliance"
	"mercator-hq/themis/pkg/compliance/storage"
	"mercator-hq/themis/pkg/notify"
)

// staticMatrices serves one matrix for every (company, type) pair.
type staticMatrices []compliance.EscalationStep

func (m staticMatrices) MatrixFor(context.Context, string, compliance.CampaignType) ([]compliance.EscalationStep, error) {
	return m, nil
}

type sweepFixture struct {
	store    *storage.MemoryStore
	notifier *notify.MemoryNotifier
	sweeper  *Sweeper
	campaign *compliance.AcknowledgmentCampaign

	clock time.Time
}

func newSweepFixture(t *testing.T, matrix []compliance.EscalationStep, opts SweeperOptions) *sweepFixture {
	t.Helper()

	f := &sweepFixture{
		store:    storage.NewMemoryStore(),
		notifier: notify.NewMemoryNotifier(),
		clock:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	f.sweeper = NewSweeper(f.store, staticMatrices(matrix), f.notifier, nil, opts)
	f.sweeper.now = func() time.Time { return f.clock }

	f.campaign = &compliance.AcknowledgmentCampaign{
		ID:              compliance.NewID(),
		CompanyID:       "acme",
		Type:            compliance.CampaignTypePeriodic,
		VersionIDs:      []string{"ver-1"},
		StartDate:       f.clock.AddDate(0, 0, -30),
		EndDate:         f.clock.AddDate(0, 0, -10),
		GracePeriodDays: 0,
		CreatedAt:       f.clock.AddDate(0, 0, -30),
	}
	if err := f.store.CreateCampaign(context.Background(), f.campaign); err != nil {
		t.Fatalf("CreateCampaign() failed: %v", err)
	}
	return f
}

func (f *sweepFixture) seedRequest(t *testing.T, employeeID string, due time.Time) *compliance.AcknowledgmentRequest {
	t.Helper()

	req := &compliance.AcknowledgmentRequest{
		ID:         compliance.NewID(),
		CampaignID: f.campaign.ID,
		CompanyID:  f.campaign.CompanyID,
		EmployeeID: employeeID,
		VersionID:  "ver-1",
		Status:     compliance.RequestStatusPending,
		DueDate:    due,
		CreatedAt:  due.AddDate(0, 0, -14),
	}
	if _, err := f.store.InsertRequest(context.Background(), req); err != nil {
		t.Fatalf("InsertRequest() failed: %v", err)
	}
	return req
}

func (f *sweepFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func TestSweeper_MarksOverdueBreached(t *testing.T) {
	f := newSweepFixture(t, defaultMatrix(), SweeperOptions{})
	req := f.seedRequest(t, "emp-1", f.clock.Add(-time.Hour))
	f.seedRequest(t, "emp-2", f.clock.Add(48*time.Hour))

	stats, err := f.sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if stats.Scanned != 2 || stats.Breached != 1 {
		t.Errorf("stats = %+v, want 2 scanned and 1 breached", stats)
	}

	got, err := f.store.GetRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("GetRequest() failed: %v", err)
	}
	if got.Status != compliance.RequestStatusBreached || got.BreachedAt == nil {
		t.Errorf("request status = %s, BreachedAt = %v, want breached with timestamp", got.Status, got.BreachedAt)
	}
}

func TestSweeper_EscalatesAfterWait(t *testing.T) {
	f := newSweepFixture(t, defaultMatrix(), SweeperOptions{})
	req := f.seedRequest(t, "emp-1", f.clock.Add(-time.Minute))

	// First pass breaches; no level is due yet.
	stats, err := f.sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if stats.Breached != 1 || stats.Escalated != 0 {
		t.Errorf("first pass stats = %+v, want breach without escalation", stats)
	}

	f.advance(25 * time.Hour)
	stats, err = f.sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if stats.Escalated != 1 {
		t.Errorf("second pass escalated %d, want 1", stats.Escalated)
	}

	got, err := f.store.GetRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("GetRequest() failed: %v", err)
	}
	if got.EscalationLevel != 1 || !got.IsEscalated {
		t.Errorf("request level = %d escalated = %v, want level 1", got.EscalationLevel, got.IsEscalated)
	}

	msgs := f.notifier.Messages()
	if len(msgs) != 1 {
		t.Fatalf("notifier has %d messages, want 1", len(msgs))
	}
	if msgs[0].Kind != notify.KindEscalation || msgs[0].RecipientRole != "manager" {
		t.Errorf("message = %+v, want a level 1 escalation to manager", msgs[0])
	}
}

func TestSweeper_WalksMultipleLevelsInOnePass(t *testing.T) {
	f := newSweepFixture(t, defaultMatrix(), SweeperOptions{})
	f.seedRequest(t, "emp-1", f.clock.Add(-time.Minute))

	if _, err := f.sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}

	// Long outage: by the next sweep the breach is two rungs old.
	f.advance(100 * time.Hour)
	stats, err := f.sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if stats.Escalated != 2 {
		t.Errorf("escalated %d, want 2 (levels 1 and 2)", stats.Escalated)
	}

	msgs := f.notifier.Messages()
	if len(msgs) != 2 {
		t.Fatalf("notifier has %d messages, want 2", len(msgs))
	}
	if msgs[0].Payload["level"] != "1" || msgs[1].Payload["level"] != "2" {
		t.Errorf("levels = %s, %s, want 1 then 2", msgs[0].Payload["level"], msgs[1].Payload["level"])
	}
	if msgs[1].RecipientRole != "compliance_officer" {
		t.Errorf("level 2 recipient = %s, want compliance_officer", msgs[1].RecipientRole)
	}
}

func TestSweeper_NeverRenotifiesClaimedLevel(t *testing.T) {
	f := newSweepFixture(t, defaultMatrix(), SweeperOptions{})
	req := f.seedRequest(t, "emp-1", f.clock.Add(-time.Minute))

	if _, err := f.sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}

	f.advance(25 * time.Hour)
	for i := 0; i < 3; i++ {
		if _, err := f.sweeper.Sweep(context.Background()); err != nil {
			t.Fatalf("Sweep() %d failed: %v", i, err)
		}
	}

	if msgs := f.notifier.Messages(); len(msgs) != 1 {
		t.Errorf("notifier has %d messages after repeated sweeps, want 1", len(msgs))
	}

	got, err := f.store.GetRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("GetRequest() failed: %v", err)
	}
	if got.EscalationLevel != 1 {
		t.Errorf("request level = %d, want 1", got.EscalationLevel)
	}
}

func TestSweeper_LostAdvanceStaysQuiet(t *testing.T) {
	f := newSweepFixture(t, defaultMatrix(), SweeperOptions{})
	req := f.seedRequest(t, "emp-1", f.clock.Add(-time.Minute))
	ctx := context.Background()

	if _, err := f.sweeper.Sweep(ctx); err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}

	// Snapshot the request at level 0, as a sweep in flight would hold it.
	stale, err := f.store.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetRequest() failed: %v", err)
	}

	// A concurrent worker claims level 1 before this sweep reaches the swap.
	applied, err := f.store.AdvanceEscalation(ctx, req.ID, 0, 1)
	if err != nil || !applied {
		t.Fatalf("AdvanceEscalation() = %v, %v", applied, err)
	}

	f.advance(25 * time.Hour)
	stats := &SweepStats{}
	campaigns := map[string]*compliance.AcknowledgmentCampaign{}
	if err := f.sweeper.processRequest(ctx, stale, campaigns, stats); err != nil {
		t.Fatalf("processRequest() failed: %v", err)
	}
	if stats.Escalated != 0 || stats.Races != 1 {
		t.Errorf("stats = %+v, want 0 escalated and 1 race", stats)
	}
	if msgs := f.notifier.Messages(); len(msgs) != 0 {
		t.Errorf("notifier has %d messages, want 0", len(msgs))
	}
}

func TestSweeper_RemindsOnceWithinLeadWindow(t *testing.T) {
	f := newSweepFixture(t, nil, SweeperOptions{ReminderLead: 48 * time.Hour})
	req := f.seedRequest(t, "emp-1", f.clock.Add(24*time.Hour))
	f.seedRequest(t, "emp-2", f.clock.Add(200*time.Hour))

	for i := 0; i < 2; i++ {
		stats, err := f.sweeper.Sweep(context.Background())
		if err != nil {
			t.Fatalf("Sweep() %d failed: %v", i, err)
		}
		want := 0
		if i == 0 {
			want = 1
		}
		if stats.Reminded != want {
			t.Errorf("pass %d reminded %d, want %d", i, stats.Reminded, want)
		}
	}

	msgs := f.notifier.Messages()
	if len(msgs) != 1 {
		t.Fatalf("notifier has %d messages, want 1", len(msgs))
	}
	if msgs[0].Kind != notify.KindReminder || msgs[0].RecipientID != "emp-1" {
		t.Errorf("message = %+v, want a reminder to emp-1", msgs[0])
	}

	got, err := f.store.GetRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("GetRequest() failed: %v", err)
	}
	if got.ReminderCount != 1 {
		t.Errorf("ReminderCount = %d, want 1", got.ReminderCount)
	}
}

func TestSweeper_NoMatrixMeansNoEscalation(t *testing.T) {
	f := newSweepFixture(t, nil, SweeperOptions{})
	req := f.seedRequest(t, "emp-1", f.clock.Add(-time.Minute))

	if _, err := f.sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	f.advance(500 * time.Hour)
	stats, err := f.sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if stats.Escalated != 0 {
		t.Errorf("escalated %d with no matrix, want 0", stats.Escalated)
	}

	got, err := f.store.GetRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("GetRequest() failed: %v", err)
	}
	if got.EscalationLevel != 0 {
		t.Errorf("request level = %d, want 0", got.EscalationLevel)
	}
}

func TestSweeper_CompletedRequestsLeaveTheScan(t *testing.T) {
	f := newSweepFixture(t, defaultMatrix(), SweeperOptions{})
	req := f.seedRequest(t, "emp-1", f.clock.Add(-time.Minute))
	ctx := context.Background()

	if _, err := f.sweeper.Sweep(ctx); err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}

	ack := &compliance.PolicyAcknowledgment{
		ID:             compliance.NewID(),
		RequestID:      req.ID,
		EmployeeID:     req.EmployeeID,
		VersionID:      req.VersionID,
		AcknowledgedAt: f.clock,
	}
	if err := f.store.CompleteRequest(ctx, req.ID, ack, true); err != nil {
		t.Fatalf("CompleteRequest() failed: %v", err)
	}

	f.advance(100 * time.Hour)
	stats, err := f.sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if stats.Scanned != 0 || stats.Escalated != 0 {
		t.Errorf("stats = %+v, want nothing scanned after completion", stats)
	}
}

func TestSweeper_Paging(t *testing.T) {
	f := newSweepFixture(t, nil, SweeperOptions{BatchSize: 3})
	for i := 0; i < 7; i++ {
		f.seedRequest(t, compliance.NewID(), f.clock.Add(-time.Hour))
	}

	stats, err := f.sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if stats.Scanned != 7 || stats.Breached != 7 {
		t.Errorf("stats = %+v, want all 7 scanned and breached", stats)
	}
}
