package acknowledgment

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/themis/pkg/compliance"
	"mercator-hq/themis/pkg/compliance/storage"
	"mercator-hq/themis/pkg/directory"
)

// stubResolver serves a fixed employee set without touching role mappings.
type stubResolver struct {
	affected  []string
	employees map[string]*directory.Employee
}

func (r *stubResolver) AffectedEmployees(ctx context.Context, companyID, policyID string) ([]string, error) {
	return r.affected, nil
}

func (r *stubResolver) Employee(ctx context.Context, id string) (*directory.Employee, error) {
	emp, ok := r.employees[id]
	if !ok {
		return nil, compliance.NewNotFoundError("employee", id)
	}
	return emp, nil
}

func seedActiveVersion(t *testing.T, store storage.Store, companyID string) *compliance.PolicyVersion {
	t.Helper()
	ctx := context.Background()

	p := &compliance.Policy{
		ID:         compliance.NewID(),
		CompanyID:  companyID,
		Title:      "Acceptable Use Policy",
		PolicyType: "security",
		Status:     compliance.PolicyStatusActive,
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.CreatePolicy(ctx, p); err != nil {
		t.Fatalf("CreatePolicy() failed: %v", err)
	}

	v := &compliance.PolicyVersion{
		ID:        compliance.NewID(),
		PolicyID:  p.ID,
		CompanyID: companyID,
		Content:   "Use company systems responsibly.",
		Status:    compliance.VersionStatusActive,
		IsActive:  true,
		AuthorID:  "emp-author",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateVersion(ctx, v); err != nil {
		t.Fatalf("CreateVersion() failed: %v", err)
	}
	return v
}

func validCampaign(companyID, versionID string) *compliance.AcknowledgmentCampaign {
	start := time.Now().UTC()
	return &compliance.AcknowledgmentCampaign{
		CompanyID:       companyID,
		Type:            compliance.CampaignTypePeriodic,
		VersionIDs:      []string{versionID},
		StartDate:       start,
		EndDate:         start.AddDate(0, 0, 14),
		GracePeriodDays: 7,
	}
}

func TestEngine_CreateCampaignValidation(t *testing.T) {
	store := storage.NewMemoryStore()
	v := seedActiveVersion(t, store, "acme")
	engine := NewEngine(store, &stubResolver{}, nil, 90)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(c *compliance.AcknowledgmentCampaign)
	}{
		{"unknown type", func(c *compliance.AcknowledgmentCampaign) { c.Type = "quarterly" }},
		{"missing company", func(c *compliance.AcknowledgmentCampaign) { c.CompanyID = "" }},
		{"no versions", func(c *compliance.AcknowledgmentCampaign) { c.VersionIDs = nil }},
		{"end before start", func(c *compliance.AcknowledgmentCampaign) { c.EndDate = c.StartDate.AddDate(0, 0, -1) }},
		{"negative grace", func(c *compliance.AcknowledgmentCampaign) { c.GracePeriodDays = -1 }},
		{"grace over ceiling", func(c *compliance.AcknowledgmentCampaign) { c.GracePeriodDays = 91 }},
		{"manual without employees", func(c *compliance.AcknowledgmentCampaign) { c.Type = compliance.CampaignTypeManual }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCampaign("acme", v.ID)
			tt.mutate(c)
			err := engine.CreateCampaign(ctx, c)
			var verr *compliance.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("CreateCampaign() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestEngine_CreateCampaignRejectsInactiveVersion(t *testing.T) {
	store := storage.NewMemoryStore()
	v := seedActiveVersion(t, store, "acme")
	ctx := context.Background()

	if err := store.TransitionVersion(ctx, v.ID, compliance.VersionStatusActive, compliance.VersionStatusArchived, "emp-admin"); err != nil {
		t.Fatalf("TransitionVersion() failed: %v", err)
	}

	engine := NewEngine(store, &stubResolver{}, nil, 90)
	err := engine.CreateCampaign(ctx, validCampaign("acme", v.ID))
	var verr *compliance.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("CreateCampaign() with archived version error = %v, want ValidationError", err)
	}
	if verr.Field != "version_ids" {
		t.Errorf("ValidationError field = %q, want version_ids", verr.Field)
	}
}

func TestEngine_CreateCampaignRejectsCrossCompanyVersion(t *testing.T) {
	store := storage.NewMemoryStore()
	v := seedActiveVersion(t, store, "globex")

	engine := NewEngine(store, &stubResolver{}, nil, 90)
	err := engine.CreateCampaign(context.Background(), validCampaign("acme", v.ID))
	var verr *compliance.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("CreateCampaign() with foreign version error = %v, want ValidationError", err)
	}
}

func TestEngine_ExpandIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	v := seedActiveVersion(t, store, "acme")
	resolver := &stubResolver{affected: []string{"emp-1", "emp-2", "emp-3"}}
	engine := NewEngine(store, resolver, nil, 90)
	ctx := context.Background()

	c := validCampaign("acme", v.ID)
	if err := engine.CreateCampaign(ctx, c); err != nil {
		t.Fatalf("CreateCampaign() failed: %v", err)
	}

	result, err := engine.Expand(ctx, c.ID)
	if err != nil {
		t.Fatalf("Expand() failed: %v", err)
	}
	if result.Created != 3 || result.Duplicates != 0 {
		t.Errorf("first Expand() = %+v, want 3 created", result)
	}

	result, err = engine.Expand(ctx, c.ID)
	if err != nil {
		t.Fatalf("second Expand() failed: %v", err)
	}
	if result.Created != 0 || result.Duplicates != 3 {
		t.Errorf("second Expand() = %+v, want 3 duplicates", result)
	}

	reqs, err := store.ListRequestsByCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListRequestsByCampaign() failed: %v", err)
	}
	if len(reqs) != 3 {
		t.Errorf("campaign has %d requests, want 3", len(reqs))
	}

	wantDue := c.EndDate.AddDate(0, 0, c.GracePeriodDays)
	for _, r := range reqs {
		if !r.DueDate.Equal(wantDue) {
			t.Errorf("request %s due %v, want %v", r.ID, r.DueDate, wantDue)
		}
	}
}

func TestEngine_ExpandNewHireDueDate(t *testing.T) {
	store := storage.NewMemoryStore()
	v := seedActiveVersion(t, store, "acme")
	join := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	resolver := &stubResolver{
		affected: []string{"emp-new"},
		employees: map[string]*directory.Employee{
			"emp-new": {ID: "emp-new", CompanyID: "acme", RoleID: "engineer", JoinDate: join, Status: directory.EmployeeStatusActive},
		},
	}
	engine := NewEngine(store, resolver, nil, 90)
	ctx := context.Background()

	c := validCampaign("acme", v.ID)
	c.Type = compliance.CampaignTypeNewHire
	if err := engine.CreateCampaign(ctx, c); err != nil {
		t.Fatalf("CreateCampaign() failed: %v", err)
	}
	if _, err := engine.Expand(ctx, c.ID); err != nil {
		t.Fatalf("Expand() failed: %v", err)
	}

	reqs, err := store.ListRequestsByCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListRequestsByCampaign() failed: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("campaign has %d requests, want 1", len(reqs))
	}
	wantDue := join.AddDate(0, 0, newHireAckDays)
	if !reqs[0].DueDate.Equal(wantDue) {
		t.Errorf("new hire due %v, want %v", reqs[0].DueDate, wantDue)
	}
}

func TestEngine_ExpandSkipsUnknownEmployee(t *testing.T) {
	store := storage.NewMemoryStore()
	v := seedActiveVersion(t, store, "acme")
	resolver := &stubResolver{
		affected: []string{"emp-known", "emp-ghost"},
		employees: map[string]*directory.Employee{
			"emp-known": {ID: "emp-known", CompanyID: "acme", JoinDate: time.Now().UTC(), Status: directory.EmployeeStatusActive},
		},
	}
	engine := NewEngine(store, resolver, nil, 90)
	ctx := context.Background()

	c := validCampaign("acme", v.ID)
	c.Type = compliance.CampaignTypeNewHire
	if err := engine.CreateCampaign(ctx, c); err != nil {
		t.Fatalf("CreateCampaign() failed: %v", err)
	}

	result, err := engine.Expand(ctx, c.ID)
	if err != nil {
		t.Fatalf("Expand() failed: %v", err)
	}
	if result.Created != 1 || result.Skipped != 1 {
		t.Errorf("Expand() = %+v, want 1 created and 1 skipped", result)
	}
}

func TestEngine_RecordAcknowledgment(t *testing.T) {
	store := storage.NewMemoryStore()
	v := seedActiveVersion(t, store, "acme")
	resolver := &stubResolver{affected: []string{"emp-1"}}
	engine := NewEngine(store, resolver, nil, 90)
	ctx := context.Background()

	c := validCampaign("acme", v.ID)
	if err := engine.CreateCampaign(ctx, c); err != nil {
		t.Fatalf("CreateCampaign() failed: %v", err)
	}
	if _, err := engine.Expand(ctx, c.ID); err != nil {
		t.Fatalf("Expand() failed: %v", err)
	}
	reqs, err := store.ListRequestsByCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListRequestsByCampaign() failed: %v", err)
	}
	req := reqs[0]

	_, err = engine.RecordAcknowledgment(ctx, req.ID, "emp-intruder", "")
	var authErr *compliance.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("RecordAcknowledgment() by wrong employee error = %v, want AuthorizationError", err)
	}

	ack, err := engine.RecordAcknowledgment(ctx, req.ID, "emp-1", "10.0.0.8")
	if err != nil {
		t.Fatalf("RecordAcknowledgment() failed: %v", err)
	}
	if ack.VersionID != v.ID || ack.Context != "10.0.0.8" {
		t.Errorf("acknowledgment = %+v, want version %s with client context", ack, v.ID)
	}

	_, err = engine.RecordAcknowledgment(ctx, req.ID, "emp-1", "")
	var ise *compliance.InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("repeat RecordAcknowledgment() error = %v, want InvalidStateError", err)
	}
}

func TestEngine_RecordAcknowledgmentAfterBreachIsLate(t *testing.T) {
	store := storage.NewMemoryStore()
	v := seedActiveVersion(t, store, "acme")
	resolver := &stubResolver{affected: []string{"emp-1"}}
	engine := NewEngine(store, resolver, nil, 90)
	ctx := context.Background()

	c := validCampaign("acme", v.ID)
	if err := engine.CreateCampaign(ctx, c); err != nil {
		t.Fatalf("CreateCampaign() failed: %v", err)
	}
	if _, err := engine.Expand(ctx, c.ID); err != nil {
		t.Fatalf("Expand() failed: %v", err)
	}
	reqs, err := store.ListRequestsByCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListRequestsByCampaign() failed: %v", err)
	}
	req := reqs[0]

	if err := store.MarkBreached(ctx, req.ID, time.Now().UTC()); err != nil {
		t.Fatalf("MarkBreached() failed: %v", err)
	}
	if _, err := engine.RecordAcknowledgment(ctx, req.ID, "emp-1", ""); err != nil {
		t.Fatalf("RecordAcknowledgment() after breach failed: %v", err)
	}

	got, err := store.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetRequest() failed: %v", err)
	}
	if got.Status != compliance.RequestStatusCompleted || !got.CompletedLate {
		t.Errorf("request status = %s late = %v, want completed late", got.Status, got.CompletedLate)
	}
}

func TestEngine_TriggerManual(t *testing.T) {
	store := storage.NewMemoryStore()
	v := seedActiveVersion(t, store, "acme")
	engine := NewEngine(store, &stubResolver{}, nil, 90)
	ctx := context.Background()

	end := time.Now().UTC().AddDate(0, 0, 7)
	c, result, err := engine.TriggerManual(ctx, "acme", []string{v.ID}, []string{"emp-4", "emp-5"}, end, 3)
	if err != nil {
		t.Fatalf("TriggerManual() failed: %v", err)
	}
	if c.Type != compliance.CampaignTypeManual {
		t.Errorf("campaign type = %s, want manual", c.Type)
	}
	if result.Created != 2 {
		t.Errorf("TriggerManual() created %d requests, want 2", result.Created)
	}

	open, err := engine.OutstandingForEmployee(ctx, "emp-4")
	if err != nil {
		t.Fatalf("OutstandingForEmployee() failed: %v", err)
	}
	if len(open) != 1 {
		t.Errorf("emp-4 has %d open requests, want 1", len(open))
	}
}
