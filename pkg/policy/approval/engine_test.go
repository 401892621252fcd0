package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/themis/pkg/compliance"
	"mercator-hq/themis/pkg/compliance/storage"
)

type fixture struct {
	store  *storage.MemoryStore
	engine *Engine
	policy *compliance.Policy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemoryStore()
	ctx := context.Background()

	p := &compliance.Policy{
		ID:         compliance.NewID(),
		CompanyID:  "acme",
		Title:      "Data Retention Policy",
		PolicyType: "data_privacy",
		Status:     compliance.PolicyStatusActive,
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.CreatePolicy(ctx, p); err != nil {
		t.Fatalf("CreatePolicy() failed: %v", err)
	}

	return &fixture{store: store, engine: NewEngine(store, nil), policy: p}
}

func (f *fixture) seedWorkflow(t *testing.T, steps ...compliance.WorkflowStep) {
	t.Helper()

	w := &compliance.ApprovalWorkflow{
		ID:         compliance.NewID(),
		CompanyID:  f.policy.CompanyID,
		PolicyType: f.policy.PolicyType,
		Steps:      steps,
		CreatedAt:  time.Now().UTC(),
	}
	if err := f.store.PutWorkflow(context.Background(), w); err != nil {
		t.Fatalf("PutWorkflow() failed: %v", err)
	}
}

func (f *fixture) seedPendingVersion(t *testing.T) *compliance.PolicyVersion {
	t.Helper()

	v := &compliance.PolicyVersion{
		ID:        compliance.NewID(),
		PolicyID:  f.policy.ID,
		CompanyID: f.policy.CompanyID,
		Content:   "Retain records for seven years.",
		Status:    compliance.VersionStatusPendingApproval,
		AuthorID:  "emp-author",
		CreatedAt: time.Now().UTC(),
	}
	if err := f.store.CreateVersion(context.Background(), v); err != nil {
		t.Fatalf("CreateVersion() failed: %v", err)
	}
	return v
}

func TestEngine_Instantiate(t *testing.T) {
	f := newFixture(t)
	f.seedWorkflow(t,
		compliance.WorkflowStep{Sequence: 1, ApproverRole: "compliance_officer"},
		compliance.WorkflowStep{Sequence: 2, ApproverRole: "legal_counsel"},
	)
	v := f.seedPendingVersion(t)

	if err := f.engine.Instantiate(context.Background(), v); err != nil {
		t.Fatalf("Instantiate() failed: %v", err)
	}

	chain, err := f.engine.Chain(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Chain() failed: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("Chain has %d rows, want 2", len(chain))
	}
	for i, a := range chain {
		if a.Status != compliance.ApprovalStatusPending {
			t.Errorf("Chain[%d].Status = %s, want pending", i, a.Status)
		}
		if a.Sequence != i+1 {
			t.Errorf("Chain[%d].Sequence = %d, want %d", i, a.Sequence, i+1)
		}
	}
}

func TestEngine_InstantiateNoWorkflow(t *testing.T) {
	f := newFixture(t)
	v := f.seedPendingVersion(t)

	err := f.engine.Instantiate(context.Background(), v)
	var verr *compliance.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Instantiate() without workflow error = %v, want ValidationError", err)
	}
}

func TestEngine_InstantiateRejectsBadSteps(t *testing.T) {
	tests := []struct {
		name  string
		steps []compliance.WorkflowStep
	}{
		{"empty chain", nil},
		{"non-ascending", []compliance.WorkflowStep{
			{Sequence: 2, ApproverRole: "a"},
			{Sequence: 1, ApproverRole: "b"},
		}},
		{"duplicate sequence", []compliance.WorkflowStep{
			{Sequence: 1, ApproverRole: "a"},
			{Sequence: 1, ApproverRole: "b"},
		}},
		{"missing role", []compliance.WorkflowStep{
			{Sequence: 1, ApproverRole: ""},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedWorkflow(t, tt.steps...)
			v := f.seedPendingVersion(t)

			err := f.engine.Instantiate(context.Background(), v)
			var verr *compliance.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Instantiate() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestEngine_ApproveChain(t *testing.T) {
	f := newFixture(t)
	f.seedWorkflow(t,
		compliance.WorkflowStep{Sequence: 1, ApproverRole: "compliance_officer"},
		compliance.WorkflowStep{Sequence: 2, ApproverRole: "legal_counsel"},
	)
	v := f.seedPendingVersion(t)
	ctx := context.Background()
	if err := f.engine.Instantiate(ctx, v); err != nil {
		t.Fatalf("Instantiate() failed: %v", err)
	}

	outcome, err := f.engine.Approve(ctx, v.ID, 1, "emp-co", "compliance_officer", "looks good")
	if err != nil {
		t.Fatalf("Approve() seq 1 failed: %v", err)
	}
	if outcome.Final {
		t.Error("Outcome final after first of two approvals")
	}

	outcome, err = f.engine.Approve(ctx, v.ID, 2, "emp-legal", "legal_counsel", "")
	if err != nil {
		t.Fatalf("Approve() seq 2 failed: %v", err)
	}
	if !outcome.Final || outcome.VersionStatus != compliance.VersionStatusApproved {
		t.Errorf("Final outcome = %+v, want approved", outcome)
	}
}

func TestEngine_RejectRequiresComment(t *testing.T) {
	f := newFixture(t)
	f.seedWorkflow(t, compliance.WorkflowStep{Sequence: 1, ApproverRole: "compliance_officer"})
	v := f.seedPendingVersion(t)
	ctx := context.Background()
	if err := f.engine.Instantiate(ctx, v); err != nil {
		t.Fatalf("Instantiate() failed: %v", err)
	}

	_, err := f.engine.Reject(ctx, v.ID, 1, "emp-co", "compliance_officer", "")
	var verr *compliance.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Reject() without comment error = %v, want ValidationError", err)
	}

	outcome, err := f.engine.Reject(ctx, v.ID, 1, "emp-co", "compliance_officer", "needs legal review first")
	if err != nil {
		t.Fatalf("Reject() failed: %v", err)
	}
	if !outcome.Final || outcome.VersionStatus != compliance.VersionStatusRejected {
		t.Errorf("Outcome = %+v, want final rejected", outcome)
	}
}

func TestEngine_SequenceEnforced(t *testing.T) {
	f := newFixture(t)
	f.seedWorkflow(t,
		compliance.WorkflowStep{Sequence: 1, ApproverRole: "compliance_officer"},
		compliance.WorkflowStep{Sequence: 2, ApproverRole: "legal_counsel"},
	)
	v := f.seedPendingVersion(t)
	ctx := context.Background()
	if err := f.engine.Instantiate(ctx, v); err != nil {
		t.Fatalf("Instantiate() failed: %v", err)
	}

	_, err := f.engine.Approve(ctx, v.ID, 2, "emp-legal", "legal_counsel", "")
	var sve *compliance.SequenceViolationError
	if !errors.As(err, &sve) {
		t.Fatalf("Out-of-order Approve() error = %v, want SequenceViolationError", err)
	}
}

func TestEngine_PendingForRole(t *testing.T) {
	f := newFixture(t)
	f.seedWorkflow(t,
		compliance.WorkflowStep{Sequence: 1, ApproverRole: "compliance_officer"},
		compliance.WorkflowStep{Sequence: 2, ApproverRole: "legal_counsel"},
	)
	v := f.seedPendingVersion(t)
	ctx := context.Background()
	if err := f.engine.Instantiate(ctx, v); err != nil {
		t.Fatalf("Instantiate() failed: %v", err)
	}

	pending, err := f.engine.PendingForRole(ctx, "acme", "legal_counsel")
	if err != nil {
		t.Fatalf("PendingForRole() failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Sequence != 2 {
		t.Errorf("PendingForRole(legal_counsel) = %v, want the sequence 2 step", pending)
	}

	if _, err := f.engine.Approve(ctx, v.ID, 1, "emp-co", "compliance_officer", ""); err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}
	if _, err := f.engine.Approve(ctx, v.ID, 2, "emp-legal", "legal_counsel", ""); err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}

	pending, err = f.engine.PendingForRole(ctx, "acme", "legal_counsel")
	if err != nil {
		t.Fatalf("PendingForRole() failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("PendingForRole() after completion = %v, want empty", pending)
	}
}
