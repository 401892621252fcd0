package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/themis/pkg/compliance"
	"mercator-hq/themis/pkg/compliance/storage"
	"mercator-hq/themis/pkg/telemetry/metrics"
)

// Engine drives sequential approval chains over policy versions.
//
// Chains are materialized from the (company, policy type) workflow when a
// version enters pending_approval, then decided step by step in sequence
// order. Ordering, role checks, rejection fan-out to skipped rows, the
// version transition, and the audit append are all enforced atomically by
// the store; the engine validates inputs and translates outcomes.
type Engine struct {
	store   storage.Store
	metrics *metrics.PolicyMetrics
	logger  *slog.Logger
}

// NewEngine creates an approval engine. metrics may be nil, which disables
// recording.
func NewEngine(store storage.Store, pm *metrics.PolicyMetrics) *Engine {
	return &Engine{
		store:   store,
		metrics: pm,
		logger:  slog.Default().With("component", "approval.engine"),
	}
}

// Instantiate materializes the approval chain for a version entering
// pending_approval. The workflow is resolved by the policy's type within
// the version's company; a missing workflow is a configuration error
// surfaced as a validation failure.
func (e *Engine) Instantiate(ctx context.Context, v *compliance.PolicyVersion) error {
	p, err := e.store.GetPolicy(ctx, v.PolicyID)
	if err != nil {
		return err
	}

	w, err := e.store.GetWorkflow(ctx, p.CompanyID, p.PolicyType)
	if err != nil {
		var nfe *compliance.NotFoundError
		if errors.As(err, &nfe) {
			return compliance.NewValidationError("policy_type",
				fmt.Sprintf("no approval workflow configured for policy type %q", p.PolicyType))
		}
		return err
	}
	if err := validateSteps(w.Steps); err != nil {
		return err
	}

	now := time.Now().UTC()
	approvals := make([]*compliance.PolicyApproval, 0, len(w.Steps))
	for _, step := range w.Steps {
		approvals = append(approvals, &compliance.PolicyApproval{
			ID:           compliance.NewID(),
			VersionID:    v.ID,
			Sequence:     step.Sequence,
			ApproverRole: step.ApproverRole,
			Status:       compliance.ApprovalStatusPending,
			CreatedAt:    now,
		})
	}
	if err := e.store.CreateApprovals(ctx, approvals); err != nil {
		return err
	}

	e.logger.Info("approval chain created",
		"version_id", v.ID,
		"workflow_id", w.ID,
		"steps", len(approvals))
	return nil
}

// Approve records a positive decision on one sequence step. When the last
// pending step approves, the version transitions to approved in the same
// transaction.
func (e *Engine) Approve(ctx context.Context, versionID string, sequence int, approverID, approverRole, comment string) (*storage.DecisionOutcome, error) {
	return e.decide(ctx, storage.ApprovalDecision{
		VersionID:    versionID,
		Sequence:     sequence,
		ApproverID:   approverID,
		ApproverRole: approverRole,
		Approve:      true,
		Comment:      comment,
	})
}

// Reject records a negative decision on one sequence step. The version
// transitions to rejected and every later pending step is marked skipped in
// the same transaction. Rejection requires a comment.
func (e *Engine) Reject(ctx context.Context, versionID string, sequence int, approverID, approverRole, comment string) (*storage.DecisionOutcome, error) {
	if comment == "" {
		return nil, compliance.NewValidationError("comment", "rejection requires a comment")
	}
	return e.decide(ctx, storage.ApprovalDecision{
		VersionID:    versionID,
		Sequence:     sequence,
		ApproverID:   approverID,
		ApproverRole: approverRole,
		Approve:      false,
		Comment:      comment,
	})
}

func (e *Engine) decide(ctx context.Context, d storage.ApprovalDecision) (*storage.DecisionOutcome, error) {
	if d.ApproverID == "" {
		return nil, compliance.NewValidationError("approver_id", "approver is required")
	}

	outcome, err := e.store.DecideApproval(ctx, d)
	if err != nil {
		var authErr *compliance.AuthorizationError
		if errors.As(err, &authErr) {
			e.logger.Warn("approval denied for role mismatch",
				"version_id", d.VersionID,
				"sequence", d.Sequence,
				"actor", d.ApproverID,
				"actor_role", d.ApproverRole)
		}
		return nil, err
	}

	decision := "rejected"
	if d.Approve {
		decision = "approved"
	}
	if e.metrics != nil {
		e.metrics.RecordDecision(decision)
		if outcome.Final {
			e.metrics.RecordTransition(string(outcome.VersionStatus))
		}
	}

	e.logger.Info("approval decision recorded",
		"version_id", d.VersionID,
		"sequence", d.Sequence,
		"decision", decision,
		"actor", d.ApproverID,
		"version_status", outcome.VersionStatus,
		"skipped", outcome.Skipped)
	return outcome, nil
}

// Chain returns the full approval chain for a version in sequence order,
// including decided and skipped rows.
func (e *Engine) Chain(ctx context.Context, versionID string) ([]*compliance.PolicyApproval, error) {
	return e.store.ListApprovals(ctx, versionID)
}

// PendingForRole returns the pending approval steps assigned to a role
// within a company.
func (e *Engine) PendingForRole(ctx context.Context, companyID, role string) ([]*compliance.PolicyApproval, error) {
	return e.store.PendingApprovalsForRole(ctx, companyID, role)
}

func validateSteps(steps []compliance.WorkflowStep) error {
	if len(steps) == 0 {
		return compliance.NewValidationError("steps", "workflow must define at least one step")
	}
	prev := 0
	for _, s := range steps {
		if s.Sequence <= prev {
			return compliance.NewValidationError("steps",
				fmt.Sprintf("step sequences must be strictly ascending, got %d after %d", s.Sequence, prev))
		}
		if s.ApproverRole == "" {
			return compliance.NewValidationError("steps",
				fmt.Sprintf("step %d is missing an approver role", s.Sequence))
		}
		prev = s.Sequence
	}
	return nil
}
