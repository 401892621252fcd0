package storage

import (
	"context"
	"time"

	"mercator-hq/themis/pkg/compliance"
)

// ApprovalDecision describes one approver's action on one sequence step.
// The store applies it atomically: row state, sequence ordering, approver
// role, version transition, and the audit append all happen in one
// transaction.
type ApprovalDecision struct {
	VersionID    string
	Sequence     int
	ApproverID   string
	ApproverRole string // Role the actor holds; must match the step's role
	Approve      bool
	Comment      string
}

// DecisionOutcome reports the effect of an applied ApprovalDecision.
type DecisionOutcome struct {
	// VersionStatus is the version's status after the decision:
	// pending_approval (more steps remain), approved, or rejected.
	VersionStatus compliance.VersionStatus

	// Final is true when the decision terminated the chain.
	Final bool

	// Skipped is the number of later steps marked skipped by a rejection.
	Skipped int
}

// Store is the persistence interface for the compliance engine.
//
// State-changing methods that touch a version's active/approval status or a
// request's breach/escalation state execute as single atomic transactions
// with compare-and-swap semantics: the loser of a concurrent race receives
// *compliance.InvalidStateError (or a false "applied" result for the
// escalation advance), never a silent overwrite. Audit appends share the
// transaction of the transition they describe.
type Store interface {
	// Policies.
	CreatePolicy(ctx context.Context, p *compliance.Policy) error
	GetPolicy(ctx context.Context, id string) (*compliance.Policy, error)

	// Versions. CreateVersion assigns the next version_number for the policy
	// and writes it back to v. ActiveVersion returns nil (no error) when the
	// policy has no active version.
	CreateVersion(ctx context.Context, v *compliance.PolicyVersion) error
	GetVersion(ctx context.Context, id string) (*compliance.PolicyVersion, error)
	ListVersions(ctx context.Context, policyID string) ([]*compliance.PolicyVersion, error)
	ActiveVersion(ctx context.Context, policyID string) (*compliance.PolicyVersion, error)

	// TransitionVersion compare-and-swaps a version's status from "from" to
	// "to" and appends an audit record. Returns *compliance.InvalidStateError
	// when the version is not in "from".
	TransitionVersion(ctx context.Context, versionID string, from, to compliance.VersionStatus, actor string) error

	// PromoteVersion atomically activates an approved version and archives
	// the policy's previously active version, if any. Returns the archived
	// version's ID ("" when none). The sole mutation path for is_active.
	PromoteVersion(ctx context.Context, versionID, actor string) (archivedID string, err error)

	// Approval workflows.
	PutWorkflow(ctx context.Context, w *compliance.ApprovalWorkflow) error
	GetWorkflow(ctx context.Context, companyID, policyType string) (*compliance.ApprovalWorkflow, error)

	// Approvals. CreateApprovals inserts the materialized chain for a version
	// in one transaction. DecideApproval applies one decision atomically.
	CreateApprovals(ctx context.Context, approvals []*compliance.PolicyApproval) error
	ListApprovals(ctx context.Context, versionID string) ([]*compliance.PolicyApproval, error)
	PendingApprovalsForRole(ctx context.Context, companyID, role string) ([]*compliance.PolicyApproval, error)
	DecideApproval(ctx context.Context, d ApprovalDecision) (*DecisionOutcome, error)

	// Role-policy mappings.
	PutRolePolicyMapping(ctx context.Context, m *compliance.RolePolicyMapping) error
	MappingsForRole(ctx context.Context, roleID string) ([]*compliance.RolePolicyMapping, error)
	RolesForPolicy(ctx context.Context, policyID string) ([]string, error)

	// Campaigns.
	CreateCampaign(ctx context.Context, c *compliance.AcknowledgmentCampaign) error
	GetCampaign(ctx context.Context, id string) (*compliance.AcknowledgmentCampaign, error)

	// Requests. InsertRequest reports inserted=false when a request for the
	// same (campaign, employee, version) already exists; duplicates are a
	// no-op, which makes campaign expansion idempotent.
	InsertRequest(ctx context.Context, r *compliance.AcknowledgmentRequest) (inserted bool, err error)
	GetRequest(ctx context.Context, id string) (*compliance.AcknowledgmentRequest, error)
	ListRequestsByCampaign(ctx context.Context, campaignID string) ([]*compliance.AcknowledgmentRequest, error)
	ListOpenRequests(ctx context.Context, limit, offset int) ([]*compliance.AcknowledgmentRequest, error)
	RequestsForEmployee(ctx context.Context, employeeID string, openOnly bool) ([]*compliance.AcknowledgmentRequest, error)

	// CompleteRequest compare-and-swaps the request from pending or breached
	// to completed and inserts the immutable acknowledgment in the same
	// transaction. late records whether completion happened post-breach.
	CompleteRequest(ctx context.Context, requestID string, ack *compliance.PolicyAcknowledgment, late bool) error

	// MarkBreached compare-and-swaps the request from pending to breached.
	MarkBreached(ctx context.Context, requestID string, at time.Time) error

	// AdvanceEscalation compare-and-swaps the request's escalation level from
	// fromLevel to toLevel (and sets is_escalated). applied=false means
	// another sweep worker advanced the request first; the caller must not
	// notify.
	AdvanceEscalation(ctx context.Context, requestID string, fromLevel, toLevel int) (applied bool, err error)

	// BumpReminder increments the request's reminder counter.
	BumpReminder(ctx context.Context, requestID string) error

	// SLA configuration.
	PutSLAConfig(ctx context.Context, cfg *compliance.SLAConfiguration) error
	GetSLAConfig(ctx context.Context, companyID string, t compliance.CampaignType) (*compliance.SLAConfiguration, error)

	// AuditTrail returns the append-only transition history for one entity,
	// oldest first.
	AuditTrail(ctx context.Context, entityType, entityID string) ([]*compliance.AuditRecord, error)

	// Close releases all resources held by the store.
	Close() error
}
