package compliance

import "time"

// PolicyStatus represents the lifecycle state of a Policy container.
type PolicyStatus string

const (
	// PolicyStatusActive means the policy accepts new draft versions.
	PolicyStatusActive PolicyStatus = "active"
	// PolicyStatusFrozen means the policy is temporarily closed to new drafts.
	PolicyStatusFrozen PolicyStatus = "frozen"
	// PolicyStatusArchived means the policy is retired; no new drafts.
	PolicyStatusArchived PolicyStatus = "archived"
)

// Policy is the container for a versioned compliance document. The policy
// itself carries no content; content lives on PolicyVersion records, of which
// at most one is active at any time.
type Policy struct {
	ID         string       `json:"id"`          // UUID v4
	CompanyID  string       `json:"company_id"`  // Owning company
	Title      string       `json:"title"`       // Display title
	PolicyType string       `json:"policy_type"` // e.g. "security", "hr", "data_privacy"
	Status     PolicyStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
}

// VersionStatus represents the lifecycle state of a PolicyVersion.
type VersionStatus string

const (
	// VersionStatusDraft is the initial state of an authored version.
	VersionStatusDraft VersionStatus = "draft"
	// VersionStatusPendingApproval means the version is in an approval chain.
	VersionStatusPendingApproval VersionStatus = "pending_approval"
	// VersionStatusApproved means all approval steps passed; not yet in force.
	VersionStatusApproved VersionStatus = "approved"
	// VersionStatusRejected means an approver rejected the version. Terminal.
	VersionStatusRejected VersionStatus = "rejected"
	// VersionStatusActive means the version is in force and SLA-relevant.
	VersionStatusActive VersionStatus = "active"
	// VersionStatusArchived means the version was superseded. Terminal.
	VersionStatusArchived VersionStatus = "archived"
)

// PolicyVersion is one immutable revision of a policy's content.
//
// Invariant: at most one version per policy has IsActive=true, and only a
// version in status "approved" may be promoted to "active". The promotion
// path in the version store is the sole code path allowed to flip IsActive.
type PolicyVersion struct {
	ID            string        `json:"id"`
	PolicyID      string        `json:"policy_id"`
	CompanyID     string        `json:"company_id"`
	VersionNumber int           `json:"version_number"` // Monotonically increasing per policy
	Content       string        `json:"content"`
	Status        VersionStatus `json:"status"`
	IsActive      bool          `json:"is_active"`
	AuthorID      string        `json:"author_id"`
	CreatedAt     time.Time     `json:"created_at"`
	ActivatedAt   *time.Time    `json:"activated_at,omitempty"`
	ArchivedAt    *time.Time    `json:"archived_at,omitempty"`
}

// WorkflowStep is one rung of an approval chain: the role that must approve
// at a given ordinal position.
type WorkflowStep struct {
	Sequence     int    `json:"sequence" yaml:"sequence"` // 1-based, strictly ascending
	ApproverRole string `json:"approver_role" yaml:"approver_role"`
}

// ApprovalWorkflow is an ordered approver chain scoped to (company,
// policy type). Once an in-flight approval references a workflow it is
// treated as immutable; edits apply only to versions submitted afterward.
type ApprovalWorkflow struct {
	ID         string         `json:"id"`
	CompanyID  string         `json:"company_id"`
	PolicyType string         `json:"policy_type"`
	Steps      []WorkflowStep `json:"steps"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ApprovalStatus represents the state of a single approval step.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	// ApprovalStatusSkipped marks steps short-circuited by an earlier
	// rejection. Skipped rows are kept for audit, never deleted.
	ApprovalStatusSkipped ApprovalStatus = "skipped"
)

// PolicyApproval is one (version, sequence) approval record. Rows are created
// when a version enters pending_approval, mutated only by the designated
// approver for that sequence, and never deleted.
type PolicyApproval struct {
	ID           string         `json:"id"`
	VersionID    string         `json:"version_id"`
	Sequence     int            `json:"sequence"`
	ApproverRole string         `json:"approver_role"`
	Status       ApprovalStatus `json:"status"`
	ApproverID   string         `json:"approver_id,omitempty"` // Actor who decided
	Comment      string         `json:"comment,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	DecidedAt    *time.Time     `json:"decided_at,omitempty"`
}

// RolePolicyMapping links a role to a policy its holders must follow.
type RolePolicyMapping struct {
	RoleID      string    `json:"role_id"`
	PolicyID    string    `json:"policy_id"`
	IsMandatory bool      `json:"is_mandatory"`
	CreatedAt   time.Time `json:"created_at"`
}

// CampaignType classifies why acknowledgment obligations are being generated.
type CampaignType string

const (
	// CampaignTypeNewHire covers onboarding; due dates key off join date.
	CampaignTypeNewHire CampaignType = "new_hire"
	// CampaignTypePeriodic covers recurring (e.g. annual) re-acknowledgment.
	CampaignTypePeriodic CampaignType = "periodic"
	// CampaignTypePolicyUpdate covers re-acknowledgment after a new version
	// goes active. Never auto-triggered by the version store.
	CampaignTypePolicyUpdate CampaignType = "policy_update"
	// CampaignTypeManual covers ad-hoc campaigns scoped to named employees.
	CampaignTypeManual CampaignType = "manual"
)

// AcknowledgmentCampaign is a time-boxed generator of acknowledgment
// obligations for a set of active policy versions.
type AcknowledgmentCampaign struct {
	ID              string       `json:"id"`
	CompanyID       string       `json:"company_id"`
	Type            CampaignType `json:"type"`
	VersionIDs      []string     `json:"version_ids"`
	EmployeeIDs     []string     `json:"employee_ids,omitempty"` // Manual campaigns only
	StartDate       time.Time    `json:"start_date"`
	EndDate         time.Time    `json:"end_date"`
	GracePeriodDays int          `json:"grace_period_days"`
	CreatedAt       time.Time    `json:"created_at"`
}

// RequestStatus represents the state of an acknowledgment request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusCompleted RequestStatus = "completed"
	// RequestStatusBreached means the due date passed without completion.
	// Terminal for SLA purposes; a late acknowledgment still completes the
	// request but is recorded as late.
	RequestStatusBreached RequestStatus = "breached"
)

// AcknowledgmentRequest is one employee's obligation to acknowledge one
// policy version under one campaign. Created by campaign expansion, mutated
// by the SLA sweeper (breach/escalation) and by acknowledgment submission.
type AcknowledgmentRequest struct {
	ID         string        `json:"id"`
	CampaignID string        `json:"campaign_id"`
	CompanyID  string        `json:"company_id"`
	EmployeeID string        `json:"employee_id"`
	VersionID  string        `json:"version_id"`
	Status     RequestStatus `json:"status"`
	DueDate    time.Time     `json:"due_date"`

	// Escalation bookkeeping. EscalationLevel is the highest level already
	// notified (0 = none); it is the dedup barrier for concurrent sweeps.
	ReminderCount   int  `json:"reminder_count"`
	IsEscalated     bool `json:"is_escalated"`
	EscalationLevel int  `json:"escalation_level"`

	BreachedAt    *time.Time `json:"breached_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CompletedLate bool       `json:"completed_late"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Open reports whether the request still awaits acknowledgment.
func (r *AcknowledgmentRequest) Open() bool {
	return r.Status == RequestStatusPending || r.Status == RequestStatusBreached
}

// PolicyAcknowledgment is the immutable record of one employee's confirmation
// for one request. Unique on (employee, version, request): the same version
// may be acknowledged again only under a new request.
type PolicyAcknowledgment struct {
	ID             string    `json:"id"`
	RequestID      string    `json:"request_id"`
	EmployeeID     string    `json:"employee_id"`
	VersionID      string    `json:"version_id"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
	Context        string    `json:"context,omitempty"` // Client context (IP, device)
}

// EscalationStep is one rung of an escalation chain. WaitHours is the
// number of hours to wait after the previous level fires (or after breach,
// for level 1) before this level fires; waits accumulate down the chain.
type EscalationStep struct {
	Level          int    `json:"level" yaml:"level"` // 1-based, strictly ascending
	EscalateToRole string `json:"escalate_to_role" yaml:"escalate_to_role"`
	WaitHours      int    `json:"wait_hours" yaml:"wait_hours"`
}

// SLAConfiguration holds per-company, per-campaign-type escalation settings.
type SLAConfiguration struct {
	ID                 string           `json:"id" yaml:"id"`
	CompanyID          string           `json:"company_id" yaml:"company_id"`
	AcknowledgmentType CampaignType     `json:"acknowledgment_type" yaml:"acknowledgment_type"`
	Matrix             []EscalationStep `json:"matrix" yaml:"matrix"`
}

// AuditRecord is one append-only entry describing a state transition.
// Writes happen inside the same transaction as the transition they describe:
// no transition without an audit record, no audit record without a transition.
type AuditRecord struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	EntityType    string    `json:"entity_type"` // "policy_version", "policy_approval", "acknowledgment_request"
	EntityID      string    `json:"entity_id"`
	PreviousState string    `json:"previous_state"`
	NewState      string    `json:"new_state"`
	Actor         string    `json:"actor"` // Employee ID or "system"
	Detail        string    `json:"detail,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Audit entity type constants.
const (
	AuditEntityVersion  = "policy_version"
	AuditEntityApproval = "policy_approval"
	AuditEntityRequest  = "acknowledgment_request"
)

// SystemActor is the audit actor used for transitions driven by background
// machinery (campaign expansion, SLA sweeps) rather than a person.
const SystemActor = "system"
