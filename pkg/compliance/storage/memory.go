package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mercator-hq/themis/pkg/compliance"
)

// MemoryStore implements the Store interface using in-memory maps guarded by
// a single mutex, which gives every method the same all-or-nothing semantics
// as the SQLite transactions. Intended for testing only.
type MemoryStore struct {
	mu sync.Mutex

	policies  map[string]*compliance.Policy
	versions  map[string]*compliance.PolicyVersion
	workflows map[string]*compliance.ApprovalWorkflow // keyed company/policyType
	approvals map[string]*compliance.PolicyApproval
	mappings  map[string]*compliance.RolePolicyMapping // keyed roleID/policyID
	campaigns map[string]*compliance.AcknowledgmentCampaign
	requests  map[string]*compliance.AcknowledgmentRequest
	acks      map[string]*compliance.PolicyAcknowledgment
	slaCfgs   map[string]*compliance.SLAConfiguration // keyed companyID/type
	audit     []*compliance.AuditRecord
}

// NewMemoryStore creates a new in-memory storage backend.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies:  make(map[string]*compliance.Policy),
		versions:  make(map[string]*compliance.PolicyVersion),
		workflows: make(map[string]*compliance.ApprovalWorkflow),
		approvals: make(map[string]*compliance.PolicyApproval),
		mappings:  make(map[string]*compliance.RolePolicyMapping),
		campaigns: make(map[string]*compliance.AcknowledgmentCampaign),
		requests:  make(map[string]*compliance.AcknowledgmentRequest),
		acks:      make(map[string]*compliance.PolicyAcknowledgment),
		slaCfgs:   make(map[string]*compliance.SLAConfiguration),
	}
}

// Close releases nothing; it exists to satisfy the Store interface.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) appendAudit(rec *compliance.AuditRecord) {
	if rec.ID == "" {
		rec.ID = compliance.NewID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	s.audit = append(s.audit, rec)
}

// --- Policies ---

// CreatePolicy stores a policy container.
func (s *MemoryStore) CreatePolicy(ctx context.Context, p *compliance.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.policies[p.ID] = &cp
	return nil
}

// GetPolicy retrieves a policy by ID.
func (s *MemoryStore) GetPolicy(ctx context.Context, id string) (*compliance.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, compliance.NewNotFoundError("policy", id)
	}
	cp := *p
	return &cp, nil
}

// --- Versions ---

// CreateVersion stores a version, assigning the next version number.
func (s *MemoryStore) CreateVersion(ctx context.Context, v *compliance.PolicyVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := 1
	for _, other := range s.versions {
		if other.PolicyID == v.PolicyID && other.VersionNumber >= next {
			next = other.VersionNumber + 1
		}
	}
	v.VersionNumber = next

	cp := *v
	s.versions[v.ID] = &cp
	return nil
}

// GetVersion retrieves a version by ID.
func (s *MemoryStore) GetVersion(ctx context.Context, id string) (*compliance.PolicyVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok {
		return nil, compliance.NewNotFoundError("policy_version", id)
	}
	cp := *v
	return &cp, nil
}

// ListVersions returns all versions of a policy, oldest first.
func (s *MemoryStore) ListVersions(ctx context.Context, policyID string) ([]*compliance.PolicyVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := []*compliance.PolicyVersion{}
	for _, v := range s.versions {
		if v.PolicyID == policyID {
			cp := *v
			versions = append(versions, &cp)
		}
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionNumber < versions[j].VersionNumber
	})
	return versions, nil
}

// ActiveVersion returns the policy's active version, or nil when none exists.
func (s *MemoryStore) ActiveVersion(ctx context.Context, policyID string) (*compliance.PolicyVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.versions {
		if v.PolicyID == policyID && v.IsActive {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

// TransitionVersion compare-and-swaps a version's status.
func (s *MemoryStore) TransitionVersion(ctx context.Context, versionID string, from, to compliance.VersionStatus, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.versions[versionID]
	if !ok {
		return compliance.NewNotFoundError("policy_version", versionID)
	}
	if v.Status != from {
		return compliance.NewInvalidStateError("policy_version", versionID, string(v.Status),
			fmt.Sprintf("transition to %s", to))
	}
	v.Status = to
	s.appendAudit(&compliance.AuditRecord{
		CompanyID:     v.CompanyID,
		EntityType:    compliance.AuditEntityVersion,
		EntityID:      versionID,
		PreviousState: string(from),
		NewState:      string(to),
		Actor:         actor,
	})
	return nil
}

// PromoteVersion activates an approved version and archives the prior active
// version of the same policy.
func (s *MemoryStore) PromoteVersion(ctx context.Context, versionID, actor string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.versions[versionID]
	if !ok {
		return "", compliance.NewNotFoundError("policy_version", versionID)
	}
	if v.Status != compliance.VersionStatusApproved {
		return "", compliance.NewInvalidStateError("policy_version", versionID, string(v.Status), "promote")
	}

	now := time.Now().UTC()
	archivedID := ""
	for _, prior := range s.versions {
		if prior.PolicyID == v.PolicyID && prior.IsActive && prior.ID != v.ID {
			prior.IsActive = false
			prior.Status = compliance.VersionStatusArchived
			prior.ArchivedAt = &now
			archivedID = prior.ID
			s.appendAudit(&compliance.AuditRecord{
				CompanyID:     v.CompanyID,
				EntityType:    compliance.AuditEntityVersion,
				EntityID:      prior.ID,
				PreviousState: string(compliance.VersionStatusActive),
				NewState:      string(compliance.VersionStatusArchived),
				Actor:         actor,
				Detail:        "superseded by " + versionID,
			})
		}
	}

	v.Status = compliance.VersionStatusActive
	v.IsActive = true
	v.ActivatedAt = &now
	s.appendAudit(&compliance.AuditRecord{
		CompanyID:     v.CompanyID,
		EntityType:    compliance.AuditEntityVersion,
		EntityID:      versionID,
		PreviousState: string(compliance.VersionStatusApproved),
		NewState:      string(compliance.VersionStatusActive),
		Actor:         actor,
	})
	return archivedID, nil
}

// --- Approval workflows ---

func workflowKey(companyID, policyType string) string { return companyID + "/" + policyType }

// PutWorkflow stores the approval chain for (company, policy type).
func (s *MemoryStore) PutWorkflow(ctx context.Context, w *compliance.ApprovalWorkflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *w
	cp.Steps = append([]compliance.WorkflowStep(nil), w.Steps...)
	s.workflows[workflowKey(w.CompanyID, w.PolicyType)] = &cp
	return nil
}

// GetWorkflow retrieves the approval chain for (company, policy type).
func (s *MemoryStore) GetWorkflow(ctx context.Context, companyID, policyType string) (*compliance.ApprovalWorkflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[workflowKey(companyID, policyType)]
	if !ok {
		return nil, compliance.NewNotFoundError("approval_workflow", companyID+"/"+policyType)
	}
	cp := *w
	cp.Steps = append([]compliance.WorkflowStep(nil), w.Steps...)
	return &cp, nil
}

// --- Approvals ---

// CreateApprovals stores the materialized approval chain for a version.
func (s *MemoryStore) CreateApprovals(ctx context.Context, approvals []*compliance.PolicyApproval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range approvals {
		cp := *a
		s.approvals[a.ID] = &cp
	}
	return nil
}

// approvalsForVersion returns the version's approvals sorted by sequence.
// Caller holds the lock.
func (s *MemoryStore) approvalsForVersion(versionID string) []*compliance.PolicyApproval {
	out := []*compliance.PolicyApproval{}
	for _, a := range s.approvals {
		if a.VersionID == versionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// ListApprovals returns all approval steps for a version in sequence order.
func (s *MemoryStore) ListApprovals(ctx context.Context, versionID string) ([]*compliance.PolicyApproval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*compliance.PolicyApproval{}
	for _, a := range s.approvalsForVersion(versionID) {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// PendingApprovalsForRole returns pending steps assigned to a role within a
// company.
func (s *MemoryStore) PendingApprovalsForRole(ctx context.Context, companyID, role string) ([]*compliance.PolicyApproval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*compliance.PolicyApproval{}
	for _, a := range s.approvals {
		if a.Status != compliance.ApprovalStatusPending || a.ApproverRole != role {
			continue
		}
		v, ok := s.versions[a.VersionID]
		if !ok || v.CompanyID != companyID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DecideApproval applies one approver's decision under the store lock.
func (s *MemoryStore) DecideApproval(ctx context.Context, d ApprovalDecision) (*DecisionOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.approvalsForVersion(d.VersionID)
	var step *compliance.PolicyApproval
	for _, a := range chain {
		if a.Sequence == d.Sequence {
			step = a
			break
		}
	}
	if step == nil {
		return nil, compliance.NewNotFoundError("policy_approval",
			fmt.Sprintf("%s/seq=%d", d.VersionID, d.Sequence))
	}
	if step.Status != compliance.ApprovalStatusPending {
		return nil, compliance.NewInvalidStateError("policy_approval", step.ID, string(step.Status), "decide")
	}
	if step.ApproverRole != d.ApproverRole {
		return nil, compliance.NewAuthorizationError(d.ApproverID, "decide",
			fmt.Sprintf("approval step %d (requires role %s)", d.Sequence, step.ApproverRole))
	}
	for _, a := range chain {
		if a.Sequence < d.Sequence && a.Status != compliance.ApprovalStatusApproved {
			return nil, compliance.NewSequenceViolationError(d.VersionID, d.Sequence, a.Sequence)
		}
	}

	v, ok := s.versions[d.VersionID]
	if !ok {
		return nil, compliance.NewNotFoundError("policy_version", d.VersionID)
	}
	if v.Status != compliance.VersionStatusPendingApproval {
		return nil, compliance.NewInvalidStateError("policy_version", d.VersionID, string(v.Status), "decide approval")
	}

	decision := compliance.ApprovalStatusApproved
	if !d.Approve {
		decision = compliance.ApprovalStatusRejected
	}
	now := time.Now().UTC()
	step.Status = decision
	step.ApproverID = d.ApproverID
	step.Comment = d.Comment
	step.DecidedAt = &now
	s.appendAudit(&compliance.AuditRecord{
		CompanyID:     v.CompanyID,
		EntityType:    compliance.AuditEntityApproval,
		EntityID:      step.ID,
		PreviousState: string(compliance.ApprovalStatusPending),
		NewState:      string(decision),
		Actor:         d.ApproverID,
		Detail:        fmt.Sprintf("version %s sequence %d", d.VersionID, d.Sequence),
	})

	outcome := &DecisionOutcome{}
	if !d.Approve {
		for _, a := range chain {
			if a.Status == compliance.ApprovalStatusPending {
				a.Status = compliance.ApprovalStatusSkipped
				outcome.Skipped++
				s.appendAudit(&compliance.AuditRecord{
					CompanyID:     v.CompanyID,
					EntityType:    compliance.AuditEntityApproval,
					EntityID:      a.ID,
					PreviousState: string(compliance.ApprovalStatusPending),
					NewState:      string(compliance.ApprovalStatusSkipped),
					Actor:         compliance.SystemActor,
					Detail:        fmt.Sprintf("chain terminated by rejection at sequence %d", d.Sequence),
				})
			}
		}
		v.Status = compliance.VersionStatusRejected
		s.appendAudit(&compliance.AuditRecord{
			CompanyID:     v.CompanyID,
			EntityType:    compliance.AuditEntityVersion,
			EntityID:      v.ID,
			PreviousState: string(compliance.VersionStatusPendingApproval),
			NewState:      string(compliance.VersionStatusRejected),
			Actor:         d.ApproverID,
		})
		outcome.VersionStatus = compliance.VersionStatusRejected
		outcome.Final = true
		return outcome, nil
	}

	remaining := 0
	for _, a := range chain {
		if a.Status == compliance.ApprovalStatusPending {
			remaining++
		}
	}
	if remaining > 0 {
		outcome.VersionStatus = compliance.VersionStatusPendingApproval
		return outcome, nil
	}

	v.Status = compliance.VersionStatusApproved
	s.appendAudit(&compliance.AuditRecord{
		CompanyID:     v.CompanyID,
		EntityType:    compliance.AuditEntityVersion,
		EntityID:      v.ID,
		PreviousState: string(compliance.VersionStatusPendingApproval),
		NewState:      string(compliance.VersionStatusApproved),
		Actor:         d.ApproverID,
	})
	outcome.VersionStatus = compliance.VersionStatusApproved
	outcome.Final = true
	return outcome, nil
}

// --- Role-policy mappings ---

// PutRolePolicyMapping stores one role→policy mapping.
func (s *MemoryStore) PutRolePolicyMapping(ctx context.Context, m *compliance.RolePolicyMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.mappings[m.RoleID+"/"+m.PolicyID] = &cp
	return nil
}

// MappingsForRole returns all policy mappings for a role.
func (s *MemoryStore) MappingsForRole(ctx context.Context, roleID string) ([]*compliance.RolePolicyMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*compliance.RolePolicyMapping{}
	for _, m := range s.mappings {
		if m.RoleID == roleID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

// RolesForPolicy returns the roles mapped to a policy.
func (s *MemoryStore) RolesForPolicy(ctx context.Context, policyID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []string{}
	for _, m := range s.mappings {
		if m.PolicyID == policyID {
			out = append(out, m.RoleID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// --- Campaigns ---

// CreateCampaign stores a campaign.
func (s *MemoryStore) CreateCampaign(ctx context.Context, c *compliance.AcknowledgmentCampaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	cp.VersionIDs = append([]string(nil), c.VersionIDs...)
	cp.EmployeeIDs = append([]string(nil), c.EmployeeIDs...)
	s.campaigns[c.ID] = &cp
	return nil
}

// GetCampaign retrieves a campaign by ID.
func (s *MemoryStore) GetCampaign(ctx context.Context, id string) (*compliance.AcknowledgmentCampaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, compliance.NewNotFoundError("campaign", id)
	}
	cp := *c
	cp.VersionIDs = append([]string(nil), c.VersionIDs...)
	cp.EmployeeIDs = append([]string(nil), c.EmployeeIDs...)
	return &cp, nil
}

// --- Requests ---

// InsertRequest stores a request unless the (campaign, employee, version)
// triple already exists.
func (s *MemoryStore) InsertRequest(ctx context.Context, r *compliance.AcknowledgmentRequest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.CampaignID == r.CampaignID &&
			existing.EmployeeID == r.EmployeeID &&
			existing.VersionID == r.VersionID {
			return false, nil
		}
	}
	cp := *r
	s.requests[r.ID] = &cp
	return true, nil
}

// GetRequest retrieves a request by ID.
func (s *MemoryStore) GetRequest(ctx context.Context, id string) (*compliance.AcknowledgmentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, compliance.NewNotFoundError("acknowledgment_request", id)
	}
	cp := *r
	return &cp, nil
}

// ListRequestsByCampaign returns all requests created for a campaign.
func (s *MemoryStore) ListRequestsByCampaign(ctx context.Context, campaignID string) ([]*compliance.AcknowledgmentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*compliance.AcknowledgmentRequest{}
	for _, r := range s.requests {
		if r.CampaignID == campaignID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListOpenRequests returns pending and breached requests ordered by due date.
func (s *MemoryStore) ListOpenRequests(ctx context.Context, limit, offset int) ([]*compliance.AcknowledgmentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 500
	}
	all := []*compliance.AcknowledgmentRequest{}
	for _, r := range s.requests {
		if r.Open() {
			cp := *r
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].DueDate.Equal(all[j].DueDate) {
			return all[i].DueDate.Before(all[j].DueDate)
		}
		return all[i].ID < all[j].ID
	})
	if offset >= len(all) {
		return []*compliance.AcknowledgmentRequest{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// RequestsForEmployee returns an employee's requests.
func (s *MemoryStore) RequestsForEmployee(ctx context.Context, employeeID string, openOnly bool) ([]*compliance.AcknowledgmentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*compliance.AcknowledgmentRequest{}
	for _, r := range s.requests {
		if r.EmployeeID != employeeID {
			continue
		}
		if openOnly && !r.Open() {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

// CompleteRequest compare-and-swaps the request to completed and records the
// acknowledgment.
func (s *MemoryStore) CompleteRequest(ctx context.Context, requestID string, ack *compliance.PolicyAcknowledgment, late bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[requestID]
	if !ok {
		return compliance.NewNotFoundError("acknowledgment_request", requestID)
	}
	if !r.Open() {
		return compliance.NewInvalidStateError("acknowledgment_request", requestID, string(r.Status), "complete")
	}

	prev := r.Status
	r.Status = compliance.RequestStatusCompleted
	at := ack.AcknowledgedAt
	r.CompletedAt = &at
	r.CompletedLate = late

	cp := *ack
	s.acks[ack.ID] = &cp

	detail := ""
	if late {
		detail = "completed after breach"
	}
	s.appendAudit(&compliance.AuditRecord{
		CompanyID:     r.CompanyID,
		EntityType:    compliance.AuditEntityRequest,
		EntityID:      requestID,
		PreviousState: string(prev),
		NewState:      string(compliance.RequestStatusCompleted),
		Actor:         ack.EmployeeID,
		Detail:        detail,
	})
	return nil
}

// MarkBreached compare-and-swaps the request from pending to breached.
func (s *MemoryStore) MarkBreached(ctx context.Context, requestID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[requestID]
	if !ok {
		return compliance.NewNotFoundError("acknowledgment_request", requestID)
	}
	if r.Status != compliance.RequestStatusPending {
		return compliance.NewInvalidStateError("acknowledgment_request", requestID, string(r.Status), "mark breached")
	}
	r.Status = compliance.RequestStatusBreached
	t := at
	r.BreachedAt = &t
	s.appendAudit(&compliance.AuditRecord{
		CompanyID:     r.CompanyID,
		EntityType:    compliance.AuditEntityRequest,
		EntityID:      requestID,
		PreviousState: string(compliance.RequestStatusPending),
		NewState:      string(compliance.RequestStatusBreached),
		Actor:         compliance.SystemActor,
	})
	return nil
}

// AdvanceEscalation compare-and-swaps the request's last-notified level.
func (s *MemoryStore) AdvanceEscalation(ctx context.Context, requestID string, fromLevel, toLevel int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[requestID]
	if !ok {
		return false, compliance.NewNotFoundError("acknowledgment_request", requestID)
	}
	if r.Status != compliance.RequestStatusBreached || r.EscalationLevel != fromLevel {
		return false, nil
	}
	r.EscalationLevel = toLevel
	r.IsEscalated = true
	s.appendAudit(&compliance.AuditRecord{
		CompanyID:     r.CompanyID,
		EntityType:    compliance.AuditEntityRequest,
		EntityID:      requestID,
		PreviousState: fmt.Sprintf("escalation_level=%d", fromLevel),
		NewState:      fmt.Sprintf("escalation_level=%d", toLevel),
		Actor:         compliance.SystemActor,
	})
	return true, nil
}

// BumpReminder increments the request's reminder counter.
func (s *MemoryStore) BumpReminder(ctx context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return compliance.NewNotFoundError("acknowledgment_request", requestID)
	}
	r.ReminderCount++
	return nil
}

// --- SLA configuration ---

// PutSLAConfig stores the escalation configuration for (company, type).
func (s *MemoryStore) PutSLAConfig(ctx context.Context, cfg *compliance.SLAConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cfg
	cp.Matrix = append([]compliance.EscalationStep(nil), cfg.Matrix...)
	s.slaCfgs[cfg.CompanyID+"/"+string(cfg.AcknowledgmentType)] = &cp
	return nil
}

// GetSLAConfig retrieves the escalation configuration, or nil when none is
// configured.
func (s *MemoryStore) GetSLAConfig(ctx context.Context, companyID string, t compliance.CampaignType) (*compliance.SLAConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.slaCfgs[companyID+"/"+string(t)]
	if !ok {
		return nil, nil
	}
	cp := *cfg
	cp.Matrix = append([]compliance.EscalationStep(nil), cfg.Matrix...)
	return &cp, nil
}

// --- Audit ---

// AuditTrail returns the transition history for one entity, oldest first.
func (s *MemoryStore) AuditTrail(ctx context.Context, entityType, entityID string) ([]*compliance.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*compliance.AuditRecord{}
	for _, rec := range s.audit {
		if rec.EntityType == entityType && rec.EntityID == entityID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}
