package acknowledgment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/themis/pkg/compliance"
	"mercator-hq/themis/pkg/compliance/storage"
	"mercator-hq/themis/pkg/directory"
	"mercator-hq/themis/pkg/telemetry/metrics"
)

// newHireAckDays is the acknowledgment window for onboarding requests,
// measured from the employee's join date.
const newHireAckDays = 30

// Resolver is the directory surface the engine fans out over. Satisfied by
// *directory.Resolver.
type Resolver interface {
	AffectedEmployees(ctx context.Context, companyID, policyID string) ([]string, error)
	Employee(ctx context.Context, id string) (*directory.Employee, error)
}

// ExpandResult summarizes one campaign expansion pass.
type ExpandResult struct {
	Created    int // Requests inserted by this pass
	Duplicates int // Requests that already existed; no-ops
	Skipped    int // Employees skipped on directory lookup failure
}

// Engine manages acknowledgment campaigns: creation, idempotent expansion
// into per-employee requests, and acknowledgment submission.
//
// Expansion is safe to re-run: the store refuses duplicate
// (campaign, employee, version) requests without error, so a crashed or
// repeated expansion converges on the same request set.
type Engine struct {
	store              storage.Store
	resolver           Resolver
	metrics            *metrics.CampaignMetrics
	maxGracePeriodDays int
	logger             *slog.Logger
}

// NewEngine creates a campaign engine. metrics may be nil, which disables
// recording.
func NewEngine(store storage.Store, resolver Resolver, cm *metrics.CampaignMetrics, maxGracePeriodDays int) *Engine {
	return &Engine{
		store:              store,
		resolver:           resolver,
		metrics:            cm,
		maxGracePeriodDays: maxGracePeriodDays,
		logger:             slog.Default().With("component", "acknowledgment.engine"),
	}
}

// CreateCampaign validates and persists a campaign. Every referenced version
// must be active; draft, rejected, and archived versions cannot generate
// obligations. Manual campaigns must name their target employees. The
// campaign is persisted without requests; call Expand to generate them.
func (e *Engine) CreateCampaign(ctx context.Context, c *compliance.AcknowledgmentCampaign) error {
	switch c.Type {
	case compliance.CampaignTypeNewHire, compliance.CampaignTypePeriodic,
		compliance.CampaignTypePolicyUpdate, compliance.CampaignTypeManual:
	default:
		return compliance.NewValidationError("type", fmt.Sprintf("unknown campaign type %q", c.Type))
	}
	if c.CompanyID == "" {
		return compliance.NewValidationError("company_id", "company is required")
	}
	if len(c.VersionIDs) == 0 {
		return compliance.NewValidationError("version_ids", "campaign must reference at least one policy version")
	}
	if !c.EndDate.After(c.StartDate) {
		return compliance.NewValidationError("end_date", "end date must be after start date")
	}
	if c.GracePeriodDays < 0 || c.GracePeriodDays > e.maxGracePeriodDays {
		return compliance.NewValidationError("grace_period_days",
			fmt.Sprintf("grace period must be between 0 and %d days", e.maxGracePeriodDays))
	}
	if c.Type == compliance.CampaignTypeManual && len(c.EmployeeIDs) == 0 {
		return compliance.NewValidationError("employee_ids", "manual campaigns must name their target employees")
	}

	for _, versionID := range c.VersionIDs {
		v, err := e.store.GetVersion(ctx, versionID)
		if err != nil {
			return err
		}
		if v.Status != compliance.VersionStatusActive {
			return compliance.NewValidationError("version_ids",
				fmt.Sprintf("version %s is %s, only active versions can be campaigned", v.ID, v.Status))
		}
		if v.CompanyID != c.CompanyID {
			return compliance.NewValidationError("version_ids",
				fmt.Sprintf("version %s belongs to another company", v.ID))
		}
	}

	if c.ID == "" {
		c.ID = compliance.NewID()
	}
	c.CreatedAt = time.Now().UTC()
	if err := e.store.CreateCampaign(ctx, c); err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.RecordCampaign(string(c.Type))
	}
	e.logger.Info("campaign created",
		"campaign_id", c.ID,
		"type", c.Type,
		"versions", len(c.VersionIDs))
	return nil
}

// Expand generates the campaign's acknowledgment requests: one per
// (employee, version) pair in scope. Manual campaigns target their named
// employees; all other types fan out over the employees whose role maps to
// each version's policy. Re-running an expansion is a no-op for pairs that
// already have a request.
func (e *Engine) Expand(ctx context.Context, campaignID string) (*ExpandResult, error) {
	c, err := e.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	result := &ExpandResult{}
	for _, versionID := range c.VersionIDs {
		v, err := e.store.GetVersion(ctx, versionID)
		if err != nil {
			return result, err
		}

		var employeeIDs []string
		if c.Type == compliance.CampaignTypeManual {
			employeeIDs = c.EmployeeIDs
		} else {
			employeeIDs, err = e.resolver.AffectedEmployees(ctx, c.CompanyID, v.PolicyID)
			if err != nil {
				return result, err
			}
		}

		for _, employeeID := range employeeIDs {
			due, err := e.dueDate(ctx, c, employeeID)
			if err != nil {
				e.logger.Warn("skipping employee during expansion",
					"campaign_id", c.ID,
					"employee_id", employeeID,
					"error", err)
				result.Skipped++
				continue
			}

			req := &compliance.AcknowledgmentRequest{
				ID:         compliance.NewID(),
				CampaignID: c.ID,
				CompanyID:  c.CompanyID,
				EmployeeID: employeeID,
				VersionID:  versionID,
				Status:     compliance.RequestStatusPending,
				DueDate:    due,
				CreatedAt:  time.Now().UTC(),
			}
			inserted, err := e.store.InsertRequest(ctx, req)
			if err != nil {
				return result, err
			}
			if inserted {
				result.Created++
			} else {
				result.Duplicates++
			}
		}
	}

	if e.metrics != nil {
		e.metrics.RecordRequestsCreated(result.Created)
		e.metrics.RecordExpandDuplicates(result.Duplicates)
	}
	e.logger.Info("campaign expanded",
		"campaign_id", c.ID,
		"created", result.Created,
		"duplicates", result.Duplicates,
		"skipped", result.Skipped)
	return result, nil
}

// dueDate computes a request's due date. New-hire obligations are due a
// fixed number of days after the employee joins; every other campaign type
// is due at campaign end plus the grace period.
func (e *Engine) dueDate(ctx context.Context, c *compliance.AcknowledgmentCampaign, employeeID string) (time.Time, error) {
	if c.Type == compliance.CampaignTypeNewHire {
		emp, err := e.resolver.Employee(ctx, employeeID)
		if err != nil {
			return time.Time{}, err
		}
		return emp.JoinDate.AddDate(0, 0, newHireAckDays), nil
	}
	return c.EndDate.AddDate(0, 0, c.GracePeriodDays), nil
}

// RecordAcknowledgment completes a request on behalf of its employee. Only
// the request's own employee may acknowledge it. A request past its due
// date, or already breached, completes with the late flag set; the
// completion itself is never refused for lateness. The acknowledgment row
// and the request transition commit in one transaction.
func (e *Engine) RecordAcknowledgment(ctx context.Context, requestID, employeeID, clientContext string) (*compliance.PolicyAcknowledgment, error) {
	req, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.EmployeeID != employeeID {
		return nil, compliance.NewAuthorizationError(employeeID, "acknowledge", "request "+requestID)
	}
	if req.Status == compliance.RequestStatusCompleted {
		return nil, compliance.NewInvalidStateError("acknowledgment_request", req.ID,
			string(req.Status), "acknowledge")
	}

	now := time.Now().UTC()
	late := req.Status == compliance.RequestStatusBreached || now.After(req.DueDate)
	ack := &compliance.PolicyAcknowledgment{
		ID:             compliance.NewID(),
		RequestID:      req.ID,
		EmployeeID:     employeeID,
		VersionID:      req.VersionID,
		AcknowledgedAt: now,
		Context:        clientContext,
	}
	if err := e.store.CompleteRequest(ctx, requestID, ack, late); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.RecordAcknowledgment(late)
	}
	e.logger.Info("acknowledgment recorded",
		"request_id", requestID,
		"employee_id", employeeID,
		"late", late)
	return ack, nil
}

// TriggerManual creates and immediately expands a manual campaign scoped to
// the named employees.
func (e *Engine) TriggerManual(ctx context.Context, companyID string, versionIDs, employeeIDs []string, endDate time.Time, gracePeriodDays int) (*compliance.AcknowledgmentCampaign, *ExpandResult, error) {
	c := &compliance.AcknowledgmentCampaign{
		CompanyID:       companyID,
		Type:            compliance.CampaignTypeManual,
		VersionIDs:      versionIDs,
		EmployeeIDs:     employeeIDs,
		StartDate:       time.Now().UTC(),
		EndDate:         endDate,
		GracePeriodDays: gracePeriodDays,
	}
	if err := e.CreateCampaign(ctx, c); err != nil {
		return nil, nil, err
	}
	result, err := e.Expand(ctx, c.ID)
	if err != nil {
		return c, result, err
	}
	return c, result, nil
}

// OutstandingForEmployee returns the employee's open requests.
func (e *Engine) OutstandingForEmployee(ctx context.Context, employeeID string) ([]*compliance.AcknowledgmentRequest, error) {
	return e.store.RequestsForEmployee(ctx, employeeID, true)
}
