package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mercator-hq/themis/pkg/compliance"
)

// --- Role-policy mappings ---

// PutRolePolicyMapping inserts or replaces one role→policy mapping.
func (s *SQLiteStore) PutRolePolicyMapping(ctx context.Context, m *compliance.RolePolicyMapping) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO role_policy_mappings (role_id, policy_id, is_mandatory, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(role_id, policy_id) DO UPDATE SET is_mandatory = excluded.is_mandatory`,
		m.RoleID, m.PolicyID, m.IsMandatory, m.CreatedAt,
	)
	if err != nil {
		return compliance.NewStorageError("sqlite", "put_mapping", err)
	}
	return nil
}

// MappingsForRole returns all policy mappings for a role.
func (s *SQLiteStore) MappingsForRole(ctx context.Context, roleID string) ([]*compliance.RolePolicyMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role_id, policy_id, is_mandatory, created_at
		FROM role_policy_mappings WHERE role_id = ?`, roleID)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "mappings_for_role", err)
	}
	defer rows.Close()

	mappings := []*compliance.RolePolicyMapping{}
	for rows.Next() {
		m := &compliance.RolePolicyMapping{}
		if err := rows.Scan(&m.RoleID, &m.PolicyID, &m.IsMandatory, &m.CreatedAt); err != nil {
			return nil, compliance.NewStorageError("sqlite", "scan_mapping", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, compliance.NewStorageError("sqlite", "mappings_for_role", err)
	}
	return mappings, nil
}

// RolesForPolicy returns the roles mapped to a policy.
func (s *SQLiteStore) RolesForPolicy(ctx context.Context, policyID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role_id FROM role_policy_mappings WHERE policy_id = ?`, policyID)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "roles_for_policy", err)
	}
	defer rows.Close()

	roles := []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, compliance.NewStorageError("sqlite", "scan_role", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, compliance.NewStorageError("sqlite", "roles_for_policy", err)
	}
	return roles, nil
}

// --- Campaigns ---

// CreateCampaign inserts a new acknowledgment campaign.
func (s *SQLiteStore) CreateCampaign(ctx context.Context, c *compliance.AcknowledgmentCampaign) error {
	versionIDs, err := json.Marshal(c.VersionIDs)
	if err != nil {
		return compliance.NewStorageError("sqlite", "marshal_campaign", err)
	}
	employeeIDs, err := json.Marshal(c.EmployeeIDs)
	if err != nil {
		return compliance.NewStorageError("sqlite", "marshal_campaign", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, company_id, type, version_ids, employee_ids, start_date, end_date, grace_period_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CompanyID, c.Type, string(versionIDs), string(employeeIDs),
		c.StartDate, c.EndDate, c.GracePeriodDays, c.CreatedAt,
	)
	if err != nil {
		return compliance.NewStorageError("sqlite", "create_campaign", err)
	}
	return nil
}

// GetCampaign retrieves a campaign by ID.
func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*compliance.AcknowledgmentCampaign, error) {
	c := &compliance.AcknowledgmentCampaign{}
	var versionIDs, employeeIDs string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, type, version_ids, employee_ids, start_date, end_date, grace_period_days, created_at
		FROM campaigns WHERE id = ?`, id,
	).Scan(&c.ID, &c.CompanyID, &c.Type, &versionIDs, &employeeIDs,
		&c.StartDate, &c.EndDate, &c.GracePeriodDays, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, compliance.NewNotFoundError("campaign", id)
	}
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "get_campaign", err)
	}
	if err := json.Unmarshal([]byte(versionIDs), &c.VersionIDs); err != nil {
		return nil, compliance.NewStorageError("sqlite", "unmarshal_campaign", err)
	}
	if err := json.Unmarshal([]byte(employeeIDs), &c.EmployeeIDs); err != nil {
		return nil, compliance.NewStorageError("sqlite", "unmarshal_campaign", err)
	}
	return c, nil
}

// --- Requests ---

const requestColumns = `id, campaign_id, company_id, employee_id, version_id, status, due_date,
	reminder_count, is_escalated, escalation_level, breached_at, completed_at, completed_late, created_at`

// scanRequest scans one acknowledgment_requests row.
func scanRequest(row interface{ Scan(...any) error }) (*compliance.AcknowledgmentRequest, error) {
	r := &compliance.AcknowledgmentRequest{}
	var breachedAt, completedAt sql.NullTime
	err := row.Scan(&r.ID, &r.CampaignID, &r.CompanyID, &r.EmployeeID, &r.VersionID,
		&r.Status, &r.DueDate, &r.ReminderCount, &r.IsEscalated, &r.EscalationLevel,
		&breachedAt, &completedAt, &r.CompletedLate, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if breachedAt.Valid {
		r.BreachedAt = &breachedAt.Time
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	return r, nil
}

// InsertRequest inserts an acknowledgment request. A duplicate (campaign,
// employee, version) triple is reported as inserted=false, not an error, so
// campaign expansion stays idempotent.
func (s *SQLiteStore) InsertRequest(ctx context.Context, r *compliance.AcknowledgmentRequest) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO acknowledgment_requests
			(id, campaign_id, company_id, employee_id, version_id, status, due_date, reminder_count, is_escalated, escalation_level, completed_late, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, 0, 0, ?)`,
		r.ID, r.CampaignID, r.CompanyID, r.EmployeeID, r.VersionID, r.Status, r.DueDate, r.CreatedAt,
	)
	if err != nil {
		return false, compliance.NewStorageError("sqlite", "insert_request", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, compliance.NewStorageError("sqlite", "insert_request", err)
	}
	return n > 0, nil
}

// GetRequest retrieves a request by ID.
func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*compliance.AcknowledgmentRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM acknowledgment_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, compliance.NewNotFoundError("acknowledgment_request", id)
	}
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "get_request", err)
	}
	return r, nil
}

// queryRequests runs a request query and scans all rows.
func (s *SQLiteStore) queryRequests(ctx context.Context, op, query string, args ...any) ([]*compliance.AcknowledgmentRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", op, err)
	}
	defer rows.Close()

	requests := []*compliance.AcknowledgmentRequest{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, compliance.NewStorageError("sqlite", op, err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, compliance.NewStorageError("sqlite", op, err)
	}
	return requests, nil
}

// ListRequestsByCampaign returns all requests created for a campaign.
func (s *SQLiteStore) ListRequestsByCampaign(ctx context.Context, campaignID string) ([]*compliance.AcknowledgmentRequest, error) {
	return s.queryRequests(ctx, "requests_by_campaign",
		`SELECT `+requestColumns+` FROM acknowledgment_requests WHERE campaign_id = ? ORDER BY created_at ASC`,
		campaignID)
}

// ListOpenRequests returns pending and breached requests ordered by due date,
// for sweep batching.
func (s *SQLiteStore) ListOpenRequests(ctx context.Context, limit, offset int) ([]*compliance.AcknowledgmentRequest, error) {
	if limit <= 0 {
		limit = 500
	}
	return s.queryRequests(ctx, "open_requests",
		`SELECT `+requestColumns+` FROM acknowledgment_requests
		 WHERE status IN (?, ?) ORDER BY due_date ASC, id ASC LIMIT ? OFFSET ?`,
		compliance.RequestStatusPending, compliance.RequestStatusBreached, limit, offset)
}

// RequestsForEmployee returns an employee's requests, optionally only open
// (pending or breached) ones. Part of the reporting/UI query surface.
func (s *SQLiteStore) RequestsForEmployee(ctx context.Context, employeeID string, openOnly bool) ([]*compliance.AcknowledgmentRequest, error) {
	if openOnly {
		return s.queryRequests(ctx, "requests_for_employee",
			`SELECT `+requestColumns+` FROM acknowledgment_requests
			 WHERE employee_id = ? AND status IN (?, ?) ORDER BY due_date ASC`,
			employeeID, compliance.RequestStatusPending, compliance.RequestStatusBreached)
	}
	return s.queryRequests(ctx, "requests_for_employee",
		`SELECT `+requestColumns+` FROM acknowledgment_requests
		 WHERE employee_id = ? ORDER BY due_date ASC`, employeeID)
}

// CompleteRequest compare-and-swaps the request to completed and inserts the
// immutable acknowledgment in the same transaction. Exactly one of any number
// of concurrent submissions wins; losers get InvalidStateError.
func (s *SQLiteStore) CompleteRequest(ctx context.Context, requestID string, ack *compliance.PolicyAcknowledgment, late bool) error {
	return s.withTx(ctx, "complete_request", func(tx *sql.Tx) error {
		var companyID string
		var current compliance.RequestStatus
		err := tx.QueryRow(`SELECT company_id, status FROM acknowledgment_requests WHERE id = ?`, requestID).
			Scan(&companyID, &current)
		if err == sql.ErrNoRows {
			return compliance.NewNotFoundError("acknowledgment_request", requestID)
		}
		if err != nil {
			return compliance.NewStorageError("sqlite", "complete_request", err)
		}

		res, err := tx.Exec(`
			UPDATE acknowledgment_requests
			SET status = ?, completed_at = ?, completed_late = ?
			WHERE id = ? AND status IN (?, ?)`,
			compliance.RequestStatusCompleted, ack.AcknowledgedAt, late,
			requestID, compliance.RequestStatusPending, compliance.RequestStatusBreached)
		if err != nil {
			return compliance.NewStorageError("sqlite", "complete_request", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return compliance.NewInvalidStateError("acknowledgment_request", requestID, string(current), "complete")
		}

		_, err = tx.Exec(`
			INSERT INTO acknowledgments (id, request_id, employee_id, version_id, acknowledged_at, context)
			VALUES (?, ?, ?, ?, ?, ?)`,
			ack.ID, ack.RequestID, ack.EmployeeID, ack.VersionID, ack.AcknowledgedAt, ack.Context)
		if err != nil {
			return compliance.NewStorageError("sqlite", "insert_acknowledgment", err)
		}

		detail := ""
		if late {
			detail = "completed after breach"
		}
		return appendAudit(tx, &compliance.AuditRecord{
			CompanyID:     companyID,
			EntityType:    compliance.AuditEntityRequest,
			EntityID:      requestID,
			PreviousState: string(current),
			NewState:      string(compliance.RequestStatusCompleted),
			Actor:         ack.EmployeeID,
			Detail:        detail,
		})
	})
}

// MarkBreached compare-and-swaps the request from pending to breached.
func (s *SQLiteStore) MarkBreached(ctx context.Context, requestID string, at time.Time) error {
	return s.withTx(ctx, "mark_breached", func(tx *sql.Tx) error {
		var companyID string
		var current compliance.RequestStatus
		err := tx.QueryRow(`SELECT company_id, status FROM acknowledgment_requests WHERE id = ?`, requestID).
			Scan(&companyID, &current)
		if err == sql.ErrNoRows {
			return compliance.NewNotFoundError("acknowledgment_request", requestID)
		}
		if err != nil {
			return compliance.NewStorageError("sqlite", "mark_breached", err)
		}

		res, err := tx.Exec(`
			UPDATE acknowledgment_requests SET status = ?, breached_at = ?
			WHERE id = ? AND status = ?`,
			compliance.RequestStatusBreached, at, requestID, compliance.RequestStatusPending)
		if err != nil {
			return compliance.NewStorageError("sqlite", "mark_breached", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return compliance.NewInvalidStateError("acknowledgment_request", requestID, string(current), "mark breached")
		}

		return appendAudit(tx, &compliance.AuditRecord{
			CompanyID:     companyID,
			EntityType:    compliance.AuditEntityRequest,
			EntityID:      requestID,
			PreviousState: string(compliance.RequestStatusPending),
			NewState:      string(compliance.RequestStatusBreached),
			Actor:         compliance.SystemActor,
		})
	})
}

// AdvanceEscalation compare-and-swaps the request's last-notified escalation
// level. applied=false means another sweep worker won the race and the caller
// must not emit a notification for this level.
func (s *SQLiteStore) AdvanceEscalation(ctx context.Context, requestID string, fromLevel, toLevel int) (bool, error) {
	applied := false
	err := s.withTx(ctx, "advance_escalation", func(tx *sql.Tx) error {
		var companyID string
		err := tx.QueryRow(`SELECT company_id FROM acknowledgment_requests WHERE id = ?`, requestID).
			Scan(&companyID)
		if err == sql.ErrNoRows {
			return compliance.NewNotFoundError("acknowledgment_request", requestID)
		}
		if err != nil {
			return compliance.NewStorageError("sqlite", "advance_escalation", err)
		}

		res, err := tx.Exec(`
			UPDATE acknowledgment_requests SET escalation_level = ?, is_escalated = 1
			WHERE id = ? AND escalation_level = ? AND status = ?`,
			toLevel, requestID, fromLevel, compliance.RequestStatusBreached)
		if err != nil {
			return compliance.NewStorageError("sqlite", "advance_escalation", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return nil
		}
		applied = true

		return appendAudit(tx, &compliance.AuditRecord{
			CompanyID:     companyID,
			EntityType:    compliance.AuditEntityRequest,
			EntityID:      requestID,
			PreviousState: fmt.Sprintf("escalation_level=%d", fromLevel),
			NewState:      fmt.Sprintf("escalation_level=%d", toLevel),
			Actor:         compliance.SystemActor,
		})
	})
	return applied, err
}

// BumpReminder increments the request's reminder counter.
func (s *SQLiteStore) BumpReminder(ctx context.Context, requestID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE acknowledgment_requests SET reminder_count = reminder_count + 1 WHERE id = ?`, requestID)
	if err != nil {
		return compliance.NewStorageError("sqlite", "bump_reminder", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return compliance.NewNotFoundError("acknowledgment_request", requestID)
	}
	return nil
}

// --- SLA configuration ---

// PutSLAConfig inserts or replaces the escalation configuration for
// (company, acknowledgment type).
func (s *SQLiteStore) PutSLAConfig(ctx context.Context, cfg *compliance.SLAConfiguration) error {
	matrix, err := json.Marshal(cfg.Matrix)
	if err != nil {
		return compliance.NewStorageError("sqlite", "marshal_sla", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sla_configurations (id, company_id, acknowledgment_type, matrix)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(company_id, acknowledgment_type) DO UPDATE SET matrix = excluded.matrix`,
		cfg.ID, cfg.CompanyID, cfg.AcknowledgmentType, string(matrix),
	)
	if err != nil {
		return compliance.NewStorageError("sqlite", "put_sla_config", err)
	}
	return nil
}

// GetSLAConfig retrieves the escalation configuration for (company,
// acknowledgment type). Returns nil (no error) when none is configured.
func (s *SQLiteStore) GetSLAConfig(ctx context.Context, companyID string, t compliance.CampaignType) (*compliance.SLAConfiguration, error) {
	cfg := &compliance.SLAConfiguration{}
	var matrix string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, acknowledgment_type, matrix
		FROM sla_configurations WHERE company_id = ? AND acknowledgment_type = ?`,
		companyID, t,
	).Scan(&cfg.ID, &cfg.CompanyID, &cfg.AcknowledgmentType, &matrix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "get_sla_config", err)
	}
	if err := json.Unmarshal([]byte(matrix), &cfg.Matrix); err != nil {
		return nil, compliance.NewStorageError("sqlite", "unmarshal_sla", err)
	}
	return cfg, nil
}

// --- Audit ---

// AuditTrail returns the transition history for one entity, oldest first.
func (s *SQLiteStore) AuditTrail(ctx context.Context, entityType, entityID string) ([]*compliance.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, entity_type, entity_id, previous_state, new_state, actor, detail, timestamp
		FROM audit_log WHERE entity_type = ? AND entity_id = ? ORDER BY timestamp ASC, id ASC`,
		entityType, entityID)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "audit_trail", err)
	}
	defer rows.Close()

	records := []*compliance.AuditRecord{}
	for rows.Next() {
		rec := &compliance.AuditRecord{}
		var detail sql.NullString
		if err := rows.Scan(&rec.ID, &rec.CompanyID, &rec.EntityType, &rec.EntityID,
			&rec.PreviousState, &rec.NewState, &rec.Actor, &detail, &rec.Timestamp); err != nil {
			return nil, compliance.NewStorageError("sqlite", "scan_audit", err)
		}
		rec.Detail = detail.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, compliance.NewStorageError("sqlite", "audit_trail", err)
	}
	return records, nil
}
