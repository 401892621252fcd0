package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/themis/pkg/compliance"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/compliance.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite storage backend.
// It initializes the database schema and enables WAL mode if configured.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "compliance.storage.sqlite")

	// Connection-scoped pragmas go in the DSN so every pooled connection
	// gets them; a plain Exec would configure only the one connection that
	// happens to serve it.
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=%d",
		config.Path, config.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return compliance.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return compliance.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return compliance.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return compliance.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return compliance.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return compliance.NewStorageError("sqlite", "close", err)
	}
	return nil
}

// withTx runs fn inside a transaction, committing on nil error and rolling
// back otherwise. Domain errors pass through unwrapped; driver errors are
// wrapped as StorageError with the given operation name.
func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return compliance.NewStorageError("sqlite", op, err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return compliance.NewStorageError("sqlite", op, err)
	}
	return nil
}

// appendAudit inserts one audit record inside the caller's transaction.
func appendAudit(tx *sql.Tx, rec *compliance.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = compliance.NewID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	_, err := tx.Exec(`
		INSERT INTO audit_log (id, company_id, entity_type, entity_id, previous_state, new_state, actor, detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CompanyID, rec.EntityType, rec.EntityID,
		rec.PreviousState, rec.NewState, rec.Actor, rec.Detail, rec.Timestamp,
	)
	return err
}

// --- Policies ---

// CreatePolicy inserts a new policy container.
func (s *SQLiteStore) CreatePolicy(ctx context.Context, p *compliance.Policy) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policies (id, company_id, title, policy_type, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.CompanyID, p.Title, p.PolicyType, p.Status, p.CreatedAt,
	)
	if err != nil {
		return compliance.NewStorageError("sqlite", "create_policy", err)
	}
	return nil
}

// GetPolicy retrieves a policy by ID.
func (s *SQLiteStore) GetPolicy(ctx context.Context, id string) (*compliance.Policy, error) {
	p := &compliance.Policy{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, title, policy_type, status, created_at
		FROM policies WHERE id = ?`, id,
	).Scan(&p.ID, &p.CompanyID, &p.Title, &p.PolicyType, &p.Status, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, compliance.NewNotFoundError("policy", id)
	}
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "get_policy", err)
	}
	return p, nil
}

// --- Versions ---

// CreateVersion inserts a new version, assigning the next version_number for
// the policy inside the same transaction.
func (s *SQLiteStore) CreateVersion(ctx context.Context, v *compliance.PolicyVersion) error {
	return s.withTx(ctx, "create_version", func(tx *sql.Tx) error {
		var next int
		err := tx.QueryRow(`
			SELECT COALESCE(MAX(version_number), 0) + 1
			FROM policy_versions WHERE policy_id = ?`, v.PolicyID,
		).Scan(&next)
		if err != nil {
			return compliance.NewStorageError("sqlite", "next_version_number", err)
		}
		v.VersionNumber = next

		_, err = tx.Exec(`
			INSERT INTO policy_versions
				(id, policy_id, company_id, version_number, content, status, is_active, author_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			v.ID, v.PolicyID, v.CompanyID, v.VersionNumber, v.Content, v.Status, v.AuthorID, v.CreatedAt,
		)
		if err != nil {
			return compliance.NewStorageError("sqlite", "insert_version", err)
		}
		return nil
	})
}

// scanVersion scans one policy_versions row.
func scanVersion(row interface{ Scan(...any) error }) (*compliance.PolicyVersion, error) {
	v := &compliance.PolicyVersion{}
	var activatedAt, archivedAt sql.NullTime
	err := row.Scan(&v.ID, &v.PolicyID, &v.CompanyID, &v.VersionNumber, &v.Content,
		&v.Status, &v.IsActive, &v.AuthorID, &v.CreatedAt, &activatedAt, &archivedAt)
	if err != nil {
		return nil, err
	}
	if activatedAt.Valid {
		v.ActivatedAt = &activatedAt.Time
	}
	if archivedAt.Valid {
		v.ArchivedAt = &archivedAt.Time
	}
	return v, nil
}

const versionColumns = `id, policy_id, company_id, version_number, content, status, is_active, author_id, created_at, activated_at, archived_at`

// GetVersion retrieves a version by ID.
func (s *SQLiteStore) GetVersion(ctx context.Context, id string) (*compliance.PolicyVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM policy_versions WHERE id = ?`, id)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, compliance.NewNotFoundError("policy_version", id)
	}
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "get_version", err)
	}
	return v, nil
}

// ListVersions returns all versions of a policy, oldest first.
func (s *SQLiteStore) ListVersions(ctx context.Context, policyID string) ([]*compliance.PolicyVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM policy_versions WHERE policy_id = ? ORDER BY version_number ASC`, policyID)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "list_versions", err)
	}
	defer rows.Close()

	versions := []*compliance.PolicyVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, compliance.NewStorageError("sqlite", "scan_version", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, compliance.NewStorageError("sqlite", "list_versions", err)
	}
	return versions, nil
}

// ActiveVersion returns the policy's active version, or nil when none exists.
func (s *SQLiteStore) ActiveVersion(ctx context.Context, policyID string) (*compliance.PolicyVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM policy_versions WHERE policy_id = ? AND is_active = 1`, policyID)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "active_version", err)
	}
	return v, nil
}

// TransitionVersion compare-and-swaps a version's status and appends the
// audit record in the same transaction.
func (s *SQLiteStore) TransitionVersion(ctx context.Context, versionID string, from, to compliance.VersionStatus, actor string) error {
	return s.withTx(ctx, "transition_version", func(tx *sql.Tx) error {
		var companyID string
		var current compliance.VersionStatus
		err := tx.QueryRow(`SELECT company_id, status FROM policy_versions WHERE id = ?`, versionID).
			Scan(&companyID, &current)
		if err == sql.ErrNoRows {
			return compliance.NewNotFoundError("policy_version", versionID)
		}
		if err != nil {
			return compliance.NewStorageError("sqlite", "transition_version", err)
		}

		res, err := tx.Exec(`UPDATE policy_versions SET status = ? WHERE id = ? AND status = ?`,
			to, versionID, from)
		if err != nil {
			return compliance.NewStorageError("sqlite", "transition_version", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return compliance.NewInvalidStateError("policy_version", versionID, string(current),
				fmt.Sprintf("transition to %s", to))
		}

		return appendAudit(tx, &compliance.AuditRecord{
			CompanyID:     companyID,
			EntityType:    compliance.AuditEntityVersion,
			EntityID:      versionID,
			PreviousState: string(from),
			NewState:      string(to),
			Actor:         actor,
		})
	})
}

// PromoteVersion atomically activates an approved version and archives the
// previously active version of the same policy. Concurrent promotions on one
// policy race to a single winner; the loser gets InvalidStateError.
func (s *SQLiteStore) PromoteVersion(ctx context.Context, versionID, actor string) (string, error) {
	var archivedID string
	err := s.withTx(ctx, "promote_version", func(tx *sql.Tx) error {
		var policyID, companyID string
		var current compliance.VersionStatus
		err := tx.QueryRow(`SELECT policy_id, company_id, status FROM policy_versions WHERE id = ?`, versionID).
			Scan(&policyID, &companyID, &current)
		if err == sql.ErrNoRows {
			return compliance.NewNotFoundError("policy_version", versionID)
		}
		if err != nil {
			return compliance.NewStorageError("sqlite", "promote_version", err)
		}

		now := time.Now().UTC()

		// Archive the prior active version first so the partial unique index
		// never sees two active rows, even transiently.
		var priorID string
		err = tx.QueryRow(`SELECT id FROM policy_versions WHERE policy_id = ? AND is_active = 1 AND id <> ?`,
			policyID, versionID).Scan(&priorID)
		if err != nil && err != sql.ErrNoRows {
			return compliance.NewStorageError("sqlite", "promote_version", err)
		}
		if priorID != "" {
			_, err = tx.Exec(`
				UPDATE policy_versions SET status = ?, is_active = 0, archived_at = ?
				WHERE id = ? AND is_active = 1`,
				compliance.VersionStatusArchived, now, priorID)
			if err != nil {
				return compliance.NewStorageError("sqlite", "archive_prior", err)
			}
			if err := appendAudit(tx, &compliance.AuditRecord{
				CompanyID:     companyID,
				EntityType:    compliance.AuditEntityVersion,
				EntityID:      priorID,
				PreviousState: string(compliance.VersionStatusActive),
				NewState:      string(compliance.VersionStatusArchived),
				Actor:         actor,
				Detail:        "superseded by " + versionID,
			}); err != nil {
				return compliance.NewStorageError("sqlite", "audit_archive", err)
			}
		}

		// Conditional activation: only an approved version may go active.
		res, err := tx.Exec(`
			UPDATE policy_versions SET status = ?, is_active = 1, activated_at = ?
			WHERE id = ? AND status = ?`,
			compliance.VersionStatusActive, now, versionID, compliance.VersionStatusApproved)
		if err != nil {
			return compliance.NewStorageError("sqlite", "promote_version", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return compliance.NewInvalidStateError("policy_version", versionID, string(current), "promote")
		}

		archivedID = priorID
		return appendAudit(tx, &compliance.AuditRecord{
			CompanyID:     companyID,
			EntityType:    compliance.AuditEntityVersion,
			EntityID:      versionID,
			PreviousState: string(compliance.VersionStatusApproved),
			NewState:      string(compliance.VersionStatusActive),
			Actor:         actor,
		})
	})
	return archivedID, err
}

// --- Approval workflows ---

// PutWorkflow inserts or replaces the approval chain for (company, policy type).
func (s *SQLiteStore) PutWorkflow(ctx context.Context, w *compliance.ApprovalWorkflow) error {
	steps, err := json.Marshal(w.Steps)
	if err != nil {
		return compliance.NewStorageError("sqlite", "marshal_workflow", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO approval_workflows (id, company_id, policy_type, steps, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(company_id, policy_type) DO UPDATE SET steps = excluded.steps`,
		w.ID, w.CompanyID, w.PolicyType, string(steps), w.CreatedAt,
	)
	if err != nil {
		return compliance.NewStorageError("sqlite", "put_workflow", err)
	}
	return nil
}

// GetWorkflow retrieves the approval chain for (company, policy type).
func (s *SQLiteStore) GetWorkflow(ctx context.Context, companyID, policyType string) (*compliance.ApprovalWorkflow, error) {
	w := &compliance.ApprovalWorkflow{}
	var steps string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, policy_type, steps, created_at
		FROM approval_workflows WHERE company_id = ? AND policy_type = ?`,
		companyID, policyType,
	).Scan(&w.ID, &w.CompanyID, &w.PolicyType, &steps, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, compliance.NewNotFoundError("approval_workflow", companyID+"/"+policyType)
	}
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "get_workflow", err)
	}
	if err := json.Unmarshal([]byte(steps), &w.Steps); err != nil {
		return nil, compliance.NewStorageError("sqlite", "unmarshal_workflow", err)
	}
	return w, nil
}

// --- Approvals ---

// CreateApprovals inserts the materialized approval chain for a version in
// one transaction.
func (s *SQLiteStore) CreateApprovals(ctx context.Context, approvals []*compliance.PolicyApproval) error {
	return s.withTx(ctx, "create_approvals", func(tx *sql.Tx) error {
		for _, a := range approvals {
			_, err := tx.Exec(`
				INSERT INTO policy_approvals (id, version_id, sequence, approver_role, status, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				a.ID, a.VersionID, a.Sequence, a.ApproverRole, a.Status, a.CreatedAt,
			)
			if err != nil {
				return compliance.NewStorageError("sqlite", "insert_approval", err)
			}
		}
		return nil
	})
}

// scanApproval scans one policy_approvals row.
func scanApproval(row interface{ Scan(...any) error }) (*compliance.PolicyApproval, error) {
	a := &compliance.PolicyApproval{}
	var approverID, comment sql.NullString
	var decidedAt sql.NullTime
	err := row.Scan(&a.ID, &a.VersionID, &a.Sequence, &a.ApproverRole, &a.Status,
		&approverID, &comment, &a.CreatedAt, &decidedAt)
	if err != nil {
		return nil, err
	}
	a.ApproverID = approverID.String
	a.Comment = comment.String
	if decidedAt.Valid {
		a.DecidedAt = &decidedAt.Time
	}
	return a, nil
}

const approvalColumns = `id, version_id, sequence, approver_role, status, approver_id, comment, created_at, decided_at`

// ListApprovals returns all approval steps for a version in sequence order.
func (s *SQLiteStore) ListApprovals(ctx context.Context, versionID string) ([]*compliance.PolicyApproval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+approvalColumns+` FROM policy_approvals WHERE version_id = ? ORDER BY sequence ASC`, versionID)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "list_approvals", err)
	}
	defer rows.Close()

	approvals := []*compliance.PolicyApproval{}
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, compliance.NewStorageError("sqlite", "scan_approval", err)
		}
		approvals = append(approvals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, compliance.NewStorageError("sqlite", "list_approvals", err)
	}
	return approvals, nil
}

// PendingApprovalsForRole returns pending approval steps assigned to a role
// within a company, for the reporting/UI query surface.
func (s *SQLiteStore) PendingApprovalsForRole(ctx context.Context, companyID, role string) ([]*compliance.PolicyApproval, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.version_id, a.sequence, a.approver_role, a.status, a.approver_id, a.comment, a.created_at, a.decided_at
		FROM policy_approvals a
		JOIN policy_versions v ON v.id = a.version_id
		WHERE v.company_id = ? AND a.approver_role = ? AND a.status = ?
		ORDER BY a.created_at ASC`,
		companyID, role, compliance.ApprovalStatusPending)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "pending_approvals", err)
	}
	defer rows.Close()

	approvals := []*compliance.PolicyApproval{}
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, compliance.NewStorageError("sqlite", "scan_approval", err)
		}
		approvals = append(approvals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, compliance.NewStorageError("sqlite", "pending_approvals", err)
	}
	return approvals, nil
}

// DecideApproval applies one approver's decision atomically: the sequence
// ordering rule, the approver-role check, the step's compare-and-swap, any
// skip fan-out on rejection, the version transition, and the audit appends
// all commit or roll back together.
func (s *SQLiteStore) DecideApproval(ctx context.Context, d ApprovalDecision) (*DecisionOutcome, error) {
	outcome := &DecisionOutcome{}
	err := s.withTx(ctx, "decide_approval", func(tx *sql.Tx) error {
		row := tx.QueryRow(
			`SELECT `+approvalColumns+` FROM policy_approvals WHERE version_id = ? AND sequence = ?`,
			d.VersionID, d.Sequence)
		step, err := scanApproval(row)
		if err == sql.ErrNoRows {
			return compliance.NewNotFoundError("policy_approval",
				fmt.Sprintf("%s/seq=%d", d.VersionID, d.Sequence))
		}
		if err != nil {
			return compliance.NewStorageError("sqlite", "decide_approval", err)
		}

		if step.Status != compliance.ApprovalStatusPending {
			return compliance.NewInvalidStateError("policy_approval", step.ID, string(step.Status), "decide")
		}
		if step.ApproverRole != d.ApproverRole {
			return compliance.NewAuthorizationError(d.ApproverID, "decide",
				fmt.Sprintf("approval step %d (requires role %s)", d.Sequence, step.ApproverRole))
		}

		// Sequence rule: every earlier step must already be approved.
		var blockedBy int
		err = tx.QueryRow(`
			SELECT sequence FROM policy_approvals
			WHERE version_id = ? AND sequence < ? AND status <> ?
			ORDER BY sequence ASC LIMIT 1`,
			d.VersionID, d.Sequence, compliance.ApprovalStatusApproved,
		).Scan(&blockedBy)
		if err != nil && err != sql.ErrNoRows {
			return compliance.NewStorageError("sqlite", "decide_approval", err)
		}
		if err == nil {
			return compliance.NewSequenceViolationError(d.VersionID, d.Sequence, blockedBy)
		}

		var companyID string
		var versionStatus compliance.VersionStatus
		err = tx.QueryRow(`SELECT company_id, status FROM policy_versions WHERE id = ?`, d.VersionID).
			Scan(&companyID, &versionStatus)
		if err != nil {
			return compliance.NewStorageError("sqlite", "decide_approval", err)
		}
		if versionStatus != compliance.VersionStatusPendingApproval {
			return compliance.NewInvalidStateError("policy_version", d.VersionID, string(versionStatus), "decide approval")
		}

		decision := compliance.ApprovalStatusApproved
		if !d.Approve {
			decision = compliance.ApprovalStatusRejected
		}
		now := time.Now().UTC()

		res, err := tx.Exec(`
			UPDATE policy_approvals
			SET status = ?, approver_id = ?, comment = ?, decided_at = ?
			WHERE id = ? AND status = ?`,
			decision, d.ApproverID, d.Comment, now, step.ID, compliance.ApprovalStatusPending)
		if err != nil {
			return compliance.NewStorageError("sqlite", "decide_approval", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Another approver's transaction got here first.
			return compliance.NewInvalidStateError("policy_approval", step.ID, "decided", "decide")
		}

		if err := appendAudit(tx, &compliance.AuditRecord{
			CompanyID:     companyID,
			EntityType:    compliance.AuditEntityApproval,
			EntityID:      step.ID,
			PreviousState: string(compliance.ApprovalStatusPending),
			NewState:      string(decision),
			Actor:         d.ApproverID,
			Detail:        fmt.Sprintf("version %s sequence %d", d.VersionID, d.Sequence),
		}); err != nil {
			return compliance.NewStorageError("sqlite", "audit_decision", err)
		}

		if !d.Approve {
			// Rejection terminates the chain. Remaining pending steps are
			// marked skipped, never silently left pending.
			rows, err := tx.Query(`
				SELECT id FROM policy_approvals
				WHERE version_id = ? AND status = ?`,
				d.VersionID, compliance.ApprovalStatusPending)
			if err != nil {
				return compliance.NewStorageError("sqlite", "skip_remaining", err)
			}
			var skippedIDs []string
			for rows.Next() {
				var id string
				if err := rows.Scan(&id); err != nil {
					rows.Close()
					return compliance.NewStorageError("sqlite", "skip_remaining", err)
				}
				skippedIDs = append(skippedIDs, id)
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return compliance.NewStorageError("sqlite", "skip_remaining", err)
			}

			for _, id := range skippedIDs {
				_, err := tx.Exec(`UPDATE policy_approvals SET status = ? WHERE id = ? AND status = ?`,
					compliance.ApprovalStatusSkipped, id, compliance.ApprovalStatusPending)
				if err != nil {
					return compliance.NewStorageError("sqlite", "skip_remaining", err)
				}
				if err := appendAudit(tx, &compliance.AuditRecord{
					CompanyID:     companyID,
					EntityType:    compliance.AuditEntityApproval,
					EntityID:      id,
					PreviousState: string(compliance.ApprovalStatusPending),
					NewState:      string(compliance.ApprovalStatusSkipped),
					Actor:         compliance.SystemActor,
					Detail:        fmt.Sprintf("chain terminated by rejection at sequence %d", d.Sequence),
				}); err != nil {
					return compliance.NewStorageError("sqlite", "audit_skip", err)
				}
			}
			outcome.Skipped = len(skippedIDs)

			if err := transitionVersionInTx(tx, d.VersionID, companyID,
				compliance.VersionStatusPendingApproval, compliance.VersionStatusRejected, d.ApproverID); err != nil {
				return err
			}
			outcome.VersionStatus = compliance.VersionStatusRejected
			outcome.Final = true
			return nil
		}

		// Approved: the version completes only when no pending steps remain.
		var remaining int
		err = tx.QueryRow(`SELECT COUNT(*) FROM policy_approvals WHERE version_id = ? AND status = ?`,
			d.VersionID, compliance.ApprovalStatusPending).Scan(&remaining)
		if err != nil {
			return compliance.NewStorageError("sqlite", "decide_approval", err)
		}
		if remaining > 0 {
			outcome.VersionStatus = compliance.VersionStatusPendingApproval
			return nil
		}

		if err := transitionVersionInTx(tx, d.VersionID, companyID,
			compliance.VersionStatusPendingApproval, compliance.VersionStatusApproved, d.ApproverID); err != nil {
			return err
		}
		outcome.VersionStatus = compliance.VersionStatusApproved
		outcome.Final = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// transitionVersionInTx applies a version CAS plus audit append inside an
// existing transaction.
func transitionVersionInTx(tx *sql.Tx, versionID, companyID string, from, to compliance.VersionStatus, actor string) error {
	res, err := tx.Exec(`UPDATE policy_versions SET status = ? WHERE id = ? AND status = ?`,
		to, versionID, from)
	if err != nil {
		return compliance.NewStorageError("sqlite", "transition_version", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return compliance.NewInvalidStateError("policy_version", versionID, "unknown",
			fmt.Sprintf("transition to %s", to))
	}
	if err := appendAudit(tx, &compliance.AuditRecord{
		CompanyID:     companyID,
		EntityType:    compliance.AuditEntityVersion,
		EntityID:      versionID,
		PreviousState: string(from),
		NewState:      string(to),
		Actor:         actor,
	}); err != nil {
		return compliance.NewStorageError("sqlite", "audit_transition", err)
	}
	return nil
}
