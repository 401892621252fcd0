package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the compliance database schema.
const Schema = `
-- Policy containers
CREATE TABLE IF NOT EXISTS policies (
    id TEXT PRIMARY KEY,
    company_id TEXT NOT NULL,
    title TEXT NOT NULL,
    policy_type TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

-- Immutable policy versions
CREATE TABLE IF NOT EXISTS policy_versions (
    id TEXT PRIMARY KEY,
    policy_id TEXT NOT NULL REFERENCES policies(id),
    company_id TEXT NOT NULL,
    version_number INTEGER NOT NULL,
    content TEXT NOT NULL,
    status TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT 0,
    author_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    activated_at TIMESTAMP,
    archived_at TIMESTAMP,
    UNIQUE(policy_id, version_number)
);

-- Backstop for the single-active-version invariant. The promote transaction
-- is the authoritative enforcement; this index catches any future code path
-- that bypasses it.
CREATE UNIQUE INDEX IF NOT EXISTS idx_versions_single_active
    ON policy_versions(policy_id) WHERE is_active = 1;

-- Approval chains per (company, policy type); steps stored as JSON
CREATE TABLE IF NOT EXISTS approval_workflows (
    id TEXT PRIMARY KEY,
    company_id TEXT NOT NULL,
    policy_type TEXT NOT NULL,
    steps TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    UNIQUE(company_id, policy_type)
);

-- One row per (version, sequence); never deleted
CREATE TABLE IF NOT EXISTS policy_approvals (
    id TEXT PRIMARY KEY,
    version_id TEXT NOT NULL REFERENCES policy_versions(id),
    sequence INTEGER NOT NULL,
    approver_role TEXT NOT NULL,
    status TEXT NOT NULL,
    approver_id TEXT,
    comment TEXT,
    created_at TIMESTAMP NOT NULL,
    decided_at TIMESTAMP,
    UNIQUE(version_id, sequence)
);

-- Role to policy mapping
CREATE TABLE IF NOT EXISTS role_policy_mappings (
    role_id TEXT NOT NULL,
    policy_id TEXT NOT NULL,
    is_mandatory BOOLEAN NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (role_id, policy_id)
);

-- Acknowledgment campaigns; version/employee ids stored as JSON
CREATE TABLE IF NOT EXISTS campaigns (
    id TEXT PRIMARY KEY,
    company_id TEXT NOT NULL,
    type TEXT NOT NULL,
    version_ids TEXT NOT NULL,
    employee_ids TEXT,
    start_date TIMESTAMP NOT NULL,
    end_date TIMESTAMP NOT NULL,
    grace_period_days INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);

-- Per-employee acknowledgment obligations. The unique constraint makes
-- campaign expansion idempotent.
CREATE TABLE IF NOT EXISTS acknowledgment_requests (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL REFERENCES campaigns(id),
    company_id TEXT NOT NULL,
    employee_id TEXT NOT NULL,
    version_id TEXT NOT NULL REFERENCES policy_versions(id),
    status TEXT NOT NULL,
    due_date TIMESTAMP NOT NULL,
    reminder_count INTEGER NOT NULL DEFAULT 0,
    is_escalated BOOLEAN NOT NULL DEFAULT 0,
    escalation_level INTEGER NOT NULL DEFAULT 0,
    breached_at TIMESTAMP,
    completed_at TIMESTAMP,
    completed_late BOOLEAN NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    UNIQUE(campaign_id, employee_id, version_id)
);

-- Immutable acknowledgment proofs
CREATE TABLE IF NOT EXISTS acknowledgments (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL REFERENCES acknowledgment_requests(id),
    employee_id TEXT NOT NULL,
    version_id TEXT NOT NULL,
    acknowledged_at TIMESTAMP NOT NULL,
    context TEXT,
    UNIQUE(employee_id, version_id, request_id)
);

-- Per-company, per-type SLA escalation configuration; matrix stored as JSON
CREATE TABLE IF NOT EXISTS sla_configurations (
    id TEXT PRIMARY KEY,
    company_id TEXT NOT NULL,
    acknowledgment_type TEXT NOT NULL,
    matrix TEXT NOT NULL,
    UNIQUE(company_id, acknowledgment_type)
);

-- Append-only audit trail; writes share the transaction of the transition
-- they describe
CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    company_id TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    previous_state TEXT NOT NULL,
    new_state TEXT NOT NULL,
    actor TEXT NOT NULL,
    detail TEXT,
    timestamp TIMESTAMP NOT NULL
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_versions_policy ON policy_versions(policy_id);
CREATE INDEX IF NOT EXISTS idx_approvals_version ON policy_approvals(version_id);
CREATE INDEX IF NOT EXISTS idx_approvals_role ON policy_approvals(approver_role, status);
CREATE INDEX IF NOT EXISTS idx_mappings_policy ON role_policy_mappings(policy_id);
CREATE INDEX IF NOT EXISTS idx_requests_status ON acknowledgment_requests(status, due_date);
CREATE INDEX IF NOT EXISTS idx_requests_employee ON acknowledgment_requests(employee_id, status);
CREATE INDEX IF NOT EXISTS idx_requests_campaign ON acknowledgment_requests(campaign_id);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING
`

// GetSchemaVersion retrieves the latest schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1
`
