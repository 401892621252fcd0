package versions

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/themis/pkg/compliance"
	"mercator-hq/themis/pkg/compliance/storage"
	"mercator-hq/themis/pkg/telemetry/metrics"
)

// WorkflowInstantiator materializes an approval chain for a version entering
// pending_approval. Implemented by the approval engine.
type WorkflowInstantiator interface {
	Instantiate(ctx context.Context, v *compliance.PolicyVersion) error
}

// Manager owns the policy version lifecycle: draft authoring, submission
// into an approval chain, and promotion of an approved version to active.
//
// Promotion is delegated to the store's atomic promote primitive, which
// archives the previously active version in the same transaction. The
// manager never flips is_active itself.
type Manager struct {
	store    storage.Store
	workflow WorkflowInstantiator
	metrics  *metrics.PolicyMetrics
	logger   *slog.Logger
}

// NewManager creates a version lifecycle manager. metrics may be nil, which
// disables recording.
func NewManager(store storage.Store, workflow WorkflowInstantiator, pm *metrics.PolicyMetrics) *Manager {
	return &Manager{
		store:    store,
		workflow: workflow,
		metrics:  pm,
		logger:   slog.Default().With("component", "versions.manager"),
	}
}

// CreateDraft authors a new draft version for a policy. The policy must
// exist and be in status active; frozen and archived policies reject new
// drafts. The store assigns the next version number.
func (m *Manager) CreateDraft(ctx context.Context, policyID, authorID, content string) (*compliance.PolicyVersion, error) {
	if strings.TrimSpace(content) == "" {
		return nil, compliance.NewValidationError("content", "draft content must not be empty")
	}
	if authorID == "" {
		return nil, compliance.NewValidationError("author_id", "author is required")
	}

	p, err := m.store.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if p.Status != compliance.PolicyStatusActive {
		return nil, compliance.NewInvalidStateError("policy", p.ID, string(p.Status), "create draft version")
	}

	v := &compliance.PolicyVersion{
		ID:        compliance.NewID(),
		PolicyID:  p.ID,
		CompanyID: p.CompanyID,
		Content:   content,
		Status:    compliance.VersionStatusDraft,
		AuthorID:  authorID,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.CreateVersion(ctx, v); err != nil {
		return nil, err
	}

	m.logger.Info("draft version created",
		"policy_id", p.ID,
		"version_id", v.ID,
		"version_number", v.VersionNumber,
		"author", authorID)
	return v, nil
}

// SubmitForApproval moves a draft into pending_approval and materializes its
// approval chain. The transition is compare-and-swapped on status draft; a
// concurrent submit loses with InvalidStateError. If chain creation fails
// after the transition, the version is reverted to draft so it can be
// resubmitted.
func (m *Manager) SubmitForApproval(ctx context.Context, versionID, actor string) (*compliance.PolicyVersion, error) {
	v, err := m.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}

	if err := m.store.TransitionVersion(ctx, versionID,
		compliance.VersionStatusDraft, compliance.VersionStatusPendingApproval, actor); err != nil {
		return nil, err
	}
	m.recordTransition(compliance.VersionStatusPendingApproval)

	v.Status = compliance.VersionStatusPendingApproval
	if err := m.workflow.Instantiate(ctx, v); err != nil {
		if revertErr := m.store.TransitionVersion(ctx, versionID,
			compliance.VersionStatusPendingApproval, compliance.VersionStatusDraft, compliance.SystemActor); revertErr != nil {
			m.logger.Error("failed to revert version after workflow error",
				"version_id", versionID, "error", revertErr)
		} else {
			v.Status = compliance.VersionStatusDraft
		}
		return nil, err
	}

	m.logger.Info("version submitted for approval",
		"policy_id", v.PolicyID,
		"version_id", v.ID,
		"actor", actor)
	return v, nil
}

// Promote activates an approved version. The previously active version of
// the same policy, if any, is archived in the same transaction. The ID of
// the archived version is returned ("" when the policy had none).
func (m *Manager) Promote(ctx context.Context, versionID, actor string) (archivedID string, err error) {
	archivedID, err = m.store.PromoteVersion(ctx, versionID, actor)
	if err != nil {
		var ise *compliance.InvalidStateError
		if errors.As(err, &ise) {
			m.recordPromotion("conflict")
		}
		return "", err
	}

	m.recordPromotion("activated")
	m.recordTransition(compliance.VersionStatusActive)
	if archivedID != "" {
		m.recordTransition(compliance.VersionStatusArchived)
	}

	m.logger.Info("version promoted",
		"version_id", versionID,
		"archived_version_id", archivedID,
		"actor", actor)
	return archivedID, nil
}

// CurrentActive returns the policy's active version, or nil when the policy
// has no version in force.
func (m *Manager) CurrentActive(ctx context.Context, policyID string) (*compliance.PolicyVersion, error) {
	return m.store.ActiveVersion(ctx, policyID)
}

// History returns all versions of a policy, oldest first.
func (m *Manager) History(ctx context.Context, policyID string) ([]*compliance.PolicyVersion, error) {
	return m.store.ListVersions(ctx, policyID)
}

func (m *Manager) recordTransition(to compliance.VersionStatus) {
	if m.metrics != nil {
		m.metrics.RecordTransition(string(to))
	}
}

func (m *Manager) recordPromotion(outcome string) {
	if m.metrics != nil {
		m.metrics.RecordPromotion(outcome)
	}
}
