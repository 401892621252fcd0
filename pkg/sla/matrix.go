package sla

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/themis/pkg/compliance"
	"mercator-hq/themis/pkg/compliance/storage"
)

// MatrixProvider resolves the escalation matrix for one company and campaign
// type. A nil matrix with nil error means no escalation is configured;
// breached requests then stay at level 0.
type MatrixProvider interface {
	MatrixFor(ctx context.Context, companyID string, t compliance.CampaignType) ([]compliance.EscalationStep, error)
}

// LevelFor returns the highest escalation level whose cumulative wait has
// elapsed since breach, or 0 when none has. Wait hours are cumulative from
// the breach instant: a matrix of 24h, 72h fires level 1 after 24 hours and
// level 2 after 96.
func LevelFor(matrix []compliance.EscalationStep, elapsed time.Duration) int {
	level := 0
	var cumulative time.Duration
	for _, step := range matrix {
		cumulative += time.Duration(step.WaitHours) * time.Hour
		if elapsed < cumulative {
			break
		}
		level = step.Level
	}
	return level
}

// StepForLevel returns the matrix step at the given level, or nil.
func StepForLevel(matrix []compliance.EscalationStep, level int) *compliance.EscalationStep {
	for i := range matrix {
		if matrix[i].Level == level {
			return &matrix[i]
		}
	}
	return nil
}

// ValidateMatrix checks that levels are 1-based, strictly ascending, and
// every step names a role.
func ValidateMatrix(matrix []compliance.EscalationStep) error {
	prev := 0
	for _, step := range matrix {
		if step.Level != prev+1 {
			return compliance.NewValidationError("matrix",
				fmt.Sprintf("escalation levels must be consecutive from 1, got %d after %d", step.Level, prev))
		}
		if step.EscalateToRole == "" {
			return compliance.NewValidationError("matrix",
				fmt.Sprintf("level %d is missing an escalation role", step.Level))
		}
		if step.WaitHours < 0 {
			return compliance.NewValidationError("matrix",
				fmt.Sprintf("level %d has a negative wait", step.Level))
		}
		prev = step.Level
	}
	return nil
}

// matrixFile is the on-disk shape of the SLA matrix file.
type matrixFile struct {
	// Default applies to any (company, type) pair without its own entry.
	Default []compliance.EscalationStep `yaml:"default"`

	// Configurations are per-company, per-type overrides.
	Configurations []*compliance.SLAConfiguration `yaml:"configurations"`
}

// FileProvider serves escalation matrices from a YAML file. The file is
// parsed once at load and swapped atomically on Reload, so lookups during a
// reload see either the old or the new matrix, never a mix.
type FileProvider struct {
	path string

	mu       sync.RWMutex
	fallback []compliance.EscalationStep
	byKey    map[string][]compliance.EscalationStep
}

// LoadFileProvider parses the matrix file at path.
func LoadFileProvider(path string) (*FileProvider, error) {
	p := &FileProvider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads and validates the matrix file, then swaps the matrices in.
// On any error the previous matrices stay in effect.
func (p *FileProvider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("failed to read SLA matrix file %q: %w", p.path, err)
	}

	var f matrixFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse SLA matrix file %q: %w", p.path, err)
	}

	if err := ValidateMatrix(f.Default); err != nil {
		return fmt.Errorf("invalid default matrix in %q: %w", p.path, err)
	}
	byKey := make(map[string][]compliance.EscalationStep, len(f.Configurations))
	for _, cfg := range f.Configurations {
		if cfg.CompanyID == "" {
			return fmt.Errorf("SLA configuration in %q is missing company_id", p.path)
		}
		sorted := append([]compliance.EscalationStep(nil), cfg.Matrix...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
		if err := ValidateMatrix(sorted); err != nil {
			return fmt.Errorf("invalid matrix for company %s in %q: %w", cfg.CompanyID, p.path, err)
		}
		byKey[matrixKey(cfg.CompanyID, cfg.AcknowledgmentType)] = sorted
	}

	p.mu.Lock()
	p.fallback = f.Default
	p.byKey = byKey
	p.mu.Unlock()
	return nil
}

// MatrixFor implements MatrixProvider. Only explicit (company, type)
// entries answer here; the file's default matrix is served by Default, which
// callers place last in a ChainProvider so store rows can override it.
func (p *FileProvider) MatrixFor(_ context.Context, companyID string, t compliance.CampaignType) ([]compliance.EscalationStep, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byKey[matrixKey(companyID, t)], nil
}

// Default returns a provider serving the file's default matrix for every
// (company, type) pair.
func (p *FileProvider) Default() MatrixProvider {
	return matrixProviderFunc(func(context.Context, string, compliance.CampaignType) ([]compliance.EscalationStep, error) {
		p.mu.RLock()
		defer p.mu.RUnlock()
		return p.fallback, nil
	})
}

type matrixProviderFunc func(ctx context.Context, companyID string, t compliance.CampaignType) ([]compliance.EscalationStep, error)

func (f matrixProviderFunc) MatrixFor(ctx context.Context, companyID string, t compliance.CampaignType) ([]compliance.EscalationStep, error) {
	return f(ctx, companyID, t)
}

// Path returns the matrix file path, for the watcher.
func (p *FileProvider) Path() string { return p.path }

func matrixKey(companyID string, t compliance.CampaignType) string {
	return companyID + "/" + string(t)
}

// StoreProvider serves escalation matrices from SLA configuration rows in
// the store.
type StoreProvider struct {
	store storage.Store
}

// NewStoreProvider creates a store-backed matrix provider.
func NewStoreProvider(store storage.Store) *StoreProvider {
	return &StoreProvider{store: store}
}

// MatrixFor implements MatrixProvider. A missing row yields a nil matrix.
func (p *StoreProvider) MatrixFor(ctx context.Context, companyID string, t compliance.CampaignType) ([]compliance.EscalationStep, error) {
	cfg, err := p.store.GetSLAConfig(ctx, companyID, t)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, nil
	}
	return cfg.Matrix, nil
}

// ChainProvider consults providers in order and returns the first non-nil
// matrix. Used to let a matrix file override store rows.
type ChainProvider []MatrixProvider

// MatrixFor implements MatrixProvider.
func (c ChainProvider) MatrixFor(ctx context.Context, companyID string, t compliance.CampaignType) ([]compliance.EscalationStep, error) {
	for _, p := range c {
		m, err := p.MatrixFor(ctx, companyID, t)
		if err != nil {
			return nil, err
		}
		if len(m) > 0 {
			return m, nil
		}
	}
	return nil, nil
}
