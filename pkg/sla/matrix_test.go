package sla

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/themis/pkg/compliance"
	"mercator-hq/themis/pkg/compliance/storage"
)

func defaultMatrix() []compliance.EscalationStep {
	return []compliance.EscalationStep{
		{Level: 1, EscalateToRole: "manager", WaitHours: 24},
		{Level: 2, EscalateToRole: "compliance_officer", WaitHours: 72},
		{Level: 3, EscalateToRole: "executive", WaitHours: 168},
	}
}

func TestLevelFor(t *testing.T) {
	matrix := defaultMatrix()

	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"just breached", 0, 0},
		{"under first wait", 23 * time.Hour, 0},
		{"first wait elapsed", 24 * time.Hour, 1},
		{"between levels", 95 * time.Hour, 1},
		{"second wait elapsed", 96 * time.Hour, 2},
		{"deep into second", 120 * time.Hour, 2},
		{"third wait elapsed", 264 * time.Hour, 3},
		{"beyond the ladder", 1000 * time.Hour, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LevelFor(matrix, tt.elapsed); got != tt.want {
				t.Errorf("LevelFor(%v) = %d, want %d", tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestLevelFor_EmptyMatrix(t *testing.T) {
	if got := LevelFor(nil, 500*time.Hour); got != 0 {
		t.Errorf("LevelFor(nil matrix) = %d, want 0", got)
	}
}

func TestStepForLevel(t *testing.T) {
	matrix := defaultMatrix()

	step := StepForLevel(matrix, 2)
	if step == nil || step.EscalateToRole != "compliance_officer" {
		t.Errorf("StepForLevel(2) = %v, want compliance_officer", step)
	}
	if StepForLevel(matrix, 4) != nil {
		t.Error("StepForLevel(4) returned a step beyond the ladder")
	}
}

func TestValidateMatrix(t *testing.T) {
	tests := []struct {
		name    string
		matrix  []compliance.EscalationStep
		wantErr bool
	}{
		{"valid", defaultMatrix(), false},
		{"empty", nil, false},
		{"starts at two", []compliance.EscalationStep{
			{Level: 2, EscalateToRole: "manager", WaitHours: 24},
		}, true},
		{"gap in levels", []compliance.EscalationStep{
			{Level: 1, EscalateToRole: "manager", WaitHours: 24},
			{Level: 3, EscalateToRole: "executive", WaitHours: 72},
		}, true},
		{"missing role", []compliance.EscalationStep{
			{Level: 1, EscalateToRole: "", WaitHours: 24},
		}, true},
		{"negative wait", []compliance.EscalationStep{
			{Level: 1, EscalateToRole: "manager", WaitHours: -1},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMatrix(tt.matrix)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMatrix() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var verr *compliance.ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("ValidateMatrix() error type = %T, want ValidationError", err)
				}
			}
		})
	}
}

const matrixYAML = `default:
  - level: 1
    escalate_to_role: manager
    wait_hours: 24
  - level: 2
    escalate_to_role: compliance_officer
    wait_hours: 72
configurations:
  - company_id: acme
    acknowledgment_type: new_hire
    matrix:
      - level: 1
        escalate_to_role: hr_manager
        wait_hours: 12
`

func writeMatrixFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sla-matrix.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write matrix file: %v", err)
	}
	return path
}

func TestFileProvider_ExplicitAndDefault(t *testing.T) {
	path := writeMatrixFile(t, matrixYAML)
	p, err := LoadFileProvider(path)
	if err != nil {
		t.Fatalf("LoadFileProvider() failed: %v", err)
	}
	ctx := context.Background()

	matrix, err := p.MatrixFor(ctx, "acme", compliance.CampaignTypeNewHire)
	if err != nil {
		t.Fatalf("MatrixFor() failed: %v", err)
	}
	if len(matrix) != 1 || matrix[0].EscalateToRole != "hr_manager" {
		t.Errorf("explicit matrix = %v, want the hr_manager override", matrix)
	}

	// Pairs without an explicit entry get nothing from the provider itself.
	matrix, err = p.MatrixFor(ctx, "acme", compliance.CampaignTypePeriodic)
	if err != nil {
		t.Fatalf("MatrixFor() failed: %v", err)
	}
	if len(matrix) != 0 {
		t.Errorf("unconfigured pair matrix = %v, want empty", matrix)
	}

	matrix, err = p.Default().MatrixFor(ctx, "anyco", compliance.CampaignTypePeriodic)
	if err != nil {
		t.Fatalf("Default().MatrixFor() failed: %v", err)
	}
	if len(matrix) != 2 || matrix[0].EscalateToRole != "manager" {
		t.Errorf("default matrix = %v, want the two-level file default", matrix)
	}
}

func TestFileProvider_ReloadKeepsOldOnError(t *testing.T) {
	path := writeMatrixFile(t, matrixYAML)
	p, err := LoadFileProvider(path)
	if err != nil {
		t.Fatalf("LoadFileProvider() failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("default: {not valid"), 0o644); err != nil {
		t.Fatalf("failed to overwrite matrix file: %v", err)
	}
	if err := p.Reload(); err == nil {
		t.Fatal("Reload() with malformed file succeeded, want error")
	}

	matrix, err := p.MatrixFor(context.Background(), "acme", compliance.CampaignTypeNewHire)
	if err != nil {
		t.Fatalf("MatrixFor() failed: %v", err)
	}
	if len(matrix) != 1 {
		t.Errorf("matrix after failed reload = %v, want the previous entry", matrix)
	}
}

func TestFileProvider_Reload(t *testing.T) {
	path := writeMatrixFile(t, matrixYAML)
	p, err := LoadFileProvider(path)
	if err != nil {
		t.Fatalf("LoadFileProvider() failed: %v", err)
	}

	updated := `default:
  - level: 1
    escalate_to_role: site_lead
    wait_hours: 48
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("failed to overwrite matrix file: %v", err)
	}
	if err := p.Reload(); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}

	matrix, err := p.Default().MatrixFor(context.Background(), "acme", compliance.CampaignTypePeriodic)
	if err != nil {
		t.Fatalf("MatrixFor() failed: %v", err)
	}
	if len(matrix) != 1 || matrix[0].EscalateToRole != "site_lead" {
		t.Errorf("default matrix after reload = %v, want site_lead", matrix)
	}

	// The old explicit entry is gone.
	matrix, err = p.MatrixFor(context.Background(), "acme", compliance.CampaignTypeNewHire)
	if err != nil {
		t.Fatalf("MatrixFor() failed: %v", err)
	}
	if len(matrix) != 0 {
		t.Errorf("explicit matrix after reload = %v, want empty", matrix)
	}
}

func TestChainProvider_Precedence(t *testing.T) {
	path := writeMatrixFile(t, matrixYAML)
	file, err := LoadFileProvider(path)
	if err != nil {
		t.Fatalf("LoadFileProvider() failed: %v", err)
	}

	store := storage.NewMemoryStore()
	ctx := context.Background()
	if err := store.PutSLAConfig(ctx, &compliance.SLAConfiguration{
		ID:                 compliance.NewID(),
		CompanyID:          "acme",
		AcknowledgmentType: compliance.CampaignTypePeriodic,
		Matrix: []compliance.EscalationStep{
			{Level: 1, EscalateToRole: "team_lead", WaitHours: 6},
		},
	}); err != nil {
		t.Fatalf("PutSLAConfig() failed: %v", err)
	}

	chain := ChainProvider{file, NewStoreProvider(store), file.Default()}

	// Explicit file entry wins over everything.
	matrix, err := chain.MatrixFor(ctx, "acme", compliance.CampaignTypeNewHire)
	if err != nil {
		t.Fatalf("MatrixFor() failed: %v", err)
	}
	if len(matrix) != 1 || matrix[0].EscalateToRole != "hr_manager" {
		t.Errorf("new_hire matrix = %v, want the file override", matrix)
	}

	// Store row answers when the file has no explicit entry.
	matrix, err = chain.MatrixFor(ctx, "acme", compliance.CampaignTypePeriodic)
	if err != nil {
		t.Fatalf("MatrixFor() failed: %v", err)
	}
	if len(matrix) != 1 || matrix[0].EscalateToRole != "team_lead" {
		t.Errorf("periodic matrix = %v, want the store row", matrix)
	}

	// The file default is the last resort.
	matrix, err = chain.MatrixFor(ctx, "globex", compliance.CampaignTypeManual)
	if err != nil {
		t.Fatalf("MatrixFor() failed: %v", err)
	}
	if len(matrix) != 2 || matrix[0].EscalateToRole != "manager" {
		t.Errorf("fallback matrix = %v, want the file default", matrix)
	}
}
