package sla

import (
	"context"
	"os"
	"testing"
	"time"

	"mercator-hq/themis/pkg/compliance"
)

func TestMatrixWatcher_ReloadsOnChange(t *testing.T) {
	path := writeMatrixFile(t, matrixYAML)
	provider, err := LoadFileProvider(path)
	if err != nil {
		t.Fatalf("LoadFileProvider() failed: %v", err)
	}

	watcher, err := NewMatrixWatcher(provider)
	if err != nil {
		t.Fatalf("NewMatrixWatcher() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- watcher.Watch(ctx)
	}()

	// Give the watcher time to register the path
	time.Sleep(100 * time.Millisecond)

	updated := `default:
  - level: 1
    escalate_to_role: site_lead
    wait_hours: 48
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("failed to overwrite matrix file: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		matrix, err := provider.Default().MatrixFor(ctx, "acme", compliance.CampaignTypePeriodic)
		if err != nil {
			t.Fatalf("MatrixFor() failed: %v", err)
		}
		if len(matrix) == 1 && matrix[0].EscalateToRole == "site_lead" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("matrix not reloaded after file change, got %v", matrix)
		case <-time.After(50 * time.Millisecond):
		}
	}

	if err := watcher.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if err := <-watchErr; err != nil {
		t.Errorf("Watch() returned error: %v", err)
	}
}

func TestMatrixWatcher_KeepsMatricesOnBadReload(t *testing.T) {
	path := writeMatrixFile(t, matrixYAML)
	provider, err := LoadFileProvider(path)
	if err != nil {
		t.Fatalf("LoadFileProvider() failed: %v", err)
	}

	watcher, err := NewMatrixWatcher(provider)
	if err != nil {
		t.Fatalf("NewMatrixWatcher() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = watcher.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("default: {broken"), 0o644); err != nil {
		t.Fatalf("failed to overwrite matrix file: %v", err)
	}

	// Give the watcher time to attempt the reload
	time.Sleep(500 * time.Millisecond)

	matrix, err := provider.MatrixFor(ctx, "acme", compliance.CampaignTypeNewHire)
	if err != nil {
		t.Fatalf("MatrixFor() failed: %v", err)
	}
	if len(matrix) != 1 || matrix[0].EscalateToRole != "hr_manager" {
		t.Errorf("matrix after bad reload = %v, want the previous entry", matrix)
	}

	if err := watcher.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
}

func TestMatrixWatcher_StopWithoutStart(t *testing.T) {
	path := writeMatrixFile(t, matrixYAML)
	provider, err := LoadFileProvider(path)
	if err != nil {
		t.Fatalf("LoadFileProvider() failed: %v", err)
	}

	watcher, err := NewMatrixWatcher(provider)
	if err != nil {
		t.Fatalf("NewMatrixWatcher() failed: %v", err)
	}
	if err := watcher.Stop(); err != nil {
		t.Errorf("Stop() without Watch() failed: %v", err)
	}
}
