package sla

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// MatrixWatcher watches the SLA matrix file and reloads the FileProvider on
// change. Rapid write bursts (editors, atomic renames) are debounced so one
// save triggers one reload.
type MatrixWatcher struct {
	provider *FileProvider
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMatrixWatcher creates a watcher over the provider's matrix file.
func NewMatrixWatcher(provider *FileProvider) (*MatrixWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &MatrixWatcher{
		provider: provider,
		watcher:  watcher,
		debounce: 100 * time.Millisecond,
		logger:   slog.Default().With("component", "sla.watcher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks processing file events until the context is cancelled or
// Stop is called. A reload failure keeps the previous matrices in effect
// and is logged, never fatal.
func (w *MatrixWatcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	if err := w.watcher.Add(w.provider.Path()); err != nil {
		return fmt.Errorf("failed to watch matrix file: %w", err)
	}

	w.logger.Info("matrix watcher started", "path", w.provider.Path())

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("matrix watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("matrix watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			// Editors often replace the file, which drops the watch on
			// some platforms. Re-add so subsequent saves are seen.
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				_ = w.watcher.Add(w.provider.Path())
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := w.provider.Reload(); err != nil {
				w.logger.Error("matrix reload failed, keeping previous matrices",
					"path", w.provider.Path(),
					"error", err)
				continue
			}
			w.logger.Info("matrix reloaded", "path", w.provider.Path())

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("matrix watcher error", "error", err)
		}
	}
}

// Stop stops the watcher.
func (w *MatrixWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}
