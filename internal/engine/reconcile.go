package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/danieljhkim/watchguard/internal/dashboard"
	"github.com/danieljhkim/watchguard/internal/reconcile"
	"github.com/danieljhkim/watchguard/internal/watch"
)

// StartReconciler runs a pass now and then on every interval until ctx is
// done or StopReconciler is called.
func (e *Engine) StartReconciler(ctx context.Context) {
	e.reconciler.Start(ctx)
}

// StopReconciler stops the loop and waits for a running pass to finish.
func (e *Engine) StopReconciler() {
	e.reconciler.Stop()
}

// ForceSync runs a pass regardless of file changes.
func (e *Engine) ForceSync() (*SyncResult, error) {
	summary, err := e.reconciler.ForceSync()
	if err != nil {
		return nil, fmt.Errorf("sync failed: %w", err)
	}
	return &SyncResult{Summary: summary, Message: summary.Message()}, nil
}

// Status reports the reconciler state.
func (e *Engine) Status() reconcile.Status {
	return e.reconciler.Status()
}

// Watch triggers a reconciliation pass whenever a data file changes on
// disk, until ctx is done.
func (e *Engine) Watch(ctx context.Context, debounce time.Duration) error {
	paths := e.reconciler.WatchedPaths()
	files := make([]string, len(paths))
	for i, p := range paths {
		files[i] = filepath.Base(p)
	}

	w, err := watch.New(watch.Config{Dir: e.store.Dir(), Files: files, Debounce: debounce}, e.logger.Named("watch"))
	if err != nil {
		return err
	}
	if _, err := w.Start(); err != nil {
		_ = w.Stop()
		return err
	}
	e.logger.Info("watching data files", zap.String("dir", e.store.Dir()), zap.Strings("files", files))

	w.Forward(ctx, e.reconciler.Notify)
	return w.Stop()
}

// Dashboard returns the cached dashboard view.
func (e *Engine) Dashboard() dashboard.Overview {
	return e.dashboard.Overview()
}
