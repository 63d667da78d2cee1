// Package reconcile keeps the label set consistent across labels.json,
// the settings mirror, and the server and domain collections.
//
// A pass stats the four watched files and, if any changed since the last
// successful pass, recomputes the canonical label set as the union of every
// label referenced anywhere, writes it back to the registry and to the
// settings mirror, and blanks entity labels outside that set. The pass holds
// every participating file lock, so it never interleaves with an API writer.
package reconcile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danieljhkim/watchguard/internal/bus"
	"github.com/danieljhkim/watchguard/internal/clock"
	"github.com/danieljhkim/watchguard/internal/fsops"
	"github.com/danieljhkim/watchguard/internal/labels"
	"github.com/danieljhkim/watchguard/internal/persist"
	"github.com/danieljhkim/watchguard/internal/state"
	"github.com/danieljhkim/watchguard/internal/stores"
)

// watchedKeys are the collections whose files drive reconciliation.
var watchedKeys = []persist.Key{persist.KeyLabels, persist.KeySettings, persist.KeyServers, persist.KeyDomains}

// Reconciler runs reconciliation passes on a timer and on demand.
type Reconciler struct {
	store    *persist.Store
	fs       fsops.FS
	registry *labels.Registry
	servers  *stores.EntityStore
	domains  *stores.EntityStore
	settings *stores.DocumentStore
	pub      bus.Publisher
	watch    *state.WatchState
	clock    clock.Clock
	interval time.Duration
	logger   *zap.Logger

	// passMu serializes passes from the loop and from ForceSync.
	passMu sync.Mutex

	mu         sync.Mutex
	running    bool
	phase      Phase
	lastSync   time.Time
	lastResult *Summary
	lastErr    error
	stop       chan struct{}
	done       chan struct{}
	wake       chan struct{}
}

// New creates a stopped Reconciler. A non-positive interval means DefaultInterval.
func New(
	store *persist.Store,
	fs fsops.FS,
	registry *labels.Registry,
	servers *stores.EntityStore,
	domains *stores.EntityStore,
	settings *stores.DocumentStore,
	pub bus.Publisher,
	clk clock.Clock,
	interval time.Duration,
	logger *zap.Logger,
) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:    store,
		fs:       fs,
		registry: registry,
		servers:  servers,
		domains:  domains,
		settings: settings,
		pub:      pub,
		watch:    state.NewWatchState(),
		clock:    clk,
		interval: interval,
		logger:   logger,
		phase:    PhaseIdle,
		wake:     make(chan struct{}, 1),
	}
}

// WatchedPaths returns the files a pass stats.
func (r *Reconciler) WatchedPaths() []string {
	paths := make([]string, len(watchedKeys))
	for i, k := range watchedKeys {
		paths[i] = r.store.Path(k)
	}
	return paths
}

// Start runs one pass immediately and then keeps running passes every
// interval until Stop is called or ctx is done. Calling Start on a running
// Reconciler does nothing.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	stop := make(chan struct{})
	done := make(chan struct{})
	r.stop, r.done = stop, done
	r.mu.Unlock()

	r.logger.Info("reconciler starting", zap.Duration("interval", r.interval))
	_, _ = r.RunOnce()

	go r.loop(ctx, stop, done)
}

// Stop ends the loop and waits for it to exit. An in-progress pass is
// allowed to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		done := r.done
		r.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	r.running = false
	close(r.stop)
	done := r.done
	r.mu.Unlock()

	<-done
	r.logger.Info("reconciler stopped")
}

// Notify requests a pass as soon as the loop is free. It never blocks.
func (r *Reconciler) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Reconciler) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	timer := r.clock.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			r.mu.Lock()
			if r.done == done {
				r.running = false
			}
			r.mu.Unlock()
			r.logger.Info("reconciler context done", zap.Error(ctx.Err()))
			return
		case <-timer.C():
		case <-r.wake:
			if !timer.Stop() {
				select {
				case <-timer.C():
				default:
				}
			}
		}

		_, _ = r.RunOnce()
		timer.Reset(r.interval)
	}
}

// RunOnce performs one Scanning phase and, if a watched file changed, one
// Syncing phase. It returns nil and no error when nothing changed. Errors
// are logged and leave the watch state untouched so the next pass retries.
func (r *Reconciler) RunOnce() (*Summary, error) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	r.setPhase(PhaseScanning)
	defer r.setPhase(PhaseIdle)

	snap, err := state.Scan(r.fs, r.WatchedPaths())
	if err != nil {
		r.recordFailure(err)
		return nil, err
	}
	changed := r.watch.Changed(snap)
	if len(changed) == 0 {
		return nil, nil
	}
	r.logger.Debug("watched files changed", zap.Strings("files", changed))

	return r.syncAndRecord(snap, false)
}

// ForceSync runs a Syncing phase now regardless of file changes.
func (r *Reconciler) ForceSync() (Summary, error) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	r.setPhase(PhaseScanning)
	defer r.setPhase(PhaseIdle)

	snap, err := state.Scan(r.fs, r.WatchedPaths())
	if err != nil {
		r.recordFailure(err)
		return Summary{}, err
	}

	summary, err := r.syncAndRecord(snap, true)
	if err != nil {
		return Summary{}, err
	}
	return *summary, nil
}

// syncAndRecord runs Syncing and, on success, records snap as the watch
// state. The snapshot predates the pass's own writes, so the next scan sees
// them as changes and runs a pass that finds nothing to write.
func (r *Reconciler) syncAndRecord(snap state.Snapshot, force bool) (*Summary, error) {
	r.setPhase(PhaseSyncing)

	summary, err := r.sync(force)
	if err != nil {
		r.recordFailure(err)
		return nil, err
	}

	r.watch.Record(snap)

	r.mu.Lock()
	r.lastSync = summary.FinishedAt
	r.lastResult = &summary
	r.lastErr = nil
	r.mu.Unlock()

	r.logger.Info("reconciliation pass completed",
		zap.Int("labels", summary.LabelCount),
		zap.Int("orphans_cleared", summary.OrphansCleared),
		zap.Bool("labels_written", summary.LabelsWritten),
		zap.Bool("settings_written", summary.SettingsWritten))
	return &summary, nil
}

// Status reports the reconciler state. WatchedFiles counts the watched
// files that currently exist.
func (r *Reconciler) Status() Status {
	present := 0
	if snap, err := state.Scan(r.fs, r.WatchedPaths()); err == nil {
		present = snap.Present()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		Running:         r.running,
		Phase:           r.phase,
		LastSync:        r.lastSync,
		Interval:        r.interval,
		IntervalSeconds: r.interval.Seconds(),
		WatchedFiles:    present,
	}
	if r.lastResult != nil {
		res := *r.lastResult
		st.LastResult = &res
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	return st
}

func (r *Reconciler) setPhase(p Phase) {
	r.mu.Lock()
	r.phase = p
	r.mu.Unlock()
}

func (r *Reconciler) recordFailure(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
	r.logger.Error("reconciliation pass failed", zap.Error(err))
}
