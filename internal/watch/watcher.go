// Package watch turns filesystem notifications on the data directory into
// debounced reconciliation triggers.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Config holds watcher configuration options.
type Config struct {
	// Dir is the data directory to watch.
	Dir string

	// Files are the base names that trigger a notification.
	Files []string

	// Debounce coalesces bursts of events into one notification.
	Debounce time.Duration
}

// Watcher monitors the data directory and signals when a watched file changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	cfg       Config
	logger    *zap.Logger
	onChange  chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	started   atomic.Bool
	exited    chan struct{}
}

// New creates a watcher. It does not start watching until Start.
func New(cfg Config, logger *zap.Logger) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		cfg:       cfg,
		logger:    logger,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
	}, nil
}

// Start begins watching. The returned channel receives one value per
// debounced burst of relevant events; a slow reader sees bursts coalesced.
func (w *Watcher) Start() (<-chan struct{}, error) {
	if err := w.fsWatcher.Add(w.cfg.Dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", w.cfg.Dir, err)
	}

	w.started.Store(true)
	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	if w.started.Load() {
		<-w.exited
	}
	return err
}

// Forward calls fn for every notification until ctx is done or the
// watcher stops.
func (w *Watcher) Forward(ctx context.Context, fn func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.exited:
			return
		case <-w.onChange:
			fn()
		}
	}
}

func (w *Watcher) loop() {
	defer close(w.exited)

	var (
		timer   *time.Timer
		pending bool
	)
	timerC := func() <-chan time.Time {
		if timer != nil {
			return timer.C
		}
		return nil
	}

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}
			w.logger.Debug("watched file event", zap.String("file", event.Name), zap.String("op", event.Op.String()))

			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.cfg.Debounce)
			}
			pending = true

		case <-timerC():
			if pending {
				select {
				case w.onChange <- struct{}{}:
				default:
				}
				pending = false
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevantEvent reports whether event touches a watched file. Atomic
// replacement shows up as Create on the target name; deletion as Remove.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return slices.Contains(w.cfg.Files, filepath.Base(event.Name))
}
