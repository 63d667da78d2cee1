// Package state tracks the last-observed modification time of each watched
// data file. The reconciler compares a fresh Snapshot against the recorded
// one to decide whether a pass has anything to do.
package state

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/danieljhkim/watchguard/internal/fsops"
)

// FileStamp is what one stat observed. A missing file is Exists == false,
// which never equals any stamp of an existing file.
type FileStamp struct {
	Exists  bool      `json:"exists"`
	ModTime time.Time `json:"mod_time,omitempty"`
}

// Equal compares two stamps.
func (s FileStamp) Equal(other FileStamp) bool {
	if s.Exists != other.Exists {
		return false
	}
	return !s.Exists || s.ModTime.Equal(other.ModTime)
}

// Snapshot maps file paths to stamps.
type Snapshot map[string]FileStamp

// Present returns how many files in the snapshot exist.
func (s Snapshot) Present() int {
	n := 0
	for _, stamp := range s {
		if stamp.Exists {
			n++
		}
	}
	return n
}

// Scan stats every path.
func Scan(fs fsops.FS, paths []string) (Snapshot, error) {
	snap := make(Snapshot, len(paths))
	for _, p := range paths {
		mtime, exists, err := fs.ModTime(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		snap[p] = FileStamp{Exists: exists, ModTime: mtime}
	}
	return snap, nil
}

// WatchState holds the snapshot recorded after the last successful pass.
type WatchState struct {
	mu       sync.Mutex
	recorded Snapshot
}

// NewWatchState returns a WatchState with nothing recorded.
func NewWatchState() *WatchState {
	return &WatchState{}
}

// Changed returns the paths whose stamp differs from the recorded one.
// With nothing recorded, every path counts as changed.
func (w *WatchState) Changed(current Snapshot) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var changed []string
	for p, stamp := range current {
		prev, ok := w.recorded[p]
		if !ok || !prev.Equal(stamp) {
			changed = append(changed, p)
		}
	}
	for p := range w.recorded {
		if _, ok := current[p]; !ok {
			changed = append(changed, p)
		}
	}
	slices.Sort(changed)
	return changed
}

// Record replaces the recorded snapshot.
func (w *WatchState) Record(snap Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.recorded = make(Snapshot, len(snap))
	for p, stamp := range snap {
		w.recorded[p] = stamp
	}
}

// Recorded returns a copy of the recorded snapshot, or nil if none.
func (w *WatchState) Recorded() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.recorded == nil {
		return nil
	}
	out := make(Snapshot, len(w.recorded))
	for p, stamp := range w.recorded {
		out[p] = stamp
	}
	return out
}

// Reset forgets the recorded snapshot so the next comparison reports everything.
func (w *WatchState) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recorded = nil
}
