// Package testutil provides shared helpers for watchguard tests.
package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/danieljhkim/watchguard/internal/fsops"
)

// ErrInjected is returned by FaultFS for every injected failure.
var ErrInjected = errors.New("injected failure")

// FaultFS wraps a real filesystem and fails writes to selected file names.
type FaultFS struct {
	fsops.FS

	mu        sync.Mutex
	failWrite map[string]bool
	writes    map[string]int
}

// NewFaultFS returns a FaultFS over the real filesystem.
func NewFaultFS() *FaultFS {
	return &FaultFS{
		FS:        fsops.NewRealFS(),
		failWrite: make(map[string]bool),
		writes:    make(map[string]int),
	}
}

// FailWrites makes every AtomicWrite to a file with this base name fail.
func (f *FaultFS) FailWrites(base string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrite[base] = true
}

// Heal clears all injected failures.
func (f *FaultFS) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrite = make(map[string]bool)
}

// Writes returns how many successful writes hit a file with this base name.
func (f *FaultFS) Writes(base string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[base]
}

// AtomicWrite fails for selected files and delegates otherwise.
func (f *FaultFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	base := filepath.Base(path)

	f.mu.Lock()
	fail := f.failWrite[base]
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}

	if err := f.FS.AtomicWrite(path, data, perm); err != nil {
		return err
	}

	f.mu.Lock()
	f.writes[base]++
	f.mu.Unlock()
	return nil
}
