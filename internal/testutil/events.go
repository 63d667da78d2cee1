package testutil

import (
	"sync"

	"github.com/danieljhkim/watchguard/internal/bus"
)

// Recorder is a bus.Publisher that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []bus.Event
}

// Publish records event.
func (r *Recorder) Publish(event bus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []bus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bus.Event(nil), r.events...)
}

// Strings returns the recorded events rendered as "op kind/name".
func (r *Recorder) Strings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.String()
	}
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
