package reconcile

import (
	"fmt"
	"time"
)

// DefaultInterval is the wait between scheduled passes.
const DefaultInterval = 30 * time.Second

// Phase is the reconciler's position in its Idle -> Scanning -> Syncing cycle.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseScanning Phase = "scanning"
	PhaseSyncing  Phase = "syncing"
)

// Summary is the outcome of one Syncing phase.
type Summary struct {
	// Labels is the canonical label set written back by the pass.
	Labels []string `json:"labels"`

	// LabelCount is len(Labels).
	LabelCount int `json:"label_count"`

	// OrphansCleared counts entity records whose label was blanked.
	OrphansCleared int `json:"orphans_cleared"`

	// LabelsWritten reports whether labels.json was rewritten.
	LabelsWritten bool `json:"labels_written"`

	// SettingsWritten reports whether the settings mirror was rewritten.
	SettingsWritten bool `json:"settings_written"`

	// FinishedAt is when the pass completed.
	FinishedAt time.Time `json:"finished_at"`
}

// Message renders the summary for operators.
func (s Summary) Message() string {
	return fmt.Sprintf("Synced %d labels, cleaned %d orphaned", s.LabelCount, s.OrphansCleared)
}

// Status is a point-in-time view of the reconciler.
type Status struct {
	Running  bool      `json:"running"`
	Phase    Phase     `json:"phase"`
	LastSync time.Time `json:"last_sync_time"`

	// Interval is the wait between scheduled passes. JSON carries it as
	// IntervalSeconds.
	Interval        time.Duration `json:"-"`
	IntervalSeconds float64       `json:"interval"`

	WatchedFiles int      `json:"watched_file_count"`
	LastResult   *Summary `json:"last_result,omitempty"`
	LastError    string   `json:"last_error,omitempty"`
}
