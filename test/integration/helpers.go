package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/danieljhkim/watchguard/internal/bus"
	"github.com/danieljhkim/watchguard/internal/engine"
	"github.com/danieljhkim/watchguard/internal/stores"
	"github.com/danieljhkim/watchguard/internal/testutil"
)

// openEngine opens an engine over dir with the real filesystem and clock.
func openEngine(t *testing.T, dir string, interval time.Duration) *engine.Engine {
	t.Helper()

	eng, err := engine.Open(engine.Options{
		DataDir:  dir,
		Interval: interval,
		Logger:   zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

// recordEvents subscribes a recorder to every change event.
func recordEvents(t *testing.T, eng *engine.Engine) *testutil.Recorder {
	t.Helper()

	rec := &testutil.Recorder{}
	id := eng.Subscribe("integration", func(ev bus.Event) error {
		rec.Publish(ev)
		return nil
	})
	t.Cleanup(func() { eng.Unsubscribe(id) })
	return rec
}

// writeJSON replaces a data file the way an operator editing by hand would.
func writeJSON(t *testing.T, dir, name string, v any) {
	t.Helper()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal %s: %v", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

// readJSON decodes a data file.
func readJSON(t *testing.T, dir, name string, v any) {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("failed to decode %s: %v", name, err)
	}
}

// assertNoOrphans fails if any record references a label that is not registered.
func assertNoOrphans(t *testing.T, eng *engine.Engine) {
	t.Helper()

	registered := make(map[string]bool)
	for _, l := range eng.ListLabels() {
		registered[l] = true
	}
	for kind, coll := range map[bus.Kind]stores.Collection{
		bus.KindServer: eng.Servers(),
		bus.KindDomain: eng.Domains(),
	} {
		for name, rec := range coll {
			if label := rec.Label(); label != "" && !registered[label] {
				t.Errorf("%s %q references unregistered label %q", kind, name, label)
			}
		}
	}
}
