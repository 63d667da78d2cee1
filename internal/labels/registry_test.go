package labels

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/danieljhkim/watchguard/internal/clock"
	"github.com/danieljhkim/watchguard/internal/hash"
	"github.com/danieljhkim/watchguard/internal/persist"
	"github.com/danieljhkim/watchguard/internal/stores"
	"github.com/danieljhkim/watchguard/internal/testutil"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	dir      string
	store    *persist.Store
	fs       *testutil.FaultFS
	rec      *testutil.Recorder
	clock    *clock.FakeClock
	servers  *stores.EntityStore
	domains  *stores.EntityStore
	settings *stores.DocumentStore
	reg      *Registry
}

func newFixture(t *testing.T, logger *zap.Logger) *fixture {
	t.Helper()
	if logger == nil {
		logger = zaptest.NewLogger(t)
	}

	fs := testutil.NewFaultFS()
	dir := t.TempDir()
	store := persist.NewStore(fs, hash.NewSHA256Hasher(), dir, logger)
	rec := &testutil.Recorder{}
	clk := clock.NewFakeClock(t0)

	f := &fixture{
		dir:      dir,
		store:    store,
		fs:       fs,
		rec:      rec,
		clock:    clk,
		servers:  stores.NewServerStore(store, rec, clk, logger),
		domains:  stores.NewDomainStore(store, rec, clk, logger),
		settings: stores.NewSettingsStore(store, rec, clk, logger),
	}
	f.reg = NewRegistry(store, f.servers, f.domains, f.settings, rec, clk, logger)
	return f
}

func (f *fixture) readDocument(t *testing.T) Document {
	t.Helper()
	var doc Document
	testutil.ReadJSON(t, f.dir, "labels.json", &doc)
	return doc
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantMsg string
	}{
		{name: "plain", input: "Prod", want: "Prod"},
		{name: "trimmed", input: "  Prod  ", want: "Prod"},
		{name: "unicode", input: "Продакшн", want: "Продакшн"},
		{name: "fifty characters", input: strings.Repeat("x", 50), want: strings.Repeat("x", 50)},
		{name: "fifty multibyte characters", input: strings.Repeat("é", 50), want: strings.Repeat("é", 50)},
		{name: "empty", input: "", wantMsg: "label cannot be empty"},
		{name: "whitespace", input: " \t ", wantMsg: "label cannot be empty"},
		{name: "too long", input: strings.Repeat("x", 51), wantMsg: "label cannot be longer than 50 characters"},
		{name: "angle bracket", input: "a<b", wantMsg: "label cannot contain '<'"},
		{name: "ampersand", input: "R&D", wantMsg: "label cannot contain '&'"},
		{name: "backtick", input: "a`b", wantMsg: "label cannot contain '`'"},
		{name: "backslash", input: `a\b`, wantMsg: `label cannot contain '\'`},
		{name: "slash", input: "a/b", wantMsg: "label cannot contain '/'"},
		{name: "pipe", input: "a|b", wantMsg: "label cannot contain '|'"},
		{name: "quote", input: `a"b`, wantMsg: `label cannot contain '"'`},
		{name: "apostrophe", input: "a'b", wantMsg: "label cannot contain '''"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.input)
			if tt.wantMsg != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, stores.ErrInvalidInput)
				assert.Contains(t, err.Error(), tt.wantMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_AddAndList(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.reg.Add("  Prod ")
	require.NoError(t, err)
	assert.Equal(t, "Prod", res.Label)
	assert.Equal(t, "Label 'Prod' added successfully", res.Message)

	_, err = f.reg.Add("Alpha")
	require.NoError(t, err)

	assert.Equal(t, []string{"Alpha", "Prod"}, f.reg.List())
	assert.Equal(t, []string{"add label/Prod", "add label/Alpha"}, f.rec.Strings())

	doc := f.readDocument(t)
	assert.Equal(t, []string{"Alpha", "Prod"}, doc.Labels)
	assert.Equal(t, FormatVersion, doc.Version)
	assert.True(t, doc.LastUpdated.Equal(t0))
}

func TestRegistry_AddRejects(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.reg.Add("Prod")
	require.NoError(t, err)
	f.rec.Reset()
	writes := f.fs.Writes("labels.json")

	_, err = f.reg.Add(" Prod")
	assert.ErrorIs(t, err, stores.ErrAlreadyExists)
	assert.Contains(t, err.Error(), "Label 'Prod' already exists")

	_, err = f.reg.Add("a|b")
	assert.ErrorIs(t, err, stores.ErrInvalidInput)

	assert.Empty(t, f.rec.Events())
	assert.Equal(t, writes, f.fs.Writes("labels.json"))
}

func TestRegistry_AddStorageFailure(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.reg.Init())
	f.fs.FailWrites("labels.json")

	_, err := f.reg.Add("Prod")
	assert.ErrorIs(t, err, persist.ErrStorage)
	assert.Empty(t, f.rec.Events(), "no event without a durable write")

	f.fs.Heal()
	assert.Empty(t, f.reg.List())
}

func TestRegistry_RemoveClearsReferences(t *testing.T) {
	f := newFixture(t, nil)
	for _, l := range []string{"Alpha", "Beta"} {
		_, err := f.reg.Add(l)
		require.NoError(t, err)
	}
	require.NoError(t, f.servers.Save(stores.Collection{
		"web-1": {"label": "Beta", "date": "2025-01-01"},
		"web-2": {"label": "Alpha"},
	}))
	require.NoError(t, f.settings.Save(stores.Document{
		"labels":         []any{"Alpha", "Beta"},
		"default_labels": []any{"Beta"},
		"warning_days":   5,
	}))
	f.rec.Reset()

	res, err := f.reg.Remove(" Beta ")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ServersCleared)
	assert.Equal(t, 0, res.DomainsCleared)
	assert.Equal(t, "Label 'Beta' removed successfully (cleared from 1 records)", res.Message)

	assert.Equal(t, []string{"Alpha"}, f.reg.List())
	servers := f.servers.Load()
	assert.Equal(t, "", servers["web-1"].Label())
	assert.Equal(t, "2025-01-01", servers["web-1"].Field("date"))
	assert.Equal(t, "Alpha", servers["web-2"].Label())

	settings := f.settings.Load()
	assert.Equal(t, []string{"Alpha"}, settings.StringList("labels"))
	assert.Empty(t, settings.StringList("default_labels"))
	assert.EqualValues(t, 5, settings["warning_days"])

	assert.Equal(t, []string{"delete label/Beta", "update server/web-1"}, f.rec.Strings())
	assert.Equal(t, map[string]any{
		PayloadSettings: map[string]any{
			"labels":         []string{"Alpha"},
			"default_labels": []string{},
		},
	}, f.rec.Events()[0].Payload, "settings rewrite is carried by the delete event")
}

func TestRegistry_RemoveWithoutMirrorEntry(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.reg.Add("Alpha")
	require.NoError(t, err)
	require.NoError(t, f.settings.Save(stores.Document{"labels": []any{}}))
	f.rec.Reset()

	_, err = f.reg.Remove("Alpha")
	require.NoError(t, err)
	require.Len(t, f.rec.Events(), 1)
	assert.Nil(t, f.rec.Events()[0].Payload, "settings.json was not rewritten")
}

func TestRegistry_RemoveNotFound(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.reg.Remove("Ghost")
	assert.ErrorIs(t, err, stores.ErrNotFound)
	assert.Contains(t, err.Error(), "Label 'Ghost' not found")

	_, err = f.reg.Remove("  ")
	assert.ErrorIs(t, err, stores.ErrInvalidInput)
	assert.Empty(t, f.rec.Events())
}

func TestRegistry_RemoveLabelOutsideCharacterRules(t *testing.T) {
	f := newFixture(t, nil)
	testutil.WriteJSON(t, f.dir, "labels.json", map[string]any{"labels": []string{"R&D"}, "version": "1.0"})
	require.NoError(t, f.domains.Save(stores.Collection{"example.com": {"label": "R&D"}}))
	f.rec.Reset()

	res, err := f.reg.Remove("R&D")
	require.NoError(t, err)
	assert.Equal(t, 1, res.DomainsCleared)
	assert.Equal(t, []string{"delete label/R&D", "update domain/example.com"}, f.rec.Strings())
}

func TestRegistry_RemovePartialFailurePublishesDurableChanges(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.reg.Add("Beta")
	require.NoError(t, err)
	require.NoError(t, f.domains.Save(stores.Collection{"example.com": {"label": "Beta"}}))
	f.rec.Reset()
	f.fs.FailWrites("domains.json")

	_, err = f.reg.Remove("Beta")
	require.Error(t, err)
	assert.ErrorIs(t, err, persist.ErrStorage)
	assert.Equal(t, []string{"delete label/Beta"}, f.rec.Strings())
}

func TestRegistry_ConcurrentAdds(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.reg.Init())

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.reg.Add(fmt.Sprintf("label-%02d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got := f.reg.List()
	require.Len(t, got, n)
	assert.Equal(t, "label-00", got[0])
	assert.Equal(t, "label-19", got[n-1])
	assert.Len(t, f.rec.Events(), n)
}

func TestRegistry_FileRepair(t *testing.T) {
	t.Run("missing file is created", func(t *testing.T) {
		f := newFixture(t, nil)
		assert.Empty(t, f.reg.List())

		doc := f.readDocument(t)
		assert.Equal(t, []string{}, doc.Labels)
		assert.Equal(t, FormatVersion, doc.Version)
		assert.True(t, doc.CreatedAt.Equal(t0))
	})

	t.Run("legacy array is upgraded once", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		f := newFixture(t, zap.New(core))
		testutil.WriteFile(t, f.dir, "labels.json", `["Beta", " Alpha", "Beta", ""]`)

		assert.Equal(t, []string{"Alpha", "Beta"}, f.reg.List())
		assert.Equal(t, 1, logs.FilterMessage("upgrading legacy labels file").Len())

		doc := f.readDocument(t)
		assert.Equal(t, []string{"Alpha", "Beta"}, doc.Labels)
		assert.Equal(t, "1.0", doc.Version)

		f.reg.List()
		assert.Equal(t, 1, f.fs.Writes("labels.json"), "upgraded file is not rewritten again")
		assert.Empty(t, f.rec.Events())
	})

	t.Run("corrupt file is reset", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		f := newFixture(t, zap.New(core))
		testutil.WriteFile(t, f.dir, "labels.json", `{"labels": "oops"`)

		assert.Empty(t, f.reg.List())
		assert.Equal(t, 1, logs.FilterMessage("labels file malformed, resetting to defaults").Len())
		assert.Equal(t, []string{}, f.readDocument(t).Labels)
	})

	t.Run("python timestamps are accepted", func(t *testing.T) {
		f := newFixture(t, nil)
		testutil.WriteFile(t, f.dir, "labels.json",
			`{"labels":["Prod"],"created_at":"2024-03-02T10:11:12.123456","last_updated":"garbage","version":"1.0"}`)

		exp := f.reg.Export()
		assert.Equal(t, time.Date(2024, 3, 2, 10, 11, 12, 123456000, time.UTC), exp.Metadata.CreatedAt.Time)
		assert.True(t, exp.Metadata.LastUpdated.IsZero())
		assert.Equal(t, 0, f.fs.Writes("labels.json"))
	})
}

func TestRegistry_UsageAndExport(t *testing.T) {
	f := newFixture(t, nil)
	for _, l := range []string{"Prod", "Dev", "Idle"} {
		_, err := f.reg.Add(l)
		require.NoError(t, err)
	}
	require.NoError(t, f.servers.Save(stores.Collection{
		"web-1": {"label": "Prod"},
		"web-2": {"label": " Prod"},
		"web-3": {"label": "Unregistered"},
		"web-4": {"label": ""},
	}))
	require.NoError(t, f.domains.Save(stores.Collection{
		"a.com": {"label": "Dev"},
		"b.com": {"label": "Prod"},
	}))

	wantUsage := map[string]Usage{
		"Prod": {Servers: 2, Domains: 1},
		"Dev":  {Servers: 0, Domains: 1},
		"Idle": {},
	}
	if diff := cmp.Diff(wantUsage, f.reg.Usage()); diff != "" {
		t.Errorf("usage mismatch (-want +got):\n%s", diff)
	}

	before, err := os.Stat(f.store.Path(persist.KeyLabels))
	require.NoError(t, err)
	writes := f.fs.Writes("labels.json")

	exp := f.reg.Export()
	assert.Equal(t, []string{"Dev", "Idle", "Prod"}, exp.Labels)
	assert.Equal(t, 3, exp.Metadata.TotalLabels)
	assert.Equal(t, FormatVersion, exp.Metadata.Version)
	assert.True(t, exp.Metadata.CreatedAt.Equal(t0))
	if diff := cmp.Diff(wantUsage, exp.Usage); diff != "" {
		t.Errorf("export usage mismatch (-want +got):\n%s", diff)
	}

	after, err := os.Stat(f.store.Path(persist.KeyLabels))
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "export is read-only")
	assert.Equal(t, writes, f.fs.Writes("labels.json"))
}

func TestRegistry_ReplaceLocked(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.reg.Init())

	unlock := f.store.Lock(persist.KeyLabels)
	defer unlock()

	changed, err := f.reg.ReplaceLocked([]string{"b", " a", "b"})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.reg.ReplaceLocked([]string{"a", "b"})
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := f.reg.ListLocked()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Empty(t, f.rec.Events())
}

func TestRegistry_HasLocked(t *testing.T) {
	hasUnderLock := func(t *testing.T, f *fixture, label string) bool {
		t.Helper()
		done := make(chan bool, 1)
		go func() {
			unlock := f.store.Lock(persist.KeyLabels)
			defer unlock()
			done <- f.reg.HasLocked(label)
		}()
		select {
		case found := <-done:
			return found
		case <-time.After(2 * time.Second):
			t.Fatal("HasLocked did not return while the labels lock was held")
			return false
		}
	}

	tests := []struct {
		name    string
		content string
		want    bool
		labels  []string
	}{
		{name: "current", content: `{"labels":["Alpha"],"version":"1.0"}`, want: true, labels: []string{"Alpha"}},
		{name: "legacy", content: `["Alpha"]`, want: true, labels: []string{"Alpha"}},
		{name: "corrupt", content: `{not json`, want: false, labels: []string{}},
		{name: "missing", want: false, labels: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			if tt.content != "" {
				testutil.WriteFile(t, f.dir, "labels.json", tt.content)
			}

			assert.Equal(t, tt.want, hasUnderLock(t, f, "Alpha"))
			assert.False(t, hasUnderLock(t, f, " "))
			assert.Equal(t, tt.labels, f.readDocument(t).Labels, "file is repaired")
		})
	}

	t.Run("unwritable repair falls back to the file contents", func(t *testing.T) {
		f := newFixture(t, nil)
		testutil.WriteFile(t, f.dir, "labels.json", `["Alpha"]`)
		f.fs.FailWrites("labels.json")

		assert.True(t, hasUnderLock(t, f, "Alpha"))
		assert.False(t, hasUnderLock(t, f, "Beta"))
	})
}

func TestRegistry_Has(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.reg.Add("Prod")
	require.NoError(t, err)

	assert.True(t, f.reg.Has("Prod"))
	assert.True(t, f.reg.Has(" Prod "))
	assert.False(t, f.reg.Has("prod"), "labels are case-sensitive")
	assert.False(t, f.reg.Has(""))
}
