package reconcile

import (
	"fmt"

	"github.com/danieljhkim/watchguard/internal/bus"
	"github.com/danieljhkim/watchguard/internal/labels"
	"github.com/danieljhkim/watchguard/internal/persist"
	"github.com/danieljhkim/watchguard/internal/stores"
)

// sync is the Syncing phase. Events for every durable write are published
// after the locks are released, including when a later write fails. A forced
// pass also resets the settings default_labels to the canonical set.
func (r *Reconciler) sync(force bool) (Summary, error) {
	unlock := r.store.Lock(persist.KeyLabels, persist.KeySettings, persist.KeyServers, persist.KeyDomains)

	var events []bus.Event
	finish := func(s Summary, err error) (Summary, error) {
		unlock()
		for _, e := range events {
			r.pub.Publish(e)
		}
		return s, err
	}

	registered, err := r.registry.ListLocked()
	if err != nil {
		return finish(Summary{}, fmt.Errorf("failed to load labels: %w", err))
	}
	settings := r.settings.Load()
	servers := r.servers.Load()
	domains := r.domains.Load()

	canonical := Union(registered, settings.StringList(stores.SettingsLabels), servers, domains)
	summary := Summary{Labels: canonical, LabelCount: len(canonical)}

	summary.LabelsWritten, err = r.registry.ReplaceLocked(canonical)
	if err != nil {
		return finish(Summary{}, fmt.Errorf("failed to write labels: %w", err))
	}
	if summary.LabelsWritten {
		events = append(events, r.registry.NewEvent(bus.OpUpdate, bus.GlobalName, map[string]any{"labels": canonical}))
	}

	settings.SetStringList(stores.SettingsLabels, canonical)
	if force {
		settings.SetStringList(stores.SettingsDefaultLabels, canonical)
	}
	summary.SettingsWritten, err = r.settings.SaveIfChangedLocked(settings)
	if err != nil {
		return finish(Summary{}, fmt.Errorf("failed to write settings: %w", err))
	}
	if summary.SettingsWritten {
		events = append(events, r.settings.NewEvent(bus.OpUpdate, settings))
	}

	orphanEvents, err := r.clearOrphansLocked(canonical)
	events = append(events, orphanEvents...)
	if err != nil {
		return finish(Summary{}, err)
	}
	summary.OrphansCleared = len(orphanEvents)
	summary.FinishedAt = r.clock.Now()

	return finish(summary, nil)
}

// clearOrphansLocked blanks every server and domain label outside canonical.
func (r *Reconciler) clearOrphansLocked(canonical []string) ([]bus.Event, error) {
	known := make(map[string]bool, len(canonical))
	for _, l := range canonical {
		known[l] = true
	}
	orphan := func(label string) bool { return !known[label] }

	serverEvents, err := r.servers.ClearLabelsLocked(orphan)
	if err != nil {
		return nil, fmt.Errorf("failed to clear orphaned server labels: %w", err)
	}
	domainEvents, err := r.domains.ClearLabelsLocked(orphan)
	if err != nil {
		return serverEvents, fmt.Errorf("failed to clear orphaned domain labels: %w", err)
	}
	return append(serverEvents, domainEvents...), nil
}

// Union returns the canonical label set: every registered label, every
// settings mirror entry, and every non-empty entity label, normalized.
func Union(registered, mirror []string, collections ...stores.Collection) []string {
	all := make([]string, 0, len(registered)+len(mirror))
	all = append(all, registered...)
	all = append(all, mirror...)
	for _, coll := range collections {
		for _, rec := range coll {
			if l := rec.Label(); l != "" {
				all = append(all, l)
			}
		}
	}
	return labels.Normalize(all)
}
