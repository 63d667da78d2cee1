// Package labels owns the canonical label set persisted in labels.json.
//
// Registry is the only writer of labels.json outside reconciliation. Removal
// is synchronous across collections: it takes the labels, settings, servers,
// and domains locks together, so no reconciliation pass can observe (and
// re-add) a label that is halfway through being removed.
package labels

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/danieljhkim/watchguard/internal/bus"
	"github.com/danieljhkim/watchguard/internal/clock"
	"github.com/danieljhkim/watchguard/internal/persist"
	"github.com/danieljhkim/watchguard/internal/stores"
)

// PayloadSettings keys the settings mirror lists in a label delete event
// when removal rewrote settings.json.
const PayloadSettings = "settings"

// Registry manages the label set and its references from entity records.
type Registry struct {
	store    *persist.Store
	servers  *stores.EntityStore
	domains  *stores.EntityStore
	settings *stores.DocumentStore
	pub      bus.Publisher
	clock    clock.Clock
	logger   *zap.Logger
}

// NewRegistry creates a Registry.
func NewRegistry(store *persist.Store, servers, domains *stores.EntityStore, settings *stores.DocumentStore, pub bus.Publisher, clk clock.Clock, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:    store,
		servers:  servers,
		domains:  domains,
		settings: settings,
		pub:      pub,
		clock:    clk,
		logger:   logger,
	}
}

// AddResult reports a successful Add.
type AddResult struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// RemoveResult reports a successful Remove.
type RemoveResult struct {
	Label          string `json:"label"`
	ServersCleared int    `json:"servers_cleared"`
	DomainsCleared int    `json:"domains_cleared"`
	Message        string `json:"message"`
}

// Affected returns the number of entity records whose label was cleared.
func (r RemoveResult) Affected() int {
	return r.ServersCleared + r.DomainsCleared
}

// Usage counts the entity records referencing one label.
type Usage struct {
	Servers int `json:"server_count"`
	Domains int `json:"domain_count"`
}

// Metadata describes the labels document in an Export.
type Metadata struct {
	CreatedAt   Timestamp `json:"created_at"`
	LastUpdated Timestamp `json:"last_updated"`
	Version     string    `json:"version"`
	TotalLabels int       `json:"total_labels"`
}

// Export is a read-only snapshot of the registry.
type Export struct {
	Labels   []string         `json:"labels"`
	Metadata Metadata         `json:"metadata"`
	Usage    map[string]Usage `json:"usage"`
}

// Init creates labels.json, upgrading or resetting an existing file as needed.
func (r *Registry) Init() error {
	unlock := r.store.Lock(persist.KeyLabels)
	defer unlock()
	_, err := r.loadLocked()
	return err
}

// List returns the registered labels sorted and de-duplicated.
func (r *Registry) List() []string {
	return Normalize(r.document().Labels)
}

// Has reports whether label (trimmed) is registered.
func (r *Registry) Has(label string) bool {
	label, err := normalizeInput(label)
	if err != nil {
		return false
	}
	_, found := slices.BinarySearch(r.List(), label)
	return found
}

// HasLocked is Has for callers that already hold the labels lock. A labels
// file that needs repair is repaired in place; if the repair cannot be
// written the check falls back to what could be read.
func (r *Registry) HasLocked(label string) bool {
	label, err := normalizeInput(label)
	if err != nil {
		return false
	}
	doc, err := r.loadLocked()
	if err != nil {
		r.logger.Warn("labels file could not be repaired", zap.Error(err))
		doc, _ = r.read()
	}
	_, found := slices.BinarySearch(Normalize(doc.Labels), label)
	return found
}

// Add registers a new label.
func (r *Registry) Add(raw string) (AddResult, error) {
	label, err := Validate(raw)
	if err != nil {
		return AddResult{}, err
	}

	unlock := r.store.Lock(persist.KeyLabels)
	doc, err := r.loadLocked()
	if err != nil {
		unlock()
		return AddResult{}, err
	}
	current := Normalize(doc.Labels)
	if slices.Contains(current, label) {
		unlock()
		return AddResult{}, fmt.Errorf("%w: label '%s' already exists", stores.ErrAlreadyExists, label)
	}

	doc.Labels = Normalize(append(current, label))
	doc.LastUpdated = Timestamp{r.clock.Now()}
	err = r.store.Save(persist.KeyLabels, doc)
	unlock()
	if err != nil {
		return AddResult{}, err
	}

	r.logger.Info("label added", zap.String("label", label))
	r.pub.Publish(r.NewEvent(bus.OpAdd, label, map[string]any{"labels": doc.Labels}))
	return AddResult{
		Label:   label,
		Message: fmt.Sprintf("Label '%s' added successfully", label),
	}, nil
}

// Remove unregisters a label and clears every entity reference to it.
// The label is also dropped from the settings mirror so that reconciliation
// cannot bring it back. One delete event is published for the label,
// followed by one update event per cleared record. A settings.json rewrite
// travels in the delete event under PayloadSettings instead of a settings
// event of its own.
func (r *Registry) Remove(raw string) (RemoveResult, error) {
	label, err := normalizeInput(raw)
	if err != nil {
		return RemoveResult{}, err
	}

	unlock := r.store.Lock(persist.KeyLabels, persist.KeySettings, persist.KeyServers, persist.KeyDomains)

	var events []bus.Event
	finish := func(err error) error {
		unlock()
		for _, e := range events {
			r.pub.Publish(e)
		}
		return err
	}

	doc, err := r.loadLocked()
	if err != nil {
		return RemoveResult{}, finish(err)
	}
	current := Normalize(doc.Labels)
	if !slices.Contains(current, label) {
		return RemoveResult{}, finish(fmt.Errorf("%w: label '%s' not found", stores.ErrNotFound, label))
	}

	doc.Labels = slices.DeleteFunc(current, func(l string) bool { return l == label })
	doc.LastUpdated = Timestamp{r.clock.Now()}
	if err := r.store.Save(persist.KeyLabels, doc); err != nil {
		return RemoveResult{}, finish(err)
	}

	mirror, err := r.dropFromSettingsLocked(label)
	var payload map[string]any
	if mirror != nil {
		payload = map[string]any{PayloadSettings: mirror}
	}
	events = append(events, r.NewEvent(bus.OpDelete, label, payload))
	if err != nil {
		return RemoveResult{}, finish(fmt.Errorf("label '%s' removed but settings were not updated: %w", label, err))
	}

	matches := func(l string) bool { return l == label }
	serverEvents, err := r.servers.ClearLabelsLocked(matches)
	if err != nil {
		return RemoveResult{}, finish(fmt.Errorf("label '%s' removed but servers were not updated: %w", label, err))
	}
	events = append(events, serverEvents...)

	domainEvents, err := r.domains.ClearLabelsLocked(matches)
	if err != nil {
		return RemoveResult{}, finish(fmt.Errorf("label '%s' removed but domains were not updated: %w", label, err))
	}
	events = append(events, domainEvents...)

	res := RemoveResult{
		Label:          label,
		ServersCleared: len(serverEvents),
		DomainsCleared: len(domainEvents),
	}
	res.Message = fmt.Sprintf("Label '%s' removed successfully", label)
	if n := res.Affected(); n > 0 {
		res.Message += fmt.Sprintf(" (cleared from %d records)", n)
	}

	r.logger.Info("label removed",
		zap.String("label", label),
		zap.Int("servers_cleared", res.ServersCleared),
		zap.Int("domains_cleared", res.DomainsCleared))
	return res, finish(nil)
}

// dropFromSettingsLocked removes label from the settings mirror lists and
// returns the lists it wrote, or nil when settings.json was left alone.
func (r *Registry) dropFromSettingsLocked(label string) (map[string]any, error) {
	doc := r.settings.Load()
	changed := false
	for _, key := range []string{stores.SettingsLabels, stores.SettingsDefaultLabels} {
		list := doc.StringList(key)
		kept := slices.DeleteFunc(slices.Clone(list), func(l string) bool { return l == label })
		if len(kept) != len(list) {
			doc.SetStringList(key, kept)
			changed = true
		}
	}
	if !changed {
		return nil, nil
	}
	if err := r.settings.SaveLocked(doc); err != nil {
		return nil, err
	}
	return map[string]any{
		stores.SettingsLabels:        append([]string{}, doc.StringList(stores.SettingsLabels)...),
		stores.SettingsDefaultLabels: append([]string{}, doc.StringList(stores.SettingsDefaultLabels)...),
	}, nil
}

// Usage counts references for every registered label, including unused ones.
func (r *Registry) Usage() map[string]Usage {
	return countUsage(r.List(), r.servers.Load(), r.domains.Load())
}

func countUsage(labels []string, servers, domains stores.Collection) map[string]Usage {
	usage := make(map[string]Usage, len(labels))
	for _, l := range labels {
		usage[l] = Usage{}
	}
	for _, rec := range servers {
		if u, ok := usage[rec.Label()]; ok {
			u.Servers++
			usage[rec.Label()] = u
		}
	}
	for _, rec := range domains {
		if u, ok := usage[rec.Label()]; ok {
			u.Domains++
			usage[rec.Label()] = u
		}
	}
	return usage
}

// Export returns labels, metadata, and usage. It never writes.
func (r *Registry) Export() Export {
	doc, _ := r.read()
	labels := Normalize(doc.Labels)
	return Export{
		Labels: labels,
		Metadata: Metadata{
			CreatedAt:   doc.CreatedAt,
			LastUpdated: doc.LastUpdated,
			Version:     doc.Version,
			TotalLabels: len(labels),
		},
		Usage: countUsage(labels, r.servers.Load(), r.domains.Load()),
	}
}

// ListLocked returns the registered labels. The caller holds the labels lock.
func (r *Registry) ListLocked() ([]string, error) {
	doc, err := r.loadLocked()
	if err != nil {
		return nil, err
	}
	return Normalize(doc.Labels), nil
}

// ReplaceLocked makes labels the canonical set. It writes only when the
// stored list differs and reports whether it did. The caller holds the
// labels lock and publishes.
func (r *Registry) ReplaceLocked(labels []string) (bool, error) {
	doc, err := r.loadLocked()
	if err != nil {
		return false, err
	}
	labels = Normalize(labels)
	if slices.Equal(doc.Labels, labels) {
		return false, nil
	}
	doc.Labels = labels
	doc.LastUpdated = Timestamp{r.clock.Now()}
	if err := r.store.Save(persist.KeyLabels, doc); err != nil {
		return false, err
	}
	return true, nil
}

// NewEvent builds a label event stamped with the registry clock.
func (r *Registry) NewEvent(op bus.Operation, name string, payload map[string]any) bus.Event {
	return bus.NewEvent(op, bus.KindLabel, name, payload, r.clock.Now())
}

// read decodes labels.json without repairing it.
func (r *Registry) read() (Document, fileShape) {
	data, exists, err := r.store.ReadRaw(persist.KeyLabels)
	if err != nil {
		r.logger.Warn("labels file unreadable, using defaults", zap.Error(err))
		return newDocument(r.clock.Now()), shapeCorrupt
	}
	if !exists {
		return newDocument(r.clock.Now()), shapeMissing
	}
	doc, shape := decodeDocument(data)
	if shape == shapeCorrupt {
		return newDocument(r.clock.Now()), shapeCorrupt
	}
	return doc, shape
}

// document returns the current document, repairing the file first if it
// is missing, legacy, or corrupt.
func (r *Registry) document() Document {
	doc, shape := r.read()
	if shape == shapeCurrent {
		return doc
	}

	unlock := r.store.Lock(persist.KeyLabels)
	defer unlock()
	repaired, err := r.loadLocked()
	if err != nil {
		r.logger.Warn("labels file could not be repaired", zap.Error(err))
		return doc
	}
	return repaired
}

// loadLocked reads labels.json and rewrites it when it is missing, in the
// legacy bare-array shape, or unparseable. Repairs publish no event.
func (r *Registry) loadLocked() (Document, error) {
	doc, shape := r.read()
	switch shape {
	case shapeCurrent:
		return doc, nil
	case shapeLegacy:
		r.logger.Info("upgrading legacy labels file", zap.Int("labels", len(doc.Labels)))
		now := r.clock.Now()
		doc.Labels = Normalize(doc.Labels)
		doc.CreatedAt = Timestamp{now}
		doc.LastUpdated = Timestamp{now}
	case shapeCorrupt:
		r.logger.Warn("labels file malformed, resetting to defaults", zap.String("file", r.store.Path(persist.KeyLabels)))
	}

	if err := r.store.Save(persist.KeyLabels, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}
