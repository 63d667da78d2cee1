// Package stores holds the persisted entity collections (servers, domains)
// and the free-form documents (settings, config).
//
// Every mutating call follows the same sequence: take the file lock, load,
// modify, save atomically, release the lock, then publish exactly one change
// event. A failed save publishes nothing. Methods with a Locked suffix assume
// the caller already holds the relevant persist.Store locks and leave event
// publication to the caller.
package stores

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/danieljhkim/watchguard/internal/bus"
	"github.com/danieljhkim/watchguard/internal/clock"
	"github.com/danieljhkim/watchguard/internal/persist"
)

// EntityStore manages one named-record collection.
type EntityStore struct {
	store  *persist.Store
	key    persist.Key
	kind   bus.Kind
	pub    bus.Publisher
	clock  clock.Clock
	logger *zap.Logger

	labelKey   persist.Key
	registered func(label string) bool
}

// NewEntityStore creates a store for the collection under key.
func NewEntityStore(store *persist.Store, key persist.Key, kind bus.Kind, pub bus.Publisher, clk clock.Clock, logger *zap.Logger) *EntityStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntityStore{
		store:  store,
		key:    key,
		kind:   kind,
		pub:    pub,
		clock:  clk,
		logger: logger.With(zap.String("collection", string(key))),
	}
}

// NewServerStore creates the servers.json store.
func NewServerStore(store *persist.Store, pub bus.Publisher, clk clock.Clock, logger *zap.Logger) *EntityStore {
	return NewEntityStore(store, persist.KeyServers, bus.KindServer, pub, clk, logger)
}

// NewDomainStore creates the domains.json store.
func NewDomainStore(store *persist.Store, pub bus.Publisher, clk clock.Clock, logger *zap.Logger) *EntityStore {
	return NewEntityStore(store, persist.KeyDomains, bus.KindDomain, pub, clk, logger)
}

// Key returns the persisted collection key.
func (s *EntityStore) Key() persist.Key { return s.key }

// Kind returns the event kind for this collection.
func (s *EntityStore) Kind() bus.Kind { return s.kind }

// RequireRegisteredLabels makes Add and Update reject a non-empty label for
// which registered returns false. The check runs while holding labelKey, so
// a concurrent label removal cannot interleave with the write. registered is
// called with that lock held and must not take it again.
func (s *EntityStore) RequireRegisteredLabels(labelKey persist.Key, registered func(label string) bool) {
	s.labelKey = labelKey
	s.registered = registered
}

func (s *EntityStore) lock() func() {
	if s.registered == nil {
		return s.store.Lock(s.key)
	}
	return s.store.Lock(s.labelKey, s.key)
}

func (s *EntityStore) checkLabel(rec Record) error {
	label := rec.Label()
	if s.registered == nil || label == "" || s.registered(label) {
		return nil
	}
	return fmt.Errorf("%w: label '%s' is not registered", ErrInvalidInput, label)
}

// Init creates an empty collection file if none exists.
func (s *EntityStore) Init() error {
	unlock := s.store.Lock(s.key)
	defer unlock()
	return s.store.Ensure(s.key, Collection{})
}

// Load returns the whole collection. Missing or corrupt files yield an empty one.
func (s *EntityStore) Load() Collection {
	coll := persist.Load(s.store, s.key, func() Collection { return Collection{} })
	if coll == nil {
		return Collection{}
	}
	for name, rec := range coll {
		if rec == nil {
			coll[name] = Record{}
		}
	}
	return coll
}

// Get returns one record.
func (s *EntityStore) Get(name string) (Record, bool) {
	rec, ok := s.Load()[name]
	return rec, ok
}

// Save replaces the whole collection and announces it as a collection-wide update.
func (s *EntityStore) Save(coll Collection) error {
	unlock := s.store.Lock(s.key)
	err := s.SaveLocked(coll)
	unlock()
	if err != nil {
		return err
	}
	s.pub.Publish(s.NewEvent(bus.OpUpdate, bus.GlobalName, map[string]any{"count": len(coll)}))
	return nil
}

// SaveLocked writes coll. The caller holds the lock and publishes.
func (s *EntityStore) SaveLocked(coll Collection) error {
	if coll == nil {
		coll = Collection{}
	}
	return s.store.Save(s.key, coll)
}

// Add creates a new record.
func (s *EntityStore) Add(name string, rec Record) error {
	name, err := ValidateName(name)
	if err != nil {
		return err
	}
	rec = rec.Clone()

	unlock := s.lock()
	if err := s.checkLabel(rec); err != nil {
		unlock()
		return err
	}
	coll := s.Load()
	if _, exists := coll[name]; exists {
		unlock()
		return fmt.Errorf("%w: %s %q", ErrAlreadyExists, s.kind, name)
	}
	coll[name] = rec
	err = s.SaveLocked(coll)
	unlock()
	if err != nil {
		return err
	}

	s.logger.Info("record added", zap.String("name", name), zap.String("label", rec.Label()))
	s.pub.Publish(s.NewEvent(bus.OpAdd, name, rec))
	return nil
}

// Update replaces the record stored under oldName, renaming it to newName
// when the two differ. An empty newName keeps oldName.
func (s *EntityStore) Update(oldName, newName string, rec Record) error {
	oldName, err := ValidateName(oldName)
	if err != nil {
		return err
	}
	if newName == "" {
		newName = oldName
	}
	newName, err = ValidateName(newName)
	if err != nil {
		return err
	}
	rec = rec.Clone()

	unlock := s.lock()
	if err := s.checkLabel(rec); err != nil {
		unlock()
		return err
	}
	coll := s.Load()
	if _, exists := coll[oldName]; !exists {
		unlock()
		return fmt.Errorf("%w: %s %q", ErrNotFound, s.kind, oldName)
	}
	if newName != oldName {
		if _, taken := coll[newName]; taken {
			unlock()
			return fmt.Errorf("%w: %s %q", ErrAlreadyExists, s.kind, newName)
		}
		delete(coll, oldName)
	}
	coll[newName] = rec
	err = s.SaveLocked(coll)
	unlock()
	if err != nil {
		return err
	}

	s.logger.Info("record updated",
		zap.String("name", newName), zap.String("previous_name", oldName), zap.String("label", rec.Label()))
	s.pub.Publish(s.NewEvent(bus.OpUpdate, newName, rec))
	return nil
}

// Delete removes a record.
func (s *EntityStore) Delete(name string) error {
	name, err := ValidateName(name)
	if err != nil {
		return err
	}

	unlock := s.store.Lock(s.key)
	coll := s.Load()
	if _, exists := coll[name]; !exists {
		unlock()
		return fmt.Errorf("%w: %s %q", ErrNotFound, s.kind, name)
	}
	delete(coll, name)
	err = s.SaveLocked(coll)
	unlock()
	if err != nil {
		return err
	}

	s.logger.Info("record deleted", zap.String("name", name))
	s.pub.Publish(s.NewEvent(bus.OpDelete, name, nil))
	return nil
}

// ClearLabelsLocked blanks the label of every record whose trimmed label
// satisfies drop, saves once if anything changed, and returns one update
// event per cleared record for the caller to publish after unlocking.
func (s *EntityStore) ClearLabelsLocked(drop func(label string) bool) ([]bus.Event, error) {
	coll := s.Load()

	var cleared []string
	var previous []string
	for _, name := range coll.Names() {
		rec := coll[name]
		label := rec.Label()
		if label == "" || !drop(label) {
			continue
		}
		rec.SetLabel("")
		cleared = append(cleared, name)
		previous = append(previous, label)
	}
	if len(cleared) == 0 {
		return nil, nil
	}

	if err := s.SaveLocked(coll); err != nil {
		return nil, err
	}

	events := make([]bus.Event, 0, len(cleared))
	for i, name := range cleared {
		s.logger.Info("cleared label reference", zap.String("name", name), zap.String("label", previous[i]))
		events = append(events, s.NewEvent(bus.OpUpdate, name, coll[name]))
	}
	return events, nil
}

// NewEvent builds an event of this store's kind stamped with its clock.
func (s *EntityStore) NewEvent(op bus.Operation, name string, payload map[string]any) bus.Event {
	return bus.NewEvent(op, s.kind, name, payload, s.clock.Now())
}
