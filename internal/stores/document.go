package stores

import (
	"go.uber.org/zap"

	"github.com/danieljhkim/watchguard/internal/bus"
	"github.com/danieljhkim/watchguard/internal/clock"
	"github.com/danieljhkim/watchguard/internal/persist"
)

// DocumentStore manages a single free-form document such as settings.json.
type DocumentStore struct {
	store    *persist.Store
	key      persist.Key
	kind     bus.Kind
	pub      bus.Publisher
	clock    clock.Clock
	defaults func() Document
	logger   *zap.Logger
}

// NewDocumentStore creates a store for the document under key.
func NewDocumentStore(store *persist.Store, key persist.Key, kind bus.Kind, defaults func() Document, pub bus.Publisher, clk clock.Clock, logger *zap.Logger) *DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentStore{
		store:    store,
		key:      key,
		kind:     kind,
		pub:      pub,
		clock:    clk,
		defaults: defaults,
		logger:   logger.With(zap.String("collection", string(key))),
	}
}

// NewSettingsStore creates the settings.json store.
func NewSettingsStore(store *persist.Store, pub bus.Publisher, clk clock.Clock, logger *zap.Logger) *DocumentStore {
	return NewDocumentStore(store, persist.KeySettings, bus.KindSettings, DefaultSettings, pub, clk, logger)
}

// NewConfigStore creates the config.json store.
func NewConfigStore(store *persist.Store, pub bus.Publisher, clk clock.Clock, logger *zap.Logger) *DocumentStore {
	return NewDocumentStore(store, persist.KeyConfig, bus.KindConfig, DefaultConfig, pub, clk, logger)
}

// Key returns the persisted document key.
func (s *DocumentStore) Key() persist.Key { return s.key }

// Init writes the defaults if the document does not exist.
func (s *DocumentStore) Init() error {
	unlock := s.store.Lock(s.key)
	defer unlock()
	return s.store.Ensure(s.key, s.defaults())
}

// Load returns the document, or the defaults if it is missing or corrupt.
func (s *DocumentStore) Load() Document {
	doc := persist.Load(s.store, s.key, s.defaults)
	if doc == nil {
		return s.defaults()
	}
	return doc
}

// Save replaces the document and publishes an update event.
func (s *DocumentStore) Save(doc Document) error {
	unlock := s.store.Lock(s.key)
	err := s.SaveLocked(doc)
	unlock()
	if err != nil {
		return err
	}

	s.logger.Debug("document saved")
	s.pub.Publish(s.NewEvent(bus.OpUpdate, doc))
	return nil
}

// SaveLocked writes doc. The caller holds the lock and publishes.
func (s *DocumentStore) SaveLocked(doc Document) error {
	if doc == nil {
		doc = Document{}
	}
	return s.store.Save(s.key, doc)
}

// SaveIfChangedLocked writes doc only if it differs from what is on disk.
func (s *DocumentStore) SaveIfChangedLocked(doc Document) (bool, error) {
	if doc == nil {
		doc = Document{}
	}
	return s.store.SaveIfChanged(s.key, doc)
}

// NewEvent builds the whole-document update event.
func (s *DocumentStore) NewEvent(op bus.Operation, doc Document) bus.Event {
	return bus.NewEvent(op, s.kind, bus.GlobalName, doc, s.clock.Now())
}
