// Package engine composes the watchguard components into one context object.
//
// The engine is the API surface called by the CLI and any other front end.
// It owns the durable store, the change bus, the label registry, the entity
// stores, the reconciler, and the bus subscribers (dashboard cache and
// notifier). There is no package-level state: every collaborator receives
// its dependencies from Open.
//
// Key components:
//   - Labels: AddLabel, RemoveLabel, ListLabels, Usage, ExportLabels
//   - Entities: AddEntity, UpdateEntity, DeleteEntity for servers and domains
//   - Documents: Settings and Config load/save
//   - Reconciler: StartReconciler, StopReconciler, ForceSync, Status, Watch
package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/danieljhkim/watchguard/internal/bus"
	"github.com/danieljhkim/watchguard/internal/clock"
	"github.com/danieljhkim/watchguard/internal/dashboard"
	"github.com/danieljhkim/watchguard/internal/fsops"
	"github.com/danieljhkim/watchguard/internal/hash"
	"github.com/danieljhkim/watchguard/internal/labels"
	"github.com/danieljhkim/watchguard/internal/notify"
	"github.com/danieljhkim/watchguard/internal/persist"
	"github.com/danieljhkim/watchguard/internal/reconcile"
	"github.com/danieljhkim/watchguard/internal/stores"
)

// Options configures Open. Zero values select the production defaults.
type Options struct {
	// DataDir holds the JSON data files. Required.
	DataDir string

	// Interval is the reconciler period.
	Interval time.Duration

	// DashboardTTL bounds how long a dashboard view is cached.
	DashboardTTL time.Duration

	// Sender delivers change notifications. Nil disables the notifier.
	Sender notify.Sender

	// Origin names this front end in notification footers.
	Origin string

	FS     fsops.FS
	Clock  clock.Clock
	Logger *zap.Logger
}

// Engine orchestrates all watchguard operations.
type Engine struct {
	fs     fsops.FS
	clock  clock.Clock
	logger *zap.Logger

	store      *persist.Store
	bus        *bus.Bus
	registry   *labels.Registry
	servers    *stores.EntityStore
	domains    *stores.EntityStore
	settings   *stores.DocumentStore
	config     *stores.DocumentStore
	reconciler *reconcile.Reconciler
	dashboard  *dashboard.Cache

	subscriptions []bus.SubscriptionID
}

// Open wires every component over opts.DataDir and makes sure each data
// file exists. It does not start the reconciler.
func Open(opts Options) (*Engine, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("%w: data directory is required", stores.ErrInvalidInput)
	}
	if opts.FS == nil {
		opts.FS = fsops.NewRealFS()
	}
	if opts.Clock == nil {
		opts.Clock = &clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	e := &Engine{
		fs:     opts.FS,
		clock:  opts.Clock,
		logger: opts.Logger,
	}

	e.bus = bus.New(opts.Logger.Named("bus"))
	e.store = persist.NewStore(opts.FS, hash.NewSHA256Hasher(), opts.DataDir, opts.Logger.Named("persist"))
	e.servers = stores.NewServerStore(e.store, e.bus, opts.Clock, opts.Logger.Named("servers"))
	e.domains = stores.NewDomainStore(e.store, e.bus, opts.Clock, opts.Logger.Named("domains"))
	e.settings = stores.NewSettingsStore(e.store, e.bus, opts.Clock, opts.Logger.Named("settings"))
	e.config = stores.NewConfigStore(e.store, e.bus, opts.Clock, opts.Logger.Named("config"))
	e.registry = labels.NewRegistry(e.store, e.servers, e.domains, e.settings, e.bus, opts.Clock, opts.Logger.Named("labels"))
	e.servers.RequireRegisteredLabels(persist.KeyLabels, e.registry.HasLocked)
	e.domains.RequireRegisteredLabels(persist.KeyLabels, e.registry.HasLocked)

	e.reconciler = reconcile.New(
		e.store, opts.FS, e.registry, e.servers, e.domains, e.settings,
		e.bus, opts.Clock, opts.Interval, opts.Logger.Named("reconcile"),
	)

	if err := e.init(); err != nil {
		return nil, err
	}

	e.dashboard = dashboard.New(e, opts.Clock, opts.DashboardTTL, opts.Logger.Named("dashboard"))
	e.subscriptions = append(e.subscriptions, e.bus.Subscribe("dashboard", e.dashboard.Handle))

	if opts.Sender != nil {
		origin := opts.Origin
		if origin == "" {
			origin = notify.DefaultOrigin
		}
		n := notify.New(opts.Sender, e.recipients, origin, opts.Logger.Named("notify"))
		e.subscriptions = append(e.subscriptions, e.bus.Subscribe("notifier", n.Handle))
	}

	return e, nil
}

func (e *Engine) init() error {
	if err := e.fs.MkdirAll(e.store.Dir(), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	steps := []struct {
		name string
		init func() error
	}{
		{"labels", e.registry.Init},
		{"settings", e.settings.Init},
		{"servers", e.servers.Init},
		{"domains", e.domains.Init},
		{"config", e.config.Init},
	}
	for _, s := range steps {
		if err := s.init(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", s.name, err)
		}
	}
	return nil
}

// DataDir returns the directory holding the data files.
func (e *Engine) DataDir() string {
	return e.store.Dir()
}

// Subscribe registers handler for every change event.
func (e *Engine) Subscribe(name string, handler bus.Handler) bus.SubscriptionID {
	return e.bus.Subscribe(name, handler)
}

// Unsubscribe removes a handler registered with Subscribe.
func (e *Engine) Unsubscribe(id bus.SubscriptionID) bool {
	return e.bus.Unsubscribe(id)
}

// Close stops the reconciler and detaches the engine's own subscribers.
func (e *Engine) Close() error {
	e.reconciler.Stop()
	for _, id := range e.subscriptions {
		e.bus.Unsubscribe(id)
	}
	e.subscriptions = nil
	return nil
}
