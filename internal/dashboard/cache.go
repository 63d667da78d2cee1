// Package dashboard serves the read model behind the web dashboard: entity
// renewal status, label usage, and the expiring-soon list. Views are cached
// in memory and dropped whenever a change event touches their inputs.
package dashboard

import (
	"slices"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/danieljhkim/watchguard/internal/bus"
	"github.com/danieljhkim/watchguard/internal/clock"
	"github.com/danieljhkim/watchguard/internal/labels"
	"github.com/danieljhkim/watchguard/internal/stores"
)

const (
	DefaultTTL             = 5 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute

	keyOverview = "overview"
)

// Source supplies the data a view is built from.
type Source interface {
	Servers() stores.Collection
	Domains() stores.Collection
	Settings() stores.Document
	Usage() map[string]labels.Usage
}

// Entry is one entity row.
type Entry struct {
	Kind     bus.Kind `json:"kind"`
	Name     string   `json:"name"`
	Label    string   `json:"label,omitempty"`
	Date     string   `json:"date,omitempty"`
	Price    string   `json:"price,omitempty"`
	Status   Renewal  `json:"status"`
	DaysLeft int      `json:"days_left"`
}

// Overview is the cached dashboard view.
type Overview struct {
	GeneratedAt time.Time               `json:"generated_at"`
	WarningDays int                     `json:"warning_days"`
	Servers     []Entry                 `json:"servers"`
	Domains     []Entry                 `json:"domains"`
	Expiring    []Entry                 `json:"expiring"`
	Usage       map[string]labels.Usage `json:"usage"`
}

// Cache builds Overview values on demand and keeps them until they expire
// or an event invalidates them.
type Cache struct {
	source Source
	clock  clock.Clock
	cache  *gocache.Cache
	ttl    time.Duration
	logger *zap.Logger

	builds atomic.Int64
}

// New creates a Cache. A non-positive ttl means DefaultTTL.
func New(source Source, clk clock.Clock, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		source: source,
		clock:  clk,
		cache:  gocache.New(ttl, DefaultCleanupInterval),
		ttl:    ttl,
		logger: logger,
	}
}

// Overview returns the cached view, building it if absent.
func (c *Cache) Overview() Overview {
	if v, found := c.cache.Get(keyOverview); found {
		if ov, ok := v.(Overview); ok {
			return ov
		}
		c.logger.Error("wrong type in dashboard cache", zap.String("key", keyOverview))
	}

	ov := c.build()
	c.cache.Set(keyOverview, ov, c.ttl)
	return ov
}

// Builds returns how many times a view was built rather than served from cache.
func (c *Cache) Builds() int64 {
	return c.builds.Load()
}

// Invalidate drops every cached view.
func (c *Cache) Invalidate() {
	c.cache.Flush()
}

// Handle is the bus.Handler. Config events do not affect the view.
func (c *Cache) Handle(event bus.Event) error {
	if event.Kind == bus.KindConfig {
		return nil
	}
	c.cache.Delete(keyOverview)
	c.logger.Debug("dashboard cache invalidated", zap.String("event", event.String()))
	return nil
}

func (c *Cache) build() Overview {
	c.builds.Add(1)

	now := c.clock.Now()
	warningDays := 5
	if v, ok := c.source.Settings()["warning_days"]; ok {
		switch n := v.(type) {
		case int:
			warningDays = n
		case float64:
			warningDays = int(n)
		}
	}

	ov := Overview{
		GeneratedAt: now,
		WarningDays: warningDays,
		Servers:     entries(bus.KindServer, c.source.Servers(), warningDays, now),
		Domains:     entries(bus.KindDomain, c.source.Domains(), warningDays, now),
		Usage:       c.source.Usage(),
	}
	for _, e := range slices.Concat(ov.Servers, ov.Domains) {
		if e.Status == RenewalWarning || e.Status == RenewalExpired {
			ov.Expiring = append(ov.Expiring, e)
		}
	}
	slices.SortStableFunc(ov.Expiring, func(a, b Entry) int { return a.DaysLeft - b.DaysLeft })
	return ov
}

func entries(kind bus.Kind, coll stores.Collection, warningDays int, now time.Time) []Entry {
	out := make([]Entry, 0, len(coll))
	for _, name := range coll.Names() {
		rec := coll[name]
		status, days := Classify(rec.Field("date"), warningDays, now)
		out = append(out, Entry{
			Kind:     kind,
			Name:     name,
			Label:    rec.Label(),
			Date:     rec.Field("date"),
			Price:    rec.Field("price"),
			Status:   status,
			DaysLeft: days,
		})
	}
	return out
}
