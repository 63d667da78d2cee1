// Package bus is the in-process change bus.
//
// Every successful mutation of a persisted collection is announced as one
// Event after its file write completes and before the mutating call returns.
// Handlers run synchronously on the publisher's goroutine in subscription
// order; a failing or panicking handler is logged and skipped.
package bus

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Operation is the kind of mutation an Event describes.
type Operation string

const (
	OpAdd    Operation = "add"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Kind is the entity kind an Event refers to.
type Kind string

const (
	KindServer   Kind = "server"
	KindDomain   Kind = "domain"
	KindSettings Kind = "settings"
	KindConfig   Kind = "config"
	KindLabel    Kind = "label"
)

// GlobalName is the entity name used for whole-document events (settings, config, label set).
const GlobalName = "global"

// Event describes one durable mutation. Treat it as immutable.
type Event struct {
	ID        string         `json:"id"`
	Operation Operation      `json:"operation"`
	Kind      Kind           `json:"entity_kind"`
	Name      string         `json:"entity_name"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewEvent builds an Event. The payload is copied; delete events carry none.
func NewEvent(op Operation, kind Kind, name string, payload map[string]any, now time.Time) Event {
	var p map[string]any
	if op != OpDelete && payload != nil {
		p = maps.Clone(payload)
	}
	return Event{
		ID:        uuid.NewString(),
		Operation: op,
		Kind:      kind,
		Name:      name,
		Payload:   p,
		CreatedAt: now,
	}
}

// String returns "operation kind/name".
func (e Event) String() string {
	return string(e.Operation) + " " + string(e.Kind) + "/" + e.Name
}
