package engine

import (
	"github.com/danieljhkim/watchguard/internal/bus"
	"github.com/danieljhkim/watchguard/internal/reconcile"
)

// EntityResult represents the result of a server or domain mutation.
type EntityResult struct {
	// Kind is server or domain
	Kind bus.Kind `json:"kind"`

	// Name is the record name after the operation
	Name string `json:"name"`

	// PreviousName is set when an update renamed the record
	PreviousName string `json:"previous_name,omitempty"`

	Message string `json:"message"`
}

// SyncResult represents the result of a forced reconciliation.
type SyncResult struct {
	reconcile.Summary

	Message string `json:"message"`
}

// VersionResult reports the running version.
type VersionResult struct {
	Version string `json:"version"`
	Build   string `json:"build"`
}
