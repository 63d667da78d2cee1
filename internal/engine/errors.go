package engine

import "errors"

var (
	// ErrUnknownKind indicates an entity kind other than server or domain.
	ErrUnknownKind = errors.New("unknown entity kind")
)
