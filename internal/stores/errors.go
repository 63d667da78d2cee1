package stores

import "errors"

var (
	// ErrInvalidInput indicates a rejected name or label. Nothing was written.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the named entity or label does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a duplicate entity name or label.
	ErrAlreadyExists = errors.New("already exists")
)
