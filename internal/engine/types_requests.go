package engine

import "github.com/danieljhkim/watchguard/internal/stores"

// EntityRequest represents a request to add or update a server or domain.
type EntityRequest struct {
	// Name is the record name. For updates it names the existing record.
	Name string

	// NewName renames the record on update. Empty keeps Name.
	NewName string

	// Fields are the record fields. Unknown keys are stored as given.
	Fields stores.Record
}
