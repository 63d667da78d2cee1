package persist

import "errors"

// ErrStorage indicates a data file could not be written.
// Reads never return it; they degrade to defaults instead.
var ErrStorage = errors.New("storage failure")
