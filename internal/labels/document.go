package labels

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// FormatVersion is written to every labels document.
const FormatVersion = "1.0"

// Document is the persisted shape of labels.json.
type Document struct {
	Labels      []string  `json:"labels"`
	CreatedAt   Timestamp `json:"created_at"`
	LastUpdated Timestamp `json:"last_updated"`
	Version     string    `json:"version"`
}

func newDocument(now time.Time) Document {
	return Document{
		Labels:      []string{},
		CreatedAt:   Timestamp{now},
		LastUpdated: Timestamp{now},
		Version:     FormatVersion,
	}
}

type fileShape int

const (
	shapeCurrent fileShape = iota
	shapeMissing
	shapeLegacy
	shapeCorrupt
)

func (s fileShape) String() string {
	switch s {
	case shapeCurrent:
		return "current"
	case shapeMissing:
		return "missing"
	case shapeLegacy:
		return "legacy"
	default:
		return "corrupt"
	}
}

// decodeDocument parses labels.json content. A bare array is the legacy
// shape; anything that is neither an object nor an array is corrupt.
func decodeDocument(data []byte) (Document, fileShape) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Document{}, shapeCorrupt
	}

	switch trimmed[0] {
	case '[':
		var items []any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Document{}, shapeCorrupt
		}
		return Document{Labels: stringItems(items), Version: FormatVersion}, shapeLegacy
	case '{':
		var raw struct {
			Labels      []any     `json:"labels"`
			CreatedAt   Timestamp `json:"created_at"`
			LastUpdated Timestamp `json:"last_updated"`
			Version     string    `json:"version"`
		}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return Document{}, shapeCorrupt
		}
		doc := Document{
			Labels:      stringItems(raw.Labels),
			CreatedAt:   raw.CreatedAt,
			LastUpdated: raw.LastUpdated,
			Version:     raw.Version,
		}
		if doc.Version == "" {
			doc.Version = FormatVersion
		}
		return doc, shapeCurrent
	}
	return Document{}, shapeCorrupt
}

func stringItems(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Normalize trims every entry, drops empties and duplicates, and sorts.
func Normalize(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Timestamp accepts RFC 3339 and the zone-less ISO form older files carry.
// Unparseable values decode to the zero time rather than failing the document.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// MarshalJSON writes RFC 3339, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// UnmarshalJSON never fails on a malformed value.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}
