package stores

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"
)

// Settings keys owned by the label subsystem.
const (
	SettingsLabels        = "labels"
	SettingsDefaultLabels = "default_labels"
)

// maxNameLength bounds entity names.
const maxNameLength = 255

// Record is one server or domain entry. Only "label" is interpreted here;
// every other field (date, price, datacenter, registrar, emoji, ...) is
// carried through untouched.
type Record map[string]any

// Label returns the trimmed label, or "" if the record has none.
func (r Record) Label() string {
	s, _ := r["label"].(string)
	return strings.TrimSpace(s)
}

// SetLabel replaces the label field.
func (r Record) SetLabel(label string) {
	r["label"] = label
}

// Field returns a field rendered as text, or "" if absent.
func (r Record) Field(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	return maps.Clone(r)
}

// Collection maps entity names to records.
type Collection map[string]Record

// Names returns the entity names sorted.
func (c Collection) Names() []string {
	return slices.Sorted(maps.Keys(c))
}

// Document is a free-form key/value file (settings, config).
type Document map[string]any

// StringList reads key as a list of strings, trimming entries and dropping
// empties and non-strings.
func (d Document) StringList(key string) []string {
	var out []string
	switch v := d[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// SetStringList stores list under key. A nil list is written as [].
func (d Document) SetStringList(key string, list []string) {
	if list == nil {
		list = []string{}
	}
	d[key] = slices.Clone(list)
}

// Clone returns a shallow copy.
func (d Document) Clone() Document {
	if d == nil {
		return Document{}
	}
	return maps.Clone(d)
}

// DefaultSettings returns the settings used when settings.json is absent.
func DefaultSettings() Document {
	return Document{
		"warning_days":        5,
		"notification_hour":   9,
		"notification_minute": 0,
		"daily_notifications": true,
		"CHAT_IDS":            []any{},
		"web_panel_enabled":   false,
	}
}

// DefaultConfig returns the config document used when config.json is absent.
func DefaultConfig() Document {
	return Document{}
}

// ValidateName normalizes an entity name and rejects unusable ones.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	}
	if len(name) > maxNameLength {
		return "", fmt.Errorf("%w: name cannot be longer than %d characters", ErrInvalidInput, maxNameLength)
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("%w: name cannot contain control characters", ErrInvalidInput)
	}
	return name, nil
}
