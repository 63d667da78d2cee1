package engine

import (
	"github.com/danieljhkim/watchguard/internal/labels"
)

// ListLabels returns the registered labels, sorted.
func (e *Engine) ListLabels() []string {
	return e.registry.List()
}

// ValidateLabel checks raw against the label rules without writing anything.
func (e *Engine) ValidateLabel(raw string) (string, error) {
	return labels.Validate(raw)
}

// AddLabel registers a new label.
func (e *Engine) AddLabel(raw string) (labels.AddResult, error) {
	return e.registry.Add(raw)
}

// RemoveLabel unregisters a label and clears it from every record that
// references it.
func (e *Engine) RemoveLabel(raw string) (labels.RemoveResult, error) {
	return e.registry.Remove(raw)
}

// Usage counts the records referencing each registered label.
func (e *Engine) Usage() map[string]labels.Usage {
	return e.registry.Usage()
}

// ExportLabels returns the labels, their metadata, and usage counts.
func (e *Engine) ExportLabels() labels.Export {
	return e.registry.Export()
}
