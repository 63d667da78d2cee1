package engine

import (
	"fmt"
	"strings"

	"github.com/danieljhkim/watchguard/internal/bus"
	"github.com/danieljhkim/watchguard/internal/stores"
)

func (e *Engine) entityStore(kind bus.Kind) (*stores.EntityStore, error) {
	switch kind {
	case bus.KindServer:
		return e.servers, nil
	case bus.KindDomain:
		return e.domains, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Servers returns every server record.
func (e *Engine) Servers() stores.Collection {
	return e.servers.Load()
}

// Domains returns every domain record.
func (e *Engine) Domains() stores.Collection {
	return e.domains.Load()
}

// Entities returns every record of kind.
func (e *Engine) Entities(kind bus.Kind) (stores.Collection, error) {
	s, err := e.entityStore(kind)
	if err != nil {
		return nil, err
	}
	return s.Load(), nil
}

// AddEntity creates a server or domain. A non-empty label must be registered.
func (e *Engine) AddEntity(kind bus.Kind, req EntityRequest) (*EntityResult, error) {
	s, err := e.entityStore(kind)
	if err != nil {
		return nil, err
	}
	name, err := stores.ValidateName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := s.Add(name, normalizeFields(req.Fields)); err != nil {
		return nil, err
	}
	return &EntityResult{
		Kind:    kind,
		Name:    name,
		Message: fmt.Sprintf("%s '%s' added successfully", title(kind), name),
	}, nil
}

// UpdateEntity replaces a server or domain, renaming it when NewName is set.
func (e *Engine) UpdateEntity(kind bus.Kind, req EntityRequest) (*EntityResult, error) {
	s, err := e.entityStore(kind)
	if err != nil {
		return nil, err
	}
	oldName, err := stores.ValidateName(req.Name)
	if err != nil {
		return nil, err
	}
	newName := oldName
	if strings.TrimSpace(req.NewName) != "" {
		if newName, err = stores.ValidateName(req.NewName); err != nil {
			return nil, err
		}
	}
	if err := s.Update(oldName, newName, normalizeFields(req.Fields)); err != nil {
		return nil, err
	}

	result := &EntityResult{
		Kind:    kind,
		Name:    newName,
		Message: fmt.Sprintf("%s '%s' updated successfully", title(kind), newName),
	}
	if newName != oldName {
		result.PreviousName = oldName
	}
	return result, nil
}

// DeleteEntity removes a server or domain.
func (e *Engine) DeleteEntity(kind bus.Kind, name string) (*EntityResult, error) {
	s, err := e.entityStore(kind)
	if err != nil {
		return nil, err
	}
	name, err = stores.ValidateName(name)
	if err != nil {
		return nil, err
	}
	if err := s.Delete(name); err != nil {
		return nil, err
	}
	return &EntityResult{
		Kind:    kind,
		Name:    name,
		Message: fmt.Sprintf("%s '%s' deleted successfully", title(kind), name),
	}, nil
}

// normalizeFields trims the label so records store the same form the
// registry compares against.
func normalizeFields(fields stores.Record) stores.Record {
	rec := fields.Clone()
	if _, ok := rec["label"]; ok {
		rec.SetLabel(rec.Label())
	}
	return rec
}

func title(kind bus.Kind) string {
	s := string(kind)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
