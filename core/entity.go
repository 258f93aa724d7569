package core

import (
	"encoding/json"
	"sort"
)

// IdentifierField is the implicit identifier every entity type carries
const IdentifierField = "id"

// Reference points at another entity through a relation field
type Reference struct {
	Type string `json:"type" yaml:"type"`
	ID   string `json:"id" yaml:"id"`
}

// Entity is a generic persisted row. Type names the entity descriptor the row
// belongs to; ID is empty until the engine assigns one on first flush.
type Entity struct {
	Type   string
	ID     string
	values map[string]any
	// fields assigned since the entity was loaded or last committed
	changed map[string]struct{}
}

// NewEntity creates a transient entity of the given type
func NewEntity(entityType string) *Entity {
	return &Entity{
		Type:   entityType,
		values: make(map[string]any),
	}
}

// Get returns the value of a field. A field set to null reports (nil, true).
func (e *Entity) Get(field string) (any, bool) {
	if field == IdentifierField {
		return e.ID, e.ID != ""
	}
	v, ok := e.values[field]
	return v, ok
}

// Set assigns a field value and marks it changed. nil stores an explicit null.
func (e *Entity) Set(field string, value any) {
	if e.values == nil {
		e.values = make(map[string]any)
	}
	if e.changed == nil {
		e.changed = make(map[string]struct{})
	}
	e.values[field] = value
	e.changed[field] = struct{}{}
}

// Changed returns the fields assigned since the last MarkClean, sorted
func (e *Entity) Changed() []string {
	names := make([]string, 0, len(e.changed))
	for k := range e.changed {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MarkClean records that the stored row matches the entity
func (e *Entity) MarkClean() {
	e.changed = nil
}

// Assign replaces e's identifier, values and change set with those of src
func (e *Entity) Assign(src *Entity) {
	c := src.Clone()
	e.ID = c.ID
	e.values = c.values
	e.changed = c.changed
}

// Fields returns the names of all assigned fields in sorted order
func (e *Entity) Fields() []string {
	names := make([]string, 0, len(e.values))
	for k := range e.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Values returns a copy of the assigned field values
func (e *Entity) Values() map[string]any {
	out := make(map[string]any, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// Clone returns a copy that shares no state with e
func (e *Entity) Clone() *Entity {
	var changed map[string]struct{}
	if len(e.changed) > 0 {
		changed = make(map[string]struct{}, len(e.changed))
		for k := range e.changed {
			changed[k] = struct{}{}
		}
	}
	return &Entity{Type: e.Type, ID: e.ID, values: e.Values(), changed: changed}
}

// Transient reports whether the entity has never been flushed
func (e *Entity) Transient() bool {
	return e.ID == ""
}

// Ref returns a reference to this entity
func (e *Entity) Ref() Reference {
	return Reference{Type: e.Type, ID: e.ID}
}

// MarshalJSON renders the entity as a flat object with id first
func (e *Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.values)+2)
	for k, v := range e.values {
		out[k] = v
	}
	out[IdentifierField] = e.ID
	out["_type"] = e.Type
	return json.Marshal(out)
}
