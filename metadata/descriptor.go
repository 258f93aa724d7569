// Package metadata describes entity types: which fields they declare, which of
// those are relations, and how values are typed. Descriptors are addressed by
// a key of the form "entity:service".
package metadata

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"entitysvc/core"

	"github.com/go-playground/validator/v10"
)

// ErrUnknownEntity is returned when no descriptor is registered for a key
var ErrUnknownEntity = errors.New("unknown entity type")

// Kind distinguishes plain columns from references to other entities
type Kind string

const (
	KindScalar   Kind = "scalar"
	KindRelation Kind = "relation"
)

// ValueType is the declared type of a scalar field
type ValueType string

const (
	TypeString   ValueType = "string"
	TypeInteger  ValueType = "integer"
	TypeFloat    ValueType = "float"
	TypeBoolean  ValueType = "boolean"
	TypeDateTime ValueType = "datetime"
)

// FieldDescriptor describes one declared field
type FieldDescriptor struct {
	Name        string    `yaml:"name" msgpack:"name" json:"name" validate:"required,identifier,ne=id"`
	Kind        Kind      `yaml:"kind" msgpack:"kind" json:"kind" validate:"omitempty,oneof=scalar relation"`
	Type        ValueType `yaml:"type" msgpack:"type" json:"type" validate:"omitempty,oneof=string integer float boolean datetime"`
	RelatedType string    `yaml:"related_type,omitempty" msgpack:"related_type,omitempty" json:"related_type,omitempty" validate:"required_if=Kind relation"`
	Unique      bool      `yaml:"unique,omitempty" msgpack:"unique,omitempty" json:"unique,omitempty"`
	Required    bool      `yaml:"required,omitempty" msgpack:"required,omitempty" json:"required,omitempty"`
}

// IsRelation reports whether the field references another entity
func (f FieldDescriptor) IsRelation() bool {
	return f.Kind == KindRelation
}

// EntityDescriptor describes one entity type
type EntityDescriptor struct {
	Name    string            `yaml:"name" msgpack:"name" json:"name" validate:"required,identifier"`
	Service string            `yaml:"service" msgpack:"service" json:"service" validate:"required,identifier"`
	Table   string            `yaml:"table,omitempty" msgpack:"table,omitempty" json:"table,omitempty" validate:"omitempty,identifier"`
	Fields  []FieldDescriptor `yaml:"fields" msgpack:"fields" json:"fields" validate:"dive"`
}

// Key joins an entity name and a service name into a descriptor key
func Key(entity, service string) string {
	return entity + ":" + service
}

// SplitKey is the inverse of Key. A key without a service part returns an
// empty service.
func SplitKey(key string) (entity, service string) {
	entity, service, _ = strings.Cut(key, ":")
	return entity, service
}

// Key returns the descriptor's "entity:service" key
func (d *EntityDescriptor) Key() string {
	return Key(d.Name, d.Service)
}

// TableName returns the storage table (or collection) name
func (d *EntityDescriptor) TableName() string {
	if d.Table != "" {
		return d.Table
	}
	return d.Name
}

// Field looks up a declared field. The implicit identifier field is always found.
func (d *EntityDescriptor) Field(name string) (FieldDescriptor, bool) {
	if name == core.IdentifierField {
		return FieldDescriptor{Name: core.IdentifierField, Kind: KindScalar, Type: TypeString, Unique: true}, true
	}
	for _, f := range d.Fields {
		if f.Name == name {
			return f.normalized(), true
		}
	}
	return FieldDescriptor{}, false
}

// FieldNames returns the declared field names in declaration order, id excluded
func (d *EntityDescriptor) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// RelatedKey resolves a relation field's target descriptor key. A bare entity
// name is assumed to live in the same service.
func (d *EntityDescriptor) RelatedKey(f FieldDescriptor) string {
	if strings.Contains(f.RelatedType, ":") {
		return f.RelatedType
	}
	return Key(f.RelatedType, d.Service)
}

func (f FieldDescriptor) normalized() FieldDescriptor {
	if f.Kind == "" {
		f.Kind = KindScalar
	}
	if f.Type == "" || f.Kind == KindRelation {
		f.Type = TypeString
	}
	return f
}

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	validateOnce sync.Once
	validate     *validator.Validate
)

func descriptorValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
			return identifierPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Validate checks a descriptor's structure: identifiers usable as SQL column
// names, known kinds and types, relation targets present and no duplicate fields.
func Validate(d *EntityDescriptor) error {
	if d == nil {
		return fmt.Errorf("descriptor is nil")
	}
	if err := descriptorValidator().Struct(d); err != nil {
		return fmt.Errorf("invalid descriptor %s: %w", d.Key(), err)
	}

	seen := make(map[string]struct{}, len(d.Fields))
	for _, f := range d.Fields {
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("invalid descriptor %s: duplicate field %q", d.Key(), f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}
