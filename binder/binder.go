// Package binder assigns raw parameter values onto entities according to
// their descriptors.
package binder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"entitysvc/core"
	"entitysvc/metadata"

	"go.uber.org/zap"
)

// Resolver loads the entity a relation value points at
type Resolver interface {
	FindByID(ctx context.Context, desc *metadata.EntityDescriptor, id string) (*core.Entity, error)
}

// Binder binds parameter maps onto entities. In strict mode a key that names
// no declared field fails with core.ErrUnknownField; otherwise it is ignored.
type Binder struct {
	provider metadata.Provider
	strict   bool
	logger   *zap.SugaredLogger
}

// New creates a binder. provider resolves the descriptors of relation targets.
func New(provider metadata.Provider, strict bool, logger *zap.SugaredLogger) *Binder {
	return &Binder{provider: provider, strict: strict, logger: logger}
}

// Strict reports whether unknown keys are rejected
func (b *Binder) Strict() bool {
	return b.strict
}

// Bind assigns fields onto e and returns it. Keys are applied in sorted order
// and binding stops at the first failure, leaving earlier assignments in
// place; callers that must keep e intact bind onto a clone.
func (b *Binder) Bind(ctx context.Context, e *core.Entity, desc *metadata.EntityDescriptor, fields map[string]any, resolver Resolver) (*core.Entity, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if isControlKey(key) {
			continue
		}
		f, ok := desc.Field(key)
		if !ok {
			if b.strict {
				return nil, fmt.Errorf("%w: %s has no field %q", core.ErrUnknownField, desc.Key(), key)
			}
			b.logger.Debugw("ignoring unknown field", "entity", desc.Key(), "field", key)
			continue
		}

		value := fields[key]
		if s, isString := value.(string); isString && s == "" {
			value = nil
		}

		var (
			bound any
			err   error
		)
		if f.IsRelation() {
			bound, err = b.resolve(ctx, desc, f, value, resolver)
		} else {
			bound, err = metadata.Coerce(f, value)
		}
		if err != nil {
			return nil, err
		}
		e.Set(f.Name, bound)
	}
	return e, nil
}

// resolve loads the related entity so that a dangling reference fails here
// rather than at flush
func (b *Binder) resolve(ctx context.Context, desc *metadata.EntityDescriptor, f metadata.FieldDescriptor, value any, resolver Resolver) (any, error) {
	id, err := metadata.Coerce(f, value)
	if err != nil || id == nil || id == "" {
		return nil, err
	}

	related, err := b.provider.Describe(ctx, desc.RelatedKey(f))
	if err != nil {
		return nil, fmt.Errorf("resolve %s.%s: %w", desc.Key(), f.Name, err)
	}
	target, err := resolver.FindByID(ctx, related, id.(string))
	if err != nil {
		return nil, fmt.Errorf("resolve %s.%s: %w", desc.Key(), f.Name, err)
	}
	return target.Ref(), nil
}

// CheckRequired fails with core.ErrInvalidValue when a required field is
// unset or null
func CheckRequired(e *core.Entity, desc *metadata.EntityDescriptor) error {
	for _, f := range desc.Fields {
		if !f.Required {
			continue
		}
		if v, ok := e.Get(f.Name); !ok || v == nil {
			return fmt.Errorf("%w: %s.%s is required", core.ErrInvalidValue, desc.Key(), f.Name)
		}
	}
	return nil
}

func isControlKey(key string) bool {
	switch key {
	case core.KeyID, core.KeyEntity:
		return true
	}
	return strings.HasPrefix(key, "__")
}
