package metadata

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Provider resolves descriptors by "entity:service" key
type Provider interface {
	Describe(ctx context.Context, key string) (*EntityDescriptor, error)
}

// GetFields returns the declared fields of an entity type in declaration order
func GetFields(ctx context.Context, p Provider, key string) ([]FieldDescriptor, error) {
	d, err := p.Describe(ctx, key)
	if err != nil {
		return nil, err
	}
	fields := make([]FieldDescriptor, len(d.Fields))
	for i, f := range d.Fields {
		fields[i] = f.normalized()
	}
	return fields, nil
}

// Registry is an in-memory Provider. It owns the descriptor map; callers hold
// it by reference instead of reaching for shared state.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*EntityDescriptor
}

// NewRegistry creates a registry pre-populated with the given descriptors
func NewRegistry(descriptors ...*EntityDescriptor) (*Registry, error) {
	r := &Registry{descriptors: make(map[string]*EntityDescriptor)}
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates and stores a descriptor, replacing any previous one
func (r *Registry) Register(d *EntityDescriptor) error {
	if err := Validate(d); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[d.Key()] = d
	return nil
}

// Describe implements Provider
func (r *Registry) Describe(_ context.Context, key string) (*EntityDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, key)
	}
	return d, nil
}

// Keys returns all registered keys in sorted order
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.descriptors))
	for k := range r.descriptors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns every registered descriptor ordered so that relation targets
// come before the entities referencing them (falls back to key order on cycles).
func (r *Registry) All() []*EntityDescriptor {
	keys := r.Keys()
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*EntityDescriptor, 0, len(keys))
	visited := make(map[string]bool, len(keys))
	var visit func(key string, stack map[string]bool)
	visit = func(key string, stack map[string]bool) {
		d, ok := r.descriptors[key]
		if !ok || visited[key] || stack[key] {
			return
		}
		stack[key] = true
		for _, f := range d.Fields {
			if f.IsRelation() {
				visit(d.RelatedKey(f), stack)
			}
		}
		visited[key] = true
		out = append(out, d)
	}
	for _, k := range keys {
		visit(k, map[string]bool{})
	}
	return out
}
