package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"entitysvc/binder"
	"entitysvc/core"
	"entitysvc/metadata"
	"entitysvc/storage"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Registry holds one Dispatcher per entity type, keyed "entity:service"
type Registry struct {
	mu          sync.RWMutex
	dispatchers map[string]*Dispatcher
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{dispatchers: make(map[string]*Dispatcher)}
}

// BuildRegistry creates a dispatcher for every descriptor, sharing one engine and binder
func BuildRegistry(descs []*metadata.EntityDescriptor, engine storage.Engine, b *binder.Binder, logger *zap.SugaredLogger, tracer trace.Tracer) *Registry {
	r := NewRegistry()
	for _, desc := range descs {
		r.Register(NewDispatcher(desc, engine, b, logger, tracer))
	}
	return r
}

// Register adds or replaces the dispatcher for its entity type
func (r *Registry) Register(d *Dispatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatchers[d.Descriptor().Key()] = d
}

// Get returns the dispatcher for key
func (r *Registry) Get(key string) (*Dispatcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dispatchers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", metadata.ErrUnknownEntity, key)
	}
	return d, nil
}

// Keys returns the registered keys in sorted order
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.dispatchers))
	for k := range r.dispatchers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Execute resolves the dispatcher for key and runs action on it
func (r *Registry) Execute(ctx context.Context, key string, action core.ActionKind, raw map[string]any) (core.Outcome, error) {
	d, err := r.Get(key)
	if err != nil {
		return core.Outcome{}, err
	}
	return d.Execute(ctx, action, raw)
}
