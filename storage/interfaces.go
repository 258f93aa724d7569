package storage

import (
	"context"

	"entitysvc/core"
	"entitysvc/metadata"
	"entitysvc/search"
)

// Reader is the query side of a session
type Reader interface {
	// FindByID loads one entity by identifier. A missing row is core.ErrNotFound.
	FindByID(ctx context.Context, desc *metadata.EntityDescriptor, id string) (*core.Entity, error)
	// FindByUnique loads one entity by the value of a unique field
	FindByUnique(ctx context.Context, desc *metadata.EntityDescriptor, field string, value any) (*core.Entity, error)
	// Execute runs a row query
	Execute(ctx context.Context, q *search.Query) ([]*core.Entity, error)
	// Count runs a query as a row count
	Count(ctx context.Context, q *search.Query) (int64, error)
}

// Session is a unit of work. Persist and Remove only queue changes; Flush
// writes them in the order they were queued.
type Session interface {
	Reader
	Persist(desc *metadata.EntityDescriptor, e *core.Entity) error
	Remove(desc *metadata.EntityDescriptor, e *core.Entity) error
	Flush(ctx context.Context) error
}

// Tx is a transactional session. Exactly one of Commit or Rollback ends it.
type Tx interface {
	Session
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Engine is a persistence backend
type Engine interface {
	// Session opens a read-only, non-transactional session
	Session(ctx context.Context) (Session, error)
	// Begin opens a transaction
	Begin(ctx context.Context) (Tx, error)
	// EnsureSchema creates the tables, collections and indexes for the descriptors
	EnsureSchema(ctx context.Context, descs []*metadata.EntityDescriptor) error
	HealthCheck(ctx context.Context) error
	Close() error
}
