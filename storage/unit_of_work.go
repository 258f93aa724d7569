package storage

import (
	"fmt"

	"entitysvc/core"
	"entitysvc/metadata"

	"github.com/google/uuid"
)

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opInsert:
		return "insert"
	case opUpdate:
		return "update"
	default:
		return "delete"
	}
}

type pendingOp struct {
	kind   opKind
	desc   *metadata.EntityDescriptor
	entity *core.Entity
}

// unitOfWork queues entity changes until flush. Persisting the same entity
// twice queues it once; removing a still-pending insert cancels it.
type unitOfWork struct {
	writable bool
	pending  []pendingOp
	// entities that received an identifier from this unit of work
	assigned []*core.Entity
	// entities written by a flush, clean once the work is durable
	flushed []*core.Entity
}

func (u *unitOfWork) persist(desc *metadata.EntityDescriptor, e *core.Entity) error {
	if err := u.check(desc, e); err != nil {
		return err
	}
	for _, op := range u.pending {
		if op.entity == e && op.kind != opDelete {
			return nil
		}
	}
	kind := opUpdate
	if e.Transient() {
		kind = opInsert
	}
	u.pending = append(u.pending, pendingOp{kind: kind, desc: desc, entity: e})
	return nil
}

func (u *unitOfWork) remove(desc *metadata.EntityDescriptor, e *core.Entity) error {
	if err := u.check(desc, e); err != nil {
		return err
	}
	for i, op := range u.pending {
		if op.entity == e && op.kind == opInsert {
			u.pending = append(u.pending[:i], u.pending[i+1:]...)
			return nil
		}
	}
	if e.Transient() {
		return fmt.Errorf("%w: cannot remove a %s that was never persisted", core.ErrInvalidParameter, desc.Key())
	}
	u.pending = append(u.pending, pendingOp{kind: opDelete, desc: desc, entity: e})
	return nil
}

func (u *unitOfWork) check(desc *metadata.EntityDescriptor, e *core.Entity) error {
	if !u.writable {
		return ErrReadOnlySession
	}
	if desc == nil || e == nil {
		return fmt.Errorf("%w: entity and descriptor are required", core.ErrInvalidParameter)
	}
	return nil
}

// drain hands the queued operations to fn in order, assigning identifiers to
// inserted entities first. The queue is emptied even when fn fails.
func (u *unitOfWork) drain(fn func(op pendingOp) error) error {
	ops := u.pending
	u.pending = nil
	for _, op := range ops {
		if op.kind == opInsert && op.entity.Transient() {
			op.entity.ID = uuid.NewString()
			u.assigned = append(u.assigned, op.entity)
		}
		if err := fn(op); err != nil {
			return err
		}
		if op.kind != opDelete {
			u.flushed = append(u.flushed, op.entity)
		}
	}
	return nil
}

// discard drops queued work and makes entities inserted by a rolled-back
// transaction transient again
func (u *unitOfWork) discard() {
	u.pending = nil
	for _, e := range u.assigned {
		e.ID = ""
	}
	u.assigned = nil
	u.flushed = nil
}

// fieldsOf returns the normalized descriptors of the fields set on e
func fieldsOf(desc *metadata.EntityDescriptor, e *core.Entity) []metadata.FieldDescriptor {
	out := make([]metadata.FieldDescriptor, 0, len(desc.Fields))
	for _, name := range desc.FieldNames() {
		if _, ok := e.Get(name); !ok {
			continue
		}
		f, _ := desc.Field(name)
		out = append(out, f)
	}
	return out
}

// changedFieldsOf returns the normalized descriptors of the fields assigned
// on e since it was loaded or last committed
func changedFieldsOf(desc *metadata.EntityDescriptor, e *core.Entity) []metadata.FieldDescriptor {
	out := make([]metadata.FieldDescriptor, 0, len(desc.Fields))
	for _, name := range e.Changed() {
		f, ok := desc.Field(name)
		if !ok || f.Name == core.IdentifierField {
			continue
		}
		out = append(out, f)
	}
	return out
}

// settle marks flushed entities clean once the work is durable
func (u *unitOfWork) settle() {
	for _, e := range u.flushed {
		e.MarkClean()
	}
	u.pending = nil
	u.assigned = nil
	u.flushed = nil
}
