package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"entitysvc/binder"
	"entitysvc/core"
	"entitysvc/metadata"
	"entitysvc/metrics"
	"entitysvc/search"
	"entitysvc/storage"
	"entitysvc/util/goroutine"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "entitysvc/service"

// Dispatcher executes the six entity actions for one entity type.
//
// Every call runs Start, Execute and Finish in order. Create, Update and
// Delete open a transaction at Start which is committed when Execute succeeds
// and rolled back when it fails or panics. Read, List and Count run on a
// read-only session and never open a transaction.
//
// A Dispatcher holds no per-call state and is safe for concurrent use; two
// concurrent calls race only at the storage layer.
type Dispatcher struct {
	desc   *metadata.EntityDescriptor
	engine storage.Engine
	binder *binder.Binder
	logger *zap.SugaredLogger
	tracer trace.Tracer
}

// NewDispatcher creates a dispatcher. A nil tracer uses the global provider.
func NewDispatcher(desc *metadata.EntityDescriptor, engine storage.Engine, b *binder.Binder, logger *zap.SugaredLogger, tracer trace.Tracer) *Dispatcher {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Dispatcher{
		desc:   desc,
		engine: engine,
		binder: b,
		logger: logger,
		tracer: tracer,
	}
}

// Descriptor returns the entity type the dispatcher serves
func (d *Dispatcher) Descriptor() *metadata.EntityDescriptor {
	return d.desc
}

// invocation is the state of one Execute call. tx is nil for read-only actions.
type invocation struct {
	action  core.ActionKind
	session storage.Session
	tx      storage.Tx
	// run in order once the transaction has committed
	onCommit []func()
}

// Execute runs one action. Faults from the Execute phase are returned
// unchanged; rollback happens as a side effect.
func (d *Dispatcher) Execute(ctx context.Context, action core.ActionKind, raw map[string]any) (outcome core.Outcome, err error) {
	if !action.IsValid() {
		return core.Outcome{}, fmt.Errorf("%w: %q", core.ErrUnknownAction, action)
	}

	entity := d.desc.Key()
	ctx, span := d.tracer.Start(ctx, "entitysvc."+action.String(),
		trace.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("action", action.String()),
		))
	defer span.End()

	started := time.Now()
	defer func() {
		metrics.ActionDuration.WithLabelValues(entity, action.String()).Observe(time.Since(started).Seconds())
		result := "success"
		if err != nil {
			result = "failure"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.ActionsExecuted.WithLabelValues(entity, action.String(), result).Inc()
	}()

	params, err := core.ParseParameters(raw)
	if err != nil {
		return core.Outcome{}, err
	}

	inv, err := d.startAction(ctx, action)
	if err != nil {
		return core.Outcome{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			d.rollback(ctx, inv, fmt.Errorf("panic: %v", r))
			goroutine.LogPanic(entity+"."+action.String(), r, d.logger)
			panic(r)
		}
	}()

	outcome, err = d.run(ctx, inv, params)
	if err != nil {
		d.failedAction(ctx, inv, err)
		return core.Outcome{}, err
	}
	if err = d.successAction(ctx, inv); err != nil {
		return core.Outcome{}, err
	}
	return outcome, nil
}

// startAction opens the session for one call. Mutating actions get a transaction.
func (d *Dispatcher) startAction(ctx context.Context, action core.ActionKind) (*invocation, error) {
	inv := &invocation{action: action}
	if !action.Mutating() {
		session, err := d.engine.Session(ctx)
		if err != nil {
			return nil, err
		}
		inv.session = session
		return inv, nil
	}

	tx, err := d.engine.Begin(ctx)
	if err != nil {
		return nil, err
	}
	inv.tx = tx
	inv.session = tx
	d.logger.Debugw("transaction opened", "entity", d.desc.Key(), "action", action)
	return inv, nil
}

// successAction commits a mutating action. A failed commit is rolled back and
// its error returned.
func (d *Dispatcher) successAction(ctx context.Context, inv *invocation) error {
	if inv.tx == nil {
		return nil
	}
	if err := inv.tx.Commit(ctx); err != nil {
		d.failedAction(ctx, inv, err)
		return err
	}
	metrics.Transactions.WithLabelValues("commit").Inc()
	d.logger.Debugw("transaction committed", "entity", d.desc.Key(), "action", inv.action)
	for _, fn := range inv.onCommit {
		fn()
	}
	return nil
}

// failedAction rolls back a mutating action after cause
func (d *Dispatcher) failedAction(ctx context.Context, inv *invocation, cause error) {
	if inv.tx == nil {
		return
	}
	d.rollback(ctx, inv, cause)
}

func (d *Dispatcher) rollback(ctx context.Context, inv *invocation, cause error) {
	if inv.tx == nil {
		return
	}
	err := inv.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, storage.ErrTxDone) {
		metrics.Transactions.WithLabelValues("rollback_failed").Inc()
		d.logger.Errorw("transaction rollback failed",
			"entity", d.desc.Key(),
			"action", inv.action,
			"cause", cause,
			"error", err)
		return
	}
	metrics.Transactions.WithLabelValues("rollback").Inc()
	d.logger.Warnw("transaction rolled back",
		"entity", d.desc.Key(),
		"action", inv.action,
		"cause", cause)
}

func (d *Dispatcher) run(ctx context.Context, inv *invocation, params core.Parameters) (core.Outcome, error) {
	switch inv.action {
	case core.ActionCreate:
		return d.doCreate(ctx, inv.session, params)
	case core.ActionRead:
		return d.doRead(ctx, inv.session, params)
	case core.ActionUpdate:
		return d.doUpdate(ctx, inv, params)
	case core.ActionDelete:
		return d.doDelete(ctx, inv.session, params)
	case core.ActionList:
		return d.doList(ctx, inv.session, params)
	case core.ActionCount:
		return d.doCount(ctx, inv.session, params)
	default:
		return core.Outcome{}, fmt.Errorf("%w: %q", core.ErrUnknownAction, inv.action)
	}
}

func (d *Dispatcher) doCreate(ctx context.Context, session storage.Session, params core.Parameters) (core.Outcome, error) {
	if params.Empty() {
		return core.Outcome{}, fmt.Errorf("%w: create %s needs at least one field", core.ErrMissingParameter, d.desc.Key())
	}

	e, err := d.binder.Bind(ctx, core.NewEntity(d.desc.Key()), d.desc, params.Fields, session)
	if err != nil {
		return core.Outcome{}, err
	}
	if err := binder.CheckRequired(e, d.desc); err != nil {
		return core.Outcome{}, err
	}
	if err := session.Persist(d.desc, e); err != nil {
		return core.Outcome{}, err
	}
	if err := session.Flush(ctx); err != nil {
		return core.Outcome{}, err
	}
	return core.Outcome{Action: core.ActionCreate, Entity: e}, nil
}

func (d *Dispatcher) doRead(ctx context.Context, session storage.Session, params core.Parameters) (core.Outcome, error) {
	hasName := params.Name != nil
	hasID := params.ID != nil

	var (
		e   *core.Entity
		err error
	)
	switch {
	case hasID && hasName:
		return core.Outcome{}, fmt.Errorf("%w: read takes %s or %s, not both", core.ErrInvalidParameter, core.KeyID, core.KeyName)
	case hasID:
		e, err = session.FindByID(ctx, d.desc, *params.ID)
	case hasName:
		e, err = session.FindByUnique(ctx, d.desc, core.KeyName, *params.Name)
	default:
		return core.Outcome{}, fmt.Errorf("%w: read needs %s or %s", core.ErrMissingParameter, core.KeyID, core.KeyName)
	}
	if err != nil {
		return core.Outcome{}, err
	}
	return core.Outcome{Action: core.ActionRead, Entity: e}, nil
}

// doUpdate binds onto a copy of the caller's entity. The caller's entity
// takes the new values only once the transaction commits.
func (d *Dispatcher) doUpdate(ctx context.Context, inv *invocation, params core.Parameters) (core.Outcome, error) {
	e, err := d.loadedEntity(params)
	if err != nil {
		return core.Outcome{}, err
	}
	work := e.Clone()
	if _, err := d.binder.Bind(ctx, work, d.desc, params.Fields, inv.session); err != nil {
		return core.Outcome{}, err
	}
	if err := binder.CheckRequired(work, d.desc); err != nil {
		return core.Outcome{}, err
	}
	if err := inv.session.Persist(d.desc, work); err != nil {
		return core.Outcome{}, err
	}
	if err := inv.session.Flush(ctx); err != nil {
		return core.Outcome{}, err
	}
	inv.onCommit = append(inv.onCommit, func() { e.Assign(work) })
	return core.Outcome{Action: core.ActionUpdate, Entity: e}, nil
}

func (d *Dispatcher) doDelete(ctx context.Context, session storage.Session, params core.Parameters) (core.Outcome, error) {
	e, err := d.loadedEntity(params)
	if err != nil {
		return core.Outcome{}, err
	}
	if err := session.Remove(d.desc, e); err != nil {
		return core.Outcome{}, err
	}
	if err := session.Flush(ctx); err != nil {
		return core.Outcome{}, err
	}
	return core.Outcome{Action: core.ActionDelete, Deleted: true}, nil
}

// loadedEntity returns the entity parameter of Update and Delete
func (d *Dispatcher) loadedEntity(params core.Parameters) (*core.Entity, error) {
	e := params.Entity
	switch {
	case e == nil:
		return nil, fmt.Errorf("%w: %s", core.ErrMissingParameter, core.KeyEntity)
	case e.Type != d.desc.Key():
		return nil, fmt.Errorf("%w: %s is a %s, expected %s", core.ErrInvalidParameter, core.KeyEntity, e.Type, d.desc.Key())
	case e.Transient():
		return nil, fmt.Errorf("%w: %s has not been persisted", core.ErrInvalidParameter, core.KeyEntity)
	}
	return e, nil
}

func (d *Dispatcher) doList(ctx context.Context, session storage.Session, params core.Parameters) (core.Outcome, error) {
	q, err := d.query(params)
	if err != nil {
		return core.Outcome{}, err
	}
	sort, limit := search.Extract(params)
	q.OrderBy(sort).SetLimit(limit)
	d.logger.Debugw("listing entities", "entity", d.desc.Key(), "sort", sort.String(), "limit", limit)
	if err := q.Validate(); err != nil {
		return core.Outcome{}, err
	}

	entities, err := session.Execute(ctx, q)
	if err != nil {
		return core.Outcome{}, err
	}
	return core.Outcome{Action: core.ActionList, Entities: entities}, nil
}

func (d *Dispatcher) doCount(ctx context.Context, session storage.Session, params core.Parameters) (core.Outcome, error) {
	q, err := d.query(params)
	if err != nil {
		return core.Outcome{}, err
	}

	n, err := session.Count(ctx, q.Count())
	if err != nil {
		return core.Outcome{}, err
	}
	return core.Outcome{Action: core.ActionCount, Count: n}, nil
}

// query builds the base query for List and Count, filtered when __filter is set
func (d *Dispatcher) query(params core.Parameters) (*search.Query, error) {
	q := search.NewQuery(d.desc)

	expr, err := search.DecodeFilter(params.Filter)
	if err != nil || expr == nil {
		return q, err
	}
	predicate, err := search.NewCompiler(d.desc).Compile(*expr)
	if err != nil {
		return nil, err
	}
	return q.Filter(predicate), nil
}
