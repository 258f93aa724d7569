package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"entitysvc/core"
	"entitysvc/metadata"
	"entitysvc/search"

	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteSession struct {
	q      queryer
	logger *zap.SugaredLogger
	uow    unitOfWork
}

func (s *sqliteSession) FindByID(ctx context.Context, desc *metadata.EntityDescriptor, id string) (*core.Entity, error) {
	return s.FindByUnique(ctx, desc, core.IdentifierField, id)
}

func (s *sqliteSession) FindByUnique(ctx context.Context, desc *metadata.EntityDescriptor, field string, value any) (*core.Entity, error) {
	f, ok := desc.Field(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no field %q", core.ErrUnknownField, desc.Key(), field)
	}
	if !f.Unique {
		return nil, fmt.Errorf("%w: %s.%s is not unique", core.ErrInvalidParameter, desc.Key(), field)
	}

	query, args := search.NewSQLBuilder().
		From(desc.TableName()).
		Where(search.QuoteIdentifier(f.Name)+" = ?", columnValue(f, value)).
		Limit(1).
		Build()

	entities, err := s.query(ctx, desc, query, args)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: %s with %s %v", core.ErrNotFound, desc.Key(), field, value)
	}
	return entities[0], nil
}

func (s *sqliteSession) Execute(ctx context.Context, q *search.Query) ([]*core.Entity, error) {
	query, args, err := q.BuildSQL(sqlValuer(q.Entity))
	if err != nil {
		return nil, err
	}
	s.logger.Debugw("executing query", "entity", q.Entity.Key(), "sql", query)
	return s.query(ctx, q.Entity, query, args)
}

func (s *sqliteSession) Count(ctx context.Context, q *search.Query) (int64, error) {
	counted := *q
	query, args, err := counted.Count().BuildSQL(sqlValuer(q.Entity))
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fault("count "+q.Entity.TableName(), err)
	}
	return n, nil
}

func (s *sqliteSession) Persist(desc *metadata.EntityDescriptor, e *core.Entity) error {
	return s.uow.persist(desc, e)
}

func (s *sqliteSession) Remove(desc *metadata.EntityDescriptor, e *core.Entity) error {
	return s.uow.remove(desc, e)
}

func (s *sqliteSession) Flush(ctx context.Context) error {
	return s.uow.drain(func(op pendingOp) error {
		return s.apply(ctx, op)
	})
}

func (s *sqliteSession) apply(ctx context.Context, op pendingOp) error {
	table := op.desc.TableName()

	var (
		query string
		args  []any
	)
	switch op.kind {
	case opInsert:
		cols := []string{search.QuoteIdentifier(core.IdentifierField)}
		args = []any{op.entity.ID}
		for _, f := range fieldsOf(op.desc, op.entity) {
			v, _ := op.entity.Get(f.Name)
			cols = append(cols, search.QuoteIdentifier(f.Name))
			args = append(args, columnValue(f, v))
		}
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			search.QuoteIdentifier(table), strings.Join(cols, ", "), placeholders(len(cols)))

	case opUpdate:
		fields := changedFieldsOf(op.desc, op.entity)
		if len(fields) == 0 {
			return nil
		}
		sets := make([]string, len(fields))
		for i, f := range fields {
			v, _ := op.entity.Get(f.Name)
			sets[i] = search.QuoteIdentifier(f.Name) + " = ?"
			args = append(args, columnValue(f, v))
		}
		args = append(args, op.entity.ID)
		query = fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			search.QuoteIdentifier(table), strings.Join(sets, ", "), search.QuoteIdentifier(core.IdentifierField))

	case opDelete:
		args = []any{op.entity.ID}
		query = fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
			search.QuoteIdentifier(table), search.QuoteIdentifier(core.IdentifierField))
	}

	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fault(op.kind.String()+" "+table, err)
	}
	if op.kind != opInsert {
		n, err := res.RowsAffected()
		if err != nil {
			return fault(op.kind.String()+" "+table, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s %s", core.ErrNotFound, op.desc.Key(), op.entity.ID)
		}
	}
	s.logger.Debugw("flushed entity", "op", op.kind.String(), "entity", op.desc.Key(), "id", op.entity.ID)
	return nil
}

func (s *sqliteSession) query(ctx context.Context, desc *metadata.EntityDescriptor, query string, args []any) ([]*core.Entity, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fault("query "+desc.TableName(), err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fault("query "+desc.TableName(), err)
	}

	entities := []*core.Entity{}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fault("scan "+desc.TableName(), err)
		}

		e := core.NewEntity(desc.Key())
		for i, col := range cols {
			if col == core.IdentifierField {
				e.ID = cast.ToString(raw[i])
				continue
			}
			f, ok := desc.Field(col)
			if !ok {
				// column left over from an older descriptor
				continue
			}
			v, err := decodeValue(desc, f, raw[i])
			if err != nil {
				return nil, fault("decode "+desc.TableName(), err)
			}
			e.Set(f.Name, v)
		}
		e.MarkClean()
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fault("query "+desc.TableName(), err)
	}
	return entities, nil
}

func sqlValuer(desc *metadata.EntityDescriptor) search.SQLValuer {
	return func(field string, v any) any {
		f, ok := desc.Field(field)
		if !ok {
			return v
		}
		return columnValue(f, v)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// sqliteTx is a sqliteSession bound to a write transaction
type sqliteTx struct {
	sqliteSession
	tx   *sql.Tx
	done bool
}

// Commit flushes any queued work and commits
func (t *sqliteTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	if err := t.Flush(ctx); err != nil {
		return err
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		t.uow.discard()
		return fault("commit", err)
	}
	t.uow.settle()
	return nil
}

// Rollback discards the transaction and any queued work
func (t *sqliteTx) Rollback(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.uow.discard()
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fault("rollback", err)
	}
	return nil
}
