package search

import (
	"fmt"

	"entitysvc/core"
	"entitysvc/metadata"
)

// Query is an engine-neutral query over one entity type
type Query struct {
	Entity    *metadata.EntityDescriptor
	Where     Predicate
	Sort      SortSpec
	Limit     int
	CountOnly bool
}

// NewQuery creates a base query over every row of an entity type
func NewQuery(entity *metadata.EntityDescriptor) *Query {
	return &Query{Entity: entity}
}

// Filter attaches a predicate. A nil predicate leaves the query unfiltered.
func (q *Query) Filter(p Predicate) *Query {
	q.Where = p
	return q
}

// OrderBy sets the ordering terms
func (q *Query) OrderBy(spec SortSpec) *Query {
	q.Sort = spec
	return q
}

// SetLimit caps the number of rows. Zero or less means no cap.
func (q *Query) SetLimit(n int) *Query {
	if n < 0 {
		n = 0
	}
	q.Limit = n
	return q
}

// Count projects a row count; ordering and limit are ignored
func (q *Query) Count() *Query {
	q.CountOnly = true
	return q
}

// Validate checks every sort field against the entity descriptor
func (q *Query) Validate() error {
	if q.Entity == nil {
		return fmt.Errorf("%w: query has no entity type", core.ErrInvalidParameter)
	}
	if q.CountOnly {
		return nil
	}
	for _, key := range q.Sort {
		if _, ok := q.Entity.Field(key.Field); !ok {
			return fmt.Errorf("%w: cannot sort %s by %q", core.ErrUnknownField, q.Entity.Key(), key.Field)
		}
	}
	return nil
}

// BuildSQL renders the query as a parameterised SQLite statement
func (q *Query) BuildSQL(valuer SQLValuer) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	where, params, err := RenderSQL(q.Where, valuer)
	if err != nil {
		return "", nil, err
	}

	b := NewSQLBuilder().From(q.Entity.TableName()).Where(where, params...)
	if q.CountOnly {
		b.Count()
	} else {
		for _, key := range q.Sort {
			b.OrderBy(key.Field, key.Direction)
		}
		if q.Limit > 0 {
			b.Limit(q.Limit)
		}
	}
	query, args := b.Build()
	return query, args, nil
}
