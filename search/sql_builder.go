package search

import (
	"fmt"
	"strings"
)

// SQLBuilder is a fluent SQL builder for SQLite SELECT statements.
// SECURITY: values are always bound as parameters; identifiers are quoted.
type SQLBuilder struct {
	selectFields []string
	countOnly    bool
	fromTable    string
	whereClauses []string
	params       []interface{}
	limitVal     *int
	offsetVal    *int
	orderBy      []string
}

// NewSQLBuilder creates a new SQL builder
func NewSQLBuilder() *SQLBuilder {
	return &SQLBuilder{
		selectFields: []string{},
		whereClauses: []string{},
		params:       []interface{}{},
		orderBy:      []string{},
	}
}

// Select adds SELECT columns to the query
func (b *SQLBuilder) Select(fields ...string) *SQLBuilder {
	b.selectFields = append(b.selectFields, fields...)
	return b
}

// Count switches the projection to COUNT(*)
func (b *SQLBuilder) Count() *SQLBuilder {
	b.countOnly = true
	return b
}

// From sets the FROM table
func (b *SQLBuilder) From(table string) *SQLBuilder {
	b.fromTable = table
	return b
}

// Where adds a WHERE condition with parameterized values.
// SECURITY: All user input must be passed as parameters, not in condition string
func (b *SQLBuilder) Where(condition string, params ...interface{}) *SQLBuilder {
	if condition == "" {
		return b
	}
	b.whereClauses = append(b.whereClauses, condition)
	b.params = append(b.params, params...)
	return b
}

// Limit sets the LIMIT clause
func (b *SQLBuilder) Limit(n int) *SQLBuilder {
	b.limitVal = &n
	return b
}

// Offset sets the OFFSET clause
func (b *SQLBuilder) Offset(n int) *SQLBuilder {
	b.offsetVal = &n
	return b
}

// OrderBy adds an ORDER BY term
func (b *SQLBuilder) OrderBy(field string, direction Direction) *SQLBuilder {
	if direction == "" {
		direction = Asc
	}
	b.orderBy = append(b.orderBy, fmt.Sprintf("%s %s", QuoteIdentifier(field), strings.ToUpper(string(direction))))
	return b
}

// Build constructs the final SQL string and returns it with its parameters
func (b *SQLBuilder) Build() (string, []interface{}) {
	var query strings.Builder

	switch {
	case b.countOnly:
		query.WriteString("SELECT COUNT(*)")
	case len(b.selectFields) == 0:
		query.WriteString("SELECT *")
	default:
		quoted := make([]string, len(b.selectFields))
		for i, field := range b.selectFields {
			quoted[i] = QuoteIdentifier(field)
		}
		query.WriteString("SELECT ")
		query.WriteString(strings.Join(quoted, ", "))
	}

	if b.fromTable != "" {
		query.WriteString(" FROM ")
		query.WriteString(QuoteIdentifier(b.fromTable))
	}

	if len(b.whereClauses) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(b.whereClauses, " AND "))
	}

	// ordering and paging are meaningless for a count
	if !b.countOnly {
		if len(b.orderBy) > 0 {
			query.WriteString(" ORDER BY ")
			query.WriteString(strings.Join(b.orderBy, ", "))
		}
		if b.limitVal != nil {
			fmt.Fprintf(&query, " LIMIT %d", *b.limitVal)
		}
		if b.offsetVal != nil {
			if b.limitVal == nil {
				// SQLite only accepts OFFSET after a LIMIT
				query.WriteString(" LIMIT -1")
			}
			fmt.Fprintf(&query, " OFFSET %d", *b.offsetVal)
		}
	}

	return query.String(), b.params
}

// Reset clears the builder state for reuse
func (b *SQLBuilder) Reset() *SQLBuilder {
	b.selectFields = []string{}
	b.countOnly = false
	b.fromTable = ""
	b.whereClauses = []string{}
	b.params = []interface{}{}
	b.limitVal = nil
	b.offsetVal = nil
	b.orderBy = []string{}
	return b
}

// QuoteIdentifier wraps an identifier in double quotes, doubling any embedded
// quote. "*" passes through unchanged.
func QuoteIdentifier(identifier string) string {
	if identifier == "*" {
		return identifier
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
