package search

import (
	"fmt"
	"strings"

	"entitysvc/core"
)

var sqlOperators = map[core.FilterOperator]string{
	core.OpEq:   "=",
	core.OpNe:   "<>",
	core.OpLt:   "<",
	core.OpGt:   ">",
	core.OpLe:   "<=",
	core.OpGe:   ">=",
	core.OpLike: "LIKE",
}

// SQLValuer converts a bound value into the representation a SQL driver
// stores. A nil SQLValuer binds values unchanged.
type SQLValuer func(field string, value any) any

// RenderSQL renders a predicate as a WHERE fragment with positional "?"
// parameters, in left-to-right order. A nil predicate renders as "".
func RenderSQL(p Predicate, valuer SQLValuer) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	var (
		sb     strings.Builder
		params []any
	)
	if err := renderSQL(&sb, &params, p, valuer); err != nil {
		return "", nil, err
	}
	return sb.String(), params, nil
}

func renderSQL(sb *strings.Builder, params *[]any, p Predicate, valuer SQLValuer) error {
	switch n := p.(type) {
	case Comparison:
		col := QuoteIdentifier(n.Field)
		if n.Value == nil {
			switch n.Op {
			case core.OpEq:
				sb.WriteString(col + " IS NULL")
				return nil
			case core.OpNe:
				sb.WriteString(col + " IS NOT NULL")
				return nil
			}
		}
		op, ok := sqlOperators[n.Op]
		if !ok {
			return fmt.Errorf("%w: %q", core.ErrInvalidFilterOperator, n.Op)
		}
		value := n.Value
		if valuer != nil {
			value = valuer(n.Field, value)
		}
		fmt.Fprintf(sb, "%s %s ?", col, op)
		*params = append(*params, value)
		return nil

	case Junction:
		sb.WriteString("(")
		for i, child := range n.Children {
			if i > 0 {
				sb.WriteString(" " + string(n.Op) + " ")
			}
			if err := renderSQL(sb, params, child, valuer); err != nil {
				return err
			}
		}
		sb.WriteString(")")
		return nil

	default:
		return fmt.Errorf("%w: unsupported predicate %T", core.ErrInvalidParameter, p)
	}
}
