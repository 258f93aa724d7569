package search

import (
	"fmt"
	"strings"

	"entitysvc/core"
	"entitysvc/metadata"
)

// Compiler turns filter expressions into predicates for one entity type.
// Fields are always re-qualified against that single entity, so any
// "entity." prefix in the expression is dropped.
type Compiler struct {
	desc *metadata.EntityDescriptor
}

// NewCompiler creates a compiler bound to an entity descriptor. A nil
// descriptor compiles without field validation or value coercion.
func NewCompiler(desc *metadata.EntityDescriptor) *Compiler {
	return &Compiler{desc: desc}
}

// Compile translates an expression tree. Compilation aborts on the first
// invalid node; no partial predicate is ever returned.
func (c *Compiler) Compile(expr core.FilterExpr) (Predicate, error) {
	op := expr.Operator.Normalize()

	if op.IsComposite() || len(expr.Children) > 0 {
		return c.compileComposite(op, expr.Children)
	}
	return c.compileComparison(op, expr)
}

func (c *Compiler) compileComposite(op core.FilterOperator, children []core.FilterExpr) (Predicate, error) {
	if !op.IsComposite() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFilterOperator, op)
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: %s filter has no children", core.ErrInvalidParameter, op)
	}

	compiled := make([]Predicate, 0, len(children))
	for _, child := range children {
		p, err := c.Compile(child)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, p)
	}
	return Combine(op, compiled)
}

func (c *Compiler) compileComparison(op core.FilterOperator, expr core.FilterExpr) (Predicate, error) {
	if !op.IsComparison() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFilterOperator, expr.Operator)
	}

	field := core.StripQualifier(strings.TrimSpace(expr.Field))
	if field == "" {
		return nil, fmt.Errorf("%w: filter comparison has no field", core.ErrInvalidParameter)
	}

	value := expr.Value
	if c.desc != nil {
		fd, ok := c.desc.Field(field)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no field %q", core.ErrUnknownField, c.desc.Key(), field)
		}
		var err error
		if op == core.OpLike {
			// LIKE compares text; the pattern is bound as-is
			if value != nil {
				value = fmt.Sprint(value)
			}
		} else if value, err = metadata.Coerce(fd, value); err != nil {
			return nil, err
		}
	}

	return Comparison{Field: field, Op: op, Value: value}, nil
}
