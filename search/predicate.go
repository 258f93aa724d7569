package search

import (
	"fmt"
	"strings"

	"entitysvc/core"
)

// Predicate is a compiled, engine-neutral filter. It is either a Comparison
// leaf or a Junction of child predicates.
type Predicate interface {
	predicate()
	String() string
}

// Comparison is a leaf predicate: Field Op Value. Field is already unqualified
// and Value already coerced to the field's declared type.
type Comparison struct {
	Field string
	Op    core.FilterOperator
	Value any
}

func (Comparison) predicate() {}

// String renders the comparison for logs and debugging
func (c Comparison) String() string {
	return fmt.Sprintf("%s %s %#v", c.Field, c.Op, c.Value)
}

// Junction combines two or more predicates with AND or OR, in order
type Junction struct {
	Op       core.FilterOperator
	Children []Predicate
}

func (Junction) predicate() {}

// String renders the junction for logs and debugging
func (j Junction) String() string {
	parts := make([]string, len(j.Children))
	for i, c := range j.Children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " "+string(j.Op)+" ") + ")"
}

// Combine joins children with a boolean operator, preserving their order. A
// single child is returned unchanged rather than wrapped.
func Combine(op core.FilterOperator, children []Predicate) (Predicate, error) {
	op = op.Normalize()
	if !op.IsComposite() {
		return nil, fmt.Errorf("%w: %q cannot combine predicates", core.ErrInvalidFilterOperator, op)
	}
	switch len(children) {
	case 0:
		return nil, fmt.Errorf("%w: %s needs at least one child", core.ErrInvalidParameter, op)
	case 1:
		return children[0], nil
	default:
		return Junction{Op: op, Children: append([]Predicate(nil), children...)}, nil
	}
}
