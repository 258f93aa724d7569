package core

import (
	"fmt"
	"strings"
)

// FilterOperator names a boolean combinator or a comparison
type FilterOperator string

const (
	OpAnd FilterOperator = "AND"
	OpOr  FilterOperator = "OR"

	OpEq   FilterOperator = "EQ"
	OpNe   FilterOperator = "NE"
	OpLt   FilterOperator = "LT"
	OpGt   FilterOperator = "GT"
	OpLe   FilterOperator = "LE"
	OpGe   FilterOperator = "GE"
	OpLike FilterOperator = "LIKE"
)

// Normalize upper-cases the operator name
func (o FilterOperator) Normalize() FilterOperator {
	return FilterOperator(strings.ToUpper(strings.TrimSpace(string(o))))
}

// IsComposite reports whether the operator combines children
func (o FilterOperator) IsComposite() bool {
	switch o.Normalize() {
	case OpAnd, OpOr:
		return true
	default:
		return false
	}
}

// IsComparison reports whether the operator is a known comparison
func (o FilterOperator) IsComparison() bool {
	switch o.Normalize() {
	case OpEq, OpNe, OpLt, OpGt, OpLe, OpGe, OpLike:
		return true
	default:
		return false
	}
}

// FilterExpr is one node of a filter expression tree. A composite node sets
// Operator to AND/OR and carries Children; a comparison node sets Field,
// Operator and Value.
type FilterExpr struct {
	Operator FilterOperator `json:"operator" mapstructure:"operator"`
	Field    string         `json:"field,omitempty" mapstructure:"field"`
	Value    any            `json:"value,omitempty" mapstructure:"value"`
	Children []FilterExpr   `json:"children,omitempty" mapstructure:"children"`
}

// And builds a composite AND node
func And(children ...FilterExpr) FilterExpr {
	return FilterExpr{Operator: OpAnd, Children: children}
}

// Or builds a composite OR node
func Or(children ...FilterExpr) FilterExpr {
	return FilterExpr{Operator: OpOr, Children: children}
}

// Compare builds a comparison node
func Compare(field string, op FilterOperator, value any) FilterExpr {
	return FilterExpr{Field: field, Operator: op, Value: value}
}

// IsComposite reports whether the node is an AND/OR node
func (f FilterExpr) IsComposite() bool {
	return f.Operator.IsComposite()
}

// StripQualifier removes an optional "entityname." prefix, cutting at the
// first period only
func StripQualifier(field string) string {
	if i := strings.IndexByte(field, '.'); i >= 0 {
		return field[i+1:]
	}
	return field
}

// String renders the expression in the textual filter syntax
func (f FilterExpr) String() string {
	if f.IsComposite() {
		parts := make([]string, len(f.Children))
		for i, c := range f.Children {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, " "+strings.ToLower(string(f.Operator.Normalize()))+" ") + ")"
	}
	return fmt.Sprintf("%s %s %#v", f.Field, f.Operator.Normalize(), f.Value)
}
