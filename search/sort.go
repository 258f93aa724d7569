package search

import (
	"math"
	"strings"

	"entitysvc/core"

	"github.com/spf13/cast"
)

// Direction is a sort direction
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// SortKey is one ordering term
type SortKey struct {
	Field     string
	Direction Direction
}

// SortSpec is an ordered list of sort keys
type SortSpec []SortKey

// Has reports whether the spec already orders by field
func (s SortSpec) Has(field string) bool {
	for _, k := range s {
		if k.Field == field {
			return true
		}
	}
	return false
}

// String renders the spec back in "__sort" syntax
func (s SortSpec) String() string {
	parts := make([]string, len(s))
	for i, k := range s {
		if k.Direction == Desc {
			parts[i] = "!" + k.Field
		} else {
			parts[i] = k.Field
		}
	}
	return strings.Join(parts, ";")
}

// ExtractSort parses a "__sort" value such as "!age;name". Fields are
// separated by ';', a leading '!' means descending, and any "entity." prefix
// is dropped. A repeated field keeps its first position and takes the later
// direction. The identifier is always appended ascending as a final
// tie-breaker unless it was named explicitly.
func ExtractSort(raw string) SortSpec {
	spec := SortSpec{}
	index := map[string]int{}

	for _, token := range strings.Split(raw, ";") {
		token = strings.TrimSpace(token)
		dir := Asc
		if strings.HasPrefix(token, "!") {
			dir = Desc
			token = strings.TrimSpace(token[1:])
		}
		field := core.StripQualifier(token)
		if field == "" {
			continue
		}
		if i, ok := index[field]; ok {
			spec[i].Direction = dir
			continue
		}
		index[field] = len(spec)
		spec = append(spec, SortKey{Field: field, Direction: dir})
	}

	if !spec.Has(core.IdentifierField) {
		spec = append(spec, SortKey{Field: core.IdentifierField, Direction: Asc})
	}
	return spec
}

// ExtractLimit reads a "__limit" value given as a number or a numeric
// string. Anything that is not a positive whole number means no limit and
// yields 0.
func ExtractLimit(raw any) int {
	var (
		f   float64
		err error
	)
	switch v := raw.(type) {
	case nil, bool:
		return 0
	case string:
		f, err = cast.ToFloat64E(strings.TrimSpace(v))
	default:
		f, err = cast.ToFloat64E(v)
	}
	if err != nil || f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

// Extract reads the sort specification and limit from invocation parameters
func Extract(p core.Parameters) (SortSpec, int) {
	raw := ""
	if p.Sort != nil {
		raw = *p.Sort
	}
	return ExtractSort(raw), ExtractLimit(p.Limit)
}
