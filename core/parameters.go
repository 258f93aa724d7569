package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Reserved parameter keys
const (
	KeyID     = "id"
	KeyName   = "name"
	KeyEntity = "entity"
	KeyFilter = "__filter"
	KeySort   = "__sort"
	KeyLimit  = "__limit"
)

// Parameters is the typed view over one invocation's raw parameter mapping.
// Control keys are lifted into explicit optional fields; everything else is a
// candidate field assignment in Fields. name is both the Read lookup key and an
// ordinary field, so it is kept in Fields as well; Name is set only for a
// non-empty string.
type Parameters struct {
	ID     *string
	Name   *string
	Entity *Entity
	Filter any
	Sort   *string
	Limit  any
	Fields map[string]any

	empty bool
}

// ParseParameters splits a raw mapping into control keys and field assignments
func ParseParameters(raw map[string]any) (Parameters, error) {
	p := Parameters{
		Fields: make(map[string]any, len(raw)),
		empty:  len(raw) == 0,
	}

	for key, value := range raw {
		switch key {
		case KeyID:
			if value == nil {
				continue
			}
			id, err := identifierString(value)
			if err != nil {
				return Parameters{}, err
			}
			if id != "" {
				p.ID = &id
			}
		case KeyEntity:
			if value == nil {
				continue
			}
			entity, ok := value.(*Entity)
			if !ok {
				return Parameters{}, fmt.Errorf("%w: %s must be a loaded entity, got %T", ErrInvalidParameter, KeyEntity, value)
			}
			p.Entity = entity
		case KeyFilter:
			p.Filter = value
		case KeySort:
			if value == nil {
				continue
			}
			s, ok := value.(string)
			if !ok {
				return Parameters{}, fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidParameter, KeySort, value)
			}
			p.Sort = &s
		case KeyLimit:
			p.Limit = value
		case KeyName:
			if s, ok := value.(string); ok && s != "" {
				p.Name = &s
			}
			p.Fields[key] = value
		default:
			p.Fields[key] = value
		}
	}

	return p, nil
}

// Empty reports whether the raw mapping had no keys at all
func (p Parameters) Empty() bool {
	return p.empty
}

// identifierString renders an id parameter. Integers are accepted because
// transports commonly decode numeric ids as numbers. A blank string counts as absent.
func identifierString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if v != float64(int64(v)) {
			return "", fmt.Errorf("%w: %s must be integral, got %v", ErrInvalidParameter, KeyID, v)
		}
		return strconv.FormatInt(int64(v), 10), nil
	default:
		return "", fmt.Errorf("%w: unsupported %s type %T", ErrInvalidParameter, KeyID, value)
	}
}
