package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"entitysvc/core"

	"github.com/spf13/cast"
)

// Coerce converts a raw value to the Go type matching a field's declared type.
// nil passes through as nil. Relation values (Reference, *Entity, string or
// integer id) are reduced to the referenced id.
func Coerce(f FieldDescriptor, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	f = f.normalized()

	if f.Kind == KindRelation {
		id, err := referenceID(value)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", core.ErrInvalidValue, f.Name, err)
		}
		return id, nil
	}

	var (
		out any
		err error
	)
	switch f.Type {
	case TypeString:
		out, err = cast.ToStringE(value)
	case TypeInteger:
		out, err = toInt64(value)
	case TypeFloat:
		out, err = cast.ToFloat64E(value)
	case TypeBoolean:
		out, err = cast.ToBoolE(value)
	case TypeDateTime:
		var t time.Time
		t, err = cast.ToTimeE(value)
		out = t.UTC()
	default:
		err = fmt.Errorf("unsupported type %q", f.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: field %s expects %s: %v", core.ErrInvalidValue, f.Name, f.Type, err)
	}
	return out, nil
}

// toInt64 parses strings in base 10 and rejects fractional values
func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("%v is not integral", v)
		}
		return int64(v), nil
	case float32:
		if v != float32(int64(v)) {
			return 0, fmt.Errorf("%v is not integral", v)
		}
		return int64(v), nil
	default:
		return cast.ToInt64E(value)
	}
}

func referenceID(value any) (string, error) {
	switch v := value.(type) {
	case core.Reference:
		return v.ID, nil
	case *core.Reference:
		return v.ID, nil
	case *core.Entity:
		if v.Transient() {
			return "", fmt.Errorf("referenced %s entity has not been persisted", v.Type)
		}
		return v.ID, nil
	case string:
		return strings.TrimSpace(v), nil
	case int, int32, int64, float64:
		n, err := toInt64(v)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	default:
		return "", fmt.Errorf("cannot use %T as a reference", value)
	}
}
