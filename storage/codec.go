package storage

import (
	"fmt"
	"time"

	"entitysvc/core"
	"entitysvc/metadata"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TimeLayout is the fixed-width UTC layout datetimes are stored with in
// SQLite, so that text ordering matches time ordering
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// referenceID reduces a relation value to the stored identifier
func referenceID(v any) any {
	switch r := v.(type) {
	case core.Reference:
		return r.ID
	case *core.Reference:
		return r.ID
	case *core.Entity:
		return r.ID
	default:
		return v
	}
}

// columnValue converts an entity value into its SQLite column representation
func columnValue(f metadata.FieldDescriptor, v any) any {
	if v == nil {
		return nil
	}
	if f.IsRelation() {
		return referenceID(v)
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(TimeLayout)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}

// documentValue converts an entity value into its MongoDB representation
func documentValue(f metadata.FieldDescriptor, v any) any {
	if v == nil {
		return nil
	}
	if f.IsRelation() {
		return referenceID(v)
	}
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}

// decodeValue converts a stored value back into the entity representation
// of a field's declared type
func decodeValue(desc *metadata.EntityDescriptor, f metadata.FieldDescriptor, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}

	if f.IsRelation() {
		id, err := cast.ToStringE(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.Name, err)
		}
		return core.Reference{Type: desc.RelatedKey(f), ID: id}, nil
	}

	var (
		out any
		err error
	)
	switch f.Type {
	case metadata.TypeString:
		out, err = cast.ToStringE(raw)
	case metadata.TypeInteger:
		out, err = cast.ToInt64E(raw)
	case metadata.TypeFloat:
		out, err = cast.ToFloat64E(raw)
	case metadata.TypeBoolean:
		out, err = cast.ToBoolE(raw)
	case metadata.TypeDateTime:
		out, err = decodeTime(raw)
	default:
		err = fmt.Errorf("unsupported type %q", f.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Name, err)
	}
	return out, nil
}

func decodeTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case primitive.DateTime:
		return v.Time().UTC(), nil
	case string:
		if t, err := time.Parse(TimeLayout, v); err == nil {
			return t.UTC(), nil
		}
	}
	t, err := cast.ToTimeE(raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
