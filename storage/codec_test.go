package storage

import (
	"testing"
	"time"

	"entitysvc/core"
	"entitysvc/metadata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestColumnValue(t *testing.T) {
	desc := userDescriptor()
	field := func(name string) metadata.FieldDescriptor {
		f, ok := desc.Field(name)
		require.True(t, ok)
		return f
	}
	ts := time.Date(2024, 3, 1, 12, 0, 0, 5, time.FixedZone("x", 3600))

	assert.Nil(t, columnValue(field("name"), nil))
	assert.Equal(t, "x", columnValue(field("name"), "x"))
	assert.Equal(t, int64(1), columnValue(field("active"), true))
	assert.Equal(t, int64(0), columnValue(field("active"), false))
	assert.Equal(t, "2024-03-01T11:00:00.000000005Z", columnValue(field("joined_at"), ts))
	assert.Equal(t, "pt", columnValue(field("country"), core.Reference{Type: "country:testcenter", ID: "pt"}))
	assert.Equal(t, "pt", columnValue(field("country"), "pt"))

	assert.Equal(t, ts.UTC(), documentValue(field("joined_at"), ts))
	assert.Equal(t, "pt", documentValue(field("country"), &core.Reference{ID: "pt"}))
}

func TestDecodeValue(t *testing.T) {
	desc := userDescriptor()
	field := func(name string) metadata.FieldDescriptor {
		f, _ := desc.Field(name)
		return f
	}
	ts := time.Date(2024, 3, 1, 11, 0, 0, 5, time.UTC)

	tests := []struct {
		name     string
		field    string
		raw      any
		expected any
	}{
		{"null", "name", nil, nil},
		{"bytes", "name", []byte("x"), "x"},
		{"int32", "age", int32(7), int64(7)},
		{"bool from int", "active", int64(1), true},
		{"float", "score", 1.5, 1.5},
		{"time text", "joined_at", "2024-03-01T11:00:00.000000005Z", ts},
		{"bson datetime", "joined_at", primitive.NewDateTimeFromTime(ts.Truncate(time.Millisecond)), ts.Truncate(time.Millisecond)},
		{"relation", "country", "pt", core.Reference{Type: "country:testcenter", ID: "pt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := decodeValue(desc, field(tt.field), tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}

	_, err := decodeValue(desc, field("age"), "seven")
	assert.Error(t, err)
}

func TestFault(t *testing.T) {
	assert.Nil(t, fault("x", nil))

	err := fault("insert users", assert.AnError)
	assert.ErrorIs(t, err, core.ErrPersistence)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, ErrConstraintViolation)

	notFound := fault("find", core.ErrNotFound)
	assert.Equal(t, core.ErrNotFound, notFound, "Not found passes through unchanged")
}
