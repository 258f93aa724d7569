package storage

import (
	"context"
	"path/filepath"
	"testing"

	"entitysvc/core"
	"entitysvc/metadata"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func countryDescriptor() *metadata.EntityDescriptor {
	return &metadata.EntityDescriptor{
		Name:    "country",
		Service: "testcenter",
		Fields: []metadata.FieldDescriptor{
			{Name: "code", Type: metadata.TypeString, Unique: true, Required: true},
			{Name: "name", Type: metadata.TypeString},
		},
	}
}

func userDescriptor() *metadata.EntityDescriptor {
	return &metadata.EntityDescriptor{
		Name:    "user",
		Service: "testcenter",
		Table:   "users",
		Fields: []metadata.FieldDescriptor{
			{Name: "name", Type: metadata.TypeString, Unique: true},
			{Name: "age", Type: metadata.TypeInteger},
			{Name: "score", Type: metadata.TypeFloat},
			{Name: "active", Type: metadata.TypeBoolean},
			{Name: "joined_at", Type: metadata.TypeDateTime},
			{Name: "country", Kind: metadata.KindRelation, RelatedType: "country"},
		},
	}
}

// setupTestSQLite creates a temp-dir database with the test schema applied
func setupTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	sqlite, err := NewSQLite(dbPath, zap.NewNop().Sugar())
	require.NoError(t, err, "Failed to create SQLite database")
	t.Cleanup(func() { _ = sqlite.Close() })

	err = sqlite.EnsureSchema(context.Background(), []*metadata.EntityDescriptor{countryDescriptor(), userDescriptor()})
	require.NoError(t, err, "Failed to create schema")
	return sqlite
}

// insertEntity persists e in its own committed transaction
func insertEntity(t *testing.T, engine Engine, desc *metadata.EntityDescriptor, e *core.Entity) {
	t.Helper()
	ctx := context.Background()
	tx, err := engine.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Persist(desc, e))
	require.NoError(t, tx.Flush(ctx))
	require.NoError(t, tx.Commit(ctx))
}

func newCountry(code, name string) *core.Entity {
	e := core.NewEntity(countryDescriptor().Key())
	e.Set("code", code)
	e.Set("name", name)
	return e
}

func newUser(name string, age int64, country *core.Entity) *core.Entity {
	e := core.NewEntity(userDescriptor().Key())
	e.Set("name", name)
	e.Set("age", age)
	if country != nil {
		e.Set("country", country.Ref())
	}
	return e
}
