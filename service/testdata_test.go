package service

import (
	"context"
	"path/filepath"
	"testing"

	"entitysvc/binder"
	"entitysvc/core"
	"entitysvc/metadata"
	"entitysvc/storage"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	countryKey = "country:testcenter"
	userKey    = "user:testcenter"
)

func testDescriptors() []*metadata.EntityDescriptor {
	return []*metadata.EntityDescriptor{
		{
			Name:    "country",
			Service: "testcenter",
			Fields: []metadata.FieldDescriptor{
				{Name: "code", Type: metadata.TypeString, Unique: true, Required: true},
				{Name: "name", Type: metadata.TypeString},
			},
		},
		{
			Name:    "user",
			Service: "testcenter",
			Table:   "users",
			Fields: []metadata.FieldDescriptor{
				{Name: "name", Type: metadata.TypeString, Unique: true, Required: true},
				{Name: "status", Type: metadata.TypeString},
				{Name: "age", Type: metadata.TypeInteger},
				{Name: "country", Kind: metadata.KindRelation, RelatedType: "country"},
			},
		},
	}
}

// spyEngine counts transaction outcomes on top of a real engine
type spyEngine struct {
	storage.Engine
	begun      int
	commits    int
	rollbacks  int
	panicOnAdd bool
}

func (s *spyEngine) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.Engine.Begin(ctx)
	if err != nil {
		return nil, err
	}
	s.begun++
	return &spyTx{Tx: tx, engine: s}, nil
}

type spyTx struct {
	storage.Tx
	engine *spyEngine
}

func (t *spyTx) Persist(desc *metadata.EntityDescriptor, e *core.Entity) error {
	if t.engine.panicOnAdd {
		panic("persist exploded")
	}
	return t.Tx.Persist(desc, e)
}

func (t *spyTx) Commit(ctx context.Context) error {
	err := t.Tx.Commit(ctx)
	if err == nil {
		t.engine.commits++
	}
	return err
}

func (t *spyTx) Rollback(ctx context.Context) error {
	t.engine.rollbacks++
	return t.Tx.Rollback(ctx)
}

type fixture struct {
	engine   *spyEngine
	registry *Registry
	users    *Dispatcher
	country  *Dispatcher
}

func setupFixture(t *testing.T, strict bool) *fixture {
	return setupFixtureWithTracer(t, strict, nil)
}

// setupFixtureWithTracer wires dispatchers over a temp-dir SQLite database
func setupFixtureWithTracer(t *testing.T, strict bool, tracer trace.Tracer) *fixture {
	t.Helper()
	logger := zap.NewNop().Sugar()

	sqlite, err := storage.NewSQLite(filepath.Join(t.TempDir(), "service.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	descs := testDescriptors()
	require.NoError(t, sqlite.EnsureSchema(context.Background(), descs))

	provider, err := metadata.NewRegistry(descs...)
	require.NoError(t, err)

	engine := &spyEngine{Engine: sqlite}
	registry := BuildRegistry(provider.All(), engine, binder.New(provider, strict, logger), logger, tracer)

	users, err := registry.Get(userKey)
	require.NoError(t, err)
	country, err := registry.Get(countryKey)
	require.NoError(t, err)

	return &fixture{engine: engine, registry: registry, users: users, country: country}
}

func (f *fixture) createCountry(t *testing.T, code string) *core.Entity {
	t.Helper()
	out, err := f.country.Execute(context.Background(), core.ActionCreate, map[string]any{"code": code, "name": code})
	require.NoError(t, err)
	return out.Entity
}

func (f *fixture) createUser(t *testing.T, fields map[string]any) *core.Entity {
	t.Helper()
	out, err := f.users.Execute(context.Background(), core.ActionCreate, fields)
	require.NoError(t, err)
	require.NotNil(t, out.Entity)
	return out.Entity
}

func (f *fixture) count(t *testing.T, d *Dispatcher) int64 {
	t.Helper()
	out, err := d.Execute(context.Background(), core.ActionCount, nil)
	require.NoError(t, err)
	return out.Count
}

func names(entities []*core.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		v, _ := e.Get("name")
		out[i], _ = v.(string)
	}
	return out
}
