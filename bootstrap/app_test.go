package bootstrap

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"entitysvc/config"
	"entitysvc/core"
	"entitysvc/metadata"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const entitiesYAML = `
service: testcenter
entities:
  - name: country
    fields:
      - name: code
        type: string
        unique: true
        required: true
  - name: user
    table: users
    fields:
      - name: name
        type: string
        unique: true
      - name: age
        type: integer
      - name: country
        kind: relation
        related_type: country
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	metaFile := filepath.Join(dir, "entities.yaml")
	require.NoError(t, os.WriteFile(metaFile, []byte(entitiesYAML), 0o644))

	cfg := &config.Config{}
	cfg.Storage.Driver = config.DriverSQLite
	cfg.DataPaths.DataDir = dir
	cfg.DataPaths.SQLitePath = filepath.Join(dir, "db", "entitysvc.db")
	cfg.Metadata.File = metaFile
	cfg.Metadata.CacheSize = 8
	cfg.Binder.Strict = true
	cfg.Logging.Level = "info"
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	logger := zap.NewNop()
	app, err := NewAppWithConfig(context.Background(), cfg, logger, logger.Sugar())
	require.NoError(t, err)
	t.Cleanup(app.Shutdown)
	require.NoError(t, app.EnsureSchema(context.Background()))
	return app
}

func TestNewAppWithConfig_SQLite(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	ctx := context.Background()

	assert.Equal(t, []string{"country:testcenter", "user:testcenter"}, app.Registry.Keys())
	assert.Nil(t, app.Metadata.Redis)
	assert.True(t, app.Binder.Strict())
	require.NoError(t, app.Engine.HealthCheck(ctx))

	pt, err := app.Registry.Execute(ctx, "country:testcenter", core.ActionCreate, map[string]any{"code": "PT"})
	require.NoError(t, err)
	_, err = app.Registry.Execute(ctx, "user:testcenter", core.ActionCreate, map[string]any{"name": "ana", "country": pt.Entity.ID})
	require.NoError(t, err)

	out, err := app.Registry.Execute(ctx, "user:testcenter", core.ActionCount, map[string]any{"__filter": "country = '" + pt.Entity.ID + "'"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Count)
}

func TestNewAppWithConfig_RedisMetadata(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Metadata.Redis.Enabled = true
	cfg.Metadata.Redis.Addr = mr.Addr()
	cfg.Metadata.Redis.PoolSize = 2
	cfg.Metadata.Redis.KeyPrefix = "test:meta"

	app := newTestApp(t, cfg)
	ctx := context.Background()

	require.NotNil(t, app.Metadata.Redis)
	assert.IsType(t, &metadata.CachedProvider{}, app.Metadata.Provider)
	assert.True(t, mr.Exists("test:meta:user:testcenter"), "descriptors are published to redis")

	// relation targets resolve through the redis-backed provider
	pt, err := app.Registry.Execute(ctx, "country:testcenter", core.ActionCreate, map[string]any{"code": "PT"})
	require.NoError(t, err)
	_, err = app.Registry.Execute(ctx, "user:testcenter", core.ActionCreate, map[string]any{"name": "ana", "country": pt.Entity.ID})
	require.NoError(t, err)
}

func TestNewAppWithConfig_Errors(t *testing.T) {
	logger := zap.NewNop()

	t.Run("missing metadata file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Metadata.File = filepath.Join(t.TempDir(), "missing.yaml")
		_, err := NewAppWithConfig(context.Background(), cfg, logger, logger.Sugar())
		assert.Error(t, err)
	})

	t.Run("redis unavailable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		cfg := testConfig(t)
		cfg.Metadata.Redis.Enabled = true
		cfg.Metadata.Redis.Addr = addr
		_, err := NewAppWithConfig(context.Background(), cfg, logger, logger.Sugar())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "metadata redis unavailable")
	})

	t.Run("unsupported driver", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Storage.Driver = "postgres"
		_, err := NewAppWithConfig(context.Background(), cfg, logger, logger.Sugar())
		assert.Error(t, err)
	})
}

func TestInitLogger(t *testing.T) {
	var buf bytes.Buffer
	_, sugar, err := InitLogger("warn", &buf)
	require.NoError(t, err)

	sugar.Info("hidden")
	sugar.Warnw("shown", "key", "value")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	_, _, err = InitLogger("loud", nil)
	assert.Error(t, err)
}
