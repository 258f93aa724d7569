package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"entitysvc/core"
	"entitysvc/metadata"
	"entitysvc/util/goroutine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestNewSQLite_Success tests successful SQLite database creation
func TestNewSQLite_Success(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	sqlite, err := NewSQLite(dbPath, zap.NewNop().Sugar())
	require.NoError(t, err, "Should successfully create SQLite database")
	defer sqlite.Close()

	assert.Equal(t, dbPath, sqlite.Path)
	assert.Equal(t, 1, sqlite.WriteDB.Stats().MaxOpenConnections, "Write pool must have a single connection")
	assert.NoError(t, sqlite.HealthCheck(context.Background()))

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

// TestNewSQLite_ForeignKeysAndReadOnlyPool tests the pragmas applied to both pools
func TestNewSQLite_ForeignKeysAndReadOnlyPool(t *testing.T) {
	sqlite := setupTestSQLite(t)

	var fk int
	require.NoError(t, sqlite.ReadDB.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	_, err := sqlite.ReadDB.Exec(`INSERT INTO "country" ("id", "code") VALUES ('x', 'XX')`)
	assert.Error(t, err, "Read pool must reject writes")
}

func TestValidateDatabasePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"memory", ":memory:", false},
		{"relative", "data/entities.db", false},
		{"temp dir", filepath.Join(os.TempDir(), "x.db"), false},
		{"empty", "", true},
		{"traversal", "../../etc/passwd", true},
		{"null byte", "data\x00.db", true},
		{"absolute outside", "/etc/entities.db", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDatabasePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestSQLite_Close tests that a closed engine refuses new sessions
func TestSQLite_Close(t *testing.T) {
	sqlite := setupTestSQLite(t)
	require.NoError(t, sqlite.Close())
	require.NoError(t, sqlite.Close(), "Close should be idempotent")

	_, err := sqlite.Session(context.Background())
	assert.ErrorIs(t, err, ErrDatabaseClosed)
	_, err = sqlite.Begin(context.Background())
	assert.ErrorIs(t, err, ErrDatabaseClosed)
	assert.ErrorIs(t, sqlite.HealthCheck(context.Background()), ErrDatabaseClosed)
}

// TestSQLite_WithTransaction tests commit, rollback on error, and rollback on panic
func TestSQLite_WithTransaction(t *testing.T) {
	sqlite := setupTestSQLite(t)
	ctx := context.Background()

	count := func() int {
		var n int
		require.NoError(t, sqlite.ReadDB.QueryRow(`SELECT COUNT(*) FROM "country"`).Scan(&n))
		return n
	}

	err := sqlite.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO "country" ("id", "code") VALUES ('a', 'AA')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count())

	err = sqlite.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, _ = tx.Exec(`INSERT INTO "country" ("id", "code") VALUES ('b', 'BB')`)
		return core.ErrInvalidValue
	})
	assert.ErrorIs(t, err, core.ErrInvalidValue)
	assert.Equal(t, 1, count())

	assert.Panics(t, func() {
		_ = sqlite.WithTransaction(ctx, func(tx *sql.Tx) error {
			_, _ = tx.Exec(`INSERT INTO "country" ("id", "code") VALUES ('c', 'CC')`)
			panic("boom")
		})
	})
	assert.Equal(t, 1, count())
}

// TestSQLite_EnsureSchemaIdempotent tests that schema creation can be repeated
func TestSQLite_EnsureSchemaIdempotent(t *testing.T) {
	sqlite := setupTestSQLite(t)
	descs := []*metadata.EntityDescriptor{userDescriptor(), countryDescriptor()}
	assert.NoError(t, sqlite.EnsureSchema(context.Background(), descs))
}

// TestSQLite_PoolMetrics verifies the collector goroutine stops with its context
func TestSQLite_PoolMetrics(t *testing.T) {
	goroutine.AssertNoLeaks(t)
	sqlite := setupTestSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	assert.NotPanics(t, func() {
		sqlite.StartMetricsCollection(ctx, 10*time.Millisecond)
	})
	time.Sleep(30 * time.Millisecond)
}
