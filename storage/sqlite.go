package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"entitysvc/metrics"
	"entitysvc/util/goroutine"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite holds the SQLite database connections for entity storage.
// Writes go through a single-connection pool; reads use a separate
// query_only pool so WAL readers never block behind the writer.
type SQLite struct {
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Path    string
	Logger  *zap.SugaredLogger

	closeOnce sync.Once
	closed    bool
	mu        sync.RWMutex

	prevWriteWaitCount int64
	prevReadWaitCount  int64
}

// configureSQLiteConnection enables WAL mode and verifies the pragmas set
// through the DSN
func configureSQLiteConnection(db *sql.DB, logger *zap.SugaredLogger, dbPath string, poolType string) error {
	// journal mode is persisted in the database file, so only the writer sets it
	if poolType == "write" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// SQLite disables foreign keys by default; relation columns depend on them
	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		return fmt.Errorf("failed to verify foreign keys: %w", err)
	}
	if fkEnabled != 1 {
		return fmt.Errorf("foreign keys not enabled (got: %d, expected: 1)", fkEnabled)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	// In-memory databases report "memory" instead of "wal"
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got: %s, expected: wal)", journalMode)
	}
	logger.Debugf("SQLite %s pool: journal mode %s, foreign keys on", poolType, journalMode)

	return nil
}

// NewSQLite opens the database at dbPath
func NewSQLite(dbPath string, logger *zap.SugaredLogger) (*SQLite, error) {
	if err := validateDatabasePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	writeDB, err := sql.Open("sqlite", sqliteDSN(dbPath, false))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite write database: %w", err)
	}
	if err := configureSQLiteConnection(writeDB, logger, dbPath, "write"); err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to configure write connection: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)
	writeDB.SetConnMaxLifetime(0) // in-memory databases vanish with their last connection
	writeDB.SetConnMaxIdleTime(10 * time.Minute)

	readDB, err := sql.Open("sqlite", sqliteDSN(dbPath, true))
	if err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to open SQLite read database: %w", err)
	}
	if err := configureSQLiteConnection(readDB, logger, dbPath, "read"); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to configure read connection: %w", err)
	}

	// SECURITY: the read pool must never write
	var queryOnly int
	if err := readDB.QueryRow("PRAGMA query_only").Scan(&queryOnly); err != nil || queryOnly != 1 {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("query_only mode not enabled on read pool (got: %d, err: %v)", queryOnly, err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	readDB.SetConnMaxIdleTime(10 * time.Minute)

	logger.Infof("SQLite database initialized at %s with separate read/write pools", dbPath)

	return &SQLite{
		WriteDB: writeDB,
		ReadDB:  readDB,
		Path:    dbPath,
		Logger:  logger,
	}, nil
}

// sqliteDSN builds a connection string whose pragmas the driver applies to
// every new pool connection, not only the first. Both pools of an in-memory
// database share one cache so they see the same data.
func sqliteDSN(dbPath string, readOnly bool) string {
	path := dbPath
	params := url.Values{}
	if dbPath == ":memory:" {
		path = ":memory:"
		params.Set("cache", "shared")
	}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	if readOnly {
		params.Add("_pragma", "query_only(1)")
	}
	return "file:" + path + "?" + params.Encode()
}

// WithTransaction executes fn within a write transaction, rolling back on
// error or panic
func (s *SQLite) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.WriteDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction (original error: %w, rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Session opens a read-only session on the read pool
func (s *SQLite) Session(_ context.Context) (Session, error) {
	if s.isClosed() {
		return nil, ErrDatabaseClosed
	}
	return &sqliteSession{q: s.ReadDB, logger: s.Logger}, nil
}

// Begin opens a write transaction
func (s *SQLite) Begin(ctx context.Context) (Tx, error) {
	if s.isClosed() {
		return nil, ErrDatabaseClosed
	}
	tx, err := s.WriteDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fault("begin transaction", err)
	}
	return &sqliteTx{
		sqliteSession: sqliteSession{q: tx, logger: s.Logger, uow: unitOfWork{writable: true}},
		tx:            tx,
	}, nil
}

func (s *SQLite) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close closes both connection pools
func (s *SQLite) Close() error {
	var writeErr, readErr error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.WriteDB != nil {
			writeErr = s.WriteDB.Close()
		}
		if s.ReadDB != nil {
			readErr = s.ReadDB.Close()
		}
	})

	if writeErr != nil {
		return fmt.Errorf("failed to close write pool: %w", writeErr)
	}
	if readErr != nil {
		return fmt.Errorf("failed to close read pool: %w", readErr)
	}
	return nil
}

// HealthCheck verifies the database connection is alive
func (s *SQLite) HealthCheck(ctx context.Context) error {
	if s.isClosed() {
		return ErrDatabaseClosed
	}
	return s.WriteDB.PingContext(ctx)
}

// StartMetricsCollection periodically exports connection pool statistics
// until ctx is cancelled
func (s *SQLite) StartMetricsCollection(ctx context.Context, interval time.Duration) {
	s.updatePoolMetrics()

	go func() {
		defer goroutine.Recover("sqlite-pool-metrics", s.Logger)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.Logger.Info("SQLite metrics collection stopped")
				return
			case <-ticker.C:
				if s.isClosed() {
					return
				}
				s.updatePoolMetrics()
			}
		}
	}()
}

func (s *SQLite) updatePoolMetrics() {
	s.updatePoolMetricsForType("write", s.WriteDB.Stats(), &s.prevWriteWaitCount)
	s.updatePoolMetricsForType("read", s.ReadDB.Stats(), &s.prevReadWaitCount)
}

// updatePoolMetricsForType exports gauges as-is and the wait counter as a delta
func (s *SQLite) updatePoolMetricsForType(poolType string, stats sql.DBStats, prevWaitCount *int64) {
	metrics.SQLitePoolOpenConnections.WithLabelValues(poolType).Set(float64(stats.OpenConnections))
	metrics.SQLitePoolInUse.WithLabelValues(poolType).Set(float64(stats.InUse))
	metrics.SQLitePoolIdle.WithLabelValues(poolType).Set(float64(stats.Idle))

	if delta := stats.WaitCount - *prevWaitCount; delta > 0 {
		metrics.SQLitePoolWaitCount.WithLabelValues(poolType).Add(float64(delta))
		*prevWaitCount = stats.WaitCount
	}
}

// validateDatabasePath rejects paths that could escape the working directory.
// Temp directories are allowed for tests.
func validateDatabasePath(dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if dbPath == ":memory:" {
		return nil
	}
	if len(dbPath) > 512 {
		return fmt.Errorf("database path exceeds maximum length of 512 characters")
	}
	if strings.Contains(dbPath, "\x00") {
		return fmt.Errorf("null bytes not allowed in path")
	}
	if strings.Contains(dbPath, "..") {
		return fmt.Errorf("path traversal not allowed (..): %s", dbPath)
	}

	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if strings.HasPrefix(absPath, os.TempDir()) {
		return nil
	}
	if filepath.IsAbs(dbPath) {
		return fmt.Errorf("absolute paths not allowed: %s", dbPath)
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	rel, err := filepath.Rel(wd, absPath)
	if err != nil {
		return fmt.Errorf("failed to compute relative path: %w", err)
	}
	if strings.HasPrefix(rel, "..") {
		return fmt.Errorf("path escapes working directory: %s resolves to %s", dbPath, absPath)
	}
	return nil
}
