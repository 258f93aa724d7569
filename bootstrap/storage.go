package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"entitysvc/config"
	"entitysvc/storage"

	"go.uber.org/zap"
)

// poolMetricsInterval is how often SQLite pool statistics are exported
const poolMetricsInterval = 15 * time.Second

// InitEngine opens the persistence engine selected by storage.driver
func InitEngine(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (storage.Engine, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		dirs := DataDirectoriesFromConfig(cfg)
		if err := EnsureDataDirectories(dirs, sugar); err != nil {
			return nil, fmt.Errorf("pre-flight check failed: %w", err)
		}
		sqlite, err := InitSQLite(dirs, sugar)
		if err != nil {
			return nil, err
		}
		sqlite.StartMetricsCollection(ctx, poolMetricsInterval)
		return sqlite, nil
	case config.DriverMongoDB:
		return InitMongoDB(ctx, cfg, sugar)
	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnsupportedDriver, cfg.Storage.Driver)
	}
}

// InitSQLite initializes SQLite connection.
func InitSQLite(dirs DataDirectories, sugar *zap.SugaredLogger) (*storage.SQLite, error) {
	sqlite, err := storage.NewSQLite(dirs.SQLite, sugar)
	if err != nil {
		errMsg := ClassifySQLiteError(err, dirs.SQLite)
		fmt.Fprintf(os.Stderr, "\n========================================\n")
		fmt.Fprintf(os.Stderr, "FATAL: SQLite Initialization Failed\n")
		fmt.Fprintf(os.Stderr, "========================================\n")
		fmt.Fprintf(os.Stderr, "%s\n", errMsg)
		fmt.Fprintf(os.Stderr, "========================================\n\n")
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}

	sugar.Debug("SQLite initialized successfully")
	return sqlite, nil
}

// InitMongoDB connects to MongoDB with retry logic.
func InitMongoDB(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*storage.MongoDB, error) {
	const maxRetries = 3
	retryDelays := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

	var mongo *storage.MongoDB
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			sugar.Infow("Retrying MongoDB connection",
				"attempt", attempt,
				"max_retries", maxRetries,
				"delay", retryDelays[attempt-1])
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelays[attempt-1]):
			}
		}

		mongo, lastErr = storage.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.MaxPoolSize, sugar)
		if lastErr == nil {
			break
		}

		sugar.Warnw("MongoDB connection attempt failed",
			"attempt", attempt+1,
			"error", lastErr)
	}

	if lastErr != nil {
		errMsg := ClassifyConnectionError(lastErr, "MongoDB", cfg.MongoDB.URI)
		fmt.Fprintf(os.Stderr, "\n========================================\n")
		fmt.Fprintf(os.Stderr, "FATAL: MongoDB Connection Failed\n")
		fmt.Fprintf(os.Stderr, "========================================\n")
		fmt.Fprintf(os.Stderr, "%s\n", errMsg)
		fmt.Fprintf(os.Stderr, "========================================\n\n")
		return nil, fmt.Errorf("failed to connect to MongoDB after %d attempts: %w", maxRetries+1, lastErr)
	}

	sugar.Debug("Connected to MongoDB successfully")
	return mongo, nil
}
