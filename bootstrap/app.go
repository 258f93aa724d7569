package bootstrap

import (
	"context"
	"fmt"
	"io"

	"entitysvc/binder"
	"entitysvc/config"
	"entitysvc/metadata"
	"entitysvc/service"
	"entitysvc/storage"

	"go.uber.org/zap"
)

// App holds the assembled entity service.
type App struct {
	// Configuration
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// Storage
	Engine storage.Engine

	// Metadata
	Metadata *MetadataComponents

	// Services
	Binder   *binder.Binder
	Registry *service.Registry

	cancel context.CancelFunc
}

// Options adjusts NewApp for a single command invocation
type Options struct {
	// LogLevel overrides logging.level when non-empty
	LogLevel string
	// LogOutput receives log lines (stderr when nil)
	LogOutput io.Writer
	// Strict overrides binder.strict when non-nil
	Strict *bool
}

// NewApp creates a new application instance and initializes all components.
func NewApp(ctx context.Context, opts Options) (*App, error) {
	// Bootstrap logger until the configured level is known
	_, bootSugar, err := InitLogger("warn", opts.LogOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := InitConfig(bootSugar)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, sugar, err := InitLogger(level, opts.LogOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if opts.Strict != nil {
		cfg.Binder.Strict = *opts.Strict
	}

	return NewAppWithConfig(ctx, cfg, logger, sugar)
}

// NewAppWithConfig assembles the application from an already loaded configuration.
func NewAppWithConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger, sugar *zap.SugaredLogger) (*App, error) {
	ctx, cancel := context.WithCancel(ctx)
	app := &App{Config: cfg, Logger: logger, Sugar: sugar, cancel: cancel}

	meta, err := InitMetadata(ctx, cfg, sugar)
	if err != nil {
		cancel()
		return nil, err
	}
	app.Metadata = meta

	engine, err := InitEngine(ctx, cfg, sugar)
	if err != nil {
		app.Shutdown()
		return nil, err
	}
	app.Engine = engine

	app.Binder = binder.New(meta.Provider, cfg.Binder.Strict, sugar)
	app.Registry = service.BuildRegistry(meta.Registry.All(), engine, app.Binder, sugar, nil)

	sugar.Debugw("Entity service ready",
		"driver", cfg.Storage.Driver,
		"entities", app.Registry.Keys(),
		"strict", app.Binder.Strict())
	return app, nil
}

// Descriptors returns every loaded descriptor, relation targets first
func (a *App) Descriptors() []*metadata.EntityDescriptor {
	return a.Metadata.Registry.All()
}

// EnsureSchema creates tables (or collections) for every loaded descriptor
func (a *App) EnsureSchema(ctx context.Context) error {
	if err := a.Engine.EnsureSchema(ctx, a.Descriptors()); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	a.Sugar.Infow("Schema applied", "entities", len(a.Descriptors()))
	return nil
}

// Shutdown releases every component.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}

	if a.Engine != nil {
		if err := a.Engine.Close(); err != nil {
			a.Sugar.Errorw("Failed to close storage engine", "error", err)
		}
	}
	if a.Metadata != nil && a.Metadata.Redis != nil {
		if err := a.Metadata.Redis.Close(); err != nil {
			a.Sugar.Errorw("Failed to close metadata redis", "error", err)
		}
	}

	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}
