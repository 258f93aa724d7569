package bootstrap

import (
	"fmt"
	"io"
	"os"

	"entitysvc/config"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger initializes the zap logger with colored console output at the
// given level, written to w (stderr when nil) so command output stays clean.
func InitLogger(level string, w io.Writer) (*zap.Logger, *zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if w == nil {
		w = os.Stderr
	}

	// Create a colored console encoder config
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder // Colored levels
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder        // Readable timestamps
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder      // Short file paths

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		lvl,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), nil
}

// InitConfig loads the application configuration.
func InitConfig(sugar *zap.SugaredLogger) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load config: %v\n", err)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if viper.ConfigFileUsed() == "" {
		sugar.Debug("No config file found, using defaults and env vars")
	}

	sugar.Debugw("Config loaded",
		"driver", cfg.Storage.Driver,
		"sqlite_path", cfg.GetSQLitePath(),
		"metadata_file", cfg.Metadata.File,
		"metadata_redis", cfg.Metadata.Redis.Enabled,
		"binder_strict", cfg.Binder.Strict)

	return cfg, nil
}

// DataDirectoriesFromConfig creates DataDirectories from configuration.
func DataDirectoriesFromConfig(cfg *config.Config) DataDirectories {
	return DataDirectories{
		Base:   cfg.DataPaths.DataDir,
		SQLite: cfg.GetSQLitePath(),
	}
}
