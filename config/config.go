package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Storage drivers
const (
	DriverSQLite  = "sqlite"
	DriverMongoDB = "mongodb"
)

// DataPaths holds all data directory and file path configuration
// These paths can be overridden via environment variables
type DataPaths struct {
	// DataDir is the base data directory (ENTITYSVC_DATA_DIR, default: ./data)
	DataDir string `mapstructure:"data_dir"`
	// SQLitePath is the SQLite database file path (ENTITYSVC_SQLITE_PATH, default: ${DataDir}/entitysvc.db)
	SQLitePath string `mapstructure:"sqlite_path"`
}

// Config holds all configuration for the entity service
type Config struct {
	Storage struct {
		// Driver selects the persistence engine: "sqlite" (default) or "mongodb"
		Driver string `mapstructure:"driver"`
	} `mapstructure:"storage"`

	// DataPaths holds all data directory configuration
	DataPaths DataPaths `mapstructure:"data_paths"`

	MongoDB struct {
		URI         string `mapstructure:"uri"`
		Database    string `mapstructure:"database"`
		MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	} `mapstructure:"mongodb"`

	Metadata struct {
		// File is the YAML descriptor file loaded at startup
		File string `mapstructure:"file"`
		// Service is the default service name for keys given without one
		Service   string `mapstructure:"service"`
		CacheSize int    `mapstructure:"cache_size"`
		Redis     struct {
			Enabled   bool   `mapstructure:"enabled"`
			Addr      string `mapstructure:"addr"`
			Password  string `mapstructure:"password"`
			DB        int    `mapstructure:"db"`
			PoolSize  int    `mapstructure:"pool_size"`
			KeyPrefix string `mapstructure:"key_prefix"`
		} `mapstructure:"redis"`
	} `mapstructure:"metadata"`

	Binder struct {
		// Strict rejects parameter keys that match no declared field
		Strict bool `mapstructure:"strict"`
	} `mapstructure:"binder"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

func setDefaults() {
	viper.SetDefault("storage.driver", DriverSQLite)

	viper.SetDefault("data_paths.data_dir", "./data")
	viper.SetDefault("data_paths.sqlite_path", "") // Empty = derive from data_dir

	viper.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongodb.database", "entitysvc")
	viper.SetDefault("mongodb.max_pool_size", 10)

	viper.SetDefault("metadata.file", "entities.yaml")
	viper.SetDefault("metadata.service", "")
	viper.SetDefault("metadata.cache_size", 256)
	viper.SetDefault("metadata.redis.enabled", false)
	viper.SetDefault("metadata.redis.addr", "localhost:6379")
	viper.SetDefault("metadata.redis.password", "")
	viper.SetDefault("metadata.redis.db", 0)
	viper.SetDefault("metadata.redis.pool_size", 10)
	viper.SetDefault("metadata.redis.key_prefix", "entitysvc:metadata")

	viper.SetDefault("binder.strict", true)

	viper.SetDefault("logging.level", "info")
}

// loadFromEnv sets up environment variable loading
func loadFromEnv() {
	viper.SetEnvPrefix("ENTITYSVC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Shorter names for the settings most often overridden
	_ = viper.BindEnv("storage.driver", "ENTITYSVC_STORAGE_DRIVER")
	_ = viper.BindEnv("data_paths.data_dir", "ENTITYSVC_DATA_DIR")
	_ = viper.BindEnv("data_paths.sqlite_path", "ENTITYSVC_SQLITE_PATH")
	_ = viper.BindEnv("metadata.file", "ENTITYSVC_METADATA_FILE")
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("unable to read config: %w", err)
		}
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Resolve data paths (derive from data_dir if not explicitly set)
	config.ResolveDataPaths()

	return &config, nil
}

// ResolveDataPaths resolves all data paths, deriving from DataDir if not explicitly set
func (c *Config) ResolveDataPaths() {
	dataDir := c.DataPaths.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}

	if c.DataPaths.SQLitePath == "" {
		c.DataPaths.SQLitePath = filepath.Join(dataDir, "entitysvc.db")
	} else if c.DataPaths.SQLitePath != ":memory:" && !filepath.IsAbs(c.DataPaths.SQLitePath) {
		// Relative paths are relative to the current directory, not data_dir
		c.DataPaths.SQLitePath = filepath.Clean(c.DataPaths.SQLitePath)
	}

	c.DataPaths.DataDir = dataDir
}

// GetSQLitePath returns the resolved SQLite database path
func (c *Config) GetSQLitePath() string {
	if c.DataPaths.SQLitePath == "" {
		dataDir := c.DataPaths.DataDir
		if dataDir == "" {
			dataDir = "./data"
		}
		return filepath.Join(dataDir, "entitysvc.db")
	}
	return c.DataPaths.SQLitePath
}

// LogLevel parses the configured logging level
func (c *Config) LogLevel() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.Logging.Level)
}

// Validate checks the configuration for correctness
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite:
	case DriverMongoDB:
		if !strings.HasPrefix(c.MongoDB.URI, "mongodb://") && !strings.HasPrefix(c.MongoDB.URI, "mongodb+srv://") {
			return fmt.Errorf("invalid MongoDB URI: must start with mongodb:// or mongodb+srv://")
		}
		if _, err := url.Parse(c.MongoDB.URI); err != nil {
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if c.MongoDB.Database == "" {
			return fmt.Errorf("mongodb.database is required")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q (expected %s or %s)", c.Storage.Driver, DriverSQLite, DriverMongoDB)
	}

	if c.Metadata.CacheSize <= 0 {
		return fmt.Errorf("metadata.cache_size must be positive, got %d", c.Metadata.CacheSize)
	}
	if c.Metadata.Redis.Enabled && c.Metadata.Redis.Addr == "" {
		return fmt.Errorf("metadata.redis.addr is required when redis is enabled")
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("invalid logging.level: %w", err)
	}
	return nil
}
