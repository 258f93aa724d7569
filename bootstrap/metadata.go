package bootstrap

import (
	"context"
	"fmt"

	"entitysvc/config"
	"entitysvc/metadata"

	"go.uber.org/zap"
)

// MetadataComponents holds the descriptor sources built at startup
type MetadataComponents struct {
	// Registry holds the descriptors read from the metadata file
	Registry *metadata.Registry
	// Provider is what the binder resolves relation targets through
	Provider metadata.Provider
	// Redis is set when descriptors are shared through Redis
	Redis *metadata.RedisSource
}

// InitMetadata loads the descriptor file. With Redis enabled the descriptors
// are published there and served through an LRU front cache.
func InitMetadata(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*MetadataComponents, error) {
	registry, err := metadata.LoadRegistry(cfg.Metadata.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity metadata from %s: %w", cfg.Metadata.File, err)
	}
	sugar.Debugw("Entity metadata loaded", "file", cfg.Metadata.File, "entities", registry.Keys())

	components := &MetadataComponents{Registry: registry, Provider: registry}
	if !cfg.Metadata.Redis.Enabled {
		return components, nil
	}

	redisCfg := cfg.Metadata.Redis
	source := metadata.NewRedisSource(redisCfg.Addr, redisCfg.Password, redisCfg.DB, redisCfg.PoolSize, redisCfg.KeyPrefix, sugar)
	if err := source.Ping(ctx); err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("metadata redis unavailable: %s", ClassifyConnectionError(err, "Redis", redisCfg.Addr))
	}
	if err := source.Publish(ctx, registry); err != nil {
		_ = source.Close()
		return nil, err
	}

	cached, err := metadata.NewCachedProvider(source, cfg.Metadata.CacheSize)
	if err != nil {
		_ = source.Close()
		return nil, err
	}
	components.Provider = cached
	components.Redis = source
	return components, nil
}
