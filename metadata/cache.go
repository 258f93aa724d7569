package metadata

import (
	"context"
	"fmt"

	"entitysvc/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedProvider fronts a slower Provider (typically RedisSource) with a
// bounded in-process LRU keyed by "entity:service". Misses for unknown
// entities are not cached.
type CachedProvider struct {
	source Provider
	cache  *lru.Cache[string, *EntityDescriptor]
}

// NewCachedProvider creates a cache holding at most size descriptors
func NewCachedProvider(source Provider, size int) (*CachedProvider, error) {
	cache, err := lru.New[string, *EntityDescriptor](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create descriptor cache: %w", err)
	}
	return &CachedProvider{source: source, cache: cache}, nil
}

// Describe implements Provider
func (c *CachedProvider) Describe(ctx context.Context, key string) (*EntityDescriptor, error) {
	if d, ok := c.cache.Get(key); ok {
		metrics.MetadataCacheHits.Inc()
		return d, nil
	}
	metrics.MetadataCacheMisses.Inc()

	d, err := c.source.Describe(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, d)
	return d, nil
}

// Invalidate drops one cached descriptor
func (c *CachedProvider) Invalidate(key string) {
	c.cache.Remove(key)
}

// Purge drops every cached descriptor
func (c *CachedProvider) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached descriptors
func (c *CachedProvider) Len() int {
	return c.cache.Len()
}
