package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"entitysvc/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const defaultRedisPrefix = "entitysvc:meta"

// RedisSource stores descriptors in Redis so several service processes share
// one schema. Each descriptor lives under "<prefix>:<entity:service>",
// msgpack-encoded.
type RedisSource struct {
	client *redis.Client
	prefix string
	logger *zap.SugaredLogger
}

// NewRedisSource creates a new Redis-backed descriptor source
func NewRedisSource(addr, password string, db, poolSize int, prefix string, logger *zap.SugaredLogger) *RedisSource {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})
	return NewRedisSourceFromClient(client, prefix, logger)
}

// NewRedisSourceFromClient wraps an existing client
func NewRedisSourceFromClient(client *redis.Client, prefix string, logger *zap.SugaredLogger) *RedisSource {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisSource{client: client, prefix: prefix, logger: logger}
}

// Ping tests the Redis connection
func (s *RedisSource) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisSource) Close() error {
	return s.client.Close()
}

func (s *RedisSource) redisKey(key string) string {
	return s.prefix + ":" + key
}

// Put validates and stores a descriptor
func (s *RedisSource) Put(ctx context.Context, d *EntityDescriptor) error {
	if err := Validate(d); err != nil {
		return err
	}
	data, err := msgpack.Marshal(d)
	if err != nil {
		metrics.MetadataErrors.WithLabelValues("redis", "marshal").Inc()
		return fmt.Errorf("failed to encode descriptor %s: %w", d.Key(), err)
	}
	if err := s.client.Set(ctx, s.redisKey(d.Key()), data, 0).Err(); err != nil {
		metrics.MetadataErrors.WithLabelValues("redis", "set").Inc()
		return fmt.Errorf("failed to store descriptor %s: %w", d.Key(), err)
	}
	return nil
}

// Delete removes a descriptor
func (s *RedisSource) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.redisKey(key)).Err()
}

// Describe implements Provider
func (s *RedisSource) Describe(ctx context.Context, key string) (*EntityDescriptor, error) {
	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, key)
		}
		s.logger.Errorf("Failed to get descriptor %s: %v", key, err)
		metrics.MetadataErrors.WithLabelValues("redis", "get").Inc()
		return nil, fmt.Errorf("failed to load descriptor %s: %w", key, err)
	}

	var d EntityDescriptor
	if err := msgpack.Unmarshal(data, &d); err != nil {
		metrics.MetadataErrors.WithLabelValues("redis", "unmarshal").Inc()
		return nil, fmt.Errorf("failed to decode descriptor %s: %w", key, err)
	}
	return &d, nil
}

// Keys lists every stored descriptor key in sorted order
func (s *RedisSource) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix+":"))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan descriptors: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Publish copies every descriptor of a registry into Redis
func (s *RedisSource) Publish(ctx context.Context, r *Registry) error {
	for _, d := range r.All() {
		if err := s.Put(ctx, d); err != nil {
			return err
		}
	}
	s.logger.Infow("Published entity descriptors to Redis", "count", len(r.Keys()), "prefix", s.prefix)
	return nil
}
