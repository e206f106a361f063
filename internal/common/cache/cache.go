// Package cache stores serialized evidence between requests.
package cache

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"search-workers/internal/common/config"
	"search-workers/internal/common/database"
)

// Store is a string key/value cache with a per-store TTL.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// RedisStore keeps entries in Redis.
type RedisStore struct {
	client *database.RedisClient
	ttl    time.Duration
}

func NewRedisStore(client *database.RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key)
	if stderrors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, s.ttl); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// MemoryStore is a bounded in-process LRU with expiry.
type MemoryStore struct {
	lru *lru.LRU[string, string]
}

func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{lru: lru.NewLRU[string, string](maxEntries, nil, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	val, ok := s.lru.Get(key)
	return val, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.lru.Add(key, value)
	return nil
}

func (s *MemoryStore) Len() int {
	return s.lru.Len()
}

// NoopStore never hits.
type NoopStore struct{}

func (NoopStore) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (NoopStore) Set(context.Context, string, string) error         { return nil }

// New picks the store for cfg.Backend. redisClient is only read for the redis backend.
func New(cfg config.CacheConfig, redisClient *database.RedisClient) (Store, error) {
	ttl := config.GetDuration(cfg.TTL)
	switch cfg.Backend {
	case config.CacheRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis cache backend selected but no redis client configured")
		}
		return NewRedisStore(redisClient, ttl), nil
	case config.CacheMemory, "":
		return NewMemoryStore(cfg.MaxEntries, ttl), nil
	case config.CacheNone:
		return NoopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
