// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ManuGH/arlpanel/internal/resilience"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// keyPrefix namespaces solver results in a shared Redis database.
const keyPrefix = "arlpanel:solver:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache is a Redis-backed Cache.
type RedisCache struct {
	client  *redis.Client
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
	stats  struct {
		hits   atomic.Int64
		misses atomic.Int64
		sets   atomic.Int64
	}
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis cache")

	return &RedisCache{client: client, breaker: newBreaker(), logger: logger}, nil
}

// newBreaker stops hammering an unreachable Redis; while it is open the
// cache behaves as empty and writes are dropped.
func newBreaker() *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker("redis_cache", 3, 30*time.Second,
		resilience.WithIgnoredErrors(func(err error) bool {
			return errors.Is(err, context.Canceled) || errors.Is(err, redis.Nil)
		}))
}

// Get returns the value for key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var val []byte
	err := c.breaker.Execute(func() error {
		var err error
		val, err = c.client.Get(ctx, keyPrefix+key).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) || errors.Is(err, resilience.ErrCircuitOpen) {
		c.stats.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		c.stats.misses.Add(1)
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	c.stats.hits.Add(1)
	return val, true, nil
}

// Set stores value under key.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	err := c.breaker.Execute(func() error {
		return c.client.Set(ctx, keyPrefix+key, value, ttl).Err()
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	c.stats.sets.Add(1)
	return nil
}

// Delete removes key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Stats returns counters; Size counts solver keys in the database.
func (c *RedisCache) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	size := 0
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		size++
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis scan failed")
	}

	return Stats{
		Hits:   c.stats.hits.Load(),
		Misses: c.stats.misses.Load(),
		Sets:   c.stats.sets.Load(),
		Size:   size,
	}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// HealthCheck pings Redis.
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// BreakerState reports whether the cache is currently bypassed.
func (c *RedisCache) BreakerState() resilience.State {
	return c.breaker.State()
}

// New returns a Redis cache when addr is set and an in-memory cache
// otherwise.
func New(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (Cache, error) {
	if cfg.Addr == "" {
		return NewMemoryCache(time.Minute), nil
	}
	c, err := NewRedisCache(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}
