// Package cache provides an optional, advisory caching layer on top of
// Redis. It backs wallet transaction-count lookups so a restart doesn't
// start every wallet cold (catalog metadata is not cached here); its
// absence only changes how
// often the enricher falls back to a live fetch, never correctness.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps redis.Client with JSON (de)serialization. A nil
// *RedisClient is valid and every method on it reports a cache miss, so
// callers never need a separate "is caching enabled" branch.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient dials Redis and pings it once. A failed ping logs a
// warning and returns nil rather than an error: caching is advisory, so an
// unreachable Redis must not block startup.
func NewRedisClient(host, port, password string) *RedisClient {
	addr := fmt.Sprintf("%s:%s", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️  Redis unavailable at %s, running without cache: %v", addr, err)
		return nil
	}

	log.Printf("✅ Connected to Redis at %s", addr)
	return &RedisClient{client: client}
}

// Set stores a JSON-encoded value with an expiration, e.g. a wallet's
// transaction count under WALLET_CACHE_TTL_MINUTES.
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis cache not available")
	}

	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, key, jsonBytes, expiration).Err()
}

// Get decodes a cached value into dest. A miss or decode failure is
// reported as an error, which callers treat as "go fetch it".
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis cache not available")
	}

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Delete removes a key, used to invalidate a stale wallet entry.
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("redis cache not available")
	}
	return r.client.Del(ctx, key).Err()
}

// Close releases the underlying connection pool.
func (r *RedisClient) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
