package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheTTL is the shared TTL for external lookup results.
const CacheTTL = 24 * time.Hour

// RedisConfig holds the KV store connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	// UseTLS enables a TLS client, matching managed Redis deployments.
	UseTLS bool
}

// RedisClient manages the Redis connection pool. It is the single shared
// source of truth for cached lookups, counters, cooldowns and locks.
type RedisClient struct {
	client *redis.Client
	config *RedisConfig
}

// NewRedisClient creates a new Redis client and verifies connectivity.
func NewRedisClient(config *RedisConfig) (*RedisClient, error) {
	opts := &redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
	if config.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisClient{client: client, config: config}, nil
}

// GetClient returns the underlying *redis.Client.
func (r *RedisClient) GetClient() *redis.Client {
	return r.client
}

// Ping checks connection health.
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the connection pool.
func (r *RedisClient) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Set stores a key-value pair with the given TTL.
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Get fetches a key. Returns ("", nil) on cache miss.
func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	result, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return result, err
}

// Delete removes keys.
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// --- Lookup cache (VT, OTX, GeoIP) ---
//
// Key layout per indicator:
//   vt:{hash}  otx:file:{hash}  otx:ip:{ip}  geoip:{ip}

func VTKey(hash string) string      { return "vt:" + hash }
func OTXFileKey(hash string) string { return "otx:file:" + hash }
func OTXIPKey(ip string) string     { return "otx:ip:" + ip }
func GeoIPKey(ip string) string     { return "geoip:" + ip }

// CacheLookup stores a serialized lookup result under its indicator key.
func (r *RedisClient) CacheLookup(ctx context.Context, key, data string) error {
	return r.Set(ctx, key, data, CacheTTL)
}

// GetCachedLookup fetches a cached lookup result. Empty string means miss.
func (r *RedisClient) GetCachedLookup(ctx context.Context, key string) (string, error) {
	return r.Get(ctx, key)
}

// --- Stateful feature counters ---

// CounterKey builds the per-agent counter key.
func CounterKey(agentID, key string) string {
	return fmt.Sprintf("counter:%s:%s", agentID, key)
}

// IncrCounter atomically increments a per-agent counter and returns the new
// value. Counters have no TTL; they are stateful features.
func (r *RedisClient) IncrCounter(ctx context.Context, agentID, key string) (int64, error) {
	return r.client.Incr(ctx, CounterKey(agentID, key)).Result()
}

// GetCounter reads a counter without incrementing. Missing key reads as 0.
func (r *RedisClient) GetCounter(ctx context.Context, agentID, key string) (int64, error) {
	result, err := r.client.Get(ctx, CounterKey(agentID, key)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return result, err
}

// --- Cooldowns and execution locks ---
//
// Both ride on SET NX EX. TTLs make orphaned keys self-heal.

// ExecLockKey builds the per-subject execution lock key.
func ExecLockKey(agentID, eventID string) string {
	return fmt.Sprintf("lock:exec:%s:%s", agentID, eventID)
}

// CooldownKey builds the per-(event_type,severity) cooldown key.
func CooldownKey(eventType, severity string) string {
	return fmt.Sprintf("cooldown:%s:%s", eventType, severity)
}

// TryClaim attempts SET NX EX on key. Returns true when the claim was
// acquired now, false when the key already exists.
func (r *RedisClient) TryClaim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, "1", ttl).Result()
}

// Release deletes a claimed key. Best-effort on all exit paths.
func (r *RedisClient) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// --- Health ---

// Health returns pool statistics for the ops endpoint.
func (r *RedisClient) Health(ctx context.Context) (map[string]string, error) {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	stats := r.client.PoolStats()

	return map[string]string{
		"status":      "healthy",
		"hits":        fmt.Sprintf("%d", stats.Hits),
		"misses":      fmt.Sprintf("%d", stats.Misses),
		"total_conns": fmt.Sprintf("%d", stats.TotalConns),
		"idle_conns":  fmt.Sprintf("%d", stats.IdleConns),
	}, nil
}
