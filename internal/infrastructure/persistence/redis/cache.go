// Package redis implements the shared read cache on Redis.
// Several worker processes share memoized dashboard and leaderboard views
// through it; Redis expires every entry on its own TTL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int

	// KeyPrefix namespaces every key this service writes, so several
	// environments can share one Redis.
	KeyPrefix string

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig keeps socket timeouts short: a slow cache is worse than none.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		KeyPrefix:    "prephub:",
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

var (
	ErrConnection    = errors.New("redis cache: connection failed")
	ErrKeyEmpty      = errors.New("redis cache: key cannot be empty")
	ErrInvalidTTL    = errors.New("redis cache: ttl must be positive")
	ErrSerialization = errors.New("redis cache: serialization failed")
)

// Cache stores JSON-encoded views under prefixed keys.
// A miss is reported as (false, nil), like the process-local cache.
type Cache struct {
	client redis.UniversalClient
	prefix string
}

// Open connects and pings Redis within cfg.DialTimeout.
func Open(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, cfg.Addr(), err)
	}
	return New(client, cfg.KeyPrefix), nil
}

// New wraps an existing client.
func New(client redis.UniversalClient, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Get decodes the value under key into dest. An entry that no longer decodes
// into dest (its view changed shape across a deploy) is dropped and
// reported as a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		_ = c.client.Del(ctx, c.prefix+key).Err()
		return false, nil
	}
	return true, nil
}

// Set encodes value and stores it for ttl.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}

// Delete removes keys in one round trip.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	return c.client.Del(ctx, full...).Err()
}
