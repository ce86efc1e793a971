package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed cache for multi-instance deployments.
type Redis struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
	closed     atomic.Bool
}

// NewRedis connects to the Redis server at url (redis://host:port/db)
// and verifies the connection with a ping. prefix is prepended to every
// key so multiple applications can share one server.
func NewRedis(url, prefix string, defaultTTL time.Duration) (*Redis, error) {
	if url == "" {
		return nil, errors.New("redis URL is required")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Redis{
		client:     client,
		prefix:     prefix,
		defaultTTL: defaultTTL,
	}, nil
}

func (c *Redis) key(k string) string {
	return c.prefix + k
}

// Get returns the value for key, or ErrMiss.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return val, nil
}

// Set stores value under key.
func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}

	if ttl == 0 {
		ttl = c.defaultTTL
	}
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

// Delete removes a single key.
func (c *Redis) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.client.Del(ctx, c.key(key)).Err()
}

// DeletePrefix removes all keys starting with prefix, using SCAN so the
// server is not blocked the way KEYS would.
func (c *Redis) DeletePrefix(ctx context.Context, prefix string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	var cursor uint64
	pattern := c.key(prefix) + "*"

	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping checks connection health.
func (c *Redis) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Redis) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		return c.client.Close()
	}
	return nil
}

var _ Cache = (*Redis)(nil)
