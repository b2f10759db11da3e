// Package cache wraps Redis for the storefront's idempotency replay, catalog cache and
// receipt once-guard.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is not present.
var ErrMiss = errors.New("cache: miss")

// unlockScript deletes the lock only while it still holds the caller's token, so a request
// that outlived its lock cannot release a lock taken by the next request.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client holds the Redis client
type Client struct {
	Redis *redis.Client
}

// NewClient connects to redisURL and pings it.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed connecting to redis: %w", err)
	}

	log.Println("✅ Redis connected")

	return &Client{Redis: client}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.Redis.Close()
}

// Ping checks reachability
func (c *Client) Ping(ctx context.Context) error {
	return c.Redis.Ping(ctx).Err()
}

// SetJSON stores v encoded as JSON
func (c *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return c.Redis.Set(ctx, key, data, ttl).Err()
}

// GetJSON decodes the JSON stored at key into v. A missing key yields ErrMiss.
func (c *Client) GetJSON(ctx context.Context, key string, v any) error {
	raw, err := c.Redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// SetOnce sets key only if it is absent. It reports whether this call claimed the key.
func (c *Client) SetOnce(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return c.Redis.SetNX(ctx, key, value, ttl).Result()
}

// Lock claims key for ttl and returns the owner token to pass to Unlock.
// An empty token with a nil error means someone else holds the lock.
func (c *Client) Lock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := c.SetOnce(ctx, key, token, ttl)
	if err != nil || !ok {
		return "", err
	}
	return token, nil
}

// Unlock releases key if it is still held with token.
func (c *Client) Unlock(ctx context.Context, key, token string) error {
	return unlockScript.Run(ctx, c.Redis, []string{key}, token).Err()
}

// Delete deletes keys
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.Redis.Del(ctx, keys...).Err()
}
