package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisTenantCache implements TenantResolutionCache using Redis. This is
// suitable for distributed deployments where multiple instances share
// resolution state and invalidations must be visible everywhere.
type RedisTenantCache struct {
	client    *redis.Client
	keyPrefix string
}

// RedisOptions holds Redis connection configuration
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisTenantCache creates a Redis-backed tenant resolution cache
func NewRedisTenantCache(opts RedisOptions) (*RedisTenantCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisTenantCache{
		client:    client,
		keyPrefix: "tenant:resolve:",
	}, nil
}

// NewRedisTenantCacheWithClient creates a cache with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisTenantCacheWithClient(client *redis.Client, keyPrefix string) *RedisTenantCache {
	if keyPrefix == "" {
		keyPrefix = "tenant:resolve:"
	}
	return &RedisTenantCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get returns the cached tenant ID for a resolution key
func (c *RedisTenantCache) Get(ctx context.Context, key string) (uuid.UUID, bool, error) {
	raw, err := c.client.Get(ctx, c.keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("failed to read tenant resolution: %w", err)
	}

	tenantID, err := uuid.Parse(raw)
	if err != nil {
		// Corrupt entry, drop it and report a miss
		_ = c.client.Del(ctx, c.keyPrefix+key).Err()
		return uuid.Nil, false, nil
	}

	return tenantID, true, nil
}

// Set stores a resolution with the given TTL
func (c *RedisTenantCache) Set(ctx context.Context, key string, tenantID uuid.UUID, ttl time.Duration) error {
	if ttl == 0 {
		ttl = DefaultTenantResolutionTTL
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, tenantID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache tenant resolution: %w", err)
	}
	return nil
}

// Invalidate removes a resolution
func (c *RedisTenantCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate tenant resolution: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisTenantCache) Close() error {
	return c.client.Close()
}

// Ensure RedisTenantCache implements TenantResolutionCache
var _ TenantResolutionCache = (*RedisTenantCache)(nil)
