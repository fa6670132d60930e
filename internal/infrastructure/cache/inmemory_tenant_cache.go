package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCleanupInterval = 30 * time.Second

// InMemoryTenantCache implements TenantResolutionCache using in-process
// storage. Suitable for single-instance deployments and tests; distributed
// deployments should use RedisTenantCache so invalidations propagate.
type InMemoryTenantCache struct {
	entries sync.Map // map[string]*tenantEntry
	ttl     time.Duration
	logger  *zap.Logger
	stopCh  chan struct{}
	stopped int32

	hits   int64
	misses int64
}

type tenantEntry struct {
	tenantID  uuid.UUID
	expiresAt time.Time
}

func (e *tenantEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// InMemoryTenantCacheOption is a functional option for configuring the cache
type InMemoryTenantCacheOption func(*InMemoryTenantCache)

// WithTenantCacheTTL sets the default entry TTL
func WithTenantCacheTTL(ttl time.Duration) InMemoryTenantCacheOption {
	return func(c *InMemoryTenantCache) {
		c.ttl = ttl
	}
}

// WithTenantCacheLogger sets the logger for the cache
func WithTenantCacheLogger(logger *zap.Logger) InMemoryTenantCacheOption {
	return func(c *InMemoryTenantCache) {
		c.logger = logger
	}
}

// NewInMemoryTenantCache creates a new in-memory tenant resolution cache
func NewInMemoryTenantCache(opts ...InMemoryTenantCacheOption) *InMemoryTenantCache {
	cache := &InMemoryTenantCache{
		ttl:    DefaultTenantResolutionTTL,
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}

	go cache.cleanupExpired()

	return cache
}

// Get returns the cached tenant ID for a resolution key
func (c *InMemoryTenantCache) Get(ctx context.Context, key string) (uuid.UUID, bool, error) {
	if value, ok := c.entries.Load(key); ok {
		entry := value.(*tenantEntry)
		if !entry.isExpired() {
			atomic.AddInt64(&c.hits, 1)
			return entry.tenantID, true, nil
		}
		c.entries.Delete(key)
	}

	atomic.AddInt64(&c.misses, 1)
	return uuid.Nil, false, nil
}

// Set stores a resolution with the given TTL
func (c *InMemoryTenantCache) Set(ctx context.Context, key string, tenantID uuid.UUID, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	c.entries.Store(key, &tenantEntry{
		tenantID:  tenantID,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

// Invalidate removes a resolution
func (c *InMemoryTenantCache) Invalidate(ctx context.Context, key string) error {
	c.entries.Delete(key)
	return nil
}

// Close stops the cleanup goroutine
func (c *InMemoryTenantCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// GetStats returns cache statistics
func (c *InMemoryTenantCache) GetStats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

func (c *InMemoryTenantCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			var removed int
			c.entries.Range(func(key, value any) bool {
				if value.(*tenantEntry).isExpired() {
					c.entries.Delete(key)
					removed++
				}
				return true
			})
			if removed > 0 {
				c.logger.Debug("Cleaned up expired tenant resolutions",
					zap.Int("removed", removed))
			}
		}
	}
}

// Ensure InMemoryTenantCache implements TenantResolutionCache
var _ TenantResolutionCache = (*InMemoryTenantCache)(nil)
