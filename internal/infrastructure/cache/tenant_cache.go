package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Default TTL for resolved tenant entries. Tenant slugs change rarely, so a
// short TTL keeps suspended tenants from lingering in the cache.
const DefaultTenantResolutionTTL = 60 * time.Second

// TenantResolutionCache caches slug/domain to tenant ID lookups so the
// binding middleware does not hit the database on every request.
type TenantResolutionCache interface {
	// Get returns the cached tenant ID for a resolution key. The second
	// return value reports whether the key was present.
	Get(ctx context.Context, key string) (uuid.UUID, bool, error)

	// Set stores a resolution with the given TTL. A zero TTL uses the
	// implementation default.
	Set(ctx context.Context, key string, tenantID uuid.UUID, ttl time.Duration) error

	// Invalidate removes a resolution, e.g. after a tenant is suspended
	Invalidate(ctx context.Context, key string) error

	// Close releases any resources held by the cache
	Close() error
}
