package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/identity"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/procure/backend/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// TenantResolver resolves a request path slug to a tenant. A slug may be the
// tenant's UUID, its code, or its custom subdomain. Resolutions are cached;
// the cache holds only the slug to ID mapping, so status changes take effect
// on the next lookup of the row itself.
type TenantResolver struct {
	tenantRepo identity.TenantRepository
	cache      cache.TenantResolutionCache
	logger     *zap.Logger
}

// NewTenantResolver creates a new tenant resolver
func NewTenantResolver(
	tenantRepo identity.TenantRepository,
	resolutionCache cache.TenantResolutionCache,
	logger *zap.Logger,
) *TenantResolver {
	return &TenantResolver{
		tenantRepo: tenantRepo,
		cache:      resolutionCache,
		logger:     logger,
	}
}

// Resolve maps a slug to its tenant. Returns shared.ErrNotFound when no
// tenant matches.
func (r *TenantResolver) Resolve(ctx context.Context, slug string) (*identity.Tenant, error) {
	if slug == "" {
		return nil, shared.ErrNotFound
	}

	if r.cache != nil {
		if id, hit, err := r.cache.Get(ctx, slug); err == nil && hit {
			tenant, err := r.tenantRepo.FindByID(ctx, id)
			if err == nil {
				return tenant, nil
			}
			if !errors.Is(err, shared.ErrNotFound) {
				return nil, err
			}
			// Stale mapping, fall through to a fresh lookup
			if err := r.cache.Invalidate(ctx, slug); err != nil {
				r.logger.Warn("Failed to invalidate tenant resolution",
					zap.String("slug", slug), zap.Error(err))
			}
		}
	}

	tenant, err := r.lookup(ctx, slug)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, slug, tenant.ID, cache.DefaultTenantResolutionTTL); err != nil {
			r.logger.Warn("Failed to cache tenant resolution",
				zap.String("slug", slug), zap.Error(err))
		}
	}

	return tenant, nil
}

// Invalidate drops a cached slug resolution, used after suspension or domain
// changes
func (r *TenantResolver) Invalidate(ctx context.Context, slug string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, slug); err != nil {
		r.logger.Warn("Failed to invalidate tenant resolution",
			zap.String("slug", slug), zap.Error(err))
	}
}

// lookup tries UUID, code, then custom domain, in that order
func (r *TenantResolver) lookup(ctx context.Context, slug string) (*identity.Tenant, error) {
	if id, err := uuid.Parse(slug); err == nil {
		return r.tenantRepo.FindByID(ctx, id)
	}

	tenant, err := r.tenantRepo.FindByCode(ctx, slug)
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	return r.tenantRepo.FindByDomain(ctx, slug)
}
