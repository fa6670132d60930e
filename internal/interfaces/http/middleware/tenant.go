package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appidentity "github.com/procure/backend/internal/application/identity"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/procure/backend/internal/infrastructure/logger"
	"github.com/procure/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// TenantIDKey is the gin context key for the bound tenant
const TenantIDKey = "tenant_id"

// TenantBindingConfig configures the tenant binding middleware
type TenantBindingConfig struct {
	Resolver *appidentity.TenantResolver
	Logger   *zap.Logger
}

// TenantBinding reconciles the tenant resolved from the request path with
// the tenant named in the caller's credentials and binds the result into the
// request context. The rules:
//
//   - both present and equal: bind that tenant
//   - both present and different: reject with TENANT_MISMATCH, without
//     revealing whether the path tenant exists or who owns it
//   - only one present: bind it
//   - neither present: proceed unbound; RequireTenant guards the routes
//     that cannot run that way
//
// A path slug that resolves to a suspended or inactive tenant is rejected
// outright, whatever the credentials say.
func TenantBinding(cfg TenantBindingConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		claimed := ClaimedTenantUUID(c)
		resolved := uuid.Nil

		if slug := c.Param("tenant"); slug != "" {
			tenant, err := cfg.Resolver.Resolve(c.Request.Context(), slug)
			if err != nil {
				if domainErr, ok := asDomainError(err); ok && domainErr.Code == "NOT_FOUND" {
					respondTenantError(c, http.StatusNotFound, "NOT_FOUND", "Tenant not found")
					return
				}
				log.Error("Tenant resolution failed", zap.String("slug", slug), zap.Error(err))
				respondTenantError(c, http.StatusInternalServerError, dto.ErrCodeInternal, "Tenant resolution failed")
				return
			}

			if !tenant.IsActive() {
				respondTenantError(c, http.StatusForbidden, dto.ErrCodeTenantSuspended, "Tenant is not active")
				return
			}
			resolved = tenant.ID
		}

		var bound uuid.UUID
		switch {
		case resolved != uuid.Nil && claimed != uuid.Nil:
			if resolved != claimed {
				respondTenantError(c, http.StatusForbidden,
					shared.ErrTenantMismatch.Code, shared.ErrTenantMismatch.Message)
				return
			}
			bound = resolved
		case resolved != uuid.Nil:
			bound = resolved
		case claimed != uuid.Nil:
			bound = claimed
		default:
			// Unbound: only routes without tenant isolation may proceed
			c.Next()
			return
		}

		ctx, _ := logger.BindTenant(c.Request.Context(), logger.FromContext(c.Request.Context()), bound)
		c.Request = c.Request.WithContext(ctx)
		c.Set(TenantIDKey, bound)

		c.Next()
	}
}

// RequireTenant aborts any request that reached a tenant-scoped route
// without a bound tenant
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if logger.CurrentTenant(c.Request.Context()) == uuid.Nil {
			respondTenantError(c, http.StatusUnauthorized,
				shared.ErrTenantUnbound.Code, shared.ErrTenantUnbound.Message)
			return
		}
		c.Next()
	}
}

// GetTenantUUID returns the tenant bound to the request, or uuid.Nil
func GetTenantUUID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(TenantIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return logger.CurrentTenant(c.Request.Context())
}

func asDomainError(err error) (*shared.DomainError, bool) {
	var domainErr *shared.DomainError
	ok := errors.As(err, &domainErr)
	return domainErr, ok
}

func respondTenantError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}
