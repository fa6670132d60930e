package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/procure/backend/internal/infrastructure/auth"
	"github.com/procure/backend/internal/infrastructure/logger"
	"github.com/procure/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Gin context keys populated by the JWT middleware
const (
	JWTClaimsKey = "jwt_claims"
	JWTUserIDKey = "jwt_user_id"
	JWTTenantKey = "jwt_tenant_id"
)

// JWTAuthConfig configures the JWT authentication middleware
type JWTAuthConfig struct {
	Service *auth.JWTService
	// SkipPaths are exact request paths that bypass authentication
	SkipPaths []string
	Logger    *zap.Logger
}

// JWTAuth validates the bearer token and stores its claims on the gin
// context. Tenant reconciliation happens later in TenantBinding; this
// middleware only establishes who the caller is.
func JWTAuth(cfg JWTAuthConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		token, err := extractBearerToken(c)
		if err != nil {
			respondAuthError(c, dto.ErrCodeUnauthorized, "Missing or malformed authorization header")
			return
		}

		claims, err := cfg.Service.ValidateAccessToken(token)
		if err != nil {
			log.Debug("Token validation failed", zap.Error(err))
			handleAuthError(c, err)
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTUserIDKey, claims.UserID)
		c.Set(JWTTenantKey, claims.TenantID)

		ctx, _ := logger.WithUserID(c.Request.Context(), logger.FromContext(c.Request.Context()), claims.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// extractBearerToken pulls the token out of the Authorization header
func extractBearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("malformed authorization header")
	}
	return parts[1], nil
}

// handleAuthError maps token validation failures to response codes
func handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		respondAuthError(c, dto.ErrCodeTokenExpired, "Token has expired")
	case errors.Is(err, auth.ErrTokenNotYetValid):
		respondAuthError(c, dto.ErrCodeUnauthorized, "Token is not yet valid")
	case errors.Is(err, auth.ErrMissingTenantID):
		respondAuthError(c, dto.ErrCodeUnauthorized, "Token carries no tenant")
	default:
		respondAuthError(c, dto.ErrCodeUnauthorized, "Invalid token")
	}
}

func respondAuthError(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

// GetJWTClaims returns the validated claims, or nil when the request was not
// authenticated
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(JWTClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// ClaimedTenantUUID returns the tenant named in the caller's credentials, or
// uuid.Nil for system principals and unauthenticated requests
func ClaimedTenantUUID(c *gin.Context) uuid.UUID {
	claims := GetJWTClaims(c)
	if claims == nil {
		return uuid.Nil
	}
	tenantID, err := claims.TenantUUID()
	if err != nil {
		return uuid.Nil
	}
	return tenantID
}

// IsSystemPrincipal reports whether the caller authenticated with a system
// token
func IsSystemPrincipal(c *gin.Context) bool {
	claims := GetJWTClaims(c)
	return claims != nil && claims.System
}
