// Package router assembles the HTTP route tree. Tenant-scoped routes live
// under /:tenant and pass through the tenant binding middleware; everything
// else is registered on the bare API group.
package router

import (
	"github.com/gin-gonic/gin"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine           *gin.Engine
	apiVersion       string
	global           []RouteRegistrar
	tenantScoped     []RouteRegistrar
	tenantMiddleware []gin.HandlerFunc
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithTenantMiddleware sets the middleware chain applied to the /:tenant
// group, typically tenant binding followed by the bound-tenant guard
func WithTenantMiddleware(middleware ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.tenantMiddleware = middleware
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a RouteRegistrar for the unscoped API group
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.global = append(r.global, registrar)
	return r
}

// RegisterTenantScoped adds a RouteRegistrar for the tenant-scoped group
func (r *Router) RegisterTenantScoped(registrar RouteRegistrar) *Router {
	r.tenantScoped = append(r.tenantScoped, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)

	for _, registrar := range r.global {
		registrar.RegisterRoutes(api)
	}

	if len(r.tenantScoped) > 0 {
		tenantGroup := api.Group("/:tenant", r.tenantMiddleware...)
		for _, registrar := range r.tenantScoped {
			registrar.RegisterRoutes(tenantGroup)
		}
	}
}
