package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appidentity "github.com/procure/backend/internal/application/identity"
	"github.com/procure/backend/internal/interfaces/http/dto"
	"github.com/procure/backend/internal/interfaces/http/middleware"
)

// TenantHandler handles tenant provisioning endpoints. These routes run
// without a bound tenant: the tenants table is the root of isolation, so
// only system principals may call them.
type TenantHandler struct {
	BaseHandler
	tenantService *appidentity.TenantService
	resolver      *appidentity.TenantResolver
}

// NewTenantHandler creates a new TenantHandler
func NewTenantHandler(tenantService *appidentity.TenantService, resolver *appidentity.TenantResolver) *TenantHandler {
	return &TenantHandler{
		tenantService: tenantService,
		resolver:      resolver,
	}
}

// RegisterRoutes registers tenant routes on an unbound group
func (h *TenantHandler) RegisterRoutes(rg *gin.RouterGroup) {
	tenants := rg.Group("/tenants")
	{
		tenants.POST("", h.Provision)
		tenants.GET("/:id", h.Get)
		tenants.POST("/:id/suspend", h.Suspend)
	}
}

// ProvisionTenantRequest represents a request to provision a tenant
type ProvisionTenantRequest struct {
	Code         string `json:"code" binding:"required,min=2,max=50"`
	Name         string `json:"name" binding:"required,min=1,max=200"`
	Domain       string `json:"domain" binding:"omitempty,max=200"`
	ContactEmail string `json:"contact_email" binding:"omitempty,email"`
	Notes        string `json:"notes" binding:"omitempty,max=2000"`
}

// Provision creates a new tenant
func (h *TenantHandler) Provision(c *gin.Context) {
	if !h.requireSystemPrincipal(c) {
		return
	}

	var req ProvisionTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.tenantService.Provision(c.Request.Context(), appidentity.ProvisionTenantInput{
		Code:         req.Code,
		Name:         req.Name,
		Domain:       req.Domain,
		ContactEmail: req.ContactEmail,
		Notes:        req.Notes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// Get retrieves a tenant by ID
func (h *TenantHandler) Get(c *gin.Context) {
	if !h.requireSystemPrincipal(c) {
		return
	}

	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	result, err := h.tenantService.GetByID(c.Request.Context(), uuid.MustParse(req.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Suspend suspends a tenant and drops its cached slug resolutions so the
// suspension takes effect on the next request
func (h *TenantHandler) Suspend(c *gin.Context) {
	if !h.requireSystemPrincipal(c) {
		return
	}

	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	result, err := h.tenantService.Suspend(c.Request.Context(), uuid.MustParse(req.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if h.resolver != nil {
		h.resolver.Invalidate(c.Request.Context(), result.ID.String())
		if result.Code != "" {
			h.resolver.Invalidate(c.Request.Context(), result.Code)
		}
		if result.Domain != "" {
			h.resolver.Invalidate(c.Request.Context(), result.Domain)
		}
	}

	h.Success(c, result)
}

func (h *TenantHandler) requireSystemPrincipal(c *gin.Context) bool {
	if !middleware.IsSystemPrincipal(c) {
		h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden, "Tenant administration requires a system principal")
		return false
	}
	return true
}
