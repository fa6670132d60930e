package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apporg "github.com/procure/backend/internal/application/org"
	"github.com/procure/backend/internal/interfaces/http/dto"
	"github.com/procure/backend/internal/interfaces/http/middleware"
)

// OrgUnitHandler handles org unit API endpoints
type OrgUnitHandler struct {
	BaseHandler
	orgUnitService *apporg.OrgUnitService
}

// NewOrgUnitHandler creates a new OrgUnitHandler
func NewOrgUnitHandler(orgUnitService *apporg.OrgUnitService) *OrgUnitHandler {
	return &OrgUnitHandler{orgUnitService: orgUnitService}
}

// RegisterRoutes registers org unit routes on a tenant-scoped group
func (h *OrgUnitHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orgUnits := rg.Group("/org-units")
	{
		orgUnits.POST("", h.Create)
		orgUnits.GET("", h.List)
		orgUnits.GET("/:id", h.Get)
		orgUnits.POST("/:id/deactivate", h.Deactivate)
	}
}

// CreateOrgUnitRequest represents a request to create an org unit
type CreateOrgUnitRequest struct {
	Code     string  `json:"code" binding:"required,min=1,max=50"`
	Name     string  `json:"name" binding:"required,min=1,max=200"`
	Type     string  `json:"type" binding:"required"`
	ParentID *string `json:"parent_id" binding:"omitempty,uuid"`
}

// Create creates a new org unit, optionally under a parent
func (h *OrgUnitHandler) Create(c *gin.Context) {
	var req CreateOrgUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	input := apporg.CreateOrgUnitInput{
		Code: req.Code,
		Name: req.Name,
		Type: req.Type,
	}
	if req.ParentID != nil {
		parentID := uuid.MustParse(*req.ParentID)
		input.ParentID = &parentID
	}

	result, err := h.orgUnitService.Create(c.Request.Context(), middleware.GetTenantUUID(c), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// List retrieves a paginated list of the tenant's org units
func (h *OrgUnitHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	units, total, err := h.orgUnitService.List(c.Request.Context(), middleware.GetTenantUUID(c), req.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	filter := req.ToFilter()
	h.SuccessWithMeta(c, units, total, filter.Page, filter.PageSize)
}

// Get retrieves a single org unit
func (h *OrgUnitHandler) Get(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid org unit ID")
		return
	}

	result, err := h.orgUnitService.GetByID(c.Request.Context(), middleware.GetTenantUUID(c), uuid.MustParse(req.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Deactivate deactivates an org unit
func (h *OrgUnitHandler) Deactivate(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid org unit ID")
		return
	}

	if err := h.orgUnitService.Deactivate(c.Request.Context(), middleware.GetTenantUUID(c), uuid.MustParse(req.ID)); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
