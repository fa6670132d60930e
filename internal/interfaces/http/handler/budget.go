package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appbudget "github.com/procure/backend/internal/application/budget"
	"github.com/procure/backend/internal/interfaces/http/dto"
	"github.com/procure/backend/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
)

// BudgetHandler handles budget ledger API endpoints
type BudgetHandler struct {
	BaseHandler
	ledgerService *appbudget.LedgerService
	usageService  *appbudget.UsageReportService
}

// NewBudgetHandler creates a new BudgetHandler
func NewBudgetHandler(ledgerService *appbudget.LedgerService, usageService *appbudget.UsageReportService) *BudgetHandler {
	return &BudgetHandler{
		ledgerService: ledgerService,
		usageService:  usageService,
	}
}

// RegisterRoutes registers budget routes on a tenant-scoped group
func (h *BudgetHandler) RegisterRoutes(rg *gin.RouterGroup) {
	budgets := rg.Group("/budgets")
	{
		budgets.POST("", h.Create)
		budgets.GET("", h.List)
		budgets.POST("/transfer", h.Transfer)
		budgets.GET("/:id", h.Get)
		budgets.POST("/:id/allocate", h.Allocate)
		budgets.POST("/:id/deduct", h.Deduct)
		budgets.GET("/:id/usage", h.Usage)
	}
}

// CreateBudgetRequest represents a request to create a budget
type CreateBudgetRequest struct {
	FiscalYear  string          `json:"fiscal_year" binding:"required,len=4,numeric"`
	OrgUnitID   string          `json:"org_unit_id" binding:"required,uuid"`
	TotalAmount decimal.Decimal `json:"total_amount" binding:"required,dgt0"`
	Type        string          `json:"type" binding:"required"`
}

// Create creates a new budget for an org unit and fiscal year
func (h *BudgetHandler) Create(c *gin.Context) {
	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	orgUnitID, err := uuid.Parse(req.OrgUnitID)
	if err != nil {
		h.BadRequest(c, "Invalid org_unit_id")
		return
	}

	result, err := h.ledgerService.Create(c.Request.Context(), middleware.GetTenantUUID(c), appbudget.CreateBudgetInput{
		FiscalYear:  req.FiscalYear,
		OrgUnitID:   orgUnitID,
		TotalAmount: req.TotalAmount,
		Type:        req.Type,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// ListBudgetsRequest represents budget list query parameters
type ListBudgetsRequest struct {
	dto.ListRequest
	FiscalYear string `form:"fiscal_year" binding:"omitempty,len=4,numeric"`
	OrgUnitID  string `form:"org_unit_id" binding:"omitempty,uuid"`
	Type       string `form:"type"`
}

// List retrieves a paginated list of the tenant's budgets
func (h *BudgetHandler) List(c *gin.Context) {
	var req ListBudgetsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	filter := req.ToFilter()
	if req.FiscalYear != "" {
		filter.Filters["fiscal_year"] = req.FiscalYear
	}
	if req.OrgUnitID != "" {
		filter.Filters["org_unit_id"] = req.OrgUnitID
	}
	if req.Type != "" {
		filter.Filters["type"] = req.Type
	}

	result, err := h.ledgerService.List(c.Request.Context(), middleware.GetTenantUUID(c), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Budgets, result.Total, result.Page, result.PageSize)
}

// Get retrieves a single budget
func (h *BudgetHandler) Get(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid budget ID")
		return
	}

	result, err := h.ledgerService.GetByID(c.Request.Context(), middleware.GetTenantUUID(c), uuid.MustParse(req.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// AllocationTargetRequest is one org unit funded by an allocate call
type AllocationTargetRequest struct {
	OrgUnitID string          `json:"org_unit_id" binding:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" binding:"required,dgt0"`
}

// AllocateBudgetRequest represents a request to distribute funds from a
// source budget to child org units
type AllocateBudgetRequest struct {
	Targets []AllocationTargetRequest `json:"targets" binding:"required,min=1,dive"`
	Reason  string                    `json:"reason" binding:"max=500"`
	TraceID string                    `json:"trace_id" binding:"omitempty,max=100"`
}

// Allocate distributes funds from a source budget to target org units
func (h *BudgetHandler) Allocate(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid budget ID")
		return
	}

	var req AllocateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	targets := make([]appbudget.AllocationTarget, len(req.Targets))
	for i, t := range req.Targets {
		orgUnitID, err := uuid.Parse(t.OrgUnitID)
		if err != nil {
			h.BadRequest(c, "Invalid target org_unit_id")
			return
		}
		targets[i] = appbudget.AllocationTarget{OrgUnitID: orgUnitID, Amount: t.Amount}
	}

	result, err := h.ledgerService.Allocate(c.Request.Context(), middleware.GetTenantUUID(c), appbudget.AllocateInput{
		SourceBudgetID: uuid.MustParse(uri.ID),
		Targets:        targets,
		Reason:         req.Reason,
		TraceID:        req.TraceID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// TransferBudgetRequest represents a request to move funds between two
// budgets of the same fiscal year
type TransferBudgetRequest struct {
	SourceBudgetID string          `json:"source_budget_id" binding:"required,uuid"`
	TargetBudgetID string          `json:"target_budget_id" binding:"required,uuid"`
	Amount         decimal.Decimal `json:"amount" binding:"required,dgt0"`
	Type           string          `json:"type" binding:"required"`
	Traced         bool            `json:"traced"`
}

// Transfer moves funds between two budgets
func (h *BudgetHandler) Transfer(c *gin.Context) {
	var req TransferBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.ledgerService.Transfer(c.Request.Context(), middleware.GetTenantUUID(c), appbudget.TransferInput{
		SourceBudgetID: uuid.MustParse(req.SourceBudgetID),
		TargetBudgetID: uuid.MustParse(req.TargetBudgetID),
		Amount:         req.Amount,
		Type:           req.Type,
		Traced:         req.Traced,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// DeductItemRequest is one document line item to deduct
type DeductItemRequest struct {
	ItemNumber int             `json:"item_number" binding:"required,min=1"`
	Amount     decimal.Decimal `json:"amount" binding:"required,dgt0"`
}

// DeductBudgetRequest represents a request to consume budget funds against a
// procurement document
type DeductBudgetRequest struct {
	DocumentType    string              `json:"document_type" binding:"required"`
	DocumentID      string              `json:"document_id" binding:"required,max=100"`
	Items           []DeductItemRequest `json:"items" binding:"required,min=1,dive"`
	TransferTraceID string              `json:"transfer_trace_id" binding:"omitempty,max=100"`
}

// Deduct consumes budget funds against a document's line items
func (h *BudgetHandler) Deduct(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid budget ID")
		return
	}

	var req DeductBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	items := make([]appbudget.DeductItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = appbudget.DeductItem{ItemNumber: item.ItemNumber, Amount: item.Amount}
	}

	result, err := h.ledgerService.Deduct(c.Request.Context(), middleware.GetTenantUUID(c), appbudget.DeductInput{
		BudgetID:        uuid.MustParse(uri.ID),
		DocumentType:    req.DocumentType,
		DocumentID:      req.DocumentID,
		Items:           items,
		TransferTraceID: req.TransferTraceID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// UsageReportRequest represents usage report query parameters
type UsageReportRequest struct {
	TraceID   string `form:"traceId"`
	StartDate string `form:"startDate" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"endDate" binding:"omitempty,datetime=2006-01-02"`
}

// Usage produces a consumption report for a budget, optionally narrowed to a
// trace ID or date range
func (h *BudgetHandler) Usage(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid budget ID")
		return
	}

	var req UsageReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	filter := appbudget.UsageReportFilter{TraceID: req.TraceID}
	if req.StartDate != "" {
		start, _ := time.Parse("2006-01-02", req.StartDate)
		filter.StartDate = &start
	}
	if req.EndDate != "" {
		// Inclusive: the whole end day counts
		end, _ := time.Parse("2006-01-02", req.EndDate)
		end = end.Add(24*time.Hour - time.Nanosecond)
		filter.EndDate = &end
	}

	result, err := h.usageService.Report(c.Request.Context(), middleware.GetTenantUUID(c), uuid.MustParse(uri.ID), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
