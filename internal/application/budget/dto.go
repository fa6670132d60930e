package budget

import (
	"time"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/budget"
	"github.com/shopspring/decimal"
)

// CreateBudgetInput contains input for creating a budget
type CreateBudgetInput struct {
	FiscalYear  string
	OrgUnitID   uuid.UUID
	TotalAmount decimal.Decimal
	Type        string
}

// AllocationTarget names one org unit funded by an allocate call
type AllocationTarget struct {
	OrgUnitID uuid.UUID
	Amount    decimal.Decimal
}

// AllocateInput contains input for distributing funds from a source budget
type AllocateInput struct {
	SourceBudgetID uuid.UUID
	Targets        []AllocationTarget
	Reason         string
	TraceID        string // Generated when empty
}

// TransferInput contains input for moving funds between two budgets
type TransferInput struct {
	SourceBudgetID uuid.UUID
	TargetBudgetID uuid.UUID
	Amount         decimal.Decimal
	Type           string
	Traced         bool
}

// DeductItem is one document line item to deduct
type DeductItem struct {
	ItemNumber int
	Amount     decimal.Decimal
}

// DeductInput contains input for consuming budget funds against a document
type DeductInput struct {
	BudgetID        uuid.UUID
	DocumentType    string
	DocumentID      string
	Items           []DeductItem
	TransferTraceID string
}

// UsageReportFilter narrows a usage report
type UsageReportFilter struct {
	TraceID   string
	StartDate *time.Time
	EndDate   *time.Time
}

// BudgetDTO represents budget data returned to callers
type BudgetDTO struct {
	ID              uuid.UUID       `json:"id"`
	FiscalYear      string          `json:"fiscal_year"`
	OrgUnitID       uuid.UUID       `json:"org_unit_id"`
	Type            string          `json:"type"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	AvailableAmount decimal.Decimal `json:"available_amount"`
	ConsumedAmount  decimal.Decimal `json:"consumed_amount"`
	ConsumedPercent decimal.Decimal `json:"consumed_percent"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// AllocationDTO represents one allocation record
type AllocationDTO struct {
	ID             uuid.UUID       `json:"id"`
	SourceBudgetID uuid.UUID       `json:"source_budget_id"`
	FromOrgUnitID  uuid.UUID       `json:"from_org_unit_id"`
	ToOrgUnitID    uuid.UUID       `json:"to_org_unit_id"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason,omitempty"`
	TraceID        string          `json:"trace_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TransferDTO represents one transfer record
type TransferDTO struct {
	ID             uuid.UUID       `json:"id"`
	SourceBudgetID uuid.UUID       `json:"source_budget_id"`
	TargetBudgetID uuid.UUID       `json:"target_budget_id"`
	FiscalYear     string          `json:"fiscal_year"`
	Amount         decimal.Decimal `json:"amount"`
	Type           string          `json:"type"`
	TraceID        string          `json:"trace_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ConsumptionDTO represents one consumption record
type ConsumptionDTO struct {
	ID              uuid.UUID       `json:"id"`
	BudgetID        uuid.UUID       `json:"budget_id"`
	DocumentType    string          `json:"document_type"`
	DocumentID      string          `json:"document_id"`
	ItemNumber      int             `json:"item_number"`
	ConsumedAmount  decimal.Decimal `json:"consumed_amount"`
	TransferTraceID string          `json:"transfer_trace_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// UsageReportDTO aggregates a budget's fund movements and consumption
type UsageReportDTO struct {
	Budget       BudgetDTO        `json:"budget"`
	Allocations  []AllocationDTO  `json:"allocations"`
	TransfersIn  []TransferDTO    `json:"transfers_in"`
	TransfersOut []TransferDTO    `json:"transfers_out"`
	Consumptions []ConsumptionDTO `json:"consumptions"`
	ConsumedSum  decimal.Decimal  `json:"consumed_sum"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

// BudgetListResult represents a paginated budget list
type BudgetListResult struct {
	Budgets    []BudgetDTO `json:"budgets"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// toBudgetDTO converts a domain Budget to its DTO
func toBudgetDTO(b *budget.Budget) *BudgetDTO {
	return &BudgetDTO{
		ID:              b.ID,
		FiscalYear:      b.FiscalYear,
		OrgUnitID:       b.OrgUnitID,
		Type:            string(b.Type),
		TotalAmount:     b.TotalAmount,
		AvailableAmount: b.AvailableAmount,
		ConsumedAmount:  b.ConsumedAmount(),
		ConsumedPercent: b.ConsumedPercent(),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// toAllocationDTO converts a domain BudgetAllocation to its DTO
func toAllocationDTO(a *budget.BudgetAllocation) AllocationDTO {
	return AllocationDTO{
		ID:             a.ID,
		SourceBudgetID: a.SourceBudgetID,
		FromOrgUnitID:  a.FromOrgUnitID,
		ToOrgUnitID:    a.ToOrgUnitID,
		Amount:         a.Amount,
		Reason:         a.Reason,
		TraceID:        a.TraceID,
		CreatedAt:      a.CreatedAt,
	}
}

// toTransferDTO converts a domain BudgetTransfer to its DTO
func toTransferDTO(t *budget.BudgetTransfer) TransferDTO {
	return TransferDTO{
		ID:             t.ID,
		SourceBudgetID: t.SourceBudgetID,
		TargetBudgetID: t.TargetBudgetID,
		FiscalYear:     t.FiscalYear,
		Amount:         t.Amount,
		Type:           string(t.Type),
		TraceID:        t.TraceID(),
		CreatedAt:      t.CreatedAt,
	}
}

// toConsumptionDTO converts a domain BudgetConsumption to its DTO
func toConsumptionDTO(c *budget.BudgetConsumption) ConsumptionDTO {
	return ConsumptionDTO{
		ID:              c.ID,
		BudgetID:        c.BudgetID,
		DocumentType:    string(c.DocumentType),
		DocumentID:      c.DocumentID,
		ItemNumber:      c.ItemNumber,
		ConsumedAmount:  c.ConsumedAmount,
		TransferTraceID: c.TransferTraceID,
		CreatedAt:       c.CreatedAt,
	}
}
