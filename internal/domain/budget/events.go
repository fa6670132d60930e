package budget

import (
	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event topics for the budget ledger. Entries are persisted to the outbox in
// the same transaction as the mutation they describe.
const (
	EventTypeBudgetCreated     = "budget.created"
	EventTypeBudgetAllocated   = "budget.allocated"
	EventTypeBudgetTransferred = "budget.transferred"
	EventTypeBudgetDeducted    = "budget.deducted"
)

// BudgetCreatedEvent is raised when a budget is created
type BudgetCreatedEvent struct {
	shared.BaseDomainEvent
	FiscalYear  string          `json:"fiscal_year"`
	OrgUnitID   uuid.UUID       `json:"org_unit_id"`
	BudgetType  string          `json:"budget_type"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewBudgetCreatedEvent creates a new BudgetCreatedEvent
func NewBudgetCreatedEvent(b *Budget) *BudgetCreatedEvent {
	return &BudgetCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBudgetCreated, "Budget", b.ID, b.TenantID),
		FiscalYear:      b.FiscalYear,
		OrgUnitID:       b.OrgUnitID,
		BudgetType:      string(b.Type),
		TotalAmount:     b.TotalAmount,
	}
}

// AllocationLine describes one target of an allocation event
type AllocationLine struct {
	AllocationID uuid.UUID       `json:"allocation_id"`
	ToOrgUnitID  uuid.UUID       `json:"to_org_unit_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// BudgetAllocatedEvent is raised once per allocate() call, covering every
// target funded in that call
type BudgetAllocatedEvent struct {
	shared.BaseDomainEvent
	SourceBudgetID uuid.UUID        `json:"source_budget_id"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
	TraceID        string           `json:"trace_id"`
	Lines          []AllocationLine `json:"lines"`
}

// NewBudgetAllocatedEvent creates a new BudgetAllocatedEvent
func NewBudgetAllocatedEvent(source *Budget, totalAmount decimal.Decimal, traceID string, lines []AllocationLine) *BudgetAllocatedEvent {
	return &BudgetAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBudgetAllocated, "Budget", source.ID, source.TenantID),
		SourceBudgetID:  source.ID,
		TotalAmount:     totalAmount,
		TraceID:         traceID,
		Lines:           lines,
	}
}

// BudgetTransferredEvent is raised when funds move between two budgets
type BudgetTransferredEvent struct {
	shared.BaseDomainEvent
	TransferID     uuid.UUID       `json:"transfer_id"`
	SourceBudgetID uuid.UUID       `json:"source_budget_id"`
	TargetBudgetID uuid.UUID       `json:"target_budget_id"`
	FiscalYear     string          `json:"fiscal_year"`
	Amount         decimal.Decimal `json:"amount"`
	TransferType   string          `json:"transfer_type"`
}

// NewBudgetTransferredEvent creates a new BudgetTransferredEvent
func NewBudgetTransferredEvent(t *BudgetTransfer) *BudgetTransferredEvent {
	return &BudgetTransferredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBudgetTransferred, "BudgetTransfer", t.ID, t.TenantID),
		TransferID:      t.ID,
		SourceBudgetID:  t.SourceBudgetID,
		TargetBudgetID:  t.TargetBudgetID,
		FiscalYear:      t.FiscalYear,
		Amount:          t.Amount,
		TransferType:    string(t.Type),
	}
}

// BudgetDeductedEvent is raised when budget funds are consumed against a
// procurement document
type BudgetDeductedEvent struct {
	shared.BaseDomainEvent
	BudgetID        uuid.UUID       `json:"budget_id"`
	DocumentType    string          `json:"document_type"`
	DocumentID      string          `json:"document_id"`
	Amount          decimal.Decimal `json:"amount"`
	ItemCount       int             `json:"item_count"`
	TransferTraceID string          `json:"transfer_trace_id"`
}

// NewBudgetDeductedEvent creates a new BudgetDeductedEvent
func NewBudgetDeductedEvent(b *Budget, documentType DocumentType, documentID string, amount decimal.Decimal, itemCount int, transferTraceID string) *BudgetDeductedEvent {
	return &BudgetDeductedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBudgetDeducted, "Budget", b.ID, b.TenantID),
		BudgetID:        b.ID,
		DocumentType:    string(documentType),
		DocumentID:      documentID,
		Amount:          amount,
		ItemCount:       itemCount,
		TransferTraceID: transferTraceID,
	}
}
