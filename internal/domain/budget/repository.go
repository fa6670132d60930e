package budget

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// BudgetRepository defines persistence operations for budgets.
//
// Balance mutations go through DecrementAvailable/IncrementAvailable, which
// the storage layer implements as a single conditional UPDATE guarded by the
// current balance. Two concurrent callers can therefore never both observe
// sufficient funds and both succeed; the loser sees InsufficientFundsError.
type BudgetRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Budget, error)
	FindByOwner(ctx context.Context, tenantID uuid.UUID, fiscalYear string, orgUnitID uuid.UUID) (*Budget, error)
	ExistsByOwner(ctx context.Context, tenantID uuid.UUID, fiscalYear string, orgUnitID uuid.UUID) (bool, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Budget, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
	Create(ctx context.Context, b *Budget) error
	// DecrementAvailable atomically subtracts amount from the budget's
	// available balance. It must execute as
	//   UPDATE ... SET available_amount = available_amount - ?
	//   WHERE tenant_id = ? AND id = ? AND available_amount >= ?
	// and return InsufficientFundsError when no row qualifies but the budget
	// exists, or ErrBudgetNotFound when it does not.
	DecrementAvailable(ctx context.Context, tenantID, id uuid.UUID, amount decimal.Decimal) error
	// IncrementAvailable atomically adds amount to the budget's available
	// balance, returning ErrBudgetNotFound if the budget does not exist.
	IncrementAvailable(ctx context.Context, tenantID, id uuid.UUID, amount decimal.Decimal) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

// AllocationRepository stores immutable allocation records
type AllocationRepository interface {
	CreateBatch(ctx context.Context, allocations []*BudgetAllocation) error
	FindBySourceBudget(ctx context.Context, tenantID, sourceBudgetID uuid.UUID) ([]BudgetAllocation, error)
	FindByTraceID(ctx context.Context, tenantID uuid.UUID, traceID string) ([]BudgetAllocation, error)
}

// TransferRepository stores immutable transfer records
type TransferRepository interface {
	Create(ctx context.Context, transfer *BudgetTransfer) error
	FindByBudget(ctx context.Context, tenantID, budgetID uuid.UUID) ([]BudgetTransfer, error)
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*BudgetTransfer, error)
}

// ConsumptionFilter narrows consumption queries for usage reporting
type ConsumptionFilter struct {
	TraceID   string
	StartDate *time.Time
	EndDate   *time.Time
}

// ConsumptionRepository stores consumption rows keyed by
// (tenant, document, item number)
type ConsumptionRepository interface {
	// Upsert inserts the row or, when the (tenant, document, item) key
	// already exists, replaces its amount and trace id in place.
	Upsert(ctx context.Context, consumption *BudgetConsumption) error
	FindByDocumentItem(ctx context.Context, tenantID uuid.UUID, documentID string, itemNumber int) (*BudgetConsumption, error)
	FindByBudget(ctx context.Context, tenantID, budgetID uuid.UUID, filter ConsumptionFilter) ([]BudgetConsumption, error)
	SumByBudget(ctx context.Context, tenantID, budgetID uuid.UUID) (decimal.Decimal, error)
}
