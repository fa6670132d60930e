package budget

import (
	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// BudgetAllocation is an immutable record of funds distributed from a parent
// budget to a child org unit. Creating an allocation always decrements the
// source budget's available balance by the same amount in one transaction.
type BudgetAllocation struct {
	shared.TenantAggregateRoot
	SourceBudgetID uuid.UUID       `gorm:"type:uuid;not null;index"`
	FromOrgUnitID  uuid.UUID       `gorm:"type:uuid;not null"`
	ToOrgUnitID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount         decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Reason         string          `gorm:"type:varchar(500)"`
	TraceID        string          `gorm:"type:varchar(100);index"`
}

// TableName returns the table name for GORM
func (BudgetAllocation) TableName() string {
	return "budget_allocations"
}

// NewBudgetAllocation creates an allocation record
func NewBudgetAllocation(tenantID, sourceBudgetID, fromOrgUnitID, toOrgUnitID uuid.UUID, amount decimal.Decimal, reason, traceID string) (*BudgetAllocation, error) {
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	if toOrgUnitID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORG_UNIT", "Target org unit is required")
	}
	if len(reason) > 500 {
		return nil, shared.NewDomainError("INVALID_REASON", "Reason cannot exceed 500 characters")
	}

	return &BudgetAllocation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		SourceBudgetID:      sourceBudgetID,
		FromOrgUnitID:       fromOrgUnitID,
		ToOrgUnitID:         toOrgUnitID,
		Amount:              amount,
		Reason:              reason,
		TraceID:             traceID,
	}, nil
}
