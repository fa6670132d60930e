package budget

import (
	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TransferType distinguishes transfers between peers from transfers that
// cross hierarchy levels
type TransferType string

const (
	TransferTypeSameLevel  TransferType = "same_level"
	TransferTypeCrossLevel TransferType = "cross_level"
)

// IsValid reports whether the transfer type is known
func (t TransferType) IsValid() bool {
	return t == TransferTypeSameLevel || t == TransferTypeCrossLevel
}

// BudgetTransfer is an immutable record of funds moved between two budgets
// of the same fiscal year. The transfer's ID doubles as the trace ID that
// downstream consumption records carry.
type BudgetTransfer struct {
	shared.TenantAggregateRoot
	SourceBudgetID uuid.UUID       `gorm:"type:uuid;not null;index"`
	TargetBudgetID uuid.UUID       `gorm:"type:uuid;not null;index"`
	FiscalYear     string          `gorm:"type:varchar(4);not null"`
	Amount         decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Type           TransferType    `gorm:"type:varchar(20);not null"`
	Traced         bool            `gorm:"not null;default:true"` // When false, consumption against the target is not trace-linked
}

// TableName returns the table name for GORM
func (BudgetTransfer) TableName() string {
	return "budget_transfers"
}

// NewBudgetTransfer creates a transfer record between two loaded budgets.
// The fiscal-year guard lives here so no caller can record a cross-year move.
func NewBudgetTransfer(source, target *Budget, amount decimal.Decimal, transferType TransferType, traced bool) (*BudgetTransfer, error) {
	if source == nil || target == nil {
		return nil, ErrBudgetNotFound
	}
	if source.ID == target.ID {
		return nil, shared.NewDomainError("INVALID_TRANSFER", "Source and target budgets must differ")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Transfer amount must be positive")
	}
	if !transferType.IsValid() {
		return nil, shared.NewDomainError("INVALID_TRANSFER_TYPE", "Unknown transfer type")
	}
	if !source.SameFiscalYearAs(target) {
		return nil, ErrFiscalYearMismatch
	}

	return &BudgetTransfer{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(source.TenantID),
		SourceBudgetID:      source.ID,
		TargetBudgetID:      target.ID,
		FiscalYear:          source.FiscalYear,
		Amount:              amount,
		Type:                transferType,
		Traced:              traced,
	}, nil
}

// TraceID returns the identifier propagated to downstream consumption records
func (t *BudgetTransfer) TraceID() string {
	return t.ID.String()
}
