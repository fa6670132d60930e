package budget

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BudgetType tags the hierarchy level a budget is planned at
type BudgetType string

const (
	BudgetTypeCompany         BudgetType = "company"
	BudgetTypeDivision        BudgetType = "division"
	BudgetTypeDepartment      BudgetType = "department"
	BudgetTypePurchasingGroup BudgetType = "purchasing_group"
)

// IsValid reports whether the budget type is known
func (t BudgetType) IsValid() bool {
	switch t {
	case BudgetTypeCompany, BudgetTypeDivision, BudgetTypeDepartment, BudgetTypePurchasingGroup:
		return true
	}
	return false
}

// Budget is a fund pool owned by exactly one (tenant, fiscal year, org unit)
// triple. TotalAmount is fixed at creation; AvailableAmount is the running
// ledger balance mutated by allocations, transfers, and deductions.
// Budgets are never hard-deleted so historical fund movements stay traceable.
type Budget struct {
	shared.TenantAggregateRoot
	FiscalYear      string          `gorm:"type:varchar(4);not null;uniqueIndex:idx_budgets_owner,priority:2,where:deleted_at IS NULL"`
	OrgUnitID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_budgets_owner,priority:3,where:deleted_at IS NULL"`
	Type            BudgetType      `gorm:"type:varchar(30);not null"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	AvailableAmount decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	DeletedAt       gorm.DeletedAt  `gorm:"index;uniqueIndex:idx_budgets_owner,priority:4"`
}

// TableName returns the table name for GORM
func (Budget) TableName() string {
	return "budgets"
}

var fiscalYearRegex = regexp.MustCompile(`^\d{4}$`)

// NewBudget creates a budget with the full amount available
func NewBudget(tenantID uuid.UUID, fiscalYear string, orgUnitID uuid.UUID, totalAmount decimal.Decimal, budgetType BudgetType) (*Budget, error) {
	if !fiscalYearRegex.MatchString(fiscalYear) {
		return nil, shared.NewDomainError("INVALID_FISCAL_YEAR", "Fiscal year must be a four-digit year")
	}
	if orgUnitID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORG_UNIT", "Org unit is required")
	}
	if !totalAmount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Total amount must be positive")
	}
	if !budgetType.IsValid() {
		return nil, shared.NewDomainError("INVALID_BUDGET_TYPE", "Unknown budget type")
	}

	b := &Budget{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		FiscalYear:          fiscalYear,
		OrgUnitID:           orgUnitID,
		Type:                budgetType,
		TotalAmount:         totalAmount,
		AvailableAmount:     totalAmount,
	}

	b.AddDomainEvent(NewBudgetCreatedEvent(b))

	return b, nil
}

// CanCover reports whether the available balance covers the given amount
func (b *Budget) CanCover(amount decimal.Decimal) bool {
	return b.AvailableAmount.GreaterThanOrEqual(amount)
}

// ConsumedAmount returns totalAmount minus availableAmount
func (b *Budget) ConsumedAmount() decimal.Decimal {
	return b.TotalAmount.Sub(b.AvailableAmount)
}

// ConsumedPercent returns the consumed share of the total, in percent.
// Returns zero for a zero-total budget rather than dividing by zero.
func (b *Budget) ConsumedPercent() decimal.Decimal {
	if b.TotalAmount.IsZero() {
		return decimal.Zero
	}
	return b.ConsumedAmount().Div(b.TotalAmount).Mul(decimal.NewFromInt(100)).Round(2)
}

// SameFiscalYearAs reports whether both budgets belong to the same fiscal year
func (b *Budget) SameFiscalYearAs(other *Budget) bool {
	return other != nil && b.FiscalYear == other.FiscalYear
}

// Touch bumps the optimistic-lock version and update timestamp after a
// balance mutation applied through the repository's conditional update.
func (b *Budget) Touch() {
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
}
