package budget

import (
	"fmt"

	"github.com/procure/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Ledger error taxonomy. All mutating operations surface one of these as a
// typed, user-facing error; nothing is silently swallowed.
var (
	ErrDuplicateBudget    = shared.NewDomainError("DUPLICATE_BUDGET", "A budget already exists for this org unit and fiscal year")
	ErrOrgUnitNotFound    = shared.NewDomainError("ORG_UNIT_NOT_FOUND", "Org unit not found within tenant")
	ErrBudgetNotFound     = shared.NewDomainError("BUDGET_NOT_FOUND", "Budget not found")
	ErrFiscalYearMismatch = shared.NewDomainError("FISCAL_YEAR_MISMATCH", "Budgets must belong to the same fiscal year")
	ErrDeductionMismatch  = shared.NewDomainError("DEDUCTION_MISMATCH", "Document item was already charged against a different budget")
)

// InsufficientFundsError reports a balance guard failure, carrying both the
// requested and the available amount so callers can render the shortfall.
type InsufficientFundsError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

// Error implements the error interface
func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient budget funds: requested %s, available %s",
		e.Requested.String(), e.Available.String())
}

// Code returns the stable error code for HTTP mapping
func (e *InsufficientFundsError) Code() string {
	return "INSUFFICIENT_FUNDS"
}

// NewInsufficientFundsError creates an InsufficientFundsError
func NewInsufficientFundsError(requested, available decimal.Decimal) *InsufficientFundsError {
	return &InsufficientFundsError{Requested: requested, Available: available}
}
