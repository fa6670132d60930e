package budget

import (
	"context"

	"github.com/procure/backend/internal/domain/budget"
	"github.com/procure/backend/internal/domain/org"
	"github.com/procure/backend/internal/domain/shared"
)

// TransactionScope provides transactional access to ledger repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the ledger repositories within
// a transaction. All repositories returned share the same underlying database
// transaction, including the outbox: an event entry is never visible for a
// mutation that rolled back.
type TransactionalRepositories interface {
	Budgets() budget.BudgetRepository
	Allocations() budget.AllocationRepository
	Transfers() budget.TransferRepository
	Consumptions() budget.ConsumptionRepository
	OrgUnits() org.OrgUnitRepository
	Outbox() shared.OutboxRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for tests.
type NoOpTransactionScope struct {
	budgetRepo      budget.BudgetRepository
	allocationRepo  budget.AllocationRepository
	transferRepo    budget.TransferRepository
	consumptionRepo budget.ConsumptionRepository
	orgUnitRepo     org.OrgUnitRepository
	outboxRepo      shared.OutboxRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	budgetRepo budget.BudgetRepository,
	allocationRepo budget.AllocationRepository,
	transferRepo budget.TransferRepository,
	consumptionRepo budget.ConsumptionRepository,
	orgUnitRepo org.OrgUnitRepository,
	outboxRepo shared.OutboxRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		budgetRepo:      budgetRepo,
		allocationRepo:  allocationRepo,
		transferRepo:    transferRepo,
		consumptionRepo: consumptionRepo,
		orgUnitRepo:     orgUnitRepo,
		outboxRepo:      outboxRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Budgets returns the budget repository.
func (s *NoOpTransactionScope) Budgets() budget.BudgetRepository {
	return s.budgetRepo
}

// Allocations returns the allocation repository.
func (s *NoOpTransactionScope) Allocations() budget.AllocationRepository {
	return s.allocationRepo
}

// Transfers returns the transfer repository.
func (s *NoOpTransactionScope) Transfers() budget.TransferRepository {
	return s.transferRepo
}

// Consumptions returns the consumption repository.
func (s *NoOpTransactionScope) Consumptions() budget.ConsumptionRepository {
	return s.consumptionRepo
}

// OrgUnits returns the org unit repository.
func (s *NoOpTransactionScope) OrgUnits() org.OrgUnitRepository {
	return s.orgUnitRepo
}

// Outbox returns the outbox repository.
func (s *NoOpTransactionScope) Outbox() shared.OutboxRepository {
	return s.outboxRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
