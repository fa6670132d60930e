package persistence

import (
	"context"

	appbudget "github.com/procure/backend/internal/application/budget"
	"github.com/procure/backend/internal/domain/budget"
	"github.com/procure/backend/internal/domain/org"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/procure/backend/internal/infrastructure/event"
	"github.com/procure/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormTransactionScope implements the ledger TransactionScope using GORM
// transactions. Every repository handed to the callback, the outbox included,
// runs on the same transaction, so balance changes and their event entries
// commit or roll back together. The transaction runs through TenantDB, so an
// unbound context is refused before a transaction is ever opened.
type GormTransactionScope struct {
	tdb *tenant.TenantDB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{tdb: tenant.NewTenantDB(db)}
}

// Execute runs the given function within a tenant-scoped database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appbudget.TransactionalRepositories) error) error {
	return s.tdb.Transaction(ctx, func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to the ledger repositories
// bound to a single transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Budgets returns the budget repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Budgets() budget.BudgetRepository {
	return NewGormBudgetRepository(r.tx)
}

// Allocations returns the allocation repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Allocations() budget.AllocationRepository {
	return NewGormAllocationRepository(r.tx)
}

// Transfers returns the transfer repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Transfers() budget.TransferRepository {
	return NewGormTransferRepository(r.tx)
}

// Consumptions returns the consumption repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Consumptions() budget.ConsumptionRepository {
	return NewGormConsumptionRepository(r.tx)
}

// OrgUnits returns the org unit repository scoped to the current transaction.
func (r *gormTransactionalRepositories) OrgUnits() org.OrgUnitRepository {
	return NewGormOrgUnitRepository(r.tx)
}

// Outbox returns the outbox repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Outbox() shared.OutboxRepository {
	return event.NewGormOutboxRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appbudget.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appbudget.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
