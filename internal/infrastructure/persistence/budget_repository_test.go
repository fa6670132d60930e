package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	appbudget "github.com/procure/backend/internal/application/budget"
	"github.com/procure/backend/internal/domain/budget"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/procure/backend/internal/infrastructure/logger"
	"github.com/procure/backend/internal/infrastructure/persistence/tenant"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	db, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return db, mock
}

func budgetRows(b *budget.Budget) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "fiscal_year", "org_unit_id", "type",
		"total_amount", "available_amount", "version", "created_at", "updated_at",
	}).AddRow(
		b.ID, b.TenantID, b.FiscalYear, b.OrgUnitID, string(b.Type),
		b.TotalAmount.String(), b.AvailableAmount.String(), b.Version, b.CreatedAt, b.UpdatedAt,
	)
}

func testBudget(tenantID uuid.UUID, available string) *budget.Budget {
	total := decimal.RequireFromString("10000")
	return &budget.Budget{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		FiscalYear:          "2026",
		OrgUnitID:           uuid.New(),
		Type:                budget.BudgetTypeDepartment,
		TotalAmount:         total,
		AvailableAmount:     decimal.RequireFromString(available),
	}
}

func TestGormBudgetRepository_DecrementAvailable_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewGormBudgetRepository(db)

	tenantID := uuid.New()
	budgetID := uuid.New()
	amount := decimal.RequireFromString("250.00")

	mock.ExpectExec(`UPDATE "budgets" SET "available_amount"=available_amount`).
		WithArgs(amount, tenantID, budgetID, amount).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DecrementAvailable(context.Background(), tenantID, budgetID, amount)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBudgetRepository_DecrementAvailable_InsufficientFunds(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewGormBudgetRepository(db)

	tenantID := uuid.New()
	b := testBudget(tenantID, "100.00")
	amount := decimal.RequireFromString("250.00")

	// Guard in the WHERE clause fails, then the re-read reports the shortfall
	mock.ExpectExec(`UPDATE "budgets" SET "available_amount"=available_amount`).
		WithArgs(amount, tenantID, b.ID, amount).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "budgets" WHERE tenant_id = \$1 AND id = \$2`).
		WithArgs(tenantID, b.ID, 1).
		WillReturnRows(budgetRows(b))

	err := repo.DecrementAvailable(context.Background(), tenantID, b.ID, amount)

	var insufficientErr *budget.InsufficientFundsError
	require.ErrorAs(t, err, &insufficientErr)
	assert.True(t, insufficientErr.Requested.Equal(amount))
	assert.True(t, insufficientErr.Available.Equal(b.AvailableAmount))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBudgetRepository_DecrementAvailable_BudgetNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewGormBudgetRepository(db)

	tenantID := uuid.New()
	budgetID := uuid.New()
	amount := decimal.RequireFromString("50.00")

	mock.ExpectExec(`UPDATE "budgets" SET "available_amount"=available_amount`).
		WithArgs(amount, tenantID, budgetID, amount).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "budgets" WHERE tenant_id = \$1 AND id = \$2`).
		WithArgs(tenantID, budgetID, 1).
		WillReturnError(gorm.ErrRecordNotFound)

	err := repo.DecrementAvailable(context.Background(), tenantID, budgetID, amount)

	assert.ErrorIs(t, err, budget.ErrBudgetNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBudgetRepository_DecrementAvailable_DatabaseError(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewGormBudgetRepository(db)

	tenantID := uuid.New()
	budgetID := uuid.New()
	amount := decimal.RequireFromString("50.00")

	mock.ExpectExec(`UPDATE "budgets" SET "available_amount"=available_amount`).
		WithArgs(amount, tenantID, budgetID, amount).
		WillReturnError(sql.ErrConnDone)

	err := repo.DecrementAvailable(context.Background(), tenantID, budgetID, amount)

	assert.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBudgetRepository_IncrementAvailable(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewGormBudgetRepository(db)

	tenantID := uuid.New()
	budgetID := uuid.New()
	amount := decimal.RequireFromString("300.00")

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "budgets" SET "available_amount"=available_amount`).
			WithArgs(amount, tenantID, budgetID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.IncrementAvailable(context.Background(), tenantID, budgetID, amount)
		require.NoError(t, err)
	})

	t.Run("missing budget", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "budgets" SET "available_amount"=available_amount`).
			WithArgs(amount, tenantID, budgetID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.IncrementAvailable(context.Background(), tenantID, budgetID, amount)
		assert.ErrorIs(t, err, budget.ErrBudgetNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBudgetRepository_FindByIDForTenant(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewGormBudgetRepository(db)

	tenantID := uuid.New()
	b := testBudget(tenantID, "10000")

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT \* FROM "budgets" WHERE tenant_id = \$1 AND id = \$2`).
			WithArgs(tenantID, b.ID, 1).
			WillReturnRows(budgetRows(b))

		found, err := repo.FindByIDForTenant(context.Background(), tenantID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, found.ID)
		assert.Equal(t, tenantID, found.TenantID)
		assert.True(t, b.AvailableAmount.Equal(found.AvailableAmount))
	})

	t.Run("not found", func(t *testing.T) {
		missing := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "budgets" WHERE tenant_id = \$1 AND id = \$2`).
			WithArgs(tenantID, missing, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		_, err := repo.FindByIDForTenant(context.Background(), tenantID, missing)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBudgetRepository_ExistsByOwner(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewGormBudgetRepository(db)

	tenantID := uuid.New()
	orgUnitID := uuid.New()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "budgets" WHERE tenant_id = \$1 AND fiscal_year = \$2 AND org_unit_id = \$3`).
		WithArgs(tenantID, "2026", orgUnitID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ExistsByOwner(context.Background(), tenantID, "2026", orgUnitID)

	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormBudgetRepository_DeleteForTenant(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewGormBudgetRepository(db)

	tenantID := uuid.New()
	budgetID := uuid.New()

	t.Run("soft deletes", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "budgets" SET "deleted_at"=\$1 WHERE tenant_id = \$2 AND id = \$3`).
			WithArgs(sqlmock.AnyArg(), tenantID, budgetID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.DeleteForTenant(context.Background(), tenantID, budgetID)
		require.NoError(t, err)
	})

	t.Run("missing budget", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "budgets" SET "deleted_at"=\$1 WHERE tenant_id = \$2 AND id = \$3`).
			WithArgs(sqlmock.AnyArg(), tenantID, budgetID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.DeleteForTenant(context.Background(), tenantID, budgetID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormConsumptionRepository_Upsert(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewGormConsumptionRepository(db)

	tenantID := uuid.New()
	budgetID := uuid.New()
	consumption, err := budget.NewBudgetConsumption(
		tenantID, budgetID, budget.DocumentTypePurchaseOrder,
		"PO-2026-0042", 1, decimal.RequireFromString("99.90"), "trace-1",
	)
	require.NoError(t, err)

	// Re-submitting the same (tenant, document, item) replaces the row
	mock.ExpectExec(`INSERT INTO "budget_consumptions" .* ON CONFLICT \("tenant_id","document_id","item_number"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Upsert(context.Background(), consumption)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormConsumptionRepository_SumByBudget(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewGormConsumptionRepository(db)

	tenantID := uuid.New()
	budgetID := uuid.New()

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(consumed_amount\), 0\) as total FROM "budget_consumptions" WHERE tenant_id = \$1 AND budget_id = \$2`).
		WithArgs(tenantID, budgetID).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow("1234.5600"))

	sum, err := repo.SumByBudget(context.Background(), tenantID, budgetID)

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(sum))
	require.NoError(t, mock.ExpectationsWereMet())
}

func boundScopeContext(tenantID uuid.UUID) context.Context {
	ctx, _ := logger.BindTenant(context.Background(), zap.NewNop(), tenantID)
	return ctx
}

func TestGormTransactionScope_RollsBackOnError(t *testing.T) {
	db, mock := setupTestDB(t)
	scope := NewGormTransactionScope(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("mutation failed")
	err := scope.Execute(boundScopeContext(uuid.New()), func(repos appbudget.TransactionalRepositories) error {
		require.NotNil(t, repos.Budgets())
		require.NotNil(t, repos.Outbox())
		return boom
	})

	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTransactionScope_CommitsOnSuccess(t *testing.T) {
	db, mock := setupTestDB(t)
	scope := NewGormTransactionScope(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := scope.Execute(boundScopeContext(uuid.New()), func(repos appbudget.TransactionalRepositories) error {
		return nil
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTransactionScope_RefusesUnboundContext(t *testing.T) {
	db, mock := setupTestDB(t)
	scope := NewGormTransactionScope(db)

	err := scope.Execute(context.Background(), func(repos appbudget.TransactionalRepositories) error {
		t.Fatal("callback must not run without a bound tenant")
		return nil
	})

	assert.ErrorIs(t, err, shared.ErrTenantUnbound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTransactionScope_AllowsSystemContext(t *testing.T) {
	db, mock := setupTestDB(t)
	scope := NewGormTransactionScope(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := scope.Execute(tenant.SystemContext(context.Background()), func(repos appbudget.TransactionalRepositories) error {
		return nil
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
