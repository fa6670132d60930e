package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/budget"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormBudgetRepository implements BudgetRepository using GORM
type GormBudgetRepository struct {
	db *gorm.DB
}

// NewGormBudgetRepository creates a new GormBudgetRepository
func NewGormBudgetRepository(db *gorm.DB) *GormBudgetRepository {
	return &GormBudgetRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormBudgetRepository) WithTx(tx *gorm.DB) *GormBudgetRepository {
	return &GormBudgetRepository{db: tx}
}

// FindByIDForTenant finds a budget by ID within a tenant
func (r *GormBudgetRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*budget.Budget, error) {
	var b budget.Budget
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// FindByOwner finds the budget owned by a (fiscal year, org unit) pair
func (r *GormBudgetRepository) FindByOwner(ctx context.Context, tenantID uuid.UUID, fiscalYear string, orgUnitID uuid.UUID) (*budget.Budget, error) {
	var b budget.Budget
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND fiscal_year = ? AND org_unit_id = ?", tenantID, fiscalYear, orgUnitID).
		First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// ExistsByOwner checks whether a budget exists for the (fiscal year, org unit) pair
func (r *GormBudgetRepository) ExistsByOwner(ctx context.Context, tenantID uuid.UUID, fiscalYear string, orgUnitID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&budget.Budget{}).
		Where("tenant_id = ? AND fiscal_year = ? AND org_unit_id = ?", tenantID, fiscalYear, orgUnitID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAllForTenant finds all budgets for a tenant
func (r *GormBudgetRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]budget.Budget, error) {
	var budgets []budget.Budget
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&budget.Budget{}).
			Where("tenant_id = ?", tenantID),
		filter,
	)

	if err := query.Find(&budgets).Error; err != nil {
		return nil, err
	}
	return budgets, nil
}

// CountForTenant counts budgets for a tenant
func (r *GormBudgetRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&budget.Budget{}).Where("tenant_id = ?", tenantID)
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts a new budget
func (r *GormBudgetRepository) Create(ctx context.Context, b *budget.Budget) error {
	return r.db.WithContext(ctx).Create(b).Error
}

// DecrementAvailable atomically subtracts amount from the available balance.
// The balance guard lives in the WHERE clause, so two concurrent callers can
// never both pass it; the loser re-reads the row to report the shortfall.
func (r *GormBudgetRepository) DecrementAvailable(ctx context.Context, tenantID, id uuid.UUID, amount decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&budget.Budget{}).
		Where("tenant_id = ? AND id = ? AND available_amount >= ?", tenantID, id, amount).
		UpdateColumn("available_amount", gorm.Expr("available_amount - ?", amount))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		b, err := r.FindByIDForTenant(ctx, tenantID, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return budget.ErrBudgetNotFound
			}
			return err
		}
		return budget.NewInsufficientFundsError(amount, b.AvailableAmount)
	}
	return nil
}

// IncrementAvailable atomically adds amount to the available balance
func (r *GormBudgetRepository) IncrementAvailable(ctx context.Context, tenantID, id uuid.UUID, amount decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&budget.Budget{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		UpdateColumn("available_amount", gorm.Expr("available_amount + ?", amount))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return budget.ErrBudgetNotFound
	}
	return nil
}

// DeleteForTenant soft-deletes a budget within a tenant
func (r *GormBudgetRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&budget.Budget{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var budgetSortFields = map[string]bool{
	"created_at":       true,
	"updated_at":       true,
	"fiscal_year":      true,
	"total_amount":     true,
	"available_amount": true,
}

func (r *GormBudgetRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, budgetSortFields, "created_at")
	orderDir := "ASC"
	if strings.ToLower(filter.OrderDir) != "asc" {
		orderDir = "DESC"
	}
	return query.Order(orderBy + " " + orderDir)
}

func (r *GormBudgetRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "fiscal_year":
			query = query.Where("fiscal_year = ?", value)
		case "org_unit_id":
			query = query.Where("org_unit_id = ?", value)
		case "type":
			query = query.Where("type = ?", value)
		}
	}
	return query
}

// Ensure GormBudgetRepository implements BudgetRepository
var _ budget.BudgetRepository = (*GormBudgetRepository)(nil)
