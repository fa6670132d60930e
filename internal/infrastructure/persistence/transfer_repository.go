package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/budget"
	"github.com/procure/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormTransferRepository implements TransferRepository using GORM
type GormTransferRepository struct {
	db *gorm.DB
}

// NewGormTransferRepository creates a new GormTransferRepository
func NewGormTransferRepository(db *gorm.DB) *GormTransferRepository {
	return &GormTransferRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormTransferRepository) WithTx(tx *gorm.DB) *GormTransferRepository {
	return &GormTransferRepository{db: tx}
}

// Create inserts a transfer record
func (r *GormTransferRepository) Create(ctx context.Context, transfer *budget.BudgetTransfer) error {
	return r.db.WithContext(ctx).Create(transfer).Error
}

// FindByBudget lists transfers where the budget is source or target, newest first
func (r *GormTransferRepository) FindByBudget(ctx context.Context, tenantID, budgetID uuid.UUID) ([]budget.BudgetTransfer, error) {
	var transfers []budget.BudgetTransfer
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND (source_budget_id = ? OR target_budget_id = ?)", tenantID, budgetID, budgetID).
		Order("created_at DESC").
		Find(&transfers).Error; err != nil {
		return nil, err
	}
	return transfers, nil
}

// FindByIDForTenant finds a transfer by ID within a tenant
func (r *GormTransferRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*budget.BudgetTransfer, error) {
	var transfer budget.BudgetTransfer
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&transfer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &transfer, nil
}

// Ensure GormTransferRepository implements TransferRepository
var _ budget.TransferRepository = (*GormTransferRepository)(nil)
