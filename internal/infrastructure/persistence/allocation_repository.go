package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/budget"
	"gorm.io/gorm"
)

// GormAllocationRepository implements AllocationRepository using GORM.
// Allocation rows are immutable; only inserts and reads exist.
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormAllocationRepository) WithTx(tx *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: tx}
}

// CreateBatch inserts all allocation rows of one allocate call
func (r *GormAllocationRepository) CreateBatch(ctx context.Context, allocations []*budget.BudgetAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(allocations).Error
}

// FindBySourceBudget lists allocations drawn from one budget, newest first
func (r *GormAllocationRepository) FindBySourceBudget(ctx context.Context, tenantID, sourceBudgetID uuid.UUID) ([]budget.BudgetAllocation, error) {
	var allocations []budget.BudgetAllocation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_budget_id = ?", tenantID, sourceBudgetID).
		Order("created_at DESC").
		Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}

// FindByTraceID lists allocations sharing one trace
func (r *GormAllocationRepository) FindByTraceID(ctx context.Context, tenantID uuid.UUID, traceID string) ([]budget.BudgetAllocation, error) {
	var allocations []budget.BudgetAllocation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND trace_id = ?", tenantID, traceID).
		Order("created_at ASC").
		Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}

// Ensure GormAllocationRepository implements AllocationRepository
var _ budget.AllocationRepository = (*GormAllocationRepository)(nil)
