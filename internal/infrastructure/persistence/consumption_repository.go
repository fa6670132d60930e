package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/budget"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormConsumptionRepository implements ConsumptionRepository using GORM
type GormConsumptionRepository struct {
	db *gorm.DB
}

// NewGormConsumptionRepository creates a new GormConsumptionRepository
func NewGormConsumptionRepository(db *gorm.DB) *GormConsumptionRepository {
	return &GormConsumptionRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormConsumptionRepository) WithTx(tx *gorm.DB) *GormConsumptionRepository {
	return &GormConsumptionRepository{db: tx}
}

// Upsert inserts the consumption row or replaces the amount and trace of the
// existing (tenant, document, item) row. Re-submitting a document item never
// yields a second row.
func (r *GormConsumptionRepository) Upsert(ctx context.Context, consumption *budget.BudgetConsumption) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"},
				{Name: "document_id"},
				{Name: "item_number"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"document_type",
				"consumed_amount",
				"transfer_trace_id",
				"updated_at",
			}),
		}).
		Create(consumption).Error
}

// FindByDocumentItem finds the consumption row for one document line item
func (r *GormConsumptionRepository) FindByDocumentItem(ctx context.Context, tenantID uuid.UUID, documentID string, itemNumber int) (*budget.BudgetConsumption, error) {
	var consumption budget.BudgetConsumption
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND document_id = ? AND item_number = ?", tenantID, documentID, itemNumber).
		First(&consumption).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &consumption, nil
}

// FindByBudget lists consumption rows of one budget, filtered for reporting
func (r *GormConsumptionRepository) FindByBudget(ctx context.Context, tenantID, budgetID uuid.UUID, filter budget.ConsumptionFilter) ([]budget.BudgetConsumption, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND budget_id = ?", tenantID, budgetID)

	if filter.TraceID != "" {
		query = query.Where("transfer_trace_id = ?", filter.TraceID)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	var consumptions []budget.BudgetConsumption
	if err := query.Order("created_at DESC").Find(&consumptions).Error; err != nil {
		return nil, err
	}
	return consumptions, nil
}

// SumByBudget sums consumed amounts of one budget
func (r *GormConsumptionRepository) SumByBudget(ctx context.Context, tenantID, budgetID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&budget.BudgetConsumption{}).
		Select("COALESCE(SUM(consumed_amount), 0) as total").
		Where("tenant_id = ? AND budget_id = ?", tenantID, budgetID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// Ensure GormConsumptionRepository implements ConsumptionRepository
var _ budget.ConsumptionRepository = (*GormConsumptionRepository)(nil)
