package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/org"
	"github.com/procure/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormOrgUnitRepository implements OrgUnitRepository using GORM
type GormOrgUnitRepository struct {
	db *gorm.DB
}

// NewGormOrgUnitRepository creates a new GormOrgUnitRepository
func NewGormOrgUnitRepository(db *gorm.DB) *GormOrgUnitRepository {
	return &GormOrgUnitRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormOrgUnitRepository) WithTx(tx *gorm.DB) *GormOrgUnitRepository {
	return &GormOrgUnitRepository{db: tx}
}

// FindByIDForTenant finds an org unit by ID within a tenant
func (r *GormOrgUnitRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*org.OrgUnit, error) {
	var unit org.OrgUnit
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&unit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &unit, nil
}

// FindByIDsForTenant finds multiple org units by their IDs within a tenant
func (r *GormOrgUnitRepository) FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]org.OrgUnit, error) {
	if len(ids) == 0 {
		return []org.OrgUnit{}, nil
	}

	var units []org.OrgUnit
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

// FindByCode finds an org unit by its code within a tenant
func (r *GormOrgUnitRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*org.OrgUnit, error) {
	var unit org.OrgUnit
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		First(&unit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &unit, nil
}

// FindChildren finds the direct children of an org unit
func (r *GormOrgUnitRepository) FindChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]org.OrgUnit, error) {
	var units []org.OrgUnit
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND parent_id = ?", tenantID, parentID).
		Order("code ASC").
		Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

// FindAllForTenant finds all org units for a tenant
func (r *GormOrgUnitRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]org.OrgUnit, error) {
	var units []org.OrgUnit
	query := r.db.WithContext(ctx).Model(&org.OrgUnit{}).Where("tenant_id = ?", tenantID)

	for key, value := range filter.Filters {
		switch key {
		case "type":
			query = query.Where("type = ?", value)
		case "parent_id":
			query = query.Where("parent_id = ?", value)
		case "level":
			query = query.Where("level = ?", value)
		}
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, orgUnitSortFields, "path")
	orderDir := "ASC"
	if strings.ToLower(filter.OrderDir) == "desc" {
		orderDir = "DESC"
	}

	if err := query.Order(orderBy + " " + orderDir).Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

// CountForTenant counts org units for a tenant
func (r *GormOrgUnitRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&org.OrgUnit{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates an org unit
func (r *GormOrgUnitRepository) Save(ctx context.Context, unit *org.OrgUnit) error {
	return r.db.WithContext(ctx).Save(unit).Error
}

// DeleteForTenant soft-deletes an org unit within a tenant
func (r *GormOrgUnitRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&org.OrgUnit{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var orgUnitSortFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"code":       true,
	"name":       true,
	"level":      true,
	"path":       true,
}

// Ensure GormOrgUnitRepository implements OrgUnitRepository
var _ org.OrgUnitRepository = (*GormOrgUnitRepository)(nil)
