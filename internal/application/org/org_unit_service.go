package org

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/budget"
	"github.com/procure/backend/internal/domain/org"
	"github.com/procure/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// OrgUnitService manages a tenant's organizational hierarchy. Budgets attach
// to org units, so the ledger depends on these records for its
// OrgUnitNotFound checks.
type OrgUnitService struct {
	orgUnitRepo org.OrgUnitRepository
	logger      *zap.Logger
}

// NewOrgUnitService creates a new OrgUnitService
func NewOrgUnitService(
	orgUnitRepo org.OrgUnitRepository,
	logger *zap.Logger,
) *OrgUnitService {
	return &OrgUnitService{
		orgUnitRepo: orgUnitRepo,
		logger:      logger,
	}
}

// CreateOrgUnitInput contains input for creating an org unit
type CreateOrgUnitInput struct {
	Code     string
	Name     string
	Type     string
	ParentID *uuid.UUID
}

// OrgUnitDTO represents org unit data returned to callers
type OrgUnitDTO struct {
	ID        uuid.UUID  `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	Path      string     `json:"path"`
	Level     int        `json:"level"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Create creates a new org unit, optionally under a parent of the same tenant
func (s *OrgUnitService) Create(ctx context.Context, tenantID uuid.UUID, input CreateOrgUnitInput) (*OrgUnitDTO, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrTenantUnbound
	}

	if existing, err := s.orgUnitRepo.FindByCode(ctx, tenantID, input.Code); err == nil && existing != nil {
		return nil, shared.NewDomainError("CODE_EXISTS", "Org unit code already exists")
	} else if err != nil && !errors.Is(err, shared.ErrNotFound) {
		s.logger.Error("Failed to check org unit code", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to check code availability")
	}

	unit, err := org.NewOrgUnit(tenantID, input.Code, input.Name, org.OrgUnitType(input.Type))
	if err != nil {
		return nil, err
	}

	if input.ParentID != nil {
		parent, err := s.orgUnitRepo.FindByIDForTenant(ctx, tenantID, *input.ParentID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, budget.ErrOrgUnitNotFound
			}
			return nil, err
		}
		if err := unit.SetParent(parent); err != nil {
			return nil, err
		}
	}

	if err := s.orgUnitRepo.Save(ctx, unit); err != nil {
		s.logger.Error("Failed to create org unit", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to create org unit")
	}

	s.logger.Info("Org unit created",
		zap.String("org_unit_id", unit.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("code", unit.Code),
		zap.Int("level", unit.Level))

	return toOrgUnitDTO(unit), nil
}

// GetByID retrieves one org unit within the tenant
func (s *OrgUnitService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*OrgUnitDTO, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrTenantUnbound
	}

	unit, err := s.orgUnitRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, budget.ErrOrgUnitNotFound
		}
		s.logger.Error("Failed to find org unit", zap.Error(err))
		return nil, err
	}
	return toOrgUnitDTO(unit), nil
}

// List retrieves the tenant's org units
func (s *OrgUnitService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]OrgUnitDTO, int64, error) {
	if tenantID == uuid.Nil {
		return nil, 0, shared.ErrTenantUnbound
	}

	units, err := s.orgUnitRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		s.logger.Error("Failed to list org units", zap.Error(err))
		return nil, 0, err
	}
	total, err := s.orgUnitRepo.CountForTenant(ctx, tenantID)
	if err != nil {
		s.logger.Error("Failed to count org units", zap.Error(err))
		return nil, 0, err
	}

	dtos := make([]OrgUnitDTO, len(units))
	for i := range units {
		dtos[i] = *toOrgUnitDTO(&units[i])
	}
	return dtos, total, nil
}

// Deactivate soft-deletes an org unit. Historical allocations and transfers
// keep referencing the tombstoned row.
func (s *OrgUnitService) Deactivate(ctx context.Context, tenantID, id uuid.UUID) error {
	if tenantID == uuid.Nil {
		return shared.ErrTenantUnbound
	}

	children, err := s.orgUnitRepo.FindChildren(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return shared.NewDomainError("HAS_CHILDREN", "Org unit still has active children")
	}

	if err := s.orgUnitRepo.DeleteForTenant(ctx, tenantID, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return budget.ErrOrgUnitNotFound
		}
		s.logger.Error("Failed to deactivate org unit", zap.Error(err))
		return err
	}

	s.logger.Info("Org unit deactivated",
		zap.String("org_unit_id", id.String()),
		zap.String("tenant_id", tenantID.String()))

	return nil
}

// toOrgUnitDTO converts a domain OrgUnit to its DTO
func toOrgUnitDTO(unit *org.OrgUnit) *OrgUnitDTO {
	return &OrgUnitDTO{
		ID:        unit.ID,
		Code:      unit.Code,
		Name:      unit.Name,
		Type:      string(unit.Type),
		ParentID:  unit.ParentID,
		Path:      unit.Path,
		Level:     unit.Level,
		CreatedAt: unit.CreatedAt,
		UpdatedAt: unit.UpdatedAt,
	}
}
