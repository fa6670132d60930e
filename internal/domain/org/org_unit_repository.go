package org

import (
	"context"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/shared"
)

// OrgUnitRepository defines persistence operations for org units.
// Every method takes the tenant ID explicitly; the storage layer applies the
// same scoping again, so a forgotten filter can only narrow, never widen.
type OrgUnitRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*OrgUnit, error)
	FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]OrgUnit, error)
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*OrgUnit, error)
	FindChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]OrgUnit, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]OrgUnit, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	Save(ctx context.Context, unit *OrgUnit) error
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}
