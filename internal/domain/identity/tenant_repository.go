package identity

import (
	"context"

	"github.com/google/uuid"
)

// TenantRepository defines persistence operations for tenants.
// Tenant rows are the isolation root and are deliberately not tenant-scoped
// themselves; only provisioning and resolution code may use this repository.
type TenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	FindByCode(ctx context.Context, code string) (*Tenant, error)
	FindByDomain(ctx context.Context, domain string) (*Tenant, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Save(ctx context.Context, tenant *Tenant) error
}
