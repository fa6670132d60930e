// Package tenant provides multi-tenant database scoping for GORM.
//
// It implements automatic tenant_id filtering so cross-tenant reads and
// writes cannot happen at the storage layer even when a repository forgets
// its own WHERE clause. The tenant is taken from the request context, where
// the binding middleware placed it; an unbound context fails closed.
//
// Usage:
//
//	db := tenant.NewTenantDB(gormDB)
//	scopedDB := db.WithContext(ctx) // applies WHERE tenant_id = ?
//	scopedDB.Find(&budgets)
package tenant

import (
	"context"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/procure/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

// systemKey marks a context as acting for the system principal, which may
// read across tenants. Only tenant provisioning and the outbox processor
// create such contexts.
type systemKey struct{}

// SystemContext marks the context as a system-principal context. Tenant
// callbacks skip filtering for it.
func SystemContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, systemKey{}, true)
}

// IsSystemContext reports whether the context acts for the system principal
func IsSystemContext(ctx context.Context) bool {
	v, _ := ctx.Value(systemKey{}).(bool)
	return v
}

// TenantScope applies tenant filtering to GORM queries
func TenantScope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// TenantDB wraps GORM DB with automatic tenant scoping
type TenantDB struct {
	db           *gorm.DB
	tenantColumn string
	required     bool
}

// Config holds configuration for TenantDB
type Config struct {
	// TenantColumn is the name of the tenant ID column (default: "tenant_id")
	TenantColumn string
	// Required determines if a bound tenant is mandatory (default: true)
	Required bool
}

// DefaultConfig returns default TenantDB configuration
func DefaultConfig() Config {
	return Config{
		TenantColumn: "tenant_id",
		Required:     true,
	}
}

// NewTenantDB creates a new TenantDB with default configuration
func NewTenantDB(db *gorm.DB) *TenantDB {
	return NewTenantDBWithConfig(db, DefaultConfig())
}

// NewTenantDBWithConfig creates a new TenantDB with custom configuration
func NewTenantDBWithConfig(db *gorm.DB, cfg Config) *TenantDB {
	if cfg.TenantColumn == "" {
		cfg.TenantColumn = "tenant_id"
	}
	return &TenantDB{
		db:           db,
		tenantColumn: cfg.TenantColumn,
		required:     cfg.Required,
	}
}

// DB returns the underlying GORM DB without tenant scoping.
// Use with caution, this bypasses tenant isolation.
func (t *TenantDB) DB() *gorm.DB {
	return t.db
}

// WithContext returns a GORM DB scoped to the tenant bound to the context.
// If no tenant is bound and Required is true, the returned DB errors on any
// operation instead of running an unscoped query.
func (t *TenantDB) WithContext(ctx context.Context) *gorm.DB {
	if IsSystemContext(ctx) {
		return t.db.WithContext(ctx)
	}

	tenantID := logger.CurrentTenant(ctx)
	if tenantID == uuid.Nil {
		if t.required {
			db := t.db.WithContext(ctx)
			_ = db.AddError(shared.ErrTenantUnbound)
			return db
		}
		return t.db.WithContext(ctx)
	}

	return t.db.WithContext(ctx).Scopes(TenantScope(tenantID))
}

// WithTenant returns a GORM DB scoped to a specific tenant ID.
// Use this when you have the tenant ID directly rather than from context.
func (t *TenantDB) WithTenant(tenantID uuid.UUID) *gorm.DB {
	if tenantID == uuid.Nil {
		if t.required {
			db := t.db
			_ = db.AddError(shared.ErrTenantUnbound)
			return db
		}
		return t.db
	}
	return t.db.Scopes(TenantScope(tenantID))
}

// Transaction executes a function within a database transaction with tenant scope
func (t *TenantDB) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tenantID := logger.CurrentTenant(ctx)

	if tenantID == uuid.Nil && t.required && !IsSystemContext(ctx) {
		return shared.ErrTenantUnbound
	}

	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tenantID != uuid.Nil {
			tx = tx.Scopes(TenantScope(tenantID))
		}
		return fn(tx)
	})
}

// Unscoped returns the underlying DB without any tenant scoping.
// This should only be used for system-level operations or migrations.
func (t *TenantDB) Unscoped() *gorm.DB {
	return t.db
}
