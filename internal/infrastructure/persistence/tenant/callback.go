package tenant

import (
	"reflect"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/procure/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantCallback provides GORM callback hooks for automatic tenant scoping.
// Queries, updates, and deletes against tables that carry the tenant column
// are conjoined with the bound tenant; creates have the bound tenant written
// into the row, overriding whatever the caller supplied. Tables without the
// tenant column pass through untouched.
type TenantCallback struct {
	tenantColumn string
	required     bool
}

// NewTenantCallback creates a new tenant callback handler
func NewTenantCallback(tenantColumn string, required bool) *TenantCallback {
	if tenantColumn == "" {
		tenantColumn = "tenant_id"
	}
	return &TenantCallback{
		tenantColumn: tenantColumn,
		required:     required,
	}
}

// RegisterCallbacks registers tenant callbacks with GORM
func (tc *TenantCallback) RegisterCallbacks(db *gorm.DB) {
	_ = db.Callback().Query().Before("gorm:query").Register("tenant:before_query", tc.beforeQuery)
	_ = db.Callback().Row().Before("gorm:row").Register("tenant:before_row", tc.beforeQuery)
	_ = db.Callback().Update().Before("gorm:update").Register("tenant:before_update", tc.beforeUpdate)
	_ = db.Callback().Delete().Before("gorm:delete").Register("tenant:before_delete", tc.beforeDelete)
	_ = db.Callback().Create().Before("gorm:create").Register("tenant:before_create", tc.beforeCreate)
}

func (tc *TenantCallback) beforeQuery(db *gorm.DB) {
	tc.addTenantFilter(db)
}

func (tc *TenantCallback) beforeUpdate(db *gorm.DB) {
	tc.addTenantFilter(db)
}

func (tc *TenantCallback) beforeDelete(db *gorm.DB) {
	tc.addTenantFilter(db)
}

// beforeCreate writes the bound tenant into the rows being inserted. The
// caller-supplied value is never trusted: a row built for tenant A cannot be
// inserted while tenant B is bound.
func (tc *TenantCallback) beforeCreate(db *gorm.DB) {
	if db.Statement.Context == nil || db.Statement.Schema == nil {
		return
	}
	if IsSystemContext(db.Statement.Context) {
		return
	}

	field := db.Statement.Schema.LookUpField(tc.tenantColumn)
	if field == nil {
		return
	}

	tenantID := logger.CurrentTenant(db.Statement.Context)
	if tenantID == uuid.Nil {
		if tc.required {
			_ = db.AddError(shared.ErrTenantUnbound)
		}
		return
	}

	switch db.Statement.ReflectValue.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < db.Statement.ReflectValue.Len(); i++ {
			_ = field.Set(db.Statement.Context, db.Statement.ReflectValue.Index(i), tenantID)
		}
	case reflect.Struct:
		_ = field.Set(db.Statement.Context, db.Statement.ReflectValue, tenantID)
	}
}

// addTenantFilter conjoins the bound tenant to the statement's conditions.
// Caller-supplied tenant conditions are never trusted: the bound tenant is
// conjoined on top, so a foreign tenant value narrows the result to nothing
// instead of widening it.
func (tc *TenantCallback) addTenantFilter(db *gorm.DB) {
	if db.Statement.Context == nil {
		return
	}
	if IsSystemContext(db.Statement.Context) {
		return
	}
	if db.Statement.Unscoped {
		return
	}

	// Prebuilt raw SQL takes no further clauses
	if db.Statement.SQL.Len() > 0 {
		return
	}

	// Tables without the tenant column are not tenant-scoped
	if db.Statement.Schema != nil && db.Statement.Schema.LookUpField(tc.tenantColumn) == nil {
		return
	}

	tenantID := logger.CurrentTenant(db.Statement.Context)
	if tenantID == uuid.Nil {
		if tc.required {
			_ = db.AddError(shared.ErrTenantUnbound)
		}
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: tc.tenantColumn},
				Value:  tenantID,
			},
		},
	})
}

// EnableAutoTenantFilter enables automatic tenant scoping on a GORM DB
// instance. Repositories still filter explicitly; the callbacks are the
// second line that catches a forgotten WHERE clause.
func EnableAutoTenantFilter(db *gorm.DB, required bool) {
	tc := NewTenantCallback("tenant_id", required)
	tc.RegisterCallbacks(db)
}

// DisableAutoTenantFilter removes the tenant callbacks. Mainly for tests.
func DisableAutoTenantFilter(db *gorm.DB) {
	_ = db.Callback().Query().Remove("tenant:before_query")
	_ = db.Callback().Row().Remove("tenant:before_row")
	_ = db.Callback().Update().Remove("tenant:before_update")
	_ = db.Callback().Delete().Remove("tenant:before_delete")
	_ = db.Callback().Create().Remove("tenant:before_create")
}
