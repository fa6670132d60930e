package org

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// OrgUnitType classifies a node in the organizational hierarchy
type OrgUnitType string

const (
	OrgUnitTypeCompany         OrgUnitType = "company"
	OrgUnitTypeDivision        OrgUnitType = "division"
	OrgUnitTypeDepartment      OrgUnitType = "department"
	OrgUnitTypePurchasingGroup OrgUnitType = "purchasing_group"
)

// IsValid reports whether the type is a known hierarchy level
func (t OrgUnitType) IsValid() bool {
	switch t {
	case OrgUnitTypeCompany, OrgUnitTypeDivision, OrgUnitTypeDepartment, OrgUnitTypePurchasingGroup:
		return true
	}
	return false
}

// OrgUnit represents a node in a tenant's organizational hierarchy.
// Budgets attach to org units, and allocations distribute funds down
// the tree. Units are tombstoned via soft delete so historical
// allocations and transfers keep valid references.
type OrgUnit struct {
	shared.TenantAggregateRoot
	// Code uniqueness is per tenant; the composite partial index is created
	// during migration because the tenant column lives on the embedded root.
	Code      string         `gorm:"type:varchar(50);not null;index"`
	Name      string         `gorm:"type:varchar(200);not null"`
	Type      OrgUnitType    `gorm:"type:varchar(30);not null"`
	ParentID  *uuid.UUID     `gorm:"type:uuid;index"`
	Path      string         `gorm:"type:text"` // Materialized path, e.g. "/root-id/parent-id/this-id"
	Level     int            `gorm:"not null;default:0"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (OrgUnit) TableName() string {
	return "org_units"
}

// NewOrgUnit creates a new root-level org unit
func NewOrgUnit(tenantID uuid.UUID, code, name string, unitType OrgUnitType) (*OrgUnit, error) {
	if err := validateOrgUnitCode(code); err != nil {
		return nil, err
	}
	if err := validateOrgUnitName(name); err != nil {
		return nil, err
	}
	if !unitType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ORG_UNIT_TYPE", "Unknown org unit type")
	}

	unit := &OrgUnit{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                strings.ToUpper(strings.TrimSpace(code)),
		Name:                strings.TrimSpace(name),
		Type:                unitType,
		Level:               0,
	}
	unit.Path = "/" + unit.ID.String()

	unit.AddDomainEvent(NewOrgUnitCreatedEvent(unit))

	return unit, nil
}

// SetParent places the unit under a parent node. The parent must belong to
// the same tenant; levels increase strictly from root to leaf.
func (u *OrgUnit) SetParent(parent *OrgUnit) error {
	if parent == nil {
		u.ParentID = nil
		u.Path = "/" + u.ID.String()
		u.Level = 0
		u.UpdatedAt = time.Now()
		u.IncrementVersion()
		return nil
	}

	if parent.ID == u.ID {
		return shared.NewDomainError("INVALID_PARENT", "Org unit cannot be its own parent")
	}
	if parent.TenantID != u.TenantID {
		return shared.NewDomainError("INVALID_PARENT", "Parent org unit must belong to the same tenant")
	}
	if parent.IsDescendantOf(u.Path) {
		return shared.NewDomainError("INVALID_PARENT", "Org unit cannot be moved under its own descendant")
	}

	parentID := parent.ID
	u.ParentID = &parentID
	u.Path = parent.Path + "/" + u.ID.String()
	u.Level = parent.Level + 1
	u.UpdatedAt = time.Now()
	u.IncrementVersion()

	return nil
}

// Rename changes the display name
func (u *OrgUnit) Rename(name string) error {
	if err := validateOrgUnitName(name); err != nil {
		return err
	}
	u.Name = strings.TrimSpace(name)
	u.UpdatedAt = time.Now()
	u.IncrementVersion()
	return nil
}

// IsRoot returns true if this is a root unit (no parent)
func (u *OrgUnit) IsRoot() bool {
	return u.ParentID == nil
}

// IsAncestorOf checks if this unit is an ancestor of another unit's path
func (u *OrgUnit) IsAncestorOf(otherPath string) bool {
	return strings.HasPrefix(otherPath, u.Path+"/")
}

// IsDescendantOf checks if this unit sits under the given ancestor path
func (u *OrgUnit) IsDescendantOf(ancestorPath string) bool {
	return strings.HasPrefix(u.Path, ancestorPath+"/")
}

var orgUnitCodeRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

func validateOrgUnitCode(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return shared.NewDomainError("INVALID_ORG_UNIT_CODE", "Org unit code cannot be empty")
	}
	if len(code) < 2 {
		return shared.NewDomainError("INVALID_ORG_UNIT_CODE", "Org unit code must be at least 2 characters")
	}
	if len(code) > 50 {
		return shared.NewDomainError("INVALID_ORG_UNIT_CODE", "Org unit code cannot exceed 50 characters")
	}
	if !orgUnitCodeRegex.MatchString(code) {
		return shared.NewDomainError("INVALID_ORG_UNIT_CODE", "Org unit code must start with a letter and contain only letters, numbers, underscores, and hyphens")
	}
	return nil
}

func validateOrgUnitName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_ORG_UNIT_NAME", "Org unit name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_ORG_UNIT_NAME", "Org unit name cannot exceed 200 characters")
	}
	return nil
}
