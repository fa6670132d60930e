package org

import (
	"github.com/procure/backend/internal/domain/shared"
)

// Event types for org unit aggregate
const (
	EventTypeOrgUnitCreated = "org_unit.created"
)

// OrgUnitCreatedEvent is raised when an org unit is created
type OrgUnitCreatedEvent struct {
	shared.BaseDomainEvent
	Code string `json:"code"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// NewOrgUnitCreatedEvent creates a new OrgUnitCreatedEvent
func NewOrgUnitCreatedEvent(unit *OrgUnit) *OrgUnitCreatedEvent {
	return &OrgUnitCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrgUnitCreated, "OrgUnit", unit.ID, unit.TenantID),
		Code:            unit.Code,
		Name:            unit.Name,
		Kind:            string(unit.Type),
	}
}
