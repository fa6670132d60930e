package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditRecord captures a single auditable action with enough structured data
// to reconstruct the event independently of the tables it touched.
type AuditRecord struct {
	Action     string
	TargetType string
	TargetID   uuid.UUID
	TenantID   uuid.UUID
	UserID     *uuid.UUID
	OldValues  map[string]any
	NewValues  map[string]any
	KeyFigures map[string]any
	OccurredAt time.Time
}

// NewAuditRecord creates an audit record for the given action and target
func NewAuditRecord(action, targetType string, targetID, tenantID uuid.UUID) AuditRecord {
	return AuditRecord{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		TenantID:   tenantID,
		OccurredAt: time.Now(),
	}
}

// WithUser attaches the acting user
func (r AuditRecord) WithUser(userID uuid.UUID) AuditRecord {
	r.UserID = &userID
	return r
}

// WithValues attaches before/after snapshots
func (r AuditRecord) WithValues(oldValues, newValues map[string]any) AuditRecord {
	r.OldValues = oldValues
	r.NewValues = newValues
	return r
}

// WithKeyFigures attaches structured key figures (amounts, org units, trace ids)
func (r AuditRecord) WithKeyFigures(figures map[string]any) AuditRecord {
	r.KeyFigures = figures
	return r
}

// AuditSink receives audit records for ledger mutations. Implementations are
// best-effort: a sink failure is logged by the caller and never rolls back
// the mutation it describes.
type AuditSink interface {
	Record(ctx context.Context, record AuditRecord) error
}

// NopAuditSink discards all records. Used in tests and when auditing is disabled.
type NopAuditSink struct{}

// Record implements AuditSink
func (NopAuditSink) Record(ctx context.Context, record AuditRecord) error {
	return nil
}
