package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// AuditLogModel is the persistence model for ledger audit records.
// Audit logs are append-only and should not be modified after creation.
type AuditLogModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	Action         string     `gorm:"type:varchar(50);not null;index"`
	TargetType     string     `gorm:"type:varchar(50);not null"`
	TargetID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	UserID         *uuid.UUID `gorm:"type:uuid;index"`
	OldValuesJSON  string     `gorm:"column:old_values;type:jsonb"`
	NewValuesJSON  string     `gorm:"column:new_values;type:jsonb"`
	KeyFiguresJSON string     `gorm:"column:key_figures;type:jsonb"`
	OccurredAt     time.Time  `gorm:"type:timestamptz;not null;index"`
	CreatedAt      time.Time  `gorm:"type:timestamptz;not null"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// GormAuditSink persists audit records to the audit_logs table. Writes run
// outside the mutation's transaction; callers treat failures as best-effort
// and log them instead of rolling back.
type GormAuditSink struct {
	db *gorm.DB
}

// NewGormAuditSink creates a new GORM-backed audit sink
func NewGormAuditSink(db *gorm.DB) *GormAuditSink {
	return &GormAuditSink{db: db}
}

// Record implements shared.AuditSink
func (s *GormAuditSink) Record(ctx context.Context, record shared.AuditRecord) error {
	model := AuditLogModel{
		ID:             uuid.New(),
		TenantID:       record.TenantID,
		Action:         record.Action,
		TargetType:     record.TargetType,
		TargetID:       record.TargetID,
		UserID:         record.UserID,
		OldValuesJSON:  marshalValues(record.OldValues),
		NewValuesJSON:  marshalValues(record.NewValues),
		KeyFiguresJSON: marshalValues(record.KeyFigures),
		OccurredAt:     record.OccurredAt,
	}

	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

func marshalValues(values map[string]any) string {
	if len(values) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// Ensure GormAuditSink implements AuditSink
var _ shared.AuditSink = (*GormAuditSink)(nil)
