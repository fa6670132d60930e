package budget

import (
	"strings"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DocumentType identifies the procurement document a deduction belongs to
type DocumentType string

const (
	DocumentTypePurchaseOrder DocumentType = "purchase_order"
	DocumentTypeInvoice       DocumentType = "invoice"
)

// IsValid reports whether the document type is known
func (t DocumentType) IsValid() bool {
	return t == DocumentTypePurchaseOrder || t == DocumentTypeInvoice
}

// BudgetConsumption records spend of budget funds against one line item of a
// purchase order or invoice. The (tenant, document, item number) key makes
// deduction idempotent: re-submitting the same item replaces the row instead
// of double-deducting. TransferTraceID links the spend back to the fund
// movement that financed it.
type BudgetConsumption struct {
	shared.BaseEntity
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_consumptions_item,priority:1"`
	BudgetID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	DocumentType    DocumentType    `gorm:"type:varchar(30);not null"`
	DocumentID      string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_consumptions_item,priority:2"`
	ItemNumber      int             `gorm:"not null;uniqueIndex:idx_consumptions_item,priority:3"`
	ConsumedAmount  decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	TransferTraceID string          `gorm:"type:varchar(100);index"`
}

// TableName returns the table name for GORM
func (BudgetConsumption) TableName() string {
	return "budget_consumptions"
}

// NewBudgetConsumption creates a consumption row for one document item
func NewBudgetConsumption(tenantID, budgetID uuid.UUID, documentType DocumentType, documentID string, itemNumber int, amount decimal.Decimal, transferTraceID string) (*BudgetConsumption, error) {
	if !documentType.IsValid() {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_TYPE", "Unknown document type")
	}
	if strings.TrimSpace(documentID) == "" {
		return nil, shared.NewDomainError("INVALID_DOCUMENT", "Document ID cannot be empty")
	}
	if itemNumber <= 0 {
		return nil, shared.NewDomainError("INVALID_ITEM_NUMBER", "Item number must be positive")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Consumed amount must be positive")
	}

	return &BudgetConsumption{
		BaseEntity:      shared.NewBaseEntity(),
		TenantID:        tenantID,
		BudgetID:        budgetID,
		DocumentType:    documentType,
		DocumentID:      documentID,
		ItemNumber:      itemNumber,
		ConsumedAmount:  amount,
		TransferTraceID: transferTraceID,
	}, nil
}
