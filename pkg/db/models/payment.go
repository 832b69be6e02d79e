package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/hms-billing/pkg/enums"
)

// Payment is a settled money movement. ProviderRef is globally unique.
type Payment struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID   uuid.UUID             `gorm:"column:invoice_id;type:uuid;not null;index"`
	TenantID    uuid.UUID             `gorm:"column:tenant_id;type:uuid;not null;index"`
	Amount      decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency    string                `gorm:"column:currency;not null"`
	Provider    enums.PaymentProvider `gorm:"column:provider;type:payment_provider;not null"`
	Reference   string                `gorm:"column:reference;not null"`
	ProviderRef string                `gorm:"column:provider_ref;not null;uniqueIndex"`
	Status      enums.PaymentStatus   `gorm:"column:status;type:payment_status;not null;default:'COMPLETED'"`
	ReceivedAt  time.Time             `gorm:"column:received_at;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
