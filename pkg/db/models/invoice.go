package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/hms-billing/pkg/enums"
)

// Invoice is a single bill. AmountPaid and Balance only move together with a Payment insert.
type Invoice struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID       uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index"`
	SubscriptionID *uuid.UUID          `gorm:"column:subscription_id;type:uuid"`
	InvoiceNumber  string              `gorm:"column:invoice_number;not null;uniqueIndex"`
	ObligationRef  *string             `gorm:"column:obligation_ref;uniqueIndex:ux_invoices_obligation_period"`
	PeriodDate     *time.Time          `gorm:"column:period_date;type:date;uniqueIndex:ux_invoices_obligation_period"`
	Subtotal       decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Total          decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	AmountPaid     decimal.Decimal     `gorm:"column:amount_paid;type:numeric(12,2);not null;default:0"`
	Balance        decimal.Decimal     `gorm:"column:balance;type:numeric(12,2);not null"`
	Currency       string              `gorm:"column:currency;not null;default:'GHS'"`
	Status         enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null;default:'PENDING'"`
	DueDate        time.Time           `gorm:"column:due_date;not null"`
	PaidAt         *time.Time          `gorm:"column:paid_at"`
	Notes          *string             `gorm:"column:notes"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	LineItems []InvoiceLineItem `gorm:"foreignKey:InvoiceID"`
}

// InvoiceLineItem is one priced row of an invoice.
type InvoiceLineItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID   uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;index"`
	Description string          `gorm:"column:description;not null"`
	Quantity    int             `gorm:"column:quantity;not null;default:1"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
