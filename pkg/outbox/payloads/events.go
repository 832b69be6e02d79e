package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/hms-billing/pkg/enums"
)

// InvoiceGeneratedEvent is emitted when a scheduled job creates an invoice.
type InvoiceGeneratedEvent struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	InvoiceNumber string          `json:"invoice_number"`
	ObligationRef string          `json:"obligation_ref"`
	PeriodDate    string          `json:"period_date"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	DueDate       time.Time       `json:"due_date"`
}

// InvoiceOverdueEvent is emitted when an unpaid invoice passes its due date.
type InvoiceOverdueEvent struct {
	InvoiceID uuid.UUID       `json:"invoice_id"`
	TenantID  uuid.UUID       `json:"tenant_id"`
	Balance   decimal.Decimal `json:"balance"`
	DueDate   time.Time       `json:"due_date"`
}

// PaymentSettledEvent is emitted once per reconciled provider payment.
type PaymentSettledEvent struct {
	PaymentID     uuid.UUID             `json:"payment_id"`
	InvoiceID     uuid.UUID             `json:"invoice_id"`
	TenantID      uuid.UUID             `json:"tenant_id"`
	Provider      enums.PaymentProvider `json:"provider"`
	ProviderRef   string                `json:"provider_ref"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
	InvoiceStatus enums.InvoiceStatus   `json:"invoice_status"`
	Balance       decimal.Decimal       `json:"balance"`
}

// SubscriptionStatusChangedEvent records every lifecycle transition.
type SubscriptionStatusChangedEvent struct {
	SubscriptionID uuid.UUID                `json:"subscription_id"`
	TenantID       uuid.UUID                `json:"tenant_id"`
	From           enums.SubscriptionStatus `json:"from"`
	To             enums.SubscriptionStatus `json:"to"`
	Reason         string                   `json:"reason"`
	PeriodEnd      time.Time                `json:"period_end"`
}

// SubscriptionPlanChangedEvent is emitted when an operator moves a tenant to another plan.
type SubscriptionPlanChangedEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	TenantID       uuid.UUID `json:"tenant_id"`
	FromPlanID     uuid.UUID `json:"from_plan_id"`
	ToPlanID       uuid.UUID `json:"to_plan_id"`
}

// TenantAccessChangedEvent covers tenant suspension and reactivation.
type TenantAccessChangedEvent struct {
	TenantID       uuid.UUID `json:"tenant_id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	Active         bool      `json:"active"`
	Reason         string    `json:"reason"`
}
