package payments

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/hms-billing/pkg/enums"
)

// Payer carries the contact details a provider needs to collect from a tenant.
type Payer struct {
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"omitempty,min=9,max=15"`
	Name       string `json:"name" validate:"omitempty,max=120"`
	CustomerID string `json:"customerId" validate:"omitempty,max=64"`
	SourceID   string `json:"sourceId" validate:"omitempty,max=128"`
}

// InitiateRequest asks a provider to start collecting amount against an invoice.
type InitiateRequest struct {
	InvoiceID     uuid.UUID
	TenantID      uuid.UUID
	InvoiceNumber string
	Amount        decimal.Decimal
	Currency      string
	Payer         Payer
}

// InitiateResult is what the caller hands back to the payer.
type InitiateResult struct {
	Provider    enums.PaymentProvider `json:"provider"`
	Reference   string                `json:"reference"`
	RedirectURL string                `json:"redirectUrl,omitempty"`
	Status      string                `json:"status,omitempty"`
}

// WebhookRequest is a raw provider notification as received over HTTP.
type WebhookRequest struct {
	Headers http.Header
	Body    []byte
}

// PaymentConfirmed is the canonical settled-payment event every adapter emits.
// TenantID is uuid.Nil when the provider does not echo it; the reconciler
// then takes it from the invoice.
type PaymentConfirmed struct {
	Provider    enums.PaymentProvider
	EventType   string
	Reference   string
	ProviderRef string
	InvoiceID   uuid.UUID
	TenantID    uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	ReceivedAt  time.Time
}

// Rejected is a well-formed notification that carries nothing to reconcile.
type Rejected struct {
	EventType   string
	Reference   string
	ProviderRef string
	Reason      string
}

// Notification holds exactly one of Confirmed or Rejected.
type Notification struct {
	Confirmed *PaymentConfirmed
	Rejected  *Rejected
}

func confirmed(event PaymentConfirmed) Notification {
	return Notification{Confirmed: &event}
}

func rejected(eventType, reference, reason string) Notification {
	return Notification{Rejected: &Rejected{EventType: eventType, Reference: reference, Reason: reason}}
}

// Adapter is one external payment network.
type Adapter interface {
	Provider() enums.PaymentProvider
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error)
	NormalizeWebhook(ctx context.Context, req WebhookRequest) (Notification, error)
}

// ToMinor converts a major-unit amount into the provider's integer minor unit.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinor converts an integer minor-unit amount back into major units.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

func invoiceReference(prefix string, invoiceID uuid.UUID, now time.Time) string {
	return prefix + "-" + invoiceID.String()[:8] + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}
