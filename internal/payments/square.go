package payments

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/square"
)

const (
	squareSignatureHeader = "x-square-hmacsha256-signature"
	squareStatusCompleted = "COMPLETED"
)

type squareGateway interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	VerifySignature(signature string, body []byte) bool
}

// Square charges a card on file and confirms over payment webhooks.
type Square struct {
	gateway squareGateway
	call    *caller
	now     func() time.Time
}

// NewSquare wraps a configured Square client.
func NewSquare(gateway squareGateway, opts CallerOptions) (*Square, error) {
	if gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "square client is required")
	}
	return &Square{
		gateway: gateway,
		call:    newCaller(enums.PaymentProviderSquare, opts),
		now:     time.Now,
	}, nil
}

func (s *Square) Provider() enums.PaymentProvider { return enums.PaymentProviderSquare }

// Initiate charges immediately; settlement still arrives through the webhook.
func (s *Square) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	if strings.TrimSpace(req.Payer.SourceID) == "" {
		return InitiateResult{}, pkgerrors.New(pkgerrors.CodeValidation, "square requires a card source id")
	}
	var payment *sq.Payment
	err := s.call.run(ctx, "create_payment", func(ctx context.Context) error {
		var err error
		payment, err = s.gateway.CreatePayment(ctx, square.PaymentCreateParams{
			AmountMinor: ToMinor(req.Amount),
			Currency:    req.Currency,
			CustomerID:  req.Payer.CustomerID,
			SourceID:    req.Payer.SourceID,
			ReferenceID: req.InvoiceID.String(),
			Note:        req.TenantID.String(),
		})
		return err
	})
	if err != nil {
		return InitiateResult{}, err
	}
	if payment == nil || payment.ID == nil {
		return InitiateResult{}, pkgerrors.New(pkgerrors.CodeDependency, "square returned no payment")
	}
	result := InitiateResult{
		Provider:  enums.PaymentProviderSquare,
		Reference: *payment.ID,
	}
	if payment.Status != nil {
		result.Status = strings.ToLower(*payment.Status)
	}
	return result, nil
}

type squareEvent struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Data      struct {
		Type   string `json:"type"`
		ID     string `json:"id"`
		Object struct {
			Payment *sq.Payment `json:"payment"`
		} `json:"object"`
	} `json:"data"`
}

// NormalizeWebhook verifies the HMAC-SHA256 signature and maps completed
// payments. The Square payment id is the settlement key.
func (s *Square) NormalizeWebhook(_ context.Context, req WebhookRequest) (Notification, error) {
	if !s.gateway.VerifySignature(req.Headers.Get(squareSignatureHeader), req.Body) {
		return Notification{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid square signature")
	}

	var event squareEvent
	if err := json.Unmarshal(req.Body, &event); err != nil {
		return Notification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode square event")
	}
	if event.Type != "payment.updated" && event.Type != "payment.created" {
		return rejected(event.Type, event.Data.ID, "event not handled"), nil
	}
	payment := event.Data.Object.Payment
	if payment == nil || payment.ID == nil {
		return Notification{}, pkgerrors.New(pkgerrors.CodeValidation, "square event missing payment")
	}
	status := deref(payment.Status)
	if status != squareStatusCompleted {
		return rejected(event.Type, *payment.ID, "payment status "+status), nil
	}
	if payment.AmountMoney == nil || payment.AmountMoney.Amount == nil {
		return Notification{}, pkgerrors.New(pkgerrors.CodeValidation, "square payment missing amount")
	}

	invoiceID, tenantID, err := parseMetadataIDs(deref(payment.ReferenceID), deref(payment.Note))
	if err != nil {
		return Notification{}, err
	}
	currency := ""
	if payment.AmountMoney.Currency != nil {
		currency = string(*payment.AmountMoney.Currency)
	}

	return confirmed(PaymentConfirmed{
		Provider:    enums.PaymentProviderSquare,
		EventType:   event.Type,
		Reference:   deref(payment.ReferenceID),
		ProviderRef: *payment.ID,
		InvoiceID:   invoiceID,
		TenantID:    tenantID,
		Amount:      FromMinor(*payment.AmountMoney.Amount),
		Currency:    strings.ToUpper(currency),
		ReceivedAt:  parseTimeOr(deref(payment.UpdatedAt), parseTimeOr(event.CreatedAt, s.now())),
	}), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
