package payments

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v82"

	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/stripe"
)

const (
	stripeSignatureHeader   = "Stripe-Signature"
	stripeCheckoutCompleted = "checkout.session.completed"
)

type stripeGateway interface {
	CreateCheckoutSession(ctx context.Context, p stripe.CheckoutParams) (*stripeapi.CheckoutSession, error)
	ConstructEvent(payload []byte, header string) (stripeapi.Event, error)
}

// Stripe collects through Checkout Sessions.
type Stripe struct {
	gateway stripeGateway
	call    *caller
	now     func() time.Time
}

// NewStripe wraps a configured Stripe client.
func NewStripe(gateway stripeGateway, opts CallerOptions) (*Stripe, error) {
	if gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe client is required")
	}
	return &Stripe{
		gateway: gateway,
		call:    newCaller(enums.PaymentProviderStripe, opts),
		now:     time.Now,
	}, nil
}

func (s *Stripe) Provider() enums.PaymentProvider { return enums.PaymentProviderStripe }

func (s *Stripe) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	var out *stripeapi.CheckoutSession
	err := s.call.run(ctx, "checkout_session", func(ctx context.Context) error {
		var err error
		out, err = s.gateway.CreateCheckoutSession(ctx, stripe.CheckoutParams{
			InvoiceID:   req.InvoiceID.String(),
			TenantID:    req.TenantID.String(),
			Description: "Invoice " + req.InvoiceNumber,
			AmountMinor: ToMinor(req.Amount),
			Currency:    req.Currency,
			Email:       req.Payer.Email,
		})
		return err
	})
	if err != nil {
		return InitiateResult{}, err
	}
	return InitiateResult{
		Provider:    enums.PaymentProviderStripe,
		Reference:   out.ID,
		RedirectURL: out.URL,
		Status:      "pending",
	}, nil
}

// NormalizeWebhook verifies Stripe-Signature and maps paid checkout sessions.
// The payment intent id is the settlement key when present.
func (s *Stripe) NormalizeWebhook(_ context.Context, req WebhookRequest) (Notification, error) {
	event, err := s.gateway.ConstructEvent(req.Body, req.Headers.Get(stripeSignatureHeader))
	if err != nil {
		return Notification{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid stripe signature")
	}
	eventType := string(event.Type)
	if eventType != stripeCheckoutCompleted {
		return rejected(eventType, event.ID, "event not handled"), nil
	}
	if event.Data == nil {
		return Notification{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe event missing data")
	}

	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return Notification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	if session.PaymentStatus != stripeapi.CheckoutSessionPaymentStatusPaid {
		return rejected(eventType, session.ID, "payment status "+string(session.PaymentStatus)), nil
	}

	invoiceRaw := session.Metadata["invoiceId"]
	if invoiceRaw == "" {
		invoiceRaw = session.ClientReferenceID
	}
	invoiceID, tenantID, err := parseMetadataIDs(invoiceRaw, session.Metadata["tenantId"])
	if err != nil {
		return Notification{}, err
	}

	providerRef := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		providerRef = session.PaymentIntent.ID
	}
	receivedAt := s.now().UTC()
	if event.Created > 0 {
		receivedAt = time.Unix(event.Created, 0).UTC()
	}

	return confirmed(PaymentConfirmed{
		Provider:    enums.PaymentProviderStripe,
		EventType:   eventType,
		Reference:   session.ID,
		ProviderRef: providerRef,
		InvoiceID:   invoiceID,
		TenantID:    tenantID,
		Amount:      FromMinor(session.AmountTotal),
		Currency:    strings.ToUpper(string(session.Currency)),
		ReceivedAt:  receivedAt,
	}), nil
}
