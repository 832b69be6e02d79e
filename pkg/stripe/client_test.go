package stripe

import (
	"context"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/angelmondragon/hms-billing/pkg/config"
)

func TestNewClientValidatesKeys(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.StripeConfig{Secret: "whsec"}, nil); err != errAPIKeyRequired {
		t.Fatalf("expected api key error, got %v", err)
	}
	if _, err := NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1"}, nil); err != errSecretRequired {
		t.Fatalf("expected secret error, got %v", err)
	}
	if _, err := NewClient(ctx, config.StripeConfig{APIKey: "sk_live_1", Secret: "whsec", Env: "test"}, nil); err == nil {
		t.Fatalf("expected live key to be rejected in test env")
	}
	if _, err := NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec", Env: "staging"}, nil); err != errInvalidStripeEnv {
		t.Fatalf("expected env error, got %v", err)
	}
	c, err := NewClient(ctx, config.StripeConfig{APIKey: "sk_test_1", Secret: "whsec"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Environment() != testEnv {
		t.Fatalf("expected test env, got %q", c.Environment())
	}
}

func TestCreateCheckoutSessionBuildsPaymentMode(t *testing.T) {
	var captured *stripe.CheckoutSessionParams
	c := &Client{
		successURL: "https://app.example.com/paid",
		cancelURL:  "https://app.example.com/cancel",
		newSession: func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			captured = p
			return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}, nil
		},
	}

	out, err := c.CreateCheckoutSession(context.Background(), CheckoutParams{
		InvoiceID:   "inv-1",
		TenantID:    "tenant-1",
		Description: "Invoice INV-AUTO-20260310-ABCDEF12",
		AmountMinor: 8000,
		Currency:    "GHS",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ID != "cs_test_1" {
		t.Fatalf("unexpected session %q", out.ID)
	}
	if *captured.Mode != string(stripe.CheckoutSessionModePayment) {
		t.Fatalf("expected payment mode, got %s", *captured.Mode)
	}
	if captured.Metadata["invoiceId"] != "inv-1" || captured.Metadata["tenantId"] != "tenant-1" {
		t.Fatalf("metadata not set: %+v", captured.Metadata)
	}
	price := captured.LineItems[0].PriceData
	if *price.UnitAmount != 8000 || *price.Currency != "ghs" {
		t.Fatalf("unexpected price data %d %s", *price.UnitAmount, *price.Currency)
	}
	if captured.CustomerEmail != nil {
		t.Fatalf("empty email must be omitted")
	}

	if _, err := c.CreateCheckoutSession(context.Background(), CheckoutParams{AmountMinor: 0}); err == nil {
		t.Fatalf("expected zero amount to be rejected")
	}
}

func TestConstructEventVerifiesSignature(t *testing.T) {
	c := &Client{signingSecret: "whsec_test"}
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	event, err := c.ConstructEvent(payload, signed.Header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != "checkout.session.completed" {
		t.Fatalf("unexpected event type %q", event.Type)
	}

	if _, err := c.ConstructEvent(payload, "t=1,v1=deadbeef"); err == nil {
		t.Fatalf("expected bad signature to fail")
	}
}
