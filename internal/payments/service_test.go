package payments

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/logger"
	pkgredis "github.com/angelmondragon/hms-billing/pkg/redis"
)

type stubInvoices map[uuid.UUID]*models.Invoice

func (s stubInvoices) FindInvoice(_ context.Context, id uuid.UUID) (*models.Invoice, error) {
	return s[id], nil
}

type recordingAdapter struct {
	provider enums.PaymentProvider
	requests []InitiateRequest
}

func (a *recordingAdapter) Provider() enums.PaymentProvider { return a.provider }

func (a *recordingAdapter) Initiate(_ context.Context, req InitiateRequest) (InitiateResult, error) {
	a.requests = append(a.requests, req)
	return InitiateResult{Provider: a.provider, Reference: "ref-1", Status: "pending"}, nil
}

func (a *recordingAdapter) NormalizeWebhook(context.Context, WebhookRequest) (Notification, error) {
	return Notification{}, nil
}

func invoice(status enums.InvoiceStatus, total, paid string) *models.Invoice {
	t, p := decimal.RequireFromString(total), decimal.RequireFromString(paid)
	return &models.Invoice{
		ID:            uuid.New(),
		TenantID:      testTenant,
		InvoiceNumber: "INV-AUTO-20260502-ABCDEF12",
		Total:         t,
		AmountPaid:    p,
		Balance:       t.Sub(p),
		Currency:      "GHS",
		Status:        status,
	}
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(&recordingAdapter{provider: enums.PaymentProviderPaystack})
	require.NoError(t, err)

	err = reg.Register(&recordingAdapter{provider: enums.PaymentProviderPaystack})
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	_, err = reg.Get(enums.PaymentProviderSquare)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	_, err = reg.Get(enums.PaymentProvider("CASH"))
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	assert.Equal(t, []enums.PaymentProvider{enums.PaymentProviderPaystack}, reg.Providers())
}

func TestInitiatePayment(t *testing.T) {
	partial := invoice(enums.InvoiceStatusPartiallyPaid, "100", "40")
	paid := invoice(enums.InvoiceStatusPaid, "100", "100")
	cancelled := invoice(enums.InvoiceStatusCancelled, "100", "0")
	invoices := stubInvoices{partial.ID: partial, paid.ID: paid, cancelled.ID: cancelled}

	adapter := &recordingAdapter{provider: enums.PaymentProviderFlutterwave}
	reg, err := NewRegistry(adapter)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	svc, err := NewService(ServiceParams{
		Invoices:    invoices,
		Registry:    reg,
		Logger:      logger.Nop(),
		Limiter:     pkgredis.NewFromRaw(raw),
		LimitPerMin: 2,
	})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("initiates for the outstanding balance", func(t *testing.T) {
		out, err := svc.InitiatePayment(ctx, partial.ID, enums.PaymentProviderFlutterwave, Payer{Email: "a@b.example"})
		require.NoError(t, err)
		assert.Equal(t, "ref-1", out.Reference)
		require.Len(t, adapter.requests, 1)
		assert.True(t, adapter.requests[0].Amount.Equal(decimal.NewFromInt(60)))
		assert.Equal(t, testTenant, adapter.requests[0].TenantID)
	})

	t.Run("settled and cancelled invoices are not payable", func(t *testing.T) {
		for _, inv := range []*models.Invoice{paid, cancelled} {
			_, err := svc.InitiatePayment(ctx, inv.ID, enums.PaymentProviderFlutterwave, Payer{})
			assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
		}
	})

	t.Run("unknown invoice", func(t *testing.T) {
		_, err := svc.InitiatePayment(ctx, uuid.New(), enums.PaymentProviderFlutterwave, Payer{})
		assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	})

	t.Run("unconfigured provider", func(t *testing.T) {
		_, err := svc.InitiatePayment(ctx, partial.ID, enums.PaymentProviderStripe, Payer{})
		assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	})

	t.Run("attempts are throttled per invoice", func(t *testing.T) {
		_, err := svc.InitiatePayment(ctx, partial.ID, enums.PaymentProviderFlutterwave, Payer{})
		require.NoError(t, err)
		_, err = svc.InitiatePayment(ctx, partial.ID, enums.PaymentProviderFlutterwave, Payer{})
		assert.Equal(t, pkgerrors.CodeRateLimit, pkgerrors.CodeOf(err))
	})
}
