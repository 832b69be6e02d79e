package billing

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/hms-billing/internal/payments"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/logger"
)

type stubInitiator struct {
	invoiceID uuid.UUID
	provider  enums.PaymentProvider
	payer     payments.Payer
	result    payments.InitiateResult
	err       error
	calls     int
}

func (s *stubInitiator) InitiatePayment(ctx context.Context, invoiceID uuid.UUID, provider enums.PaymentProvider, payer payments.Payer) (payments.InitiateResult, error) {
	s.calls++
	s.invoiceID = invoiceID
	s.provider = provider
	s.payer = payer
	return s.result, s.err
}

func initiateRequest(invoiceID string, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+invoiceID+"/payments", bytes.NewReader([]byte(body)))
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("invoiceId", invoiceID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestInitiatePayment(t *testing.T) {
	invoiceID := uuid.New()

	t.Run("accepted", func(t *testing.T) {
		svc := &stubInitiator{result: payments.InitiateResult{Provider: enums.PaymentProviderPaystack, Reference: "INV-1", RedirectURL: "https://checkout.paystack.com/x"}}
		rec := httptest.NewRecorder()
		body := `{"provider":"paystack","payer":{"email":"ops@ridge.example","name":"  Ama Mensah "}}`
		InitiatePayment(svc, logger.Nop()).ServeHTTP(rec, initiateRequest(invoiceID.String(), body))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202 got %d: %s", rec.Code, rec.Body.String())
		}
		if svc.invoiceID != invoiceID || svc.provider != enums.PaymentProviderPaystack {
			t.Fatalf("unexpected call: %s %s", svc.invoiceID, svc.provider)
		}
		if svc.payer.Name != "Ama Mensah" {
			t.Fatalf("expected sanitized payer name, got %q", svc.payer.Name)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		svc := &stubInitiator{}
		rec := httptest.NewRecorder()
		InitiatePayment(svc, logger.Nop()).ServeHTTP(rec, initiateRequest(invoiceID.String(), `{"provider":"paypal"}`))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
		if svc.calls != 0 {
			t.Fatalf("service should not be called")
		}
	})

	t.Run("invalid payer email", func(t *testing.T) {
		rec := httptest.NewRecorder()
		InitiatePayment(&stubInitiator{}, logger.Nop()).ServeHTTP(rec, initiateRequest(invoiceID.String(), `{"provider":"stripe","payer":{"email":"nope"}}`))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})

	t.Run("paid invoice", func(t *testing.T) {
		svc := &stubInitiator{err: pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is already PAID")}
		rec := httptest.NewRecorder()
		InitiatePayment(svc, logger.Nop()).ServeHTTP(rec, initiateRequest(invoiceID.String(), `{"provider":"flutterwave"}`))
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 got %d", rec.Code)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		svc := &stubInitiator{err: pkgerrors.New(pkgerrors.CodeRateLimit, "too many payment attempts")}
		rec := httptest.NewRecorder()
		InitiatePayment(svc, logger.Nop()).ServeHTTP(rec, initiateRequest(invoiceID.String(), `{"provider":"square"}`))
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429 got %d", rec.Code)
		}
	})

	t.Run("bad invoice id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		InitiatePayment(&stubInitiator{}, logger.Nop()).ServeHTTP(rec, initiateRequest("abc", `{"provider":"paystack"}`))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})
}
