package billing

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/hms-billing/api/responses"
	"github.com/angelmondragon/hms-billing/api/validators"
	"github.com/angelmondragon/hms-billing/internal/payments"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/logger"
)

type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, invoiceID uuid.UUID, provider enums.PaymentProvider, payer payments.Payer) (payments.InitiateResult, error)
}

type initiatePaymentRequest struct {
	Provider string         `json:"provider" validate:"required"`
	Payer    payments.Payer `json:"payer"`
}

// InitiatePayment starts a provider checkout for an invoice's outstanding
// balance. The invoice is only settled once the provider's webhook arrives.
func InitiatePayment(svc PaymentInitiator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		invoiceID, err := validators.ParseUUIDParam(r, "invoiceId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload initiatePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		provider, err := enums.ParsePaymentProvider(payload.Provider)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid provider").
				WithDetails(map[string]string{"provider": "must be one of paystack, flutterwave, stripe, mtn_momo, square"}))
			return
		}
		payload.Payer.Name = validators.SanitizeString(payload.Payer.Name, 120)

		result, err := svc.InitiatePayment(ctx, invoiceID, provider, payload.Payer)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, result)
	}
}
