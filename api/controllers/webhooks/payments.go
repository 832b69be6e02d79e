package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/hms-billing/api/responses"
	"github.com/angelmondragon/hms-billing/api/validators"
	"github.com/angelmondragon/hms-billing/internal/payments"
	webhooksvc "github.com/angelmondragon/hms-billing/internal/webhooks"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/logger"
)

const maxWebhookBody = 1 << 20

type webhookHandler interface {
	Handle(ctx context.Context, provider enums.PaymentProvider, req payments.WebhookRequest) (*webhooksvc.Result, error)
}

// PaymentWebhook receives a provider notification on /webhooks/{provider}.
// Any non-2xx answer asks the provider to redeliver, so notifications that can
// never apply (currency or tenant mismatch, cancelled invoice) are acknowledged
// with a rejected outcome instead.
func PaymentWebhook(svc webhookHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		provider, err := validators.ParseProviderParam(r, "provider")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}
		if len(body) > maxWebhookBody {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "webhook body too large"))
			return
		}

		result, err := svc.Handle(ctx, provider, payments.WebhookRequest{Headers: r.Header.Clone(), Body: body})
		if err != nil {
			switch pkgerrors.CodeOf(err) {
			case pkgerrors.CodeValidation, pkgerrors.CodeStateConflict:
				responses.WriteSuccess(w, map[string]any{"outcome": enums.WebhookOutcomeRejected, "reason": err.Error()})
			default:
				responses.WriteError(ctx, logg, w, err)
			}
			return
		}
		responses.WriteSuccess(w, result)
	}
}
