package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/hms-billing/internal/payments"
	"github.com/angelmondragon/hms-billing/internal/reconciler"
	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/logger"
	"github.com/angelmondragon/hms-billing/pkg/metrics"
)

const maxLoggedPayload = 64 << 10

type adapterSource interface {
	Get(p enums.PaymentProvider) (payments.Adapter, error)
}

type paymentApplier interface {
	Apply(ctx context.Context, event payments.PaymentConfirmed) (*reconciler.Result, error)
}

type logWriter interface {
	CreateWebhookLog(ctx context.Context, entry *models.WebhookLog) error
}

type guard interface {
	Seen(ctx context.Context, provider enums.PaymentProvider, providerRef string) (bool, error)
	Record(ctx context.Context, provider enums.PaymentProvider, providerRef string) error
}

// ServiceParams wires webhook intake.
type ServiceParams struct {
	Adapters   adapterSource
	Reconciler paymentApplier
	Logs       logWriter
	// Guard is optional; without it every delivery reaches the reconciler.
	Guard   guard
	Metrics *metrics.BillingMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

// Service turns raw provider notifications into reconciled payments.
type Service struct {
	adapters   adapterSource
	reconciler paymentApplier
	logs       logWriter
	guard      guard
	metrics    *metrics.BillingMetrics
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Adapters == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "adapter registry required")
	}
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if params.Logs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook log writer required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		adapters:   params.Adapters,
		reconciler: params.Reconciler,
		logs:       params.Logs,
		guard:      params.Guard,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        now,
	}, nil
}

// Result is what intake did with one notification.
type Result struct {
	Outcome       enums.WebhookOutcome `json:"outcome"`
	ProviderRef   string               `json:"providerRef,omitempty"`
	InvoiceID     *uuid.UUID           `json:"invoiceId,omitempty"`
	InvoiceStatus enums.InvoiceStatus  `json:"invoiceStatus,omitempty"`
}

// Handle verifies, normalizes and reconciles a notification, then records it in
// the webhook log. A returned error means the provider should retry.
func (s *Service) Handle(ctx context.Context, provider enums.PaymentProvider, req payments.WebhookRequest) (*Result, error) {
	ctx = s.logg.WithProvider(ctx, provider.String())
	entry := &models.WebhookLog{
		ID:         uuid.New(),
		Provider:   provider,
		Payload:    loggablePayload(req.Body),
		ReceivedAt: s.now().UTC(),
	}

	adapter, err := s.adapters.Get(provider)
	if err != nil {
		return nil, err
	}

	notification, err := adapter.NormalizeWebhook(ctx, req)
	if err != nil {
		outcome := enums.WebhookOutcomeRejected
		if pkgerrors.CodeOf(err) == pkgerrors.CodeUnauthorized {
			outcome = enums.WebhookOutcomeUnauthorized
		}
		s.record(ctx, entry, outcome, err.Error())
		s.logg.Warn(ctx, fmt.Sprintf("webhook %s: %v", outcome, err))
		return nil, err
	}

	if rej := notification.Rejected; rej != nil {
		entry.EventType = rej.EventType
		entry.Reference = optional(rej.Reference)
		entry.ProviderRef = optional(rej.ProviderRef)
		s.record(ctx, entry, enums.WebhookOutcomeIgnored, rej.Reason)
		s.logg.Info(s.logg.WithField(ctx, "event_type", rej.EventType), "webhook ignored: "+rej.Reason)
		return &Result{Outcome: enums.WebhookOutcomeIgnored, ProviderRef: rej.ProviderRef}, nil
	}

	event := notification.Confirmed
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "adapter returned an empty notification")
	}
	entry.EventType = event.EventType
	entry.Reference = optional(event.Reference)
	entry.ProviderRef = optional(event.ProviderRef)
	ctx = s.logg.WithFields(ctx, map[string]any{"provider_ref": event.ProviderRef, "invoice_id": event.InvoiceID.String()})

	if s.guard != nil {
		seen, err := s.guard.Seen(ctx, provider, event.ProviderRef)
		switch {
		case err != nil:
			s.logg.Warn(ctx, fmt.Sprintf("webhook idempotency guard unavailable: %v", err))
		case seen:
			s.record(ctx, entry, enums.WebhookOutcomeDuplicate, "redelivery")
			s.logg.Info(ctx, "webhook redelivery skipped")
			return &Result{Outcome: enums.WebhookOutcomeDuplicate, ProviderRef: event.ProviderRef, InvoiceID: &event.InvoiceID}, nil
		}
	}

	res, err := s.reconciler.Apply(ctx, *event)
	if err != nil {
		outcome := enums.WebhookOutcomeFailed
		if code := pkgerrors.CodeOf(err); code == pkgerrors.CodeValidation || code == pkgerrors.CodeNotFound || code == pkgerrors.CodeStateConflict {
			outcome = enums.WebhookOutcomeRejected
		}
		s.record(ctx, entry, outcome, err.Error())
		s.logg.Error(ctx, "webhook reconciliation failed", err)
		return nil, err
	}
	s.remember(ctx, provider, event.ProviderRef)

	result := &Result{ProviderRef: event.ProviderRef, InvoiceID: &event.InvoiceID}
	if res.Outcome == reconciler.OutcomeDuplicate {
		result.Outcome = enums.WebhookOutcomeDuplicate
		s.record(ctx, entry, result.Outcome, "payment already recorded")
		return result, nil
	}
	result.Outcome = enums.WebhookOutcomeProcessed
	result.InvoiceStatus = res.Invoice.Status
	s.record(ctx, entry, result.Outcome, "")
	return result, nil
}

// record writes the audit row and counts the outcome. A failed write is logged;
// the ledger change it describes has already committed.
func (s *Service) record(ctx context.Context, entry *models.WebhookLog, outcome enums.WebhookOutcome, detail string) {
	entry.Outcome = outcome
	entry.Detail = optional(detail)
	s.metrics.IncWebhook(entry.Provider.String(), string(outcome))
	if err := s.logs.CreateWebhookLog(context.WithoutCancel(ctx), entry); err != nil {
		s.logg.Error(ctx, "write webhook log", err)
	}
}

// remember records a committed providerRef in the guard. It runs detached from
// the request so a provider hanging up after the commit still leaves the key.
func (s *Service) remember(ctx context.Context, provider enums.PaymentProvider, providerRef string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Record(context.WithoutCancel(ctx), provider, providerRef); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("record idempotency key: %v", err))
	}
}

func loggablePayload(body []byte) json.RawMessage {
	if len(body) == 0 || len(body) > maxLoggedPayload || !json.Valid(body) {
		return nil
	}
	return json.RawMessage(body)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
