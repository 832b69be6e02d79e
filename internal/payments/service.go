package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/logger"
)

type invoiceFinder interface {
	FindInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ServiceParams wires the payment initiation service.
type ServiceParams struct {
	Invoices invoiceFinder
	Registry *Registry
	Logger   *logger.Logger
	// Limiter throttles initiation per invoice. Optional.
	Limiter     rateLimiter
	LimitPerMin int64
}

// Service starts collections against outstanding invoices.
type Service struct {
	invoices    invoiceFinder
	registry    *Registry
	logg        *logger.Logger
	limiter     rateLimiter
	limitPerMin int64
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Invoices == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice repository required")
	}
	if params.Registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "adapter registry required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	limit := params.LimitPerMin
	if limit <= 0 {
		limit = 5
	}
	return &Service{
		invoices:    params.Invoices,
		registry:    params.Registry,
		logg:        params.Logger,
		limiter:     params.Limiter,
		limitPerMin: limit,
	}, nil
}

// InitiatePayment asks provider to collect the invoice's outstanding balance.
// Nothing is written locally; settlement only happens through a confirmed
// provider notification.
func (s *Service) InitiatePayment(ctx context.Context, invoiceID uuid.UUID, provider enums.PaymentProvider, payer Payer) (InitiateResult, error) {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return InitiateResult{}, err
	}

	invoice, err := s.invoices.FindInvoice(ctx, invoiceID)
	if err != nil {
		return InitiateResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if invoice == nil {
		return InitiateResult{}, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	if !invoice.Status.IsPayable() || !invoice.Balance.IsPositive() {
		return InitiateResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is not payable").
			WithDetails(map[string]any{"status": invoice.Status, "balance": invoice.Balance.String()})
	}

	if s.limiter != nil {
		allowed, _, err := s.limiter.FixedWindowAllow(ctx, "initiate:"+invoiceID.String(), s.limitPerMin, time.Minute)
		if err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("initiate rate limit unavailable: %v", err))
		} else if !allowed {
			return InitiateResult{}, pkgerrors.New(pkgerrors.CodeRateLimit, "too many payment attempts for this invoice")
		}
	}

	ctx = s.logg.WithInvoiceID(s.logg.WithTenantID(ctx, invoice.TenantID.String()), invoice.ID.String())
	ctx = s.logg.WithProvider(ctx, provider.String())

	result, err := adapter.Initiate(ctx, InitiateRequest{
		InvoiceID:     invoice.ID,
		TenantID:      invoice.TenantID,
		InvoiceNumber: invoice.InvoiceNumber,
		Amount:        invoice.Balance,
		Currency:      invoice.Currency,
		Payer:         payer,
	})
	if err != nil {
		s.logg.Error(ctx, "payment initiation failed", err)
		return InitiateResult{}, err
	}
	s.logg.Info(s.logg.WithField(ctx, "reference", result.Reference), "payment initiated")
	return result, nil
}
