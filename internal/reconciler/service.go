package reconciler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/hms-billing/internal/billing"
	"github.com/angelmondragon/hms-billing/internal/payments"
	"github.com/angelmondragon/hms-billing/pkg/db"
	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/logger"
	"github.com/angelmondragon/hms-billing/pkg/outbox"
	"github.com/angelmondragon/hms-billing/pkg/outbox/payloads"
)

const (
	providerRefConstraint = "ux_payments_provider_ref"
	sqliteProviderRefKey  = "payments.provider_ref"
	eventSource           = "reconciler"
)

// Outcome says what Apply did with a confirmation.
type Outcome string

const (
	OutcomeSettled   Outcome = "settled"
	OutcomeDuplicate Outcome = "duplicate"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type subscriptionSettler interface {
	SettleByPayment(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID) (bool, error)
}

// ServiceParams wires the reconciler.
type ServiceParams struct {
	Repo              billing.Repository
	Subscriptions     subscriptionSettler
	Outbox            outboxPublisher
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service applies confirmed provider payments to the ledger exactly once per
// provider reference.
type Service struct {
	repo          billing.Repository
	subscriptions subscriptionSettler
	outbox        outboxPublisher
	tx            txRunner
	logg          *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription service required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		repo:          params.Repo,
		subscriptions: params.Subscriptions,
		outbox:        params.Outbox,
		tx:            params.TransactionRunner,
		logg:          params.Logger,
	}, nil
}

// Result reports the ledger state after Apply. On a duplicate, Payment is the
// row recorded by the first delivery and Invoice is nil.
type Result struct {
	Outcome             Outcome
	Payment             *models.Payment
	Invoice             *models.Invoice
	SubscriptionSettled bool
}

// Apply records event as a Payment and updates its invoice in one transaction.
// Replays of a provider reference return the original payment unchanged.
func (s *Service) Apply(ctx context.Context, event payments.PaymentConfirmed) (*Result, error) {
	if err := validate(event); err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"provider":     event.Provider.String(),
		"provider_ref": event.ProviderRef,
		"invoice_id":   event.InvoiceID.String(),
	})

	if prior, err := s.repo.FindPaymentByProviderRef(ctx, event.ProviderRef); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment")
	} else if prior != nil {
		s.logg.Info(ctx, "payment already reconciled")
		return &Result{Outcome: OutcomeDuplicate, Payment: prior}, nil
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.apply(ctx, tx, event)
		return err
	})
	if err != nil {
		if isProviderRefViolation(err) {
			return s.duplicate(ctx, event.ProviderRef)
		}
		return nil, err
	}
	if result.Outcome == OutcomeDuplicate {
		return result, nil
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"amount":         event.Amount.String(),
		"invoice_status": result.Invoice.Status.String(),
		"balance":        result.Invoice.Balance.String(),
	})
	s.logg.Info(ctx, "payment reconciled")
	return result, nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, event payments.PaymentConfirmed) (*Result, error) {
	ledger := s.repo.WithTx(tx)

	invoice, err := ledger.LockInvoice(ctx, event.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}

	// Re-checked under the invoice lock so concurrent deliveries serialize here.
	prior, err := ledger.FindPaymentByProviderRef(ctx, event.ProviderRef)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		return &Result{Outcome: OutcomeDuplicate, Payment: prior}, nil
	}

	if event.TenantID != uuid.Nil && event.TenantID != invoice.TenantID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment tenant does not match invoice").
			WithDetails(map[string]any{"invoiceTenantId": invoice.TenantID, "paymentTenantId": event.TenantID})
	}
	if invoice.Status == enums.InvoiceStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is cancelled")
	}
	if !strings.EqualFold(invoice.Currency, event.Currency) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment currency does not match invoice").
			WithDetails(map[string]any{"invoiceCurrency": invoice.Currency, "paymentCurrency": event.Currency})
	}

	receivedAt := event.ReceivedAt.UTC()
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	settle(invoice, event.Amount, receivedAt)
	if invoice.AmountPaid.GreaterThan(invoice.Total) {
		s.logg.Warn(ctx, fmt.Sprintf("invoice overpaid by %s", invoice.AmountPaid.Sub(invoice.Total)))
	}

	payment := &models.Payment{
		ID:          uuid.New(),
		InvoiceID:   invoice.ID,
		TenantID:    invoice.TenantID,
		Amount:      event.Amount,
		Currency:    invoice.Currency,
		Provider:    event.Provider,
		Reference:   event.Reference,
		ProviderRef: event.ProviderRef,
		Status:      enums.PaymentStatusCompleted,
		ReceivedAt:  receivedAt,
	}
	if payment.Reference == "" {
		payment.Reference = event.ProviderRef
	}
	if err := ledger.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}
	if err := ledger.SaveSettlement(ctx, invoice); err != nil {
		return nil, err
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentSettled,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		TenantID:      invoice.TenantID,
		Source:        eventSource,
		Data: payloads.PaymentSettledEvent{
			PaymentID:     payment.ID,
			InvoiceID:     invoice.ID,
			TenantID:      invoice.TenantID,
			Provider:      payment.Provider,
			ProviderRef:   payment.ProviderRef,
			Amount:        payment.Amount,
			Currency:      payment.Currency,
			InvoiceStatus: invoice.Status,
			Balance:       invoice.Balance,
		},
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Outcome: OutcomeSettled, Payment: payment, Invoice: invoice}
	if invoice.Status == enums.InvoiceStatusPaid && invoice.SubscriptionID != nil {
		settled, err := s.subscriptions.SettleByPayment(ctx, tx, *invoice.SubscriptionID)
		if err != nil {
			return nil, err
		}
		result.SubscriptionSettled = settled
	}
	return result, nil
}

// settle derives the invoice payment columns after amount is received.
func settle(invoice *models.Invoice, amount decimal.Decimal, at time.Time) {
	invoice.AmountPaid = invoice.AmountPaid.Add(amount)
	balance := invoice.Total.Sub(invoice.AmountPaid)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	invoice.Balance = balance
	if balance.IsZero() {
		invoice.Status = enums.InvoiceStatusPaid
		invoice.PaidAt = &at
		return
	}
	invoice.Status = enums.InvoiceStatusPartiallyPaid
}

func (s *Service) duplicate(ctx context.Context, providerRef string) (*Result, error) {
	prior, err := s.repo.FindPaymentByProviderRef(ctx, providerRef)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment")
	}
	if prior == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment reference collided but no payment found")
	}
	s.logg.Info(ctx, "payment reconciled concurrently")
	return &Result{Outcome: OutcomeDuplicate, Payment: prior}, nil
}

func isProviderRefViolation(err error) bool {
	return db.IsUniqueViolation(err, providerRefConstraint) || db.IsUniqueViolation(err, sqliteProviderRefKey)
}

func validate(event payments.PaymentConfirmed) error {
	var problems []string
	if !event.Provider.IsValid() {
		problems = append(problems, "provider")
	}
	if strings.TrimSpace(event.ProviderRef) == "" {
		problems = append(problems, "providerRef")
	}
	if event.InvoiceID == uuid.Nil {
		problems = append(problems, "invoiceId")
	}
	if !event.Amount.IsPositive() {
		problems = append(problems, "amount")
	}
	if strings.TrimSpace(event.Currency) == "" {
		problems = append(problems, "currency")
	}
	if len(problems) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment confirmation").
		WithDetails(map[string]any{"fields": problems})
}
