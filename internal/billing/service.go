package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/hms-billing/pkg/db"
	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	"github.com/angelmondragon/hms-billing/pkg/outbox"
	"github.com/angelmondragon/hms-billing/pkg/outbox/payloads"
)

const (
	obligationPeriodConstraint = "ux_invoices_obligation_period"
	eventSource                = "billing"
	periodDateLayout           = "2006-01-02"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Repo   Repository
	Outbox outboxPublisher
	Now    func() time.Time
}

// Service owns invoice creation and invoice status housekeeping.
type Service struct {
	repo   Repository
	outbox outboxPublisher
	now    func() time.Time
}

// NewService builds a billing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: params.Repo, outbox: params.Outbox, now: now}, nil
}

// LineDraft is one priced row of an invoice draft.
type LineDraft struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// InvoiceDraft describes the single invoice owed for one obligation period.
type InvoiceDraft struct {
	TenantID       uuid.UUID
	SubscriptionID *uuid.UUID
	ObligationRef  string
	PeriodDate     time.Time
	NumberPrefix   string
	Currency       string
	DueIn          time.Duration
	Notes          string
	Lines          []LineDraft
}

// PeriodDate truncates t to the UTC calendar day used as an obligation period key.
func PeriodDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// InvoiceNumber renders INV-<prefix>-<yyyymmdd>-<8 hex>.
func InvoiceNumber(prefix string, day time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s-%s", prefix, day.UTC().Format("20060102"), suffix)
}

// EnsureInvoice creates the invoice for draft unless one already exists for
// (ObligationRef, PeriodDate). It reports whether a row was created. A unique
// violation on insert means a concurrent writer won the race and is reported
// as not created. tx must be an open transaction; the insert runs under a
// savepoint so a lost race does not poison it.
func (s *Service) EnsureInvoice(ctx context.Context, tx *gorm.DB, draft InvoiceDraft) (*models.Invoice, bool, error) {
	if tx == nil {
		return nil, false, errors.New("transaction required")
	}
	if strings.TrimSpace(draft.ObligationRef) == "" {
		return nil, false, errors.New("obligation ref is required")
	}
	if len(draft.Lines) == 0 {
		return nil, false, errors.New("at least one line is required")
	}

	ledger := s.repo.WithTx(tx)
	period := PeriodDate(draft.PeriodDate)

	existing, err := ledger.FindInvoiceByObligation(ctx, draft.ObligationRef, period)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	invoice := s.buildInvoice(draft, period)
	err = tx.Transaction(func(sp *gorm.DB) error {
		if err := s.repo.WithTx(sp).CreateInvoice(ctx, invoice); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, sp, outbox.DomainEvent{
			EventType:     enums.EventInvoiceGenerated,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   invoice.ID,
			TenantID:      invoice.TenantID,
			Source:        eventSource,
			Data: payloads.InvoiceGeneratedEvent{
				InvoiceID:     invoice.ID,
				TenantID:      invoice.TenantID,
				InvoiceNumber: invoice.InvoiceNumber,
				ObligationRef: draft.ObligationRef,
				PeriodDate:    period.Format(periodDateLayout),
				Total:         invoice.Total,
				Currency:      invoice.Currency,
				DueDate:       invoice.DueDate,
			},
		})
	})
	if err == nil {
		return invoice, true, nil
	}
	if !db.IsUniqueViolation(err, obligationPeriodConstraint) {
		return nil, false, err
	}

	winner, findErr := ledger.FindInvoiceByObligation(ctx, draft.ObligationRef, period)
	if findErr != nil {
		return nil, false, findErr
	}
	if winner == nil {
		// the violation came from another unique column, not the obligation key
		return nil, false, err
	}
	return winner, false, nil
}

func (s *Service) buildInvoice(draft InvoiceDraft, period time.Time) *models.Invoice {
	now := s.now().UTC()
	invoiceID := uuid.New()
	ref := draft.ObligationRef

	subtotal := decimal.Zero
	items := make([]models.InvoiceLineItem, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		qty := line.Quantity
		if qty <= 0 {
			qty = 1
		}
		amount := line.UnitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
		subtotal = subtotal.Add(amount)
		items = append(items, models.InvoiceLineItem{
			ID:          uuid.New(),
			InvoiceID:   invoiceID,
			Description: line.Description,
			Quantity:    qty,
			UnitPrice:   line.UnitPrice.Round(2),
			Amount:      amount,
		})
	}

	prefix := draft.NumberPrefix
	if prefix == "" {
		prefix = "AUTO"
	}
	invoice := &models.Invoice{
		ID:             invoiceID,
		TenantID:       draft.TenantID,
		SubscriptionID: draft.SubscriptionID,
		InvoiceNumber:  InvoiceNumber(prefix, period),
		ObligationRef:  &ref,
		PeriodDate:     &period,
		Subtotal:       subtotal,
		Total:          subtotal,
		AmountPaid:     decimal.Zero,
		Balance:        subtotal,
		Currency:       draft.Currency,
		Status:         enums.InvoiceStatusPending,
		DueDate:        now.Add(draft.DueIn),
		LineItems:      items,
	}
	if draft.Notes != "" {
		notes := draft.Notes
		invoice.Notes = &notes
	}
	return invoice
}

// MarkOverdue flags an unpaid invoice whose due date has passed. It reports
// false when the invoice was settled or flagged by someone else first.
func (s *Service) MarkOverdue(ctx context.Context, tx *gorm.DB, invoice models.Invoice) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	changed, err := s.repo.WithTx(tx).MarkInvoiceOverdue(ctx, invoice.ID)
	if err != nil || !changed {
		return false, err
	}
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInvoiceOverdue,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   invoice.ID,
		TenantID:      invoice.TenantID,
		Source:        eventSource,
		Data: payloads.InvoiceOverdueEvent{
			InvoiceID: invoice.ID,
			TenantID:  invoice.TenantID,
			Balance:   invoice.Balance,
			DueDate:   invoice.DueDate,
		},
	})
	return err == nil, err
}

// Repo exposes the ledger repository to collaborators sharing the service.
func (s *Service) Repo() Repository {
	return s.repo
}
