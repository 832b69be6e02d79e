package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/hms-billing/internal/billing"
	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	"github.com/angelmondragon/hms-billing/pkg/logger"
)

const (
	defaultGeneratorBatch = 500
	defaultInvoiceDueIn   = 7 * 24 * time.Hour
	chargeNumberPrefix    = "AUTO"
	chargeNotes           = "Auto-generated daily ward charge"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type admissionLister interface {
	ListOpenAdmissions(ctx context.Context, afterID uuid.UUID, limit int) ([]billing.OpenAdmission, error)
}

type invoiceEnsurer interface {
	EnsureInvoice(ctx context.Context, tx *gorm.DB, draft billing.InvoiceDraft) (*models.Invoice, bool, error)
}

// ChargeGeneratorJobParams configures the recurring charge generator.
type ChargeGeneratorJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Admissions admissionLister
	Invoices   invoiceEnsurer
	Currency   string
	DueIn      time.Duration
	BatchSize  int
	Now        func() time.Time
}

// NewChargeGeneratorJob builds the job that bills every open admission once
// per calendar day.
func NewChargeGeneratorJob(params ChargeGeneratorJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Admissions == nil {
		return nil, fmt.Errorf("admission lister required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice ensurer required")
	}
	currency, err := enums.ParseCurrency(params.Currency)
	if err != nil {
		return nil, err
	}
	dueIn := params.DueIn
	if dueIn <= 0 {
		dueIn = defaultInvoiceDueIn
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultGeneratorBatch
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &chargeGeneratorJob{
		logg:       params.Logger,
		db:         params.DB,
		admissions: params.Admissions,
		invoices:   params.Invoices,
		currency:   currency.String(),
		dueIn:      dueIn,
		batch:      batch,
		now:        now,
	}, nil
}

type chargeGeneratorJob struct {
	logg       *logger.Logger
	db         txRunner
	admissions admissionLister
	invoices   invoiceEnsurer
	currency   string
	dueIn      time.Duration
	batch      int
	now        func() time.Time
}

func (j *chargeGeneratorJob) Name() string { return "recurring-charge-generator" }

// Run ensures one invoice per open admission for today's period. An invoice
// that already exists counts as skipped.
func (j *chargeGeneratorJob) Run(ctx context.Context) (JobResult, error) {
	var res JobResult
	period := billing.PeriodDate(j.now())
	unitCtx := context.WithoutCancel(ctx)

	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page, err := j.admissions.ListOpenAdmissions(ctx, after, j.batch)
		if err != nil {
			return res, fmt.Errorf("list open admissions: %w", err)
		}
		for _, adm := range page {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			after = adm.AdmissionID
			if !adm.DailyRate.IsPositive() {
				res.skipped()
				continue
			}
			created, err := j.charge(unitCtx, adm, period)
			switch {
			case err != nil:
				res.failed(fmt.Errorf("admission %s: %w", adm.AdmissionID, err))
			case created:
				res.processed()
			default:
				res.skipped()
			}
		}
		if len(page) < j.batch {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"period":    period.Format("2006-01-02"),
		"generated": res.Processed,
		"skipped":   res.Skipped,
		"failed":    res.Failed,
	})
	j.logg.Info(logCtx, "daily ward charges generated")
	return res, nil
}

func (j *chargeGeneratorJob) charge(ctx context.Context, adm billing.OpenAdmission, period time.Time) (bool, error) {
	var created bool
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		_, ok, err := j.invoices.EnsureInvoice(ctx, tx, billing.InvoiceDraft{
			TenantID:      adm.TenantID,
			ObligationRef: AdmissionObligationRef(adm.AdmissionID),
			PeriodDate:    period,
			NumberPrefix:  chargeNumberPrefix,
			Currency:      j.currency,
			DueIn:         j.dueIn,
			Notes:         chargeNotes,
			Lines: []billing.LineDraft{{
				Description: "Daily Ward Charge - " + adm.WardName,
				Quantity:    1,
				UnitPrice:   adm.DailyRate,
			}},
		})
		created = ok
		return err
	})
	return created, err
}

// AdmissionObligationRef is the obligation key of an admission's daily charge.
func AdmissionObligationRef(id uuid.UUID) string {
	return "admission:" + id.String()
}
