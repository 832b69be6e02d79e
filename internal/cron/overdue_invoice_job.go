package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/logger"
)

const defaultOverdueBatch = 500

type overdueLister interface {
	ListOverdueInvoices(ctx context.Context, now time.Time, limit int) ([]models.Invoice, error)
}

type overdueMarker interface {
	MarkOverdue(ctx context.Context, tx *gorm.DB, invoice models.Invoice) (bool, error)
}

// OverdueInvoiceJobParams configures the overdue marker.
type OverdueInvoiceJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Invoices  overdueLister
	Marker    overdueMarker
	BatchSize int
	Now       func() time.Time
}

func NewOverdueInvoiceJob(params OverdueInvoiceJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice lister required")
	}
	if params.Marker == nil {
		return nil, fmt.Errorf("overdue marker required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultOverdueBatch
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &overdueInvoiceJob{
		logg:     params.Logger,
		db:       params.DB,
		invoices: params.Invoices,
		marker:   params.Marker,
		batch:    batch,
		now:      now,
	}, nil
}

type overdueInvoiceJob struct {
	logg     *logger.Logger
	db       txRunner
	invoices overdueLister
	marker   overdueMarker
	batch    int
	now      func() time.Time
}

func (j *overdueInvoiceJob) Name() string { return "overdue-invoice-marker" }

// Run flags unpaid invoices past their due date. Marked rows leave the
// listing, so paging stops once a batch marks nothing.
func (j *overdueInvoiceJob) Run(ctx context.Context) (JobResult, error) {
	var res JobResult
	now := j.now().UTC()
	unitCtx := context.WithoutCancel(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page, err := j.invoices.ListOverdueInvoices(ctx, now, j.batch)
		if err != nil {
			return res, fmt.Errorf("list overdue invoices: %w", err)
		}
		marked := 0
		for _, inv := range page {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			var changed bool
			err := j.db.WithTx(unitCtx, func(tx *gorm.DB) error {
				var err error
				changed, err = j.marker.MarkOverdue(unitCtx, tx, inv)
				return err
			})
			switch {
			case err != nil:
				res.failed(fmt.Errorf("invoice %s: %w", inv.ID, err))
			case changed:
				marked++
				res.processed()
			default:
				res.skipped()
			}
		}
		if len(page) < j.batch || marked == 0 {
			return res, nil
		}
	}
}
