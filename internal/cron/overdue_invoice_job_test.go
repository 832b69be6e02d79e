package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/hms-billing/internal/billing"
	"github.com/angelmondragon/hms-billing/pkg/db/dbtest"
	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	"github.com/angelmondragon/hms-billing/pkg/logger"
	"github.com/angelmondragon/hms-billing/pkg/outbox"
)

func TestOverdueInvoiceJobMarksPastDueInvoices(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	now := time.Now().UTC()

	ledger := billing.NewRepository(client.DB())
	invoices, err := billing.NewService(billing.ServiceParams{
		Repo:   ledger,
		Outbox: outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop()),
	})
	require.NoError(t, err)

	tenant := dbtest.CreateTenant(t, client, "Keta Municipal")
	late := dbtest.CreateInvoice(t, client, tenant.ID, "25.00")
	require.NoError(t, client.DB().Model(&models.Invoice{}).Where("id = ?", late.ID).Update("due_date", now.AddDate(0, 0, -1)).Error)
	notYet := dbtest.CreateInvoice(t, client, tenant.ID, "25.00")

	job, err := NewOverdueInvoiceJob(OverdueInvoiceJobParams{
		Logger:    logger.Nop(),
		DB:        client,
		Invoices:  ledger,
		Marker:    invoices,
		BatchSize: 1,
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)

	res, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	reloaded, err := ledger.FindInvoice(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.InvoiceStatusOverdue, reloaded.Status)
	reloaded, err = ledger.FindInvoice(ctx, notYet.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.InvoiceStatusPending, reloaded.Status)

	var events int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventInvoiceOverdue).Count(&events).Error)
	assert.EqualValues(t, 1, events)
}
