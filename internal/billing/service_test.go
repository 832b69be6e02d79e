package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/hms-billing/pkg/db"
	"github.com/angelmondragon/hms-billing/pkg/db/dbtest"
	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	"github.com/angelmondragon/hms-billing/pkg/logger"
	"github.com/angelmondragon/hms-billing/pkg/outbox"
)

var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func createServiceTest(t *testing.T, repo Repository, client *db.Client) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Outbox: outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop()),
		Now:    func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc
}

func wardDraft(tenantID uuid.UUID, ref string) InvoiceDraft {
	return InvoiceDraft{
		TenantID:      tenantID,
		ObligationRef: ref,
		PeriodDate:    fixedNow,
		NumberPrefix:  "AUTO",
		Currency:      "GHS",
		DueIn:         7 * 24 * time.Hour,
		Notes:         "Auto-generated daily ward charge",
		Lines: []LineDraft{{
			Description: "Daily Ward Charge - Maternity",
			Quantity:    1,
			UnitPrice:   decimal.NewFromInt(80),
		}},
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)

	_, err = NewService(ServiceParams{Repo: NewRepository(nil)})
	require.Error(t, err)
}

func TestEnsureInvoiceCreatesOncePerObligationPeriod(t *testing.T) {
	client := dbtest.Open(t)
	tenant := dbtest.CreateTenant(t, client, "Korle Bu")
	svc := createServiceTest(t, NewRepository(client.DB()), client)
	ctx := context.Background()
	ref := uuid.NewString()

	var first *models.Invoice
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		inv, created, err := svc.EnsureInvoice(ctx, tx, wardDraft(tenant.ID, ref))
		require.True(t, created)
		first = inv
		return err
	}))

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		inv, created, err := svc.EnsureInvoice(ctx, tx, wardDraft(tenant.ID, ref))
		require.False(t, created)
		require.Equal(t, first.ID, inv.ID)
		return err
	}))

	var invoices []models.Invoice
	require.NoError(t, client.DB().Preload("LineItems").Where("obligation_ref = ?", ref).Find(&invoices).Error)
	require.Len(t, invoices, 1)
	got := invoices[0]
	assert.True(t, got.Total.Equal(decimal.NewFromInt(80)))
	assert.True(t, got.Balance.Equal(got.Total))
	assert.True(t, got.AmountPaid.IsZero())
	assert.Equal(t, enums.InvoiceStatusPending, got.Status)
	assert.Regexp(t, `^INV-AUTO-20260310-[0-9A-F]{8}$`, got.InvoiceNumber)
	assert.True(t, fixedNow.Add(7*24*time.Hour).Equal(got.DueDate))
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, "Daily Ward Charge - Maternity", got.LineItems[0].Description)

	var events int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventInvoiceGenerated).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestEnsureInvoiceTreatsPeriodDateAsCalendarDay(t *testing.T) {
	client := dbtest.Open(t)
	tenant := dbtest.CreateTenant(t, client, "Ridge")
	svc := createServiceTest(t, NewRepository(client.DB()), client)
	ctx := context.Background()
	ref := uuid.NewString()

	morning := wardDraft(tenant.ID, ref)
	morning.PeriodDate = time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	evening := wardDraft(tenant.ID, ref)
	evening.PeriodDate = time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	nextDay := wardDraft(tenant.ID, ref)
	nextDay.PeriodDate = time.Date(2026, 3, 11, 0, 30, 0, 0, time.UTC)

	created := 0
	for _, draft := range []InvoiceDraft{morning, evening, nextDay} {
		require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
			_, ok, err := svc.EnsureInvoice(ctx, tx, draft)
			if ok {
				created++
			}
			return err
		}))
	}
	assert.Equal(t, 2, created)
}

// staleRepo hides existing invoices from the first lookup to force the insert race.
type staleRepo struct {
	Repository
	lookups *int
}

func (s staleRepo) WithTx(tx *gorm.DB) Repository {
	return staleRepo{Repository: s.Repository.WithTx(tx), lookups: s.lookups}
}

func (s staleRepo) FindInvoiceByObligation(ctx context.Context, ref string, period time.Time) (*models.Invoice, error) {
	*s.lookups++
	if *s.lookups == 1 {
		return nil, nil
	}
	return s.Repository.FindInvoiceByObligation(ctx, ref, period)
}

func TestEnsureInvoiceTreatsUniqueViolationAsAlreadyHandled(t *testing.T) {
	client := dbtest.Open(t)
	tenant := dbtest.CreateTenant(t, client, "Tamale Teaching")
	ledger := NewRepository(client.DB())
	ctx := context.Background()
	ref := uuid.NewString()

	var winner *models.Invoice
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		inv, created, err := createServiceTest(t, ledger, client).EnsureInvoice(ctx, tx, wardDraft(tenant.ID, ref))
		require.True(t, created)
		winner = inv
		return err
	}))

	lookups := 0
	svc := createServiceTest(t, staleRepo{Repository: ledger, lookups: &lookups}, client)
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		inv, created, err := svc.EnsureInvoice(ctx, tx, wardDraft(tenant.ID, ref))
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, winner.ID, inv.ID)
		return nil
	}))
	assert.Equal(t, 2, lookups)

	var count int64
	require.NoError(t, client.DB().Model(&models.Invoice{}).Where("obligation_ref = ?", ref).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var events int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestEnsureInvoiceValidatesDraft(t *testing.T) {
	client := dbtest.Open(t)
	svc := createServiceTest(t, NewRepository(client.DB()), client)
	ctx := context.Background()

	_, _, err := svc.EnsureInvoice(ctx, nil, wardDraft(uuid.New(), "x"))
	require.Error(t, err)

	require.Error(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		_, _, err := svc.EnsureInvoice(ctx, tx, InvoiceDraft{ObligationRef: "x"})
		return err
	}))
}

func TestMarkOverdueOnlyFlagsUnpaidInvoices(t *testing.T) {
	client := dbtest.Open(t)
	tenant := dbtest.CreateTenant(t, client, "Komfo Anokye")
	repo := NewRepository(client.DB())
	svc := createServiceTest(t, repo, client)
	ctx := context.Background()

	late := dbtest.CreateInvoice(t, client, tenant.ID, "120")
	paid := dbtest.CreateInvoice(t, client, tenant.ID, "50")
	require.NoError(t, client.DB().Model(&models.Invoice{}).Where("id IN ?", []uuid.UUID{late.ID, paid.ID}).
		Update("due_date", fixedNow.Add(-48*time.Hour)).Error)
	require.NoError(t, client.DB().Model(&models.Invoice{}).Where("id = ?", paid.ID).
		Update("status", enums.InvoiceStatusPaid).Error)

	due, err := repo.ListOverdueInvoices(ctx, fixedNow, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, late.ID, due[0].ID)

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		changed, err := svc.MarkOverdue(ctx, tx, due[0])
		require.True(t, changed)
		return err
	}))
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		changed, err := svc.MarkOverdue(ctx, tx, due[0])
		require.False(t, changed)
		return err
	}))

	reloaded, err := repo.FindInvoice(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.InvoiceStatusOverdue, reloaded.Status)
}

func TestListOpenAdmissionsSkipsDischargedAndInactiveTenants(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	active := dbtest.CreateTenant(t, client, "Active")
	inactive := dbtest.CreateTenant(t, client, "Inactive")
	require.NoError(t, repo.SetTenantActive(ctx, inactive.ID, false))

	ward := models.Ward{ID: uuid.New(), TenantID: active.ID, Name: "Maternity", DailyRate: decimal.NewFromInt(80)}
	otherWard := models.Ward{ID: uuid.New(), TenantID: inactive.ID, Name: "Surgical", DailyRate: decimal.NewFromInt(120)}
	require.NoError(t, client.DB().Create(&ward).Error)
	require.NoError(t, client.DB().Create(&otherWard).Error)

	discharged := fixedNow.Add(-time.Hour)
	admissions := []models.Admission{
		{ID: uuid.New(), TenantID: active.ID, PatientID: uuid.New(), WardID: ward.ID, Status: enums.AdmissionStatusAdmitted, AdmittedAt: fixedNow.Add(-72 * time.Hour)},
		{ID: uuid.New(), TenantID: active.ID, PatientID: uuid.New(), WardID: ward.ID, Status: enums.AdmissionStatusDischarged, AdmittedAt: fixedNow.Add(-72 * time.Hour), DischargedAt: &discharged},
		{ID: uuid.New(), TenantID: inactive.ID, PatientID: uuid.New(), WardID: otherWard.ID, Status: enums.AdmissionStatusAdmitted, AdmittedAt: fixedNow.Add(-72 * time.Hour)},
	}
	require.NoError(t, client.DB().Create(&admissions).Error)

	open, err := repo.ListOpenAdmissions(ctx, uuid.Nil, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, admissions[0].ID, open[0].AdmissionID)
	assert.Equal(t, "Maternity", open[0].WardName)
	assert.True(t, open[0].DailyRate.Equal(decimal.NewFromInt(80)))
}

func TestTransitionSubscriptionIsGuardedByCurrentStatus(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	tenant := dbtest.CreateTenant(t, client, "Guarded")
	plan := dbtest.CreatePlan(t, client, "250", nil)
	sub := dbtest.CreateSubscription(t, client, tenant.ID, plan.ID, enums.SubscriptionStatusActive, fixedNow)

	ok, err := repo.TransitionSubscription(ctx, sub.ID, enums.SubscriptionStatusTrial, map[string]any{"status": enums.SubscriptionStatusPastDue})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.TransitionSubscription(ctx, sub.ID, enums.SubscriptionStatusActive, map[string]any{"status": enums.SubscriptionStatusPastDue})
	require.NoError(t, err)
	assert.True(t, ok)

	current, err := repo.FindCurrentSubscription(ctx, tenant.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, enums.SubscriptionStatusPastDue, current.Status)
	require.NotNil(t, current.Plan)
	assert.Equal(t, plan.ID, current.Plan.ID)
}

func TestFindMethodsReturnNilWhenMissing(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	inv, err := repo.FindInvoice(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, inv)

	pay, err := repo.FindPaymentByProviderRef(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, pay)

	sub, err := repo.FindCurrentSubscription(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, sub)

	require.Error(t, repo.SetTenantActive(ctx, uuid.New(), false))
}
