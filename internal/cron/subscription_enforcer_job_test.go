package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/hms-billing/internal/billing"
	"github.com/angelmondragon/hms-billing/internal/subscriptions"
	"github.com/angelmondragon/hms-billing/internal/usage"
	"github.com/angelmondragon/hms-billing/pkg/db/dbtest"
	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	"github.com/angelmondragon/hms-billing/pkg/logger"
	"github.com/angelmondragon/hms-billing/pkg/outbox"
)

type pagedSubscriptions struct {
	subs  []models.Subscription
	calls int
}

func (p *pagedSubscriptions) ListSubscriptionsByStatus(_ context.Context, _ []enums.SubscriptionStatus, afterID uuid.UUID, limit int) ([]models.Subscription, error) {
	p.calls++
	start := 0
	if afterID != uuid.Nil {
		for i, s := range p.subs {
			if s.ID == afterID {
				start = i + 1
			}
		}
	}
	end := start + limit
	if end > len(p.subs) {
		end = len(p.subs)
	}
	return p.subs[start:end], nil
}

type scriptedEnforcer struct {
	outcomes map[uuid.UUID]error
	seen     []uuid.UUID
	onCall   func()
}

func (s *scriptedEnforcer) Enforce(ctx context.Context, id uuid.UUID, _ time.Time) (subscriptions.EnforceResult, error) {
	s.seen = append(s.seen, id)
	if ctx.Err() != nil {
		return subscriptions.EnforceResult{}, ctx.Err()
	}
	if s.onCall != nil {
		s.onCall()
	}
	err, scripted := s.outcomes[id]
	if !scripted {
		return subscriptions.EnforceResult{Skipped: true}, nil
	}
	if err != nil {
		return subscriptions.EnforceResult{}, err
	}
	return subscriptions.EnforceResult{Transition: &subscriptions.Transition{}}, nil
}

func subsWithIDs(n int) []models.Subscription {
	out := make([]models.Subscription, n)
	for i := range out {
		out[i] = models.Subscription{ID: uuid.New()}
	}
	return out
}

func TestSubscriptionEnforcerPagesAndAggregatesFailures(t *testing.T) {
	subs := subsWithIDs(5)
	lister := &pagedSubscriptions{subs: subs}
	enforcer := &scriptedEnforcer{outcomes: map[uuid.UUID]error{
		subs[0].ID: nil,
		subs[2].ID: errors.New("deadlock"),
		subs[4].ID: nil,
	}}
	job, err := NewSubscriptionEnforcerJob(SubscriptionEnforcerJobParams{
		Logger:        logger.Nop(),
		Subscriptions: lister,
		Enforcer:      enforcer,
		BatchSize:     2,
	})
	require.NoError(t, err)

	res, err := job.Run(context.Background())
	require.NoError(t, err, "unit failures do not fail the run")
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, multierr.Errors(res.Errs), 1)
	assert.Len(t, enforcer.seen, 5)
	assert.Equal(t, 3, lister.calls)
}

func TestSubscriptionEnforcerStopsBetweenUnitsOnShutdown(t *testing.T) {
	subs := subsWithIDs(4)
	ctx, cancel := context.WithCancel(context.Background())
	enforcer := &scriptedEnforcer{onCall: cancel}
	job, err := NewSubscriptionEnforcerJob(SubscriptionEnforcerJobParams{
		Logger:        logger.Nop(),
		Subscriptions: &pagedSubscriptions{subs: subs},
		Enforcer:      enforcer,
	})
	require.NoError(t, err)

	res, err := job.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, enforcer.seen, 1, "the in-flight unit finishes and no new unit starts")
	assert.Equal(t, 1, res.Skipped)
}

func TestSubscriptionEnforcerAppliesLifecycle(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	ledger := billing.NewRepository(client.DB())
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop())
	invoices, err := billing.NewService(billing.ServiceParams{Repo: ledger, Outbox: emitter, Now: clock})
	require.NoError(t, err)
	meters, err := usage.NewService(usage.NewRepository(client.DB()), ledger, logger.Nop(), clock)
	require.NoError(t, err)
	svc, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:              ledger,
		Invoices:          invoices,
		Meters:            meters,
		Outbox:            emitter,
		TransactionRunner: client,
		Logger:            logger.Nop(),
		GracePeriod:       72 * time.Hour,
		Now:               clock,
	})
	require.NoError(t, err)

	plan := dbtest.CreatePlan(t, client, "300.00", nil)
	lapsed := dbtest.CreateTenant(t, client, "Lapsed")
	lapsedSub := dbtest.CreateSubscription(t, client, lapsed.ID, plan.ID, enums.SubscriptionStatusActive, now.AddDate(0, 0, -1))
	overdue := dbtest.CreateTenant(t, client, "Overdue")
	overdueSub := dbtest.CreateSubscription(t, client, overdue.ID, plan.ID, enums.SubscriptionStatusPastDue, now.AddDate(0, 0, -5))
	current := dbtest.CreateTenant(t, client, "Current")
	currentSub := dbtest.CreateSubscription(t, client, current.ID, plan.ID, enums.SubscriptionStatusActive, now.AddDate(0, 0, 10))

	job, err := NewSubscriptionEnforcerJob(SubscriptionEnforcerJobParams{
		Logger:        logger.Nop(),
		Subscriptions: ledger,
		Enforcer:      svc,
		BatchSize:     1,
		Now:           clock,
	})
	require.NoError(t, err)

	res, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Failed)

	status := func(id uuid.UUID) enums.SubscriptionStatus {
		sub, err := ledger.FindSubscription(ctx, id)
		require.NoError(t, err)
		return sub.Status
	}
	assert.Equal(t, enums.SubscriptionStatusPastDue, status(lapsedSub.ID))
	assert.Equal(t, enums.SubscriptionStatusSuspended, status(overdueSub.ID))
	assert.Equal(t, enums.SubscriptionStatusActive, status(currentSub.ID))

	tenant, err := ledger.FindTenant(ctx, overdue.ID)
	require.NoError(t, err)
	assert.False(t, tenant.IsActive)
	assert.EqualValues(t, 1, countInvoices(t, client, subscriptions.SubscriptionObligationRef(lapsedSub.ID)))

	// a second pass at the same instant changes nothing
	res, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.EqualValues(t, 1, countInvoices(t, client, subscriptions.SubscriptionObligationRef(lapsedSub.ID)))
}
