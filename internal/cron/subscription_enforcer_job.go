package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/hms-billing/internal/subscriptions"
	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	"github.com/angelmondragon/hms-billing/pkg/logger"
)

const defaultEnforcerBatch = 200

var enforceableStatuses = []enums.SubscriptionStatus{
	enums.SubscriptionStatusTrial,
	enums.SubscriptionStatusActive,
	enums.SubscriptionStatusPastDue,
}

type subscriptionLister interface {
	ListSubscriptionsByStatus(ctx context.Context, statuses []enums.SubscriptionStatus, afterID uuid.UUID, limit int) ([]models.Subscription, error)
}

type subscriptionEnforcer interface {
	Enforce(ctx context.Context, subscriptionID uuid.UUID, now time.Time) (subscriptions.EnforceResult, error)
}

// SubscriptionEnforcerJobParams configures the lifecycle enforcement job.
type SubscriptionEnforcerJobParams struct {
	Logger        *logger.Logger
	Subscriptions subscriptionLister
	Enforcer      subscriptionEnforcer
	BatchSize     int
	Now           func() time.Time
}

// NewSubscriptionEnforcerJob builds the job that moves subscriptions through
// TRIAL, ACTIVE, PAST_DUE and SUSPENDED as their periods lapse.
func NewSubscriptionEnforcerJob(params SubscriptionEnforcerJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription lister required")
	}
	if params.Enforcer == nil {
		return nil, fmt.Errorf("subscription enforcer required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultEnforcerBatch
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &subscriptionEnforcerJob{
		logg:     params.Logger,
		subs:     params.Subscriptions,
		enforcer: params.Enforcer,
		batch:    batch,
		now:      now,
	}, nil
}

type subscriptionEnforcerJob struct {
	logg     *logger.Logger
	subs     subscriptionLister
	enforcer subscriptionEnforcer
	batch    int
	now      func() time.Time
}

func (j *subscriptionEnforcerJob) Name() string { return "subscription-enforcer" }

// Run evaluates every enforceable subscription once against a single clock
// reading. Each subscription is its own unit and transaction.
func (j *subscriptionEnforcerJob) Run(ctx context.Context) (JobResult, error) {
	var res JobResult
	now := j.now().UTC()
	unitCtx := context.WithoutCancel(ctx)

	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page, err := j.subs.ListSubscriptionsByStatus(ctx, enforceableStatuses, after, j.batch)
		if err != nil {
			return res, fmt.Errorf("list subscriptions: %w", err)
		}
		for _, sub := range page {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			after = sub.ID
			out, err := j.enforcer.Enforce(unitCtx, sub.ID, now)
			if err != nil {
				res.failed(fmt.Errorf("subscription %s: %w", sub.ID, err))
				continue
			}
			if out.Transition == nil {
				res.skipped()
				continue
			}
			res.processed()
		}
		if len(page) < j.batch {
			return res, nil
		}
	}
}
