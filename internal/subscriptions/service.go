package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/hms-billing/internal/billing"
	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/logger"
	"github.com/angelmondragon/hms-billing/pkg/outbox"
	"github.com/angelmondragon/hms-billing/pkg/outbox/payloads"
)

// NoSubscription is reported by GracePeriodStatus for tenants without a live lineage.
const NoSubscription = "NO_SUBSCRIPTION"

const eventSource = "subscriptions"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type invoiceEnsurer interface {
	EnsureInvoice(ctx context.Context, tx *gorm.DB, draft billing.InvoiceDraft) (*models.Invoice, bool, error)
}

type meterStore interface {
	SeedMeters(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, plan models.Plan, metrics []enums.MetricType) error
	ApplyPlanLimits(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, plan models.Plan, metrics []enums.MetricType) error
}

// Service defines the subscription lifecycle surface.
type Service interface {
	Enforce(ctx context.Context, subscriptionID uuid.UUID, now time.Time) (EnforceResult, error)
	Reactivate(ctx context.Context, tenantID, subscriptionID uuid.UUID) (*models.Subscription, error)
	SettleByPayment(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID) (bool, error)
	GracePeriodStatus(ctx context.Context, tenantID uuid.UUID) (*GraceStatus, error)
	ProvisionTenant(ctx context.Context, input ProvisionInput) (*ProvisionResult, error)
	Cancel(ctx context.Context, tenantID uuid.UUID, atPeriodEnd bool) (*models.Subscription, error)
	ChangePlan(ctx context.Context, tenantID, planID uuid.UUID) (*models.Subscription, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo              billing.Repository
	Invoices          invoiceEnsurer
	Meters            meterStore
	Outbox            outboxPublisher
	TransactionRunner txRunner
	Logger            *logger.Logger
	GracePeriod       time.Duration
	TrialDays         int
	Now               func() time.Time
}

// EnforceResult reports what one enforcement unit did.
type EnforceResult struct {
	Transition     *Transition
	RenewalInvoice *models.Invoice
	Skipped        bool
}

// GraceStatus summarizes where a tenant sits in the payment grace window.
type GraceStatus struct {
	Status          string     `json:"status"`
	Plan            string     `json:"plan,omitempty"`
	PeriodEnd       *time.Time `json:"periodEnd,omitempty"`
	GracePeriodDays int        `json:"gracePeriodDays"`
	DaysRemaining   int        `json:"daysRemaining"`
	IsSuspended     bool       `json:"isSuspended"`
	IsPastDue       bool       `json:"isPastDue"`
}

// ProvisionInput creates a tenant with a fresh subscription. A nil TrialDays
// takes the configured default; zero starts the tenant ACTIVE on a paid period.
type ProvisionInput struct {
	Name      string
	PlanID    uuid.UUID
	TrialDays *int
}

// ProvisionResult is the tenant and subscription created by ProvisionTenant.
type ProvisionResult struct {
	Tenant       *models.Tenant
	Subscription *models.Subscription
}

type service struct {
	repo     billing.Repository
	invoices invoiceEnsurer
	meters   meterStore
	outbox   outboxPublisher
	tx       txRunner
	logg     *logger.Logger
	grace    time.Duration
	trial    int
	now      func() time.Time
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice ensurer required")
	}
	if params.Meters == nil {
		return nil, fmt.Errorf("meter store required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.GracePeriod <= 0 {
		return nil, fmt.Errorf("grace period must be positive")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	trial := params.TrialDays
	if trial <= 0 {
		trial = 14
	}
	return &service{
		repo:     params.Repo,
		invoices: params.Invoices,
		meters:   params.Meters,
		outbox:   params.Outbox,
		tx:       params.TransactionRunner,
		logg:     logg,
		grace:    params.GracePeriod,
		trial:    trial,
		now:      now,
	}, nil
}

// Enforce evaluates one subscription at now inside its own transaction. The
// row is locked and the status write is guarded by the status that was read,
// so a concurrent writer turns this unit into a skip.
func (s *service) Enforce(ctx context.Context, subscriptionID uuid.UUID, now time.Time) (EnforceResult, error) {
	now = now.UTC()
	var result EnforceResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		result = EnforceResult{}
		ledger := s.repo.WithTx(tx)

		sub, err := ledger.LockSubscription(ctx, subscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			result.Skipped = true
			return nil
		}

		tr, due := Evaluate(*sub, now, s.grace)
		if !due {
			result.Skipped = true
			return nil
		}
		if err := ValidateTransition(tr.From, tr.To); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "subscription_id", sub.ID.String()), err.Error())
			result.Skipped = true
			return nil
		}

		changed, err := ledger.TransitionSubscription(ctx, sub.ID, tr.From, tr.columns(now))
		if err != nil {
			return err
		}
		if !changed {
			result.Skipped = true
			return nil
		}

		if tr.SuspendTenant {
			if err := ledger.SetTenantActive(ctx, sub.TenantID, false); err != nil {
				return err
			}
			if err := s.emitTenantAccess(ctx, tx, sub, false, tr.Reason); err != nil {
				return err
			}
		}
		if err := s.emitStatusChanged(ctx, tx, sub, tr, sub.CurrentPeriodEnd); err != nil {
			return err
		}

		if tr.To == enums.SubscriptionStatusPastDue {
			invoice, err := s.ensureRenewalInvoice(ctx, tx, sub)
			if err != nil {
				return err
			}
			result.RenewalInvoice = invoice
		}

		result.Transition = &tr
		return nil
	})
	if err != nil {
		return EnforceResult{}, err
	}
	if result.Transition != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event":           "subscription.transition",
			"subscription_id": subscriptionID.String(),
			"from":            result.Transition.From,
			"to":              result.Transition.To,
			"reason":          result.Transition.Reason,
		})
		if result.Transition.SuspendTenant {
			s.logg.Warn(logCtx, "tenant suspended after grace period")
		} else {
			s.logg.Info(logCtx, "subscription transitioned")
		}
	}
	return result, nil
}

func (s *service) ensureRenewalInvoice(ctx context.Context, tx *gorm.DB, sub *models.Subscription) (*models.Invoice, error) {
	if sub.Plan == nil || !sub.Plan.Price.IsPositive() {
		return nil, nil
	}
	subID := sub.ID
	invoice, _, err := s.invoices.EnsureInvoice(ctx, tx, billing.InvoiceDraft{
		TenantID:       sub.TenantID,
		SubscriptionID: &subID,
		ObligationRef:  SubscriptionObligationRef(sub.ID),
		PeriodDate:     sub.CurrentPeriodEnd,
		NumberPrefix:   "SUB",
		Currency:       sub.Plan.Currency,
		DueIn:          s.grace,
		Notes:          "Subscription renewal",
		Lines: []billing.LineDraft{{
			Description: fmt.Sprintf("Subscription renewal - %s (%s)", sub.Plan.Name, strings.ToLower(sub.Plan.BillingCycle.String())),
			Quantity:    1,
			UnitPrice:   sub.Plan.Price,
		}},
	})
	return invoice, err
}

// SubscriptionObligationRef is the obligation key for renewal invoices.
func SubscriptionObligationRef(id uuid.UUID) string {
	return "subscription:" + id.String()
}

// Reactivate moves a SUSPENDED subscription back to ACTIVE with a fresh period
// starting now, and re-enables the tenant. Any other status is a state conflict.
func (s *service) Reactivate(ctx context.Context, tenantID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	var out *models.Subscription
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		sub, err := s.repo.WithTx(tx).LockSubscription(ctx, subscriptionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
		}
		if sub == nil || sub.TenantID != tenantID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		if sub.Status != enums.SubscriptionStatusSuspended {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "subscription is %s, only SUSPENDED can be reactivated", sub.Status).
				WithDetails(map[string]any{"status": sub.Status})
		}
		out, err = s.reactivate(ctx, tx, sub, ReasonReactivated)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event":           "subscription.transition",
		"tenant_id":       tenantID.String(),
		"subscription_id": subscriptionID.String(),
		"period_end":      out.CurrentPeriodEnd,
	}), "tenant reactivated")
	return out, nil
}

func (s *service) reactivate(ctx context.Context, tx *gorm.DB, sub *models.Subscription, reason string) (*models.Subscription, error) {
	ledger := s.repo.WithTx(tx)
	now := s.now().UTC()
	cycle := enums.BillingCycleMonthly
	if sub.Plan != nil {
		cycle = sub.Plan.BillingCycle
	}
	end := NextPeriod(now, cycle)

	changed, err := ledger.TransitionSubscription(ctx, sub.ID, enums.SubscriptionStatusSuspended, map[string]any{
		"status":               enums.SubscriptionStatusActive,
		"current_period_start": now,
		"current_period_end":   end,
		"past_due_at":          nil,
		"suspended_at":         nil,
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription changed concurrently")
	}
	if err := ledger.SetTenantActive(ctx, sub.TenantID, true); err != nil {
		return nil, err
	}

	tr := Transition{From: enums.SubscriptionStatusSuspended, To: enums.SubscriptionStatusActive, Reason: reason}
	if err := s.emitStatusChanged(ctx, tx, sub, tr, end); err != nil {
		return nil, err
	}
	if err := s.emitTenantAccess(ctx, tx, sub, true, reason); err != nil {
		return nil, err
	}

	sub.Status = enums.SubscriptionStatusActive
	sub.CurrentPeriodStart = now
	sub.CurrentPeriodEnd = end
	sub.PastDueAt = nil
	sub.SuspendedAt = nil
	return sub, nil
}

// SettleByPayment runs inside the reconciler transaction once a subscription
// invoice is fully paid. TRIAL and PAST_DUE renew into the next period,
// SUSPENDED takes the reactivation path, anything else is left alone.
func (s *service) SettleByPayment(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	ledger := s.repo.WithTx(tx)
	sub, err := ledger.LockSubscription(ctx, subscriptionID)
	if err != nil || sub == nil {
		return false, err
	}

	switch sub.Status {
	case enums.SubscriptionStatusSuspended:
		_, err := s.reactivate(ctx, tx, sub, ReasonPaymentSettled)
		return err == nil, err
	case enums.SubscriptionStatusTrial, enums.SubscriptionStatusPastDue:
	default:
		return false, nil
	}

	start := sub.CurrentPeriodEnd
	if now := s.now().UTC(); sub.Status == enums.SubscriptionStatusTrial && start.Before(now) {
		start = now
	}
	cycle := enums.BillingCycleMonthly
	if sub.Plan != nil {
		cycle = sub.Plan.BillingCycle
	}
	end := NextPeriod(start, cycle)

	changed, err := ledger.TransitionSubscription(ctx, sub.ID, sub.Status, map[string]any{
		"status":               enums.SubscriptionStatusActive,
		"current_period_start": start,
		"current_period_end":   end,
		"past_due_at":          nil,
	})
	if err != nil || !changed {
		return false, err
	}
	tr := Transition{From: sub.Status, To: enums.SubscriptionStatusActive, Reason: ReasonPaymentSettled}
	if err := s.emitStatusChanged(ctx, tx, sub, tr, end); err != nil {
		return false, err
	}
	return true, nil
}

// GracePeriodStatus reports the tenant's current standing.
func (s *service) GracePeriodStatus(ctx context.Context, tenantID uuid.UUID) (*GraceStatus, error) {
	sub, err := s.repo.FindCurrentSubscription(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if sub == nil || sub.Status == enums.SubscriptionStatusCancelled {
		return &GraceStatus{Status: NoSubscription}, nil
	}

	graceDays := int(s.grace / (24 * time.Hour))
	status := &GraceStatus{
		Status:          sub.Status.String(),
		Plan:            "Unknown",
		GracePeriodDays: graceDays,
		DaysRemaining:   graceDays,
		IsSuspended:     sub.Status == enums.SubscriptionStatusSuspended,
		IsPastDue:       sub.Status == enums.SubscriptionStatusPastDue,
	}
	if sub.Plan != nil {
		status.Plan = sub.Plan.Name
	}
	end := sub.CurrentPeriodEnd
	status.PeriodEnd = &end

	if status.IsPastDue {
		deadline := end.Add(s.grace)
		if sub.PastDueAt != nil && sub.PastDueAt.Add(s.grace).After(deadline) {
			deadline = sub.PastDueAt.Add(s.grace)
		}
		left := deadline.Sub(s.now()).Hours() / 24
		status.DaysRemaining = int(math.Max(0, math.Ceil(left)))
	}
	return status, nil
}

// ProvisionTenant creates a tenant with its first subscription and seeds its
// usage meters. The subscription starts in TRIAL unless TrialDays is zero.
func (s *service) ProvisionTenant(ctx context.Context, input ProvisionInput) (*ProvisionResult, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant name is required")
	}
	trialDays := s.trial
	if input.TrialDays != nil {
		if *input.TrialDays < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "trial days must not be negative")
		}
		trialDays = *input.TrialDays
	}

	var result ProvisionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := s.repo.WithTx(tx)
		plan, err := ledger.FindPlan(ctx, input.PlanID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
		}
		if plan == nil || !plan.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}

		now := s.now().UTC()
		tenant := &models.Tenant{ID: uuid.New(), Name: name, IsActive: true}
		if err := ledger.CreateTenant(ctx, tenant); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create tenant")
		}
		sub := &models.Subscription{
			ID:                 uuid.New(),
			TenantID:           tenant.ID,
			PlanID:             plan.ID,
			Status:             enums.SubscriptionStatusActive,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   NextPeriod(now, plan.BillingCycle),
		}
		if trialDays > 0 {
			trialEnd := now.AddDate(0, 0, trialDays)
			sub.Status = enums.SubscriptionStatusTrial
			sub.CurrentPeriodEnd = trialEnd
			sub.TrialEndsAt = &trialEnd
		}
		if err := ledger.CreateSubscription(ctx, sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create subscription")
		}
		if err := s.meters.SeedMeters(ctx, tx, tenant.ID, *plan, enums.ProvisionedMetrics); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seed usage meters")
		}
		sub.Plan = plan
		result = ProvisionResult{Tenant: tenant, Subscription: sub}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id": result.Tenant.ID.String(),
		"status":    result.Subscription.Status,
	}), "tenant provisioned")
	return &result, nil
}

// Cancel ends the tenant's current subscription. Immediately it moves the row
// to CANCELLED; atPeriodEnd only flags it so the enforcer cancels it once the
// paid or trial period elapses. Tenant access is not changed here.
func (s *service) Cancel(ctx context.Context, tenantID uuid.UUID, atPeriodEnd bool) (*models.Subscription, error) {
	var out *models.Subscription
	var tr *Transition
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := s.repo.WithTx(tx)
		sub, err := s.lockCurrent(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		if atPeriodEnd {
			if sub.Status != enums.SubscriptionStatusActive && sub.Status != enums.SubscriptionStatusTrial {
				return pkgerrors.Newf(pkgerrors.CodeStateConflict, "subscription is %s, its period has already elapsed", sub.Status).
					WithDetails(map[string]any{"status": sub.Status})
			}
			changed, err := ledger.TransitionSubscription(ctx, sub.ID, sub.Status, map[string]any{"cancel_at_period_end": true})
			if err != nil {
				return err
			}
			if !changed {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription changed concurrently")
			}
			sub.CancelAtPeriodEnd = true
			out = sub
			return nil
		}

		next := Transition{From: sub.Status, To: enums.SubscriptionStatusCancelled, Reason: ReasonCancelled}
		if err := ValidateTransition(next.From, next.To); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "cancel subscription")
		}
		now := s.now().UTC()
		changed, err := ledger.TransitionSubscription(ctx, sub.ID, next.From, next.columns(now))
		if err != nil {
			return err
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription changed concurrently")
		}
		if err := s.emitStatusChanged(ctx, tx, sub, next, sub.CurrentPeriodEnd); err != nil {
			return err
		}
		sub.Status = next.To
		sub.CancelledAt = &now
		out, tr = sub, &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tenant_id":       tenantID.String(),
		"subscription_id": out.ID.String(),
		"at_period_end":   atPeriodEnd,
	})
	if tr != nil {
		logCtx = s.logg.WithFields(logCtx, map[string]any{"event": "subscription.transition", "from": tr.From, "to": tr.To})
	}
	s.logg.Info(logCtx, "subscription cancelled")
	return out, nil
}

// ChangePlan moves the tenant's current subscription to planID. The new price
// applies from the next renewal invoice; the new limits apply to the current
// usage period at once.
func (s *service) ChangePlan(ctx context.Context, tenantID, planID uuid.UUID) (*models.Subscription, error) {
	var out *models.Subscription
	var from uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := s.repo.WithTx(tx)
		sub, err := s.lockCurrent(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		if sub.Status == enums.SubscriptionStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is CANCELLED")
		}
		plan, err := ledger.FindPlan(ctx, planID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
		}
		if plan == nil || !plan.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		out, from = sub, sub.PlanID
		if sub.PlanID == plan.ID {
			return nil
		}

		changed, err := ledger.TransitionSubscription(ctx, sub.ID, sub.Status, map[string]any{"plan_id": plan.ID})
		if err != nil {
			return err
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription changed concurrently")
		}
		if err := s.meters.ApplyPlanLimits(ctx, tx, tenantID, *plan, enums.ProvisionedMetrics); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply plan limits")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionPlanChanged,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			TenantID:      sub.TenantID,
			Source:        eventSource,
			Data: payloads.SubscriptionPlanChangedEvent{
				SubscriptionID: sub.ID,
				TenantID:       sub.TenantID,
				FromPlanID:     from,
				ToPlanID:       plan.ID,
			},
		}); err != nil {
			return err
		}
		sub.PlanID = plan.ID
		sub.Plan = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":       tenantID.String(),
		"subscription_id": out.ID.String(),
		"from_plan":       from.String(),
		"to_plan":         out.PlanID.String(),
	}), "subscription plan changed")
	return out, nil
}

// lockCurrent resolves and row-locks the tenant's current subscription.
func (s *service) lockCurrent(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*models.Subscription, error) {
	ledger := s.repo.WithTx(tx)
	current, err := ledger.FindCurrentSubscription(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if current == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription for tenant")
	}
	sub, err := ledger.LockSubscription(ctx, current.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription for tenant")
	}
	return sub, nil
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, sub *models.Subscription, tr Transition, periodEnd time.Time) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSubscriptionStatusChanged,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		TenantID:      sub.TenantID,
		Source:        eventSource,
		Data: payloads.SubscriptionStatusChangedEvent{
			SubscriptionID: sub.ID,
			TenantID:       sub.TenantID,
			From:           tr.From,
			To:             tr.To,
			Reason:         tr.Reason,
			PeriodEnd:      periodEnd,
		},
	})
}

func (s *service) emitTenantAccess(ctx context.Context, tx *gorm.DB, sub *models.Subscription, active bool, reason string) error {
	eventType := enums.EventTenantSuspended
	if active {
		eventType = enums.EventTenantReactivated
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateTenant,
		AggregateID:   sub.TenantID,
		TenantID:      sub.TenantID,
		Source:        eventSource,
		Data: payloads.TenantAccessChangedEvent{
			TenantID:       sub.TenantID,
			SubscriptionID: sub.ID,
			Active:         active,
			Reason:         reason,
		},
	})
}
