package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/hms-billing/internal/repo"
	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
)

// Repository is the ledger store access surface used by the billing engine.
// Find* methods return (nil, nil) when the row does not exist.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	FindTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	SetTenantActive(ctx context.Context, id uuid.UUID, active bool) error
	FindPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)

	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	FindSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	LockSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindCurrentSubscription(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	ListSubscriptionsByStatus(ctx context.Context, statuses []enums.SubscriptionStatus, afterID uuid.UUID, limit int) ([]models.Subscription, error)
	TransitionSubscription(ctx context.Context, id uuid.UUID, from enums.SubscriptionStatus, updates map[string]any) (bool, error)

	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	FindInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	LockInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindInvoiceByObligation(ctx context.Context, obligationRef string, periodDate time.Time) (*models.Invoice, error)
	SaveSettlement(ctx context.Context, invoice *models.Invoice) error
	ListOverdueInvoices(ctx context.Context, now time.Time, limit int) ([]models.Invoice, error)
	MarkInvoiceOverdue(ctx context.Context, id uuid.UUID) (bool, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPaymentByProviderRef(ctx context.Context, providerRef string) (*models.Payment, error)

	ListOpenAdmissions(ctx context.Context, afterID uuid.UUID, limit int) ([]OpenAdmission, error)
	CreateWebhookLog(ctx context.Context, entry *models.WebhookLog) error
}

// OpenAdmission is an inpatient stay that still accrues a daily ward charge.
type OpenAdmission struct {
	AdmissionID uuid.UUID
	TenantID    uuid.UUID
	WardID      uuid.UUID
	WardName    string
	DailyRate   decimal.Decimal
}

type repository struct {
	base repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.Bind(tx)}
}

func (r *repository) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	return r.base.DB(ctx).Create(tenant).Error
}

func (r *repository) FindTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.base.DB(ctx).Where("id = ?", id).First(&tenant).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &tenant, nil
}

func (r *repository) SetTenantActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := r.base.DB(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": active, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := r.base.DB(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &plan, nil
}

func (r *repository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.base.DB(ctx).Omit("Plan").Create(sub).Error
}

func (r *repository) FindSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.base.DB(ctx).Preload("Plan").Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &sub, nil
}

func (r *repository) LockSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := repo.ForUpdate(r.base.DB(ctx)).Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	plan, err := r.FindPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	sub.Plan = plan
	return &sub, nil
}

// FindCurrentSubscription prefers the newest non-cancelled lineage and falls
// back to the newest row so cancelled tenants still resolve.
func (r *repository) FindCurrentSubscription(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.base.DB(ctx).
		Preload("Plan").
		Where("tenant_id = ? AND status <> ?", tenantID, enums.SubscriptionStatusCancelled).
		Order("created_at DESC").
		First(&sub).Error
	if err == nil {
		return &sub, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := r.base.DB(ctx).
		Preload("Plan").
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		First(&sub).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &sub, nil
}

// ListSubscriptionsByStatus pages by id so rows transitioned mid-run are not skipped.
func (r *repository) ListSubscriptionsByStatus(ctx context.Context, statuses []enums.SubscriptionStatus, afterID uuid.UUID, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 200
	}
	var subs []models.Subscription
	err := r.base.DB(ctx).
		Where("status IN ?", statuses).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

// TransitionSubscription applies updates only while the row is still in from.
// It reports false when another writer moved the row first.
func (r *repository) TransitionSubscription(ctx context.Context, id uuid.UUID, from enums.SubscriptionStatus, updates map[string]any) (bool, error) {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := r.base.DB(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.base.DB(ctx).Create(invoice).Error
}

func (r *repository) FindInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.base.DB(ctx).Preload("LineItems").Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &invoice, nil
}

func (r *repository) LockInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := repo.ForUpdate(r.base.DB(ctx)).Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &invoice, nil
}

func (r *repository) FindInvoiceByObligation(ctx context.Context, obligationRef string, periodDate time.Time) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.base.DB(ctx).
		Where("obligation_ref = ? AND period_date = ?", obligationRef, PeriodDate(periodDate)).
		First(&invoice).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &invoice, nil
}

// SaveSettlement writes the derived payment columns. Callers must insert the
// matching Payment in the same transaction.
func (r *repository) SaveSettlement(ctx context.Context, invoice *models.Invoice) error {
	return r.base.DB(ctx).
		Model(&models.Invoice{}).
		Where("id = ?", invoice.ID).
		Updates(map[string]any{
			"amount_paid": invoice.AmountPaid,
			"balance":     invoice.Balance,
			"status":      invoice.Status,
			"paid_at":     invoice.PaidAt,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *repository) ListOverdueInvoices(ctx context.Context, now time.Time, limit int) ([]models.Invoice, error) {
	if limit <= 0 {
		limit = 500
	}
	var invoices []models.Invoice
	err := r.base.DB(ctx).
		Where("status IN ? AND due_date < ?", []enums.InvoiceStatus{enums.InvoiceStatusPending, enums.InvoiceStatusPartiallyPaid}, now.UTC()).
		Order("due_date ASC").
		Limit(limit).
		Find(&invoices).Error
	return invoices, err
}

func (r *repository) MarkInvoiceOverdue(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND status IN ?", id, []enums.InvoiceStatus{enums.InvoiceStatusPending, enums.InvoiceStatusPartiallyPaid}).
		Updates(map[string]any{"status": enums.InvoiceStatusOverdue, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.base.DB(ctx).Create(payment).Error
}

func (r *repository) FindPaymentByProviderRef(ctx context.Context, providerRef string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.base.DB(ctx).Where("provider_ref = ?", providerRef).First(&payment).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &payment, nil
}

func (r *repository) ListOpenAdmissions(ctx context.Context, afterID uuid.UUID, limit int) ([]OpenAdmission, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []OpenAdmission
	err := r.base.DB(ctx).
		Table("admissions AS a").
		Select("a.id AS admission_id, a.tenant_id, a.ward_id, w.name AS ward_name, w.daily_rate").
		Joins("JOIN wards AS w ON w.id = a.ward_id").
		Joins("JOIN tenants AS t ON t.id = a.tenant_id").
		Where("a.status = ? AND a.discharged_at IS NULL AND t.is_active = ?", enums.AdmissionStatusAdmitted, true).
		Where("a.id > ?", afterID).
		Order("a.id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) CreateWebhookLog(ctx context.Context, entry *models.WebhookLog) error {
	return r.base.DB(ctx).Create(entry).Error
}

func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
