// Package dbtest opens throwaway SQLite ledgers that mirror the Postgres
// unique constraints, so idempotency paths run against a real engine.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/hms-billing/pkg/db"
	"github.com/angelmondragon/hms-billing/pkg/db/models"
	"github.com/angelmondragon/hms-billing/pkg/enums"
)

var schema = []string{
	`CREATE TABLE tenants (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE plans (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  billing_cycle TEXT NOT NULL,
  price NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'GHS',
  max_users INTEGER,
  max_branches INTEGER,
  max_patients INTEGER,
  storage_gb INTEGER,
  sms_per_month INTEGER,
  features TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE subscriptions (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  plan_id TEXT NOT NULL,
  status TEXT NOT NULL,
  current_period_start DATETIME NOT NULL,
  current_period_end DATETIME NOT NULL,
  trial_ends_at DATETIME,
  cancel_at_period_end INTEGER NOT NULL DEFAULT 0,
  past_due_at DATETIME,
  suspended_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE invoices (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  subscription_id TEXT,
  invoice_number TEXT NOT NULL UNIQUE,
  obligation_ref TEXT,
  period_date DATETIME,
  subtotal NUMERIC NOT NULL,
  total NUMERIC NOT NULL,
  amount_paid NUMERIC NOT NULL DEFAULT 0,
  balance NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'GHS',
  status TEXT NOT NULL,
  due_date DATETIME NOT NULL,
  paid_at DATETIME,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT ux_invoices_obligation_period UNIQUE (obligation_ref, period_date)
);`,
	`CREATE TABLE invoice_line_items (
  id TEXT PRIMARY KEY,
  invoice_id TEXT NOT NULL,
  description TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1,
  unit_price NUMERIC NOT NULL,
  amount NUMERIC NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE payments (
  id TEXT PRIMARY KEY,
  invoice_id TEXT NOT NULL,
  tenant_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL,
  provider TEXT NOT NULL,
  reference TEXT NOT NULL,
  provider_ref TEXT NOT NULL,
  status TEXT NOT NULL,
  received_at DATETIME NOT NULL,
  created_at DATETIME,
  CONSTRAINT ux_payments_provider_ref UNIQUE (provider_ref)
);`,
	`CREATE TABLE usage_meters (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  metric_type TEXT NOT NULL,
  period_start DATETIME NOT NULL,
  period_end DATETIME NOT NULL,
  current_value INTEGER NOT NULL DEFAULT 0,
  limit_value INTEGER,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT ux_usage_meters_period UNIQUE (tenant_id, metric_type, period_start)
);`,
	`CREATE TABLE wards (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  name TEXT NOT NULL,
  daily_rate NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME
);`,
	`CREATE TABLE admissions (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  patient_id TEXT NOT NULL,
  ward_id TEXT NOT NULL,
  status TEXT NOT NULL,
  admitted_at DATETIME NOT NULL,
  discharged_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE webhook_logs (
  id TEXT PRIMARY KEY,
  provider TEXT NOT NULL,
  event_type TEXT,
  reference TEXT,
  provider_ref TEXT,
  outcome TEXT NOT NULL,
  detail TEXT,
  payload BLOB,
  received_at DATETIME NOT NULL
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json BLOB NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns a client over a fresh in-memory database with the billing schema.
func Open(t *testing.T) *db.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	conn, err := gorm.Open(sqlite.Open(dsn), db.Config())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db.NewFromConn(conn)
}

// Int64 returns a pointer for optional plan limits.
func Int64(v int64) *int64 {
	return &v
}

// CreateTenant inserts an active tenant.
func CreateTenant(t *testing.T, client *db.Client, name string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{ID: uuid.New(), Name: name, IsActive: true}
	mustCreate(t, client.DB(), tenant)
	return tenant
}

// CreatePlan inserts a monthly plan priced at price with the given patient cap.
func CreatePlan(t *testing.T, client *db.Client, price string, maxPatients *int64) *models.Plan {
	t.Helper()
	plan := &models.Plan{
		ID:           uuid.New(),
		Name:         "Standard",
		BillingCycle: enums.BillingCycleMonthly,
		Price:        decimal.RequireFromString(price),
		Currency:     "GHS",
		MaxUsers:     Int64(25),
		MaxPatients:  maxPatients,
		SMSPerMonth:  Int64(500),
		IsActive:     true,
	}
	mustCreate(t, client.DB(), plan)
	return plan
}

// CreateSubscription inserts a subscription whose current period ends at periodEnd.
func CreateSubscription(t *testing.T, client *db.Client, tenantID, planID uuid.UUID, status enums.SubscriptionStatus, periodEnd time.Time) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		PlanID:             planID,
		Status:             status,
		CurrentPeriodStart: periodEnd.AddDate(0, -1, 0),
		CurrentPeriodEnd:   periodEnd,
	}
	if status == enums.SubscriptionStatusTrial {
		trialEnd := periodEnd
		sub.TrialEndsAt = &trialEnd
	}
	mustCreate(t, client.DB(), sub)
	return sub
}

// CreateInvoice inserts a pending invoice for total.
func CreateInvoice(t *testing.T, client *db.Client, tenantID uuid.UUID, total string) *models.Invoice {
	t.Helper()
	amount := decimal.RequireFromString(total)
	invoice := &models.Invoice{
		ID:            uuid.New(),
		TenantID:      tenantID,
		InvoiceNumber: "INV-TEST-" + uuid.NewString()[:8],
		Subtotal:      amount,
		Total:         amount,
		AmountPaid:    decimal.Zero,
		Balance:       amount,
		Currency:      "GHS",
		Status:        enums.InvoiceStatusPending,
		DueDate:       time.Now().UTC().AddDate(0, 0, 7),
	}
	mustCreate(t, client.DB(), invoice)
	return invoice
}

// CreateAdmission inserts an open admission in a ward billed at dailyRate.
func CreateAdmission(t *testing.T, client *db.Client, tenantID uuid.UUID, wardName, dailyRate string) *models.Admission {
	t.Helper()
	ward := &models.Ward{ID: uuid.New(), TenantID: tenantID, Name: wardName, DailyRate: decimal.RequireFromString(dailyRate)}
	mustCreate(t, client.DB(), ward)
	admission := &models.Admission{
		ID:         uuid.New(),
		TenantID:   tenantID,
		PatientID:  uuid.New(),
		WardID:     ward.ID,
		Status:     enums.AdmissionStatusAdmitted,
		AdmittedAt: time.Now().UTC().AddDate(0, 0, -2),
	}
	mustCreate(t, client.DB(), admission)
	return admission
}

func mustCreate(t *testing.T, conn *gorm.DB, value any) {
	t.Helper()
	if err := conn.Create(value).Error; err != nil {
		t.Fatalf("seed %T: %v", value, err)
	}
}
