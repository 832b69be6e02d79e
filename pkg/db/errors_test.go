package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	pgDup := &pgconn.PgError{Code: "23505", ConstraintName: "ux_payments_provider_ref"}
	pgOther := &pgconn.PgError{Code: "23503", ConstraintName: "fk_payments_invoice"}
	pqDup := &pq.Error{Code: "23505", Constraint: "ux_invoices_obligation_period"}

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "translated", err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), constraint: "ux_payments_provider_ref", want: true},
		{name: "pgx any", err: pgDup, want: true},
		{name: "pgx matching constraint", err: pgDup, constraint: "ux_payments_provider_ref", want: true},
		{name: "pgx other constraint", err: pgDup, constraint: "ux_invoices_obligation_period", want: false},
		{name: "pgx foreign key", err: pgOther, want: false},
		{name: "pq matching", err: pqDup, constraint: "ux_invoices_obligation_period", want: true},
		{name: "sqlite text", err: errors.New("UNIQUE constraint failed: payments.provider_ref"), want: true},
		{name: "postgres text", err: errors.New(`duplicate key value violates unique constraint "ux_usage_meters_period"`), constraint: "ux_usage_meters_period", want: true},
		{name: "unrelated", err: errors.New("connection reset"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("IsUniqueViolation(%v, %q) = %v, want %v", tc.err, tc.constraint, got, tc.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("load: %w", gorm.ErrRecordNotFound)) {
		t.Fatal("expected wrapped record-not-found to match")
	}
	if IsNotFound(errors.New("other")) {
		t.Fatal("unexpected match")
	}
}
