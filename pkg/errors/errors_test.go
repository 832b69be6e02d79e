package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}

	if MetadataFor("SOMETHING_UNKNOWN").HTTPStatus != http.StatusInternalServerError {
		t.Fatal("unknown codes should map to internal")
	}
}

func TestWrapPreservesCauseAndCode(t *testing.T) {
	cause := stdErrors.New("connection refused")
	wrapped := Wrap(CodeDependency, cause, "paystack initialize")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatal("Wrap did not preserve cause")
	}
	if wrapped.Error() != "DEPENDENCY_ERROR: paystack initialize: connection refused" {
		t.Fatalf("unexpected message %q", wrapped.Error())
	}

	outer := fmt.Errorf("reconcile: %w", wrapped)
	if !Is(outer, CodeDependency) {
		t.Fatal("expected Is to find the code through fmt wrapping")
	}
	if CodeOf(outer) != CodeDependency {
		t.Fatalf("unexpected code %s", CodeOf(outer))
	}
	if !Retryable(outer) {
		t.Fatal("dependency errors should be retryable")
	}
}

func TestCodeOfUntypedDefaultsToInternal(t *testing.T) {
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatal("expected internal for untyped error")
	}
	if Retryable(nil) {
		t.Fatal("nil error is not retryable")
	}
	if Is(New(CodeStateConflict, "x"), CodeValidation) {
		t.Fatal("codes should not match")
	}
}

func TestWithDetails(t *testing.T) {
	err := Newf(CodeStateConflict, "subscription %s is %s", "sub-1", "ACTIVE").
		WithDetails(map[string]string{"status": "ACTIVE"})
	if err.Message() != "subscription sub-1 is ACTIVE" {
		t.Fatalf("unexpected message %q", err.Message())
	}
	if err.Details() == nil {
		t.Fatal("details should be preserved")
	}
}

func TestDumpExtractsPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_payments_provider_ref", TableName: "payments"}
	dump := Dump(Wrap(CodeInternal, pgErr, "insert payment"))

	if dump.Code != CodeInternal {
		t.Fatalf("unexpected code %s", dump.Code)
	}
	if dump.PGCode != "23505" || dump.PGConstraint != "ux_payments_provider_ref" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(dump.Chain))
	}
	fields := dump.Fields()
	if fields["pg_table"] != "payments" {
		t.Fatalf("expected pg_table field, got %v", fields)
	}
}
