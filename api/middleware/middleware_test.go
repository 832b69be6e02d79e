package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/hms-billing/pkg/logger"
	"github.com/angelmondragon/hms-billing/pkg/redis"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAdminKey(t *testing.T) {
	cases := []struct {
		name       string
		configured string
		header     string
		want       int
	}{
		{name: "match", configured: "s3cret", header: "s3cret", want: http.StatusOK},
		{name: "missing header", configured: "s3cret", want: http.StatusUnauthorized},
		{name: "wrong key", configured: "s3cret", header: "guess", want: http.StatusForbidden},
		{name: "not configured", header: "anything", want: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := AdminKey(tc.configured, logger.Nop())(okHandler)
			req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/tenants", nil)
			if tc.header != "" {
				req.Header.Set("X-Admin-Key", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d (%s)", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRateLimitBlocksPerIP(t *testing.T) {
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	policy := NewRateLimitPolicy("initiate", time.Minute, 2)
	handler := RateLimit(policy, redis.NewFromRaw(raw), logger.Nop())(okHandler)

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/x/payments", nil)
		req.RemoteAddr = ip + ":5678"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := send("10.0.0.2"); code != http.StatusOK {
		t.Fatalf("other ip should pass, got %d", code)
	}

	mr.SetError("LOADING redis is loading")
	if code := send("10.0.0.3"); code != http.StatusOK {
		t.Fatalf("limiter outage should fail open, got %d", code)
	}
}

func TestRecovererWritesEnvelope(t *testing.T) {
	handler := Recoverer(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"INTERNAL_ERROR"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestRequestIDEchoesOrMints(t *testing.T) {
	handler := RequestID(logger.Nop())(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("expected echoed id, got %q", got)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get("X-Request-Id"); len(got) != 36 {
		t.Fatalf("expected minted uuid, got %q", got)
	}
}
