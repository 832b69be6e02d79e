package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/angelmondragon/hms-billing/pkg/config"
	"github.com/angelmondragon/hms-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/hms-billing/pkg/errors"
	"github.com/angelmondragon/hms-billing/pkg/logger"
	"github.com/angelmondragon/hms-billing/pkg/metrics"
)

const maxResponseBytes = 1 << 20

// CallerOptions tunes the outbound guard shared by every adapter.
type CallerOptions struct {
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	HTTPClient    *http.Client
	Metrics       *metrics.BillingMetrics
	Logger        *logger.Logger
}

// OptionsFromConfig maps provider settings onto CallerOptions.
func OptionsFromConfig(cfg config.ProvidersConfig, m *metrics.BillingMetrics, logg *logger.Logger) CallerOptions {
	return CallerOptions{
		Timeout:       cfg.Timeout,
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
		Metrics:       m,
		Logger:        logg,
	}
}

// caller bounds every provider call with a timeout and a token bucket. A
// failed call is reported once and never retried here.
type caller struct {
	provider enums.PaymentProvider
	http     *http.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	metrics  *metrics.BillingMetrics
	logg     *logger.Logger
}

func newCaller(provider enums.PaymentProvider, opts CallerOptions) *caller {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &caller{
		provider: provider,
		http:     client,
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  timeout,
		metrics:  opts.Metrics,
		logg:     logg,
	}
}

// run executes fn under the limiter and timeout and maps failures onto
// DEPENDENCY_ERROR unless fn already returned a typed error.
func (c *caller) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.limiter.Wait(ctx)
	if err == nil {
		err = fn(ctx)
	}
	c.metrics.ObserveProviderCall(c.provider.String(), op, err, time.Since(start))
	if err == nil {
		return nil
	}

	logCtx := c.logg.WithFields(c.logg.WithProvider(ctx, c.provider.String()), map[string]any{
		"operation":   op,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	c.logg.Warn(logCtx, fmt.Sprintf("%s %s failed: %v", c.provider, op, err))

	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s timed out", c.provider, op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s failed", c.provider, op))
}

// doJSON sends body as JSON and decodes a 2xx response into out.
func (c *caller) doJSON(ctx context.Context, op, method, url string, headers map[string]string, body, out any) error {
	return c.run(ctx, op, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode provider request")
			}
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build provider request")
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return statusError(c.provider, op, resp.StatusCode, raw)
		}
		if out == nil || len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s %s response", c.provider, op))
		}
		return nil
	})
}

func statusError(provider enums.PaymentProvider, op string, status int, raw []byte) error {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)
	msg := fmt.Sprintf("%s %s returned %d", provider, op, status)
	if body.Message != "" {
		msg += ": " + body.Message
	}

	code := pkgerrors.CodeDependency
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = pkgerrors.CodeDependency
	case status == http.StatusTooManyRequests:
		code = pkgerrors.CodeRateLimit
	case status >= 400 && status < 500:
		code = pkgerrors.CodeValidation
	}
	return pkgerrors.New(code, msg).WithDetails(map[string]any{"status": status, "provider": provider})
}
