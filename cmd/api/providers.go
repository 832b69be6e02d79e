package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/hms-billing/internal/payments"
	"github.com/angelmondragon/hms-billing/pkg/config"
	"github.com/angelmondragon/hms-billing/pkg/logger"
	"github.com/angelmondragon/hms-billing/pkg/metrics"
	"github.com/angelmondragon/hms-billing/pkg/square"
	"github.com/angelmondragon/hms-billing/pkg/stripe"
)

// buildPaymentRegistry registers an adapter for every provider that has
// credentials. A provider left unconfigured answers 404 on its webhook route.
func buildPaymentRegistry(ctx context.Context, cfg *config.Config, m *metrics.BillingMetrics, logg *logger.Logger) (*payments.Registry, error) {
	opts := payments.OptionsFromConfig(cfg.Providers, m, logg)
	callback := cfg.Providers.CallbackBaseURL

	var adapters []payments.Adapter
	if strings.TrimSpace(cfg.Paystack.SecretKey) != "" {
		a, err := payments.NewPaystack(cfg.Paystack, callback, opts)
		if err != nil {
			return nil, fmt.Errorf("paystack: %w", err)
		}
		adapters = append(adapters, a)
	}
	if strings.TrimSpace(cfg.Flutterwave.SecretKey) != "" {
		a, err := payments.NewFlutterwave(cfg.Flutterwave, callback, opts)
		if err != nil {
			return nil, fmt.Errorf("flutterwave: %w", err)
		}
		adapters = append(adapters, a)
	}
	if strings.TrimSpace(cfg.MoMo.SubscriptionKey) != "" {
		a, err := payments.NewMoMo(cfg.MoMo, callback, opts)
		if err != nil {
			return nil, fmt.Errorf("mtn momo: %w", err)
		}
		adapters = append(adapters, a)
	}
	if strings.TrimSpace(cfg.Stripe.APIKey) != "" {
		client, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, fmt.Errorf("stripe: %w", err)
		}
		a, err := payments.NewStripe(client, opts)
		if err != nil {
			return nil, fmt.Errorf("stripe: %w", err)
		}
		adapters = append(adapters, a)
	}
	if strings.TrimSpace(cfg.Square.AccessToken) != "" {
		client, err := square.NewClient(ctx, cfg.Square, cfg.Providers.Timeout, logg)
		if err != nil {
			return nil, fmt.Errorf("square: %w", err)
		}
		a, err := payments.NewSquare(client, opts)
		if err != nil {
			return nil, fmt.Errorf("square: %w", err)
		}
		adapters = append(adapters, a)
	}

	reg, err := payments.NewRegistry(adapters...)
	if err != nil {
		return nil, err
	}
	if len(adapters) == 0 {
		logg.Warn(ctx, "no payment providers configured; webhooks and payment initiation are disabled")
	}
	return reg, nil
}
