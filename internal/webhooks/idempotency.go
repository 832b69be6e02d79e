package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/hms-billing/pkg/enums"
	"github.com/angelmondragon/hms-billing/pkg/redis"
)

const guardScope = "webhook"

// IdempotencyGuard is the Redis fast path in front of the reconciler. A key is
// written only once the payment it names is committed to the ledger, so a hit
// always means the notification was applied. The payments unique constraint
// stays authoritative.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &IdempotencyGuard{store: store, ttl: ttl}, nil
}

// Seen reports whether provider:providerRef was recorded as applied.
func (g *IdempotencyGuard) Seen(ctx context.Context, provider enums.PaymentProvider, providerRef string) (bool, error) {
	if providerRef == "" {
		return false, errors.New("provider ref is required")
	}
	_, err := g.store.Get(ctx, g.key(provider, providerRef))
	switch {
	case errors.Is(err, goredis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("get idempotency key: %w", err)
	}
	return true, nil
}

// Record marks provider:providerRef as applied. Call it only after the
// reconciler committed or found the payment.
func (g *IdempotencyGuard) Record(ctx context.Context, provider enums.PaymentProvider, providerRef string) error {
	if providerRef == "" {
		return errors.New("provider ref is required")
	}
	if _, err := g.store.SetNX(ctx, g.key(provider, providerRef), "1", g.ttl); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}

func (g *IdempotencyGuard) key(provider enums.PaymentProvider, providerRef string) string {
	return g.store.IdempotencyKey(guardScope, provider.String()+":"+providerRef)
}
