package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 2 * time.Hour

// Lock hands out per-job exclusivity across worker processes.
type Lock interface {
	// Acquire returns a release func when the lock for job was taken, or nil
	// when another holder has it.
	Acquire(ctx context.Context, job string) (func(context.Context) error, error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
	LockKey(name string) string
}

// RedisLock implements Lock with SET NX plus TTL, keyed per job.
type RedisLock struct {
	client lockStore
	ttl    time.Duration
}

func NewRedisLock(client lockStore, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context, job string) (func(context.Context) error, error) {
	if job == "" {
		return nil, errors.New("job name is required")
	}
	key := l.client.LockKey("cron:" + job)
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return func(ctx context.Context) error {
		if _, err := l.client.ReleaseIfOwner(ctx, key, owner); err != nil {
			return fmt.Errorf("release lock %s: %w", job, err)
		}
		return nil
	}, nil
}
