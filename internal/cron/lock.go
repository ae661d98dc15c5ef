package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"

	redispkg "github.com/angelmondragon/leadassign-backend/pkg/redis"
)

const lockScope = "cron"

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type leaseObtainer interface {
	Obtain(ctx context.Context, scope, id string) (*redispkg.Lease, error)
}

// RedisLock implements Lock with a redislock lease so only one cron worker
// runs a cycle at a time.
type RedisLock struct {
	locker leaseObtainer
	name   string

	mu    sync.Mutex
	lease *redispkg.Lease
}

// NewRedisLock constructs a Redis-backed lock named name.
func NewRedisLock(locker leaseObtainer, name string) (*RedisLock, error) {
	if locker == nil {
		return nil, errors.New("locker required for cron lock")
	}
	if name == "" {
		return nil, errors.New("lock name is required")
	}
	return &RedisLock{locker: locker, name: name}, nil
}

// Acquire tries to own the lock. A lock held elsewhere is reported as false.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	lease, err := l.locker.Obtain(ctx, lockScope, l.name)
	if errors.Is(err, redispkg.ErrLockNotObtained) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("obtain lock: %w", err)
	}
	l.mu.Lock()
	l.lease = lease
	l.mu.Unlock()
	return true, nil
}

// Release frees the lease if this instance holds one.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	lease := l.lease
	l.lease = nil
	l.mu.Unlock()
	if err := lease.Release(ctx); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
