package redis

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

const defaultLockBackoff = 50 * time.Millisecond

// ErrLockNotObtained is returned when another holder kept the lock for the whole wait.
var ErrLockNotObtained = redislock.ErrNotObtained

// Locker hands out short-lived distributed locks keyed by scope and id.
type Locker struct {
	client *redislock.Client
	keys   *Client
	ttl    time.Duration
	wait   time.Duration
}

// Lease is a held lock.
type Lease struct {
	lock *redislock.Lock
}

// NewLocker builds a Locker on top of the raw connection held by c.
func NewLocker(c *Client, ttl, wait time.Duration) (*Locker, error) {
	if c == nil || c.raw == nil {
		return nil, errors.New("redis client required for locker")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	return &Locker{
		client: redislock.New(c.raw),
		keys:   c,
		ttl:    ttl,
		wait:   wait,
	}, nil
}

// Obtain acquires the lock for scope/id, retrying with linear backoff until
// the configured wait elapses.
func (l *Locker) Obtain(ctx context.Context, scope, id string) (*Lease, error) {
	lock, err := l.client.Obtain(ctx, l.keys.LockKey(scope, id), l.ttl, &redislock.Options{
		RetryStrategy: l.retryStrategy(),
	})
	if err != nil {
		return nil, err
	}
	return &Lease{lock: lock}, nil
}

func (l *Locker) retryStrategy() redislock.RetryStrategy {
	if l.wait <= 0 {
		return redislock.NoRetry()
	}
	attempts := int(l.wait / defaultLockBackoff)
	if attempts < 1 {
		attempts = 1
	}
	return redislock.LimitRetry(redislock.LinearBackoff(defaultLockBackoff), attempts)
}

// Release frees the lock. A lock that already expired is not an error.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return err
	}
	return nil
}
