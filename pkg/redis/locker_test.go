package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMiniredisClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return Wrap(raw), mr
}

func TestLockerObtainAndRelease(t *testing.T) {
	client, mr := newMiniredisClient(t)
	locker, err := NewLocker(client, time.Second, 0)
	require.NoError(t, err)

	ctx := context.Background()
	lease, err := locker.Obtain(ctx, "assignment", "branch-1")
	require.NoError(t, err)
	require.True(t, mr.Exists("la:lock:assignment:branch-1"))

	_, err = locker.Obtain(ctx, "assignment", "branch-1")
	require.True(t, errors.Is(err, ErrLockNotObtained))

	other, err := locker.Obtain(ctx, "assignment", "branch-2")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	require.False(t, mr.Exists("la:lock:assignment:branch-1"))

	again, err := locker.Obtain(ctx, "assignment", "branch-1")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestLockerReleaseAfterExpiryIsNoop(t *testing.T) {
	client, mr := newMiniredisClient(t)
	locker, err := NewLocker(client, 100*time.Millisecond, 0)
	require.NoError(t, err)

	ctx := context.Background()
	lease, err := locker.Obtain(ctx, "cron", "sweep")
	require.NoError(t, err)

	mr.FastForward(time.Second)
	require.NoError(t, lease.Release(ctx))
}

func TestNewLockerValidation(t *testing.T) {
	_, err := NewLocker(nil, time.Second, 0)
	require.Error(t, err)

	client, _ := newMiniredisClient(t)
	_, err = NewLocker(client, 0, 0)
	require.Error(t, err)

	var nilLease *Lease
	require.NoError(t, nilLease.Release(context.Background()))
}
