package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{Client: client, Prefix: "toko-pricing:", RetryBackoff: 5 * time.Millisecond}, mr
}

func TestLockerSerialisesHolders(t *testing.T) {
	locker, mr := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	held := make(chan struct{})
	release := make(chan struct{})
	firstErr := make(chan error, 1)
	go func() {
		firstErr <- locker.WithLock(ctx, "cart-lock:a", time.Second, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	require.True(t, mr.Exists("toko-pricing:cart-lock:a"))

	secondRan := make(chan struct{})
	secondErr := make(chan error, 1)
	go func() {
		secondErr <- locker.WithLock(ctx, "cart-lock:a", time.Second, func(context.Context) error {
			close(secondRan)
			return nil
		})
	}()

	select {
	case <-secondRan:
		t.Fatal("second holder ran while the lock was held")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-firstErr)
	require.NoError(t, <-secondErr)
	require.False(t, mr.Exists("toko-pricing:cart-lock:a"))
}

func TestLockerKeepsForeignToken(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	err := locker.WithLock(ctx, "cart-lock:b", time.Second, func(context.Context) error {
		// another replica took over after expiry
		mr.Set("toko-pricing:cart-lock:b", "someone-else")
		return nil
	})
	require.NoError(t, err)
	got, err := mr.Get("toko-pricing:cart-lock:b")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestLockerHonoursCancellation(t *testing.T) {
	locker, mr := newLocker(t)
	require.NoError(t, mr.Set("toko-pricing:cart-lock:c", "held"))

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	ran := false
	err := locker.WithLock(ctx, "cart-lock:c", time.Second, func(context.Context) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrNotAcquired)
	require.False(t, ran)
}

func TestLockerPropagatesCallbackError(t *testing.T) {
	locker, mr := newLocker(t)
	boom := errors.New("boom")
	err := locker.WithLock(context.Background(), "cart-lock:d", time.Second, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("toko-pricing:cart-lock:d"))
}

func TestLockerBoundsCallbackByLease(t *testing.T) {
	locker, _ := newLocker(t)
	err := locker.WithLock(context.Background(), "cart-lock:e", time.Minute, func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		require.WithinDuration(t, time.Now().Add(time.Minute), deadline, time.Second)
		return nil
	})
	require.NoError(t, err)
}

func TestLockerRequiresClient(t *testing.T) {
	err := lock.Locker{}.WithLock(context.Background(), "k", time.Second, func(context.Context) error { return nil })
	require.Error(t, err)
}
