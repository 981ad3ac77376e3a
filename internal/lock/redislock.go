package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-pricing/internal/resilience"
)

const (
	defaultTTL   = 30 * time.Second
	defaultRetry = 50 * time.Millisecond
	maxRetryWait = 500 * time.Millisecond
)

// ErrNotAcquired is returned when the lock could not be taken before ctx
// ended or Redis failed. The underlying cause is wrapped alongside it.
var ErrNotAcquired = errors.New("lock: not acquired")

// Guard serialises work on a key. Cart sessions are mutated under a guard so
// concurrent storefront events never interleave.
type Guard interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// unlockScript deletes the key only while it still holds our token, so a
// holder whose lease expired cannot free a lock another replica now owns.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a Redis lease lock shared by every API replica.
type Locker struct {
	Client       *redis.Client
	Prefix       string
	RetryBackoff time.Duration
}

// WithLock runs fn while holding key. The lease lasts ttl and fn's context
// is cancelled when it runs out. The lock is released whatever fn returns.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.Client == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	key = l.Prefix + key
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token, ttl); err != nil {
		return err
	}
	defer func() {
		_ = unlockScript.Run(context.WithoutCancel(ctx), l.Client, []string{key}, token).Err()
	}()

	leaseCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()
	return fn(leaseCtx)
}

func (l Locker) acquire(ctx context.Context, key, token string, ttl time.Duration) error {
	base := l.RetryBackoff
	if base <= 0 {
		base = defaultRetry
	}
	for attempt := 1; ; attempt++ {
		ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, err)
		}
		if ok {
			return nil
		}
		timer := time.NewTimer(min(resilience.Backoff(base, attempt, 0.2), maxRetryWait))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, ctx.Err())
		case <-timer.C:
		}
	}
}
