package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(cfg BreakerConfig) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	b := NewBreaker(cfg)
	b.now = clock.Now
	return b, clock
}

func TestBreakerTransitions(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{MinRequests: 2, OpenFor: time.Second})
	ctx := context.Background()

	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)

	require.Equal(t, Open, b.State())
	require.False(t, b.Allow(ctx))

	clock.Advance(time.Second)
	require.True(t, b.Allow(ctx), "trial call admitted after cool-off")
	require.Equal(t, HalfOpen, b.State())
	require.False(t, b.Allow(ctx), "only one trial call at a time")
	b.Report(ctx, false)
	require.Equal(t, Open, b.State())

	clock.Advance(time.Second)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, true)
	require.Equal(t, Closed, b.State())
	require.True(t, b.Allow(ctx))
}

func TestBreakerNeedsMinRequests(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{MinRequests: 3, FailureRatio: 0.5})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.True(t, b.Allow(ctx))
		b.Report(ctx, false)
	}
	require.Equal(t, Closed, b.State())
	require.True(t, b.Allow(ctx))
	b.Report(ctx, true)
	require.Equal(t, Open, b.State(), "2 of 3 failed")
}

func TestBreakerWindowResets(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{MinRequests: 2, Interval: time.Minute})
	ctx := context.Background()

	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)

	clock.Advance(time.Minute)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, true)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, true)
	require.Equal(t, Closed, b.State(), "failure from the previous window is forgotten")
}

func TestBreakerDo(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{MinRequests: 1, FailureRatio: 1, OpenFor: time.Hour})
	ctx := context.Background()
	miss := errors.New("miss")
	boom := errors.New("boom")
	isMiss := func(err error) bool { return errors.Is(err, miss) }

	require.ErrorIs(t, b.Do(ctx, func(context.Context) error { return miss }, isMiss), miss)
	require.Equal(t, Closed, b.State())

	require.ErrorIs(t, b.Do(ctx, func(context.Context) error { return boom }, isMiss), boom)
	require.Equal(t, Closed, b.State(), "1 of 2 is below a ratio of 1")
	require.ErrorIs(t, b.Do(ctx, func(context.Context) error { return boom }, nil), boom)
	require.Equal(t, Closed, b.State())

	b2, _ := newTestBreaker(BreakerConfig{MinRequests: 1, OpenFor: time.Hour})
	require.ErrorIs(t, b2.Do(ctx, func(context.Context) error { return boom }, nil), boom)
	called := false
	err := b2.Do(ctx, func(context.Context) error { called = true; return nil }, nil)
	require.ErrorIs(t, err, ErrOpenCircuit)
	require.False(t, called)
}

func TestNilBreakerAllowsEverything(t *testing.T) {
	var b *Breaker
	require.True(t, b.Allow(context.Background()))
	b.Report(context.Background(), false)
	require.NoError(t, b.Do(context.Background(), func(context.Context) error { return nil }, nil))
}

func TestBreakerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegisterMetrics("test", reg)

	b, _ := newTestBreaker(BreakerConfig{Target: "redis", MinRequests: 1})
	ctx := context.Background()
	require.Zero(t, testutil.ToFloat64(breakerState.WithLabelValues("redis")))
	b.Allow(ctx)
	b.Report(ctx, false)

	require.Equal(t, 1.0, testutil.ToFloat64(breakerState.WithLabelValues("redis")))
	require.Equal(t, 1.0, testutil.ToFloat64(breakerTransitions.WithLabelValues("redis", "closed", "open")))

	MustRegisterMetrics("test", reg)
	require.Equal(t, 1.0, testutil.ToFloat64(breakerState.WithLabelValues("redis")), "re-registering reuses collectors")
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, Backoff(base, 0, 0))
	require.Equal(t, base, Backoff(base, 1, 0))
	require.Equal(t, base*4, Backoff(base, 3, 0))
	require.Equal(t, Backoff(base, 16, 0), Backoff(base, 40, 0))

	d := Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d, base*2-base*2/5)
	require.LessOrEqual(t, d, base*2+base*2/5)
}
