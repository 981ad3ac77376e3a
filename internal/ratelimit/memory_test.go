package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter()
	l.now = func() time.Time { return now }
	ctx := context.Background()
	rule := Rule{Window: time.Minute, Max: 2}

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "k", rule)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, 1-i, d.Remaining)
	}
	d, err := l.Allow(ctx, "k", rule)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, now.Add(time.Minute), d.Reset)

	now = now.Add(61 * time.Second)
	d, err = l.Allow(ctx, "k", rule)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestMemoryLimiterDisabled(t *testing.T) {
	d, err := NewMemoryLimiter().Allow(context.Background(), "k", Rule{Window: time.Minute})
	require.NoError(t, err)
	require.True(t, d.Allowed)
}
