package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter keeps one sorted set per key in Redis, scored by event time in
// microseconds, so every API replica shares the same window.
type Limiter struct {
	Client *redis.Client
	Prefix string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Allow implements Allower.
func (l Limiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	now := l.clock()
	if l.Client == nil || rule.disabled() {
		return unlimited(rule, now), nil
	}

	setKey := l.Prefix + key
	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, setKey, "-inf", "("+micros(now.Add(-rule.Window)))
	pipe.ZAdd(ctx, setKey, redis.Z{Score: float64(now.UnixMicro()), Member: uuid.NewString()})
	count := pipe.ZCard(ctx, setKey)
	oldest := pipe.ZRangeWithScores(ctx, setKey, 0, 0)
	pipe.PExpire(ctx, setKey, rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	first := now
	if z := oldest.Val(); len(z) > 0 {
		first = time.UnixMicro(int64(z[0].Score))
	}
	return decide(rule, int(count.Val()), first), nil
}

func (l Limiter) clock() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func micros(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}
