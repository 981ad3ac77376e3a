package resilience

import (
	"math/rand/v2"
	"time"
)

const maxBackoffShift = 15

// Backoff returns base doubled for every attempt after the first, spread by
// up to ±jitter (0.2 == 20%). Attempts below 1 count as 1.
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	shift := min(max(attempt-1, 0), maxBackoffShift)
	d := base << shift
	if jitter <= 0 {
		return d
	}
	spread := (rand.Float64()*2 - 1) * jitter * float64(d)
	return d + time.Duration(spread)
}
