package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a process-local sliding window used when Redis is not configured.
type MemoryLimiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
	now    func() time.Time
}

// NewMemoryLimiter constructs an empty in-memory limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{events: map[string][]time.Time{}, now: time.Now}
}

// Allow implements Allower.
func (l *MemoryLimiter) Allow(_ context.Context, key string, rule Rule) (Decision, error) {
	now := l.now()
	if rule.disabled() {
		return unlimited(rule, now), nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-rule.Window)
	kept := l.events[key][:0]
	for _, at := range l.events[key] {
		if !at.Before(cutoff) {
			kept = append(kept, at)
		}
	}
	kept = append(kept, now)
	l.events[key] = kept
	return decide(rule, len(kept), kept[0]), nil
}
