package ratelimit

import (
	"context"
	"time"
)

// Rule bounds how many events one key may record inside a sliding Window.
// A non-positive Window or Max disables limiting.
type Rule struct {
	Window time.Duration
	Max    int
}

func (r Rule) disabled() bool { return r.Window <= 0 || r.Max <= 0 }

// Decision is the outcome of recording one event.
type Decision struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Allower records an event for key and decides whether it fits rule.
// Rejected events still count against the window.
type Allower interface {
	Allow(ctx context.Context, key string, rule Rule) (Decision, error)
}

// decide turns the number of events now in the window, including the one
// just recorded, into a Decision. The window frees a slot once the oldest
// event ages out.
func decide(rule Rule, count int, oldest time.Time) Decision {
	return Decision{
		Allowed:   count <= rule.Max,
		Remaining: max(rule.Max-count, 0),
		Reset:     oldest.Add(rule.Window),
	}
}

func unlimited(rule Rule, now time.Time) Decision {
	return Decision{Allowed: true, Remaining: rule.Max, Reset: now.Add(rule.Window)}
}
