package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned by Do when the breaker refuses a call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker position.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a Breaker. Zero fields take the defaults noted.
type BreakerConfig struct {
	// Target names the guarded dependency in metrics and logs.
	Target string
	// MinRequests is how many calls a closed window needs before the
	// failure ratio is evaluated. Default 5.
	MinRequests int
	// FailureRatio trips the breaker, in (0, 1]. Default 0.5.
	FailureRatio float64
	// OpenFor is the cool-off before a trial call is admitted. Default 30s.
	OpenFor time.Duration
	// Interval resets the closed-state counters. Default 1m.
	Interval time.Duration
	Logger   zerolog.Logger
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Target == "" {
		c.Target = "default"
	}
	if c.MinRequests <= 0 {
		c.MinRequests = 5
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = 0.5
	}
	if c.OpenFor <= 0 {
		c.OpenFor = 30 * time.Second
	}
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	return c
}

// Breaker is a failure-ratio circuit breaker. The pricing API puts one in
// front of the Redis read caches so an outage degrades to store reads.
//
// A nil *Breaker admits every call.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu          sync.Mutex
	state       State
	requests    int
	failures    int
	windowEnds  time.Time
	openUntil   time.Time
	trialActive bool
}

// NewBreaker returns a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	b := &Breaker{cfg: cfg.withDefaults(), now: time.Now}
	recordState(b.cfg.Target, Closed)
	return b
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. Once the cool-off elapses an
// open breaker admits exactly one trial call; its Report decides the next state.
func (b *Breaker) Allow(ctx context.Context) bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case Open:
		if now.Before(b.openUntil) {
			return false
		}
		b.transition(ctx, HalfOpen, now)
		b.trialActive = true
		return true
	case HalfOpen:
		if b.trialActive {
			return false
		}
		b.trialActive = true
		return true
	default:
		if !now.Before(b.windowEnds) {
			b.resetWindow(now)
		}
		return true
	}
}

// Report records the outcome of a call admitted by Allow.
func (b *Breaker) Report(ctx context.Context, success bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case Open:
		// a call admitted before the breaker tripped
	case HalfOpen:
		b.trialActive = false
		if success {
			b.transition(ctx, Closed, now)
		} else {
			b.transition(ctx, Open, now)
		}
	default:
		b.requests++
		if !success {
			b.failures++
		}
		if b.requests >= b.cfg.MinRequests &&
			float64(b.failures)/float64(b.requests) >= b.cfg.FailureRatio {
			b.transition(ctx, Open, now)
		}
	}
}

// Do runs fn when the breaker allows it and reports the outcome. Errors for
// which ignore returns true count as successes; a cache miss is not an outage.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error, ignore func(error) bool) error {
	if !b.Allow(ctx) {
		return ErrOpenCircuit
	}
	err := fn(ctx)
	b.Report(ctx, err == nil || (ignore != nil && ignore(err)))
	return err
}

func (b *Breaker) resetWindow(now time.Time) {
	b.requests, b.failures = 0, 0
	b.windowEnds = now.Add(b.cfg.Interval)
}

func (b *Breaker) transition(ctx context.Context, to State, now time.Time) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	switch to {
	case Open:
		b.openUntil = now.Add(b.cfg.OpenFor)
	case Closed:
		b.resetWindow(now)
	}
	recordState(b.cfg.Target, to)
	recordTransition(b.cfg.Target, from, to)

	evt := b.cfg.Logger.Warn()
	if to == Closed {
		evt = b.cfg.Logger.Info()
	}
	evt = evt.Str("target", b.cfg.Target).Stringer("from", from).Stringer("to", to)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}
