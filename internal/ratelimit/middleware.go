package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/obs"
)

// Handler throttles requests sharing the same Key. Limiter failures fail
// open and are passed to OnError.
type Handler struct {
	Limiter Allower
	Rule    Rule
	Key     func(*http.Request) string
	OnError func(error)
}

// PromoAttempts throttles promo code submissions per client IP so codes
// cannot be enumerated by brute force.
func PromoAttempts(limiter Allower, rule Rule, onError func(error)) Handler {
	return Handler{
		Limiter: limiter,
		Rule:    rule,
		Key:     func(r *http.Request) string { return "promo:" + common.ClientIP(r) },
		OnError: onError,
	}
}

// Middleware implements chi middleware.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Key == nil || h.Rule.disabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := h.Limiter.Allow(r.Context(), h.Key(r), h.Rule)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		hdr := w.Header()
		hdr.Set("X-RateLimit-Limit", strconv.Itoa(h.Rule.Max))
		hdr.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		hdr.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
		if d.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		wait := retryAfter(d.Reset)
		hdr.Set("Retry-After", strconv.Itoa(wait))
		obs.ObservePromoThrottled()
		common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts, try again later",
			map[string]int{"retryAfterSeconds": wait})
	})
}

// retryAfter rounds up so clients never retry before the slot frees.
func retryAfter(reset time.Time) int {
	secs := math.Ceil(time.Until(reset).Seconds())
	if secs < 0 {
		return 0
	}
	return int(secs)
}
