package shipping

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/pricing"
)

var (
	// ErrUnknownDestination is returned when a destination has no configured rate.
	ErrUnknownDestination = errors.New("unknown shipping destination")
	// ErrInvalidPolicy is returned when a shipping policy violates its invariants.
	ErrInvalidPolicy = errors.New("invalid shipping policy")
)

// Rate is the flat fee and delivery estimate of one destination.
type Rate struct {
	Fee           pricing.Money `json:"fee"`
	EstimatedDays int           `json:"estimatedDays"`
}

// Policy is the merchant's shipping configuration.
type Policy struct {
	Destinations          map[string]Rate `json:"destinations"`
	FreeShippingThreshold *pricing.Money  `json:"freeShippingThreshold,omitempty"`
}

// Quote is the resolved shipping cost for one destination.
type Quote struct {
	Destination   string        `json:"destination"`
	Fee           pricing.Money `json:"fee"`
	EstimatedDays int           `json:"estimatedDays"`
	FreeShipping  bool          `json:"freeShipping"`
}

// Destination is a row of the public destination list.
type Destination struct {
	Name string `json:"name"`
	Rate
}

// NormalizeDestination trims and case-folds a destination key.
func NormalizeDestination(dest string) string {
	return strings.ToLower(strings.TrimSpace(dest))
}

// Validate checks fees, estimates and threshold.
func (p Policy) Validate() error {
	seen := make(map[string]struct{}, len(p.Destinations))
	for name, rate := range p.Destinations {
		key := NormalizeDestination(name)
		if key == "" {
			return fmt.Errorf("destination name is required: %w", ErrInvalidPolicy)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate destination %q: %w", key, ErrInvalidPolicy)
		}
		seen[key] = struct{}{}
		if rate.Fee.IsNegative() {
			return fmt.Errorf("destination %q fee must not be negative: %w", key, ErrInvalidPolicy)
		}
		if rate.EstimatedDays < 0 {
			return fmt.Errorf("destination %q estimated days must not be negative: %w", key, ErrInvalidPolicy)
		}
	}
	if p.FreeShippingThreshold != nil && p.FreeShippingThreshold.IsNegative() {
		return fmt.Errorf("free shipping threshold must not be negative: %w", ErrInvalidPolicy)
	}
	return nil
}

// Normalized returns a copy of the policy with canonical destination keys.
func (p Policy) Normalized() Policy {
	out := Policy{Destinations: make(map[string]Rate, len(p.Destinations))}
	for name, rate := range p.Destinations {
		out.Destinations[NormalizeDestination(name)] = rate
	}
	if p.FreeShippingThreshold != nil {
		threshold := *p.FreeShippingThreshold
		out.FreeShippingThreshold = &threshold
	}
	return out
}

// Lookup finds the rate of dest, ignoring case and surrounding whitespace.
func (p Policy) Lookup(dest string) (string, Rate, bool) {
	key := NormalizeDestination(dest)
	if key == "" {
		return "", Rate{}, false
	}
	if rate, ok := p.Destinations[key]; ok {
		return key, rate, true
	}
	for name, rate := range p.Destinations {
		if NormalizeDestination(name) == key {
			return key, rate, true
		}
	}
	return "", Rate{}, false
}

// List returns the destinations ordered by name.
func (p Policy) List() []Destination {
	out := make([]Destination, 0, len(p.Destinations))
	for name, rate := range p.Destinations {
		out = append(out, Destination{Name: NormalizeDestination(name), Rate: rate})
	}
	slices.SortFunc(out, func(a, b Destination) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Resolve prices shipping for dest given the discounted subtotal. Reaching the
// free shipping threshold (inclusive) waives the fee but the destination must
// still be known. The estimate never affects the price.
func Resolve(dest string, discountedSubtotal pricing.Money, p Policy) (Quote, error) {
	key, rate, ok := p.Lookup(dest)
	if !ok {
		return Quote{}, fmt.Errorf("destination %q: %w", strings.TrimSpace(dest), ErrUnknownDestination)
	}
	q := Quote{Destination: key, Fee: rate.Fee, EstimatedDays: rate.EstimatedDays}
	if q.Fee.IsNegative() {
		q.Fee = decimal.Zero
	}
	if p.FreeShippingThreshold != nil && discountedSubtotal.GreaterThanOrEqual(*p.FreeShippingThreshold) {
		q.Fee = decimal.Zero
		q.FreeShipping = true
	}
	return q, nil
}

// ParseRates parses "dest:fee[:days],..." into a destination table.
func ParseRates(value string) (map[string]Rate, error) {
	rates := map[string]Rate{}
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("rate %q must be dest:fee[:days]: %w", entry, ErrInvalidPolicy)
		}
		name := NormalizeDestination(parts[0])
		if name == "" {
			return nil, fmt.Errorf("rate %q has no destination: %w", entry, ErrInvalidPolicy)
		}
		if _, dup := rates[name]; dup {
			return nil, fmt.Errorf("duplicate destination %q: %w", name, ErrInvalidPolicy)
		}
		fee, err := pricing.ParseMoney(parts[1])
		if err != nil {
			return nil, fmt.Errorf("rate %q: %w", entry, ErrInvalidPolicy)
		}
		rate := Rate{Fee: fee}
		if len(parts) == 3 {
			days, err := strconv.Atoi(strings.TrimSpace(parts[2]))
			if err != nil {
				return nil, fmt.Errorf("rate %q days: %w", entry, ErrInvalidPolicy)
			}
			rate.EstimatedDays = days
		}
		rates[name] = rate
	}
	return rates, nil
}
