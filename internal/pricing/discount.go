package pricing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountKind is the closed set of supported discount strategies.
type DiscountKind int

const (
	// KindPercentage removes a percentage of the amount, optionally bounded by caps.
	KindPercentage DiscountKind = iota + 1
	// KindAmount removes a flat amount.
	KindAmount
)

// String returns the wire name of the kind.
func (k DiscountKind) String() string {
	switch k {
	case KindPercentage:
		return "percentage"
	case KindAmount:
		return "amount"
	default:
		return ""
	}
}

// ParseDiscountKind maps a wire name onto a DiscountKind.
func ParseDiscountKind(value string) (DiscountKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "percentage", "percent":
		return KindPercentage, nil
	case "amount", "fixed":
		return KindAmount, nil
	default:
		return 0, fmt.Errorf("unsupported discount kind %q: %w", value, ErrInvalidDiscountConfiguration)
	}
}

// MarshalJSON encodes the kind by name.
func (k DiscountKind) MarshalJSON() ([]byte, error) {
	name := k.String()
	if name == "" {
		return nil, fmt.Errorf("unsupported discount kind %d: %w", int(k), ErrInvalidDiscountConfiguration)
	}
	return json.Marshal(name)
}

// UnmarshalJSON rejects any name outside the closed set.
func (k *DiscountKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("discount kind must be a string: %w", ErrInvalidDiscountConfiguration)
	}
	parsed, err := ParseDiscountKind(name)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// DiscountRule is a merchant-configured price reduction.
type DiscountRule struct {
	Kind   DiscountKind `json:"kind"`
	Value  Money        `json:"value"`
	MinCap *Money       `json:"minCap,omitempty"`
	MaxCap *Money       `json:"maxCap,omitempty"`
}

// PercentageRule builds a percentage rule without caps.
func PercentageRule(percent Money) DiscountRule {
	return DiscountRule{Kind: KindPercentage, Value: percent}
}

// AmountRule builds a flat-amount rule.
func AmountRule(amount Money) DiscountRule {
	return DiscountRule{Kind: KindAmount, Value: amount}
}

// Validate enforces the rule invariants. It is meant to run when a merchant saves
// a rule so that checkout never sees an invalid configuration.
func (r DiscountRule) Validate() error {
	switch r.Kind {
	case KindPercentage:
		if r.Value.IsNegative() || r.Value.GreaterThan(hundred) {
			return fmt.Errorf("percentage must be within [0,100]: %w", ErrInvalidDiscountConfiguration)
		}
	case KindAmount:
		if r.Value.IsNegative() {
			return fmt.Errorf("amount must not be negative: %w", ErrInvalidDiscountConfiguration)
		}
		if r.MinCap != nil || r.MaxCap != nil {
			return fmt.Errorf("caps only apply to percentage rules: %w", ErrInvalidDiscountConfiguration)
		}
	default:
		return fmt.Errorf("discount kind is required: %w", ErrInvalidDiscountConfiguration)
	}
	if r.MinCap != nil && r.MinCap.IsNegative() {
		return fmt.Errorf("minCap must not be negative: %w", ErrInvalidDiscountConfiguration)
	}
	if r.MaxCap != nil && r.MaxCap.IsNegative() {
		return fmt.Errorf("maxCap must not be negative: %w", ErrInvalidDiscountConfiguration)
	}
	if r.MinCap != nil && r.MaxCap != nil && r.MinCap.GreaterThan(*r.MaxCap) {
		return fmt.Errorf("minCap must not exceed maxCap: %w", ErrInvalidDiscountConfiguration)
	}
	return nil
}

// ApplyDiscount returns the amount left after applying rule. A nil rule is the identity.
// The result always lies within [0, amount].
func ApplyDiscount(amount Money, rule *DiscountRule) Money {
	amount = nonNegative(amount)
	if rule == nil {
		return amount
	}
	return amount.Sub(discountFor(amount, *rule))
}

// DiscountAmount returns how much rule takes off amount.
func DiscountAmount(amount Money, rule *DiscountRule) Money {
	amount = nonNegative(amount)
	return amount.Sub(ApplyDiscount(amount, rule))
}

func discountFor(amount Money, rule DiscountRule) Money {
	var raw Money
	switch rule.Kind {
	case KindAmount:
		raw = nonNegative(rule.Value)
	case KindPercentage:
		raw = amount.Mul(nonNegative(rule.Value)).Div(hundred)
		if rule.MinCap != nil && raw.LessThan(*rule.MinCap) && amount.GreaterThanOrEqual(*rule.MinCap) {
			raw = *rule.MinCap
		}
		if rule.MaxCap != nil && raw.GreaterThan(*rule.MaxCap) {
			raw = nonNegative(*rule.MaxCap)
		}
	default:
		return decimal.Zero
	}
	if raw.GreaterThan(amount) {
		raw = amount
	}
	return nonNegative(raw)
}
