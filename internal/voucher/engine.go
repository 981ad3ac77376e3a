package voucher

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/pricing"
)

var (
	// ErrInvalidPromoCode is returned when a promo code cannot be stored.
	ErrInvalidPromoCode = errors.New("invalid promo code")
	// ErrNotFound is returned by stores when a code does not exist.
	ErrNotFound = errors.New("promo code not found")
)

// PromoCode binds a customer-facing code to an order-level discount rule.
type PromoCode struct {
	Code        string               `json:"code"`
	Rule        pricing.DiscountRule `json:"rule"`
	Description string               `json:"description,omitempty"`
}

// Validate checks the code and its rule. It runs when merchants save codes.
func (p PromoCode) Validate() error {
	if NormalizeCode(p.Code) == "" {
		return fmt.Errorf("code is required: %w", ErrInvalidPromoCode)
	}
	if err := p.Rule.Validate(); err != nil {
		return fmt.Errorf("promo %q: %w", p.Code, err)
	}
	return nil
}

// Table is the set of known promo codes keyed by normalised code.
type Table map[string]PromoCode

// NewTable validates codes and indexes them by their normalised form.
func NewTable(codes ...PromoCode) (Table, error) {
	table := make(Table, len(codes))
	for _, c := range codes {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		key := NormalizeCode(c.Code)
		if _, dup := table[key]; dup {
			return nil, fmt.Errorf("duplicate code %q: %w", key, ErrInvalidPromoCode)
		}
		c.Code = key
		table[key] = c
	}
	return table, nil
}

// Lookup finds a code after normalisation.
func (t Table) Lookup(code string) (PromoCode, bool) {
	key := NormalizeCode(code)
	if key == "" {
		return PromoCode{}, false
	}
	promo, ok := t[key]
	return promo, ok
}

// Codes lists the table entries ordered by code.
func (t Table) Codes() []PromoCode {
	out := make([]PromoCode, 0, len(t))
	for _, promo := range t {
		out = append(out, promo)
	}
	slices.SortFunc(out, func(a, b PromoCode) int { return strings.Compare(a.Code, b.Code) })
	return out
}

// Result is the outcome of evaluating a promo code against a subtotal.
type Result struct {
	Code           string        `json:"code"`
	DiscountAmount pricing.Money `json:"discountAmount"`
	Applied        bool          `json:"applied"`
}

// NormalizeCode trims surrounding whitespace and lower-cases the code.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Evaluate looks the code up and computes the absolute discount for subtotal.
// Unknown or empty codes are a no-op rather than an error. The discount must be
// re-evaluated whenever the subtotal changes.
func Evaluate(code string, subtotal pricing.Money, table Table) Result {
	res := Result{Code: NormalizeCode(code), DiscountAmount: decimal.Zero}
	promo, ok := table.Lookup(code)
	if !ok {
		return res
	}
	rule := promo.Rule
	res.DiscountAmount = pricing.DiscountAmount(subtotal, &rule)
	res.Applied = true
	return res
}

// ParseCodes parses "code:kind:value[:minCap[:maxCap]],..." into promo codes.
// Empty cap positions are skipped, so "big:percentage:20::100" sets only maxCap.
func ParseCodes(value string) ([]PromoCode, error) {
	var codes []PromoCode
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 3 || len(parts) > 5 {
			return nil, fmt.Errorf("promo %q must be code:kind:value[:min[:max]]: %w", entry, ErrInvalidPromoCode)
		}
		kind, err := pricing.ParseDiscountKind(parts[1])
		if err != nil {
			return nil, err
		}
		v, err := pricing.ParseMoney(parts[2])
		if err != nil {
			return nil, fmt.Errorf("promo %q value: %w", entry, ErrInvalidPromoCode)
		}
		rule := pricing.DiscountRule{Kind: kind, Value: v}
		caps := []**pricing.Money{&rule.MinCap, &rule.MaxCap}
		for i, raw := range parts[3:] {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			c, err := pricing.ParseMoney(raw)
			if err != nil {
				return nil, fmt.Errorf("promo %q cap: %w", entry, ErrInvalidPromoCode)
			}
			*caps[i] = &c
		}
		promo := PromoCode{Code: NormalizeCode(parts[0]), Rule: rule}
		if err := promo.Validate(); err != nil {
			return nil, err
		}
		codes = append(codes, promo)
	}
	if _, err := NewTable(codes...); err != nil {
		return nil, err
	}
	return codes, nil
}
