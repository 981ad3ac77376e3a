package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount in the store currency. Arithmetic never
// rounds; callers round to the minor unit with Round at presentation boundaries.
type Money = decimal.Decimal

// MinorUnitPlaces is the number of fractional digits of the store currency.
const MinorUnitPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// ParseMoney converts a decimal string into Money.
func ParseMoney(value string) (Money, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	m, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return m, nil
}

// FromInt converts a whole number, such as a quantity, into Money.
func FromInt(n int64) Money {
	return decimal.NewFromInt(n)
}

// Round rounds m half away from zero to the currency minor unit.
func Round(m Money) Money {
	return m.Round(MinorUnitPlaces)
}

func nonNegative(m Money) Money {
	if m.IsNegative() {
		return decimal.Zero
	}
	return m
}
