package pricing

import "fmt"

// Tax applies a flat rate (0.08 for 8%) to the discounted subtotal. Shipping is
// never part of the taxable base and the result is not rounded.
func Tax(discountedSubtotal Money, rate Money) Money {
	return nonNegative(discountedSubtotal).Mul(nonNegative(rate))
}

// ValidateTaxRate rejects negative rates.
func ValidateTaxRate(rate Money) error {
	if rate.IsNegative() {
		return fmt.Errorf("tax rate %s: %w", rate.String(), ErrInvalidTaxRate)
	}
	return nil
}
