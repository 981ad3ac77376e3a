package cart

import (
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/shipping"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

// Engine is the stateless entry point used by the product page, the cart page
// and the merchant pricing form. It holds no cart state of its own.
type Engine struct{}

// DefaultSelections returns the first option of every required group.
func (Engine) DefaultSelections(p pricing.Product) pricing.Selections {
	return pricing.DefaultSelections(p)
}

// ResolveUnitPrice prices one unit of p with sel.
func (Engine) ResolveUnitPrice(p pricing.Product, sel pricing.Selections) pricing.UnitPrice {
	return pricing.ResolveUnitPrice(p, sel)
}

// AggregateCart prices a whole cart.
func (Engine) AggregateCart(lines []PricedLine, discount DiscountInput, destination string, taxRate pricing.Money, policy shipping.Policy) (Receipt, error) {
	return Aggregate(Input{
		Lines:       lines,
		Discount:    discount,
		Destination: destination,
		TaxRate:     taxRate,
		Shipping:    policy,
	})
}

// EvaluatePromoCode reports the discount code grants on subtotal.
func (Engine) EvaluatePromoCode(code string, subtotal pricing.Money, table voucher.Table) voucher.Result {
	return voucher.Evaluate(code, subtotal, table)
}
