package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/shipping"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

// ErrInvalidQuantity is returned when a line quantity is below one.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Line is a cart line as held by the session: a product reference, a quantity
// and the customer's variant selections.
type Line struct {
	ProductID  uuid.UUID          `json:"productId"`
	Quantity   int                `json:"quantity"`
	Selections pricing.Selections `json:"selections"`
}

// PricedLine is a line joined with the product snapshot it prices against.
type PricedLine struct {
	Product    pricing.Product
	Quantity   int
	Selections pricing.Selections
}

// DiscountInput carries at most one order-level discount source. When both a
// rule and a recognised promo code are present the promo code wins; an
// unrecognised code falls back to the rule.
type DiscountInput struct {
	Rule      *pricing.DiscountRule
	PromoCode string
	Promos    voucher.Table
}

// Input is everything Aggregate needs. It is fetched by the caller beforehand.
type Input struct {
	Lines       []PricedLine
	Discount    DiscountInput
	Destination string
	TaxRate     pricing.Money
	Shipping    shipping.Policy
}

// ReceiptLine is one priced line of a receipt.
type ReceiptLine struct {
	ProductID  uuid.UUID          `json:"productId"`
	Name       string             `json:"name"`
	Quantity   int                `json:"quantity"`
	Selections pricing.Selections `json:"selections"`
	UnitPrice  pricing.Money      `json:"unitPrice"`
	LineTotal  pricing.Money      `json:"lineTotal"`
}

// Receipt is the fully priced cart. Amounts are rounded to the currency minor unit.
type Receipt struct {
	Lines              []ReceiptLine `json:"lines"`
	Subtotal           pricing.Money `json:"subtotal"`
	Discount           pricing.Money `json:"discount"`
	DiscountedSubtotal pricing.Money `json:"discountedSubtotal"`
	Shipping           pricing.Money `json:"shipping"`
	Tax                pricing.Money `json:"tax"`
	Total              pricing.Money `json:"total"`
	PromoCode          string        `json:"promoCode,omitempty"`
	PromoApplied       bool          `json:"promoApplied"`
	Destination        string        `json:"destination"`
	EstimatedDays      int           `json:"estimatedDays"`
	FreeShipping       bool          `json:"freeShipping"`
	UnitPriceClamped   bool          `json:"unitPriceClamped"`
}

// LineError attributes a failure to the cart line at Index.
type LineError struct {
	Index int
	Err   error
}

// Error implements the error interface.
func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Index, e.Err)
}

// Unwrap exposes the line failure to errors.Is and errors.As.
func (e *LineError) Unwrap() error {
	return e.Err
}

type pricedTotals struct {
	subtotal pricing.Money
	lines    []ReceiptLine
	clamped  bool
}

// Subtotal sums unit price times quantity over lines. It fails on the first
// line with an invalid quantity or unresolved variants.
func Subtotal(lines []PricedLine) (pricing.Money, error) {
	totals, err := priceLines(lines)
	if err != nil {
		return decimal.Zero, err
	}
	return totals.subtotal, nil
}

func priceLines(lines []PricedLine) (pricedTotals, error) {
	out := pricedTotals{subtotal: decimal.Zero, lines: make([]ReceiptLine, 0, len(lines))}
	for i, line := range lines {
		if line.Quantity < 1 {
			return pricedTotals{}, &LineError{Index: i, Err: fmt.Errorf("quantity %d: %w", line.Quantity, ErrInvalidQuantity)}
		}
		unit := pricing.ResolveUnitPrice(line.Product, line.Selections)
		if err := unit.Err(); err != nil {
			return pricedTotals{}, &LineError{Index: i, Err: err}
		}
		lineTotal := unit.Amount.Mul(pricing.FromInt(int64(line.Quantity)))
		out.subtotal = out.subtotal.Add(lineTotal)
		out.clamped = out.clamped || unit.Clamped
		out.lines = append(out.lines, ReceiptLine{
			ProductID:  line.Product.ID,
			Name:       line.Product.Name,
			Quantity:   line.Quantity,
			Selections: line.Selections,
			UnitPrice:  pricing.Round(unit.Amount),
			LineTotal:  pricing.Round(lineTotal),
		})
	}
	return out, nil
}

// Aggregate prices a cart from scratch: subtotal, order discount, shipping on
// the discounted subtotal, tax on the discounted subtotal, total. It is pure;
// identical input yields an identical receipt.
func Aggregate(in Input) (Receipt, error) {
	if err := pricing.ValidateTaxRate(in.TaxRate); err != nil {
		return Receipt{}, err
	}
	code := strings.TrimSpace(in.Discount.PromoCode)
	if in.Discount.Rule != nil {
		if err := in.Discount.Rule.Validate(); err != nil {
			return Receipt{}, err
		}
	}

	totals, err := priceLines(in.Lines)
	if err != nil {
		return Receipt{}, err
	}

	discount := decimal.Zero
	receipt := Receipt{Lines: totals.lines, UnitPriceClamped: totals.clamped}
	promoApplied := false
	if code != "" {
		res := voucher.Evaluate(code, totals.subtotal, in.Discount.Promos)
		receipt.PromoCode = res.Code
		receipt.PromoApplied = res.Applied
		if res.Applied {
			discount = res.DiscountAmount
			promoApplied = true
		}
	}
	// An unrecognised code leaves the rule in force.
	if !promoApplied && in.Discount.Rule != nil {
		discount = pricing.DiscountAmount(totals.subtotal, in.Discount.Rule)
	}
	discounted := totals.subtotal.Sub(discount)

	quote, err := shipping.Resolve(in.Destination, discounted, in.Shipping)
	if err != nil {
		return Receipt{}, err
	}
	tax := pricing.Tax(discounted, in.TaxRate)
	total := discounted.Add(quote.Fee).Add(tax)

	receipt.Subtotal = pricing.Round(totals.subtotal)
	receipt.Discount = pricing.Round(discount)
	receipt.DiscountedSubtotal = pricing.Round(discounted)
	receipt.Shipping = pricing.Round(quote.Fee)
	receipt.Tax = pricing.Round(tax)
	receipt.Total = pricing.Round(total)
	receipt.Destination = quote.Destination
	receipt.EstimatedDays = quote.EstimatedDays
	receipt.FreeShipping = quote.FreeShipping
	return receipt, nil
}
