package pricing

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a read-only pricing snapshot of a catalog product.
type Product struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	BasePrice     Money          `json:"basePrice"`
	VariantGroups []VariantGroup `json:"variantGroups"`
}

// VariantGroup is a customer-selectable attribute such as colour or size.
type VariantGroup struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	Required bool            `json:"required"`
	Options  []VariantOption `json:"options"`
}

// VariantOption is one choice within a group. Label is display metadata and never priced.
type VariantOption struct {
	ID              string `json:"id"`
	Label           string `json:"label,omitempty"`
	PriceAdjustment Money  `json:"priceAdjustment"`
}

// Selections maps a variant group id to the chosen option id.
type Selections map[string]string

// UnitPrice is the outcome of resolving selections against a product.
type UnitPrice struct {
	Amount          Money    `json:"amount"`
	MissingRequired []string `json:"missingRequired"`
	UnknownOptions  []string `json:"unknownOptions"`
	// Clamped is set when adjustments pushed the price below zero; the product is misconfigured.
	Clamped bool `json:"clamped"`
}

// Final reports whether the unit price can be used for checkout.
func (u UnitPrice) Final() bool {
	return len(u.MissingRequired) == 0 && len(u.UnknownOptions) == 0
}

// Err returns a typed error when the selections cannot produce a final unit price.
// Unknown options take precedence since invalid input is rejected before pricing.
func (u UnitPrice) Err() error {
	if u.Final() {
		return nil
	}
	sentinel := ErrMissingRequiredVariant
	if len(u.UnknownOptions) > 0 {
		sentinel = ErrUnknownVariantOption
	}
	return &VariantError{Missing: u.MissingRequired, Unknown: u.UnknownOptions, Err: sentinel}
}

// Validate checks the structural invariants of a product snapshot.
func (p Product) Validate() error {
	if p.BasePrice.IsNegative() {
		return fmt.Errorf("base price must not be negative: %w", ErrInvalidProduct)
	}
	groups := make(map[string]struct{}, len(p.VariantGroups))
	for _, g := range p.VariantGroups {
		if g.ID == "" {
			return fmt.Errorf("variant group id is required: %w", ErrInvalidProduct)
		}
		if _, dup := groups[g.ID]; dup {
			return fmt.Errorf("duplicate variant group %q: %w", g.ID, ErrInvalidProduct)
		}
		groups[g.ID] = struct{}{}
		if g.Required && len(g.Options) == 0 {
			return fmt.Errorf("required group %q has no options: %w", g.ID, ErrInvalidProduct)
		}
		options := make(map[string]struct{}, len(g.Options))
		for _, o := range g.Options {
			if o.ID == "" {
				return fmt.Errorf("option id is required in group %q: %w", g.ID, ErrInvalidProduct)
			}
			if _, dup := options[o.ID]; dup {
				return fmt.Errorf("duplicate option %q in group %q: %w", o.ID, g.ID, ErrInvalidProduct)
			}
			options[o.ID] = struct{}{}
		}
	}
	return nil
}

func (g VariantGroup) option(id string) (VariantOption, bool) {
	for _, o := range g.Options {
		if o.ID == id {
			return o, true
		}
	}
	return VariantOption{}, false
}

// DefaultSelections picks the first declared option of every required group.
// Optional groups are left unselected.
func DefaultSelections(p Product) Selections {
	sel := make(Selections, len(p.VariantGroups))
	for _, g := range p.VariantGroups {
		if g.Required && len(g.Options) > 0 {
			sel[g.ID] = g.Options[0].ID
		}
	}
	return sel
}

// ResolveUnitPrice adds the adjustment of every selected option to the base price.
// It never guesses a default for unselected required groups.
func ResolveUnitPrice(p Product, sel Selections) UnitPrice {
	out := UnitPrice{MissingRequired: []string{}, UnknownOptions: []string{}}
	amount := p.BasePrice
	known := make(map[string]struct{}, len(p.VariantGroups))
	for _, g := range p.VariantGroups {
		known[g.ID] = struct{}{}
		optionID, selected := sel[g.ID]
		if selected && optionID != "" {
			if opt, ok := g.option(optionID); ok {
				amount = amount.Add(opt.PriceAdjustment)
				continue
			}
			out.UnknownOptions = append(out.UnknownOptions, g.ID+":"+optionID)
		}
		if g.Required {
			out.MissingRequired = append(out.MissingRequired, g.ID)
		}
	}
	for groupID, optionID := range sel {
		if _, ok := known[groupID]; !ok {
			out.UnknownOptions = append(out.UnknownOptions, groupID+":"+optionID)
		}
	}
	slices.Sort(out.UnknownOptions)
	if amount.IsNegative() {
		amount = decimal.Zero
		out.Clamped = true
	}
	out.Amount = amount
	return out
}

// ValidateSelections reports a typed error if sel cannot price p.
func ValidateSelections(p Product, sel Selections) error {
	return ResolveUnitPrice(p, sel).Err()
}
