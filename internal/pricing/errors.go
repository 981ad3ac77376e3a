package pricing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingRequiredVariant indicates a required variant group has no selection.
	ErrMissingRequiredVariant = errors.New("missing required variant")
	// ErrUnknownVariantOption indicates a selection references an option the product does not offer.
	ErrUnknownVariantOption = errors.New("unknown variant option")
	// ErrInvalidDiscountConfiguration is returned when a discount rule cannot be saved.
	ErrInvalidDiscountConfiguration = errors.New("invalid discount configuration")
	// ErrInvalidProduct is returned when a product snapshot is malformed.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrInvalidTaxRate is returned for negative tax rates.
	ErrInvalidTaxRate = errors.New("invalid tax rate")
)

// VariantError reports which groups block a unit price from being finalised.
type VariantError struct {
	Missing []string
	Unknown []string
	Err     error
}

// Error implements the error interface.
func (e *VariantError) Error() string {
	if e == nil {
		return ""
	}
	var parts []string
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown options: "+strings.Join(e.Unknown, ", "))
	}
	if len(e.Missing) > 0 {
		parts = append(parts, "missing groups: "+strings.Join(e.Missing, ", "))
	}
	if len(parts) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (%s)", e.Err.Error(), strings.Join(parts, "; "))
}

// Unwrap exposes the sentinel for errors.Is.
func (e *VariantError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
