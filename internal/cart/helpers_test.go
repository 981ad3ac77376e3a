package cart

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/shipping"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

var (
	lampID  = uuid.MustParse("6f1c1c43-1d1a-4a39-9a0c-3c1f3b0c7a01")
	shirtID = uuid.MustParse("0b7a4a2e-4c55-4d7b-9d8e-6f0e2d1c9a11")
)

func m(v string) pricing.Money { return decimal.RequireFromString(v) }

func requireMoney(t *testing.T, want string, got pricing.Money) {
	t.Helper()
	require.Truef(t, m(want).Equal(got), "want %s got %s", want, got.String())
}

func lamp() pricing.Product {
	return pricing.Product{ID: lampID, Name: "Desk lamp", BasePrice: m("100"), VariantGroups: []pricing.VariantGroup{}}
}

func shirt() pricing.Product {
	return pricing.Product{
		ID:        shirtID,
		Name:      "Linen shirt",
		BasePrice: m("250"),
		VariantGroups: []pricing.VariantGroup{
			{ID: "color", Required: true, Options: []pricing.VariantOption{
				{ID: "white", PriceAdjustment: m("0")},
				{ID: "navy", PriceAdjustment: m("15")},
			}},
		},
	}
}

func policy() shipping.Policy {
	threshold := m("500")
	return shipping.Policy{
		Destinations: map[string]shipping.Rate{
			"cairo": {Fee: m("25"), EstimatedDays: 2},
			"aswan": {Fee: m("60"), EstimatedDays: 6},
		},
		FreeShippingThreshold: &threshold,
	}
}

func promos(t *testing.T) voucher.Table {
	t.Helper()
	table, err := voucher.NewTable(voucher.PromoCode{Code: "save10", Rule: pricing.PercentageRule(m("10"))})
	require.NoError(t, err)
	return table
}
