package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/shipping"
)

func clearEnv() map[string]string {
	return map[string]string{
		"PRICING_TAX_RATE":        "",
		"SHIPPING_RATES":          "",
		"SHIPPING_FREE_THRESHOLD": "",
		"PROMO_CODES":             "",
		"PORT":                    "",
		"CART_SESSION_TTL":        "",
		"APP_ENV":                 "",
		"ADMIN_API_TOKEN":         "",
		"SECURE_HEADERS":          "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(clearEnv())
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "0.08", cfg.TaxRate.String())
	require.Equal(t, "8%", cfg.TaxRatePercent())
	require.NotNil(t, cfg.ShippingPolicy.FreeShippingThreshold)
	require.Equal(t, "500", cfg.ShippingPolicy.FreeShippingThreshold.String())
	_, rate, ok := cfg.ShippingPolicy.Lookup("Cairo")
	require.True(t, ok)
	require.Equal(t, "25", rate.Fee.String())
	require.Empty(t, cfg.PromoCodes)
	require.Equal(t, 72*time.Hour, cfg.CartSessionTTL)
}

func TestLoadOverrides(t *testing.T) {
	env := clearEnv()
	env["PRICING_TAX_RATE"] = "0.14"
	env["SHIPPING_RATES"] = "luxor:70:4"
	env["SHIPPING_FREE_THRESHOLD"] = "off"
	env["PROMO_CODES"] = "SAVE10:percentage:10"
	env["PORT"] = ":9090"
	env["CART_SESSION_TTL"] = "bogus"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, "0.14", cfg.TaxRate.String())
	require.Nil(t, cfg.ShippingPolicy.FreeShippingThreshold)
	require.Len(t, cfg.ShippingPolicy.Destinations, 1)
	require.Len(t, cfg.PromoCodes, 1)
	require.Equal(t, "save10", cfg.PromoCodes[0].Code)
	require.Equal(t, 72*time.Hour, cfg.CartSessionTTL)
}

func TestLoadRejectsBadPricingConfig(t *testing.T) {
	env := clearEnv()
	env["PRICING_TAX_RATE"] = "-0.1"
	_, err := LoadForTests(env)
	require.True(t, errors.Is(err, pricing.ErrInvalidTaxRate))

	env = clearEnv()
	env["SHIPPING_RATES"] = "cairo:-5:2"
	_, err = LoadForTests(env)
	require.True(t, errors.Is(err, shipping.ErrInvalidPolicy))

	env = clearEnv()
	env["PROMO_CODES"] = "bad:percentage:150"
	_, err = LoadForTests(env)
	require.True(t, errors.Is(err, pricing.ErrInvalidDiscountConfiguration))
}

func TestLoadRequiresAdminTokenInProduction(t *testing.T) {
	env := clearEnv()
	env["APP_ENV"] = "production"
	_, err := LoadForTests(env)
	require.Error(t, err)

	env["ADMIN_API_TOKEN"] = "dashboard-token"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.True(t, cfg.SecurityHeaders)
	require.False(t, cfg.EnableHSTS)
}
