package shipping

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/pricing"
)

func money(t *testing.T, v string) pricing.Money {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return d
}

func samplePolicy(t *testing.T) Policy {
	t.Helper()
	threshold := money(t, "500")
	return Policy{
		Destinations: map[string]Rate{
			"cairo": {Fee: money(t, "50"), EstimatedDays: 2},
			"giza":  {Fee: money(t, "45"), EstimatedDays: 2},
			"aswan": {Fee: money(t, "90"), EstimatedDays: 5},
		},
		FreeShippingThreshold: &threshold,
	}
}

func TestResolveBelowThresholdChargesFee(t *testing.T) {
	q, err := Resolve("cairo", money(t, "400"), samplePolicy(t))
	require.NoError(t, err)
	require.True(t, q.Fee.Equal(money(t, "50")))
	require.False(t, q.FreeShipping)
	require.Equal(t, 2, q.EstimatedDays)
}

func TestResolveThresholdIsInclusive(t *testing.T) {
	q, err := Resolve("cairo", money(t, "500"), samplePolicy(t))
	require.NoError(t, err)
	require.True(t, q.Fee.IsZero())
	require.True(t, q.FreeShipping)

	q, err = Resolve("cairo", money(t, "499.99"), samplePolicy(t))
	require.NoError(t, err)
	require.True(t, q.Fee.Equal(money(t, "50")))
}

func TestResolveUnknownDestination(t *testing.T) {
	_, err := Resolve("mars", money(t, "10"), samplePolicy(t))
	require.True(t, errors.Is(err, ErrUnknownDestination))

	// free shipping does not excuse an unknown destination
	_, err = Resolve("mars", money(t, "1000"), samplePolicy(t))
	require.True(t, errors.Is(err, ErrUnknownDestination))

	_, err = Resolve("  ", money(t, "10"), samplePolicy(t))
	require.True(t, errors.Is(err, ErrUnknownDestination))
}

func TestResolveNormalisesDestination(t *testing.T) {
	p := samplePolicy(t)
	p.Destinations["Alexandria "] = Rate{Fee: money(t, "60"), EstimatedDays: 3}
	q, err := Resolve(" ALEXANDRIA", money(t, "10"), p)
	require.NoError(t, err)
	require.Equal(t, "alexandria", q.Destination)
	require.True(t, q.Fee.Equal(money(t, "60")))
}

func TestResolveWithoutThreshold(t *testing.T) {
	p := samplePolicy(t)
	p.FreeShippingThreshold = nil
	q, err := Resolve("aswan", money(t, "100000"), p)
	require.NoError(t, err)
	require.True(t, q.Fee.Equal(money(t, "90")))
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, samplePolicy(t).Validate())

	p := samplePolicy(t)
	p.Destinations["cairo"] = Rate{Fee: money(t, "-1")}
	require.True(t, errors.Is(p.Validate(), ErrInvalidPolicy))

	p = samplePolicy(t)
	negative := money(t, "-5")
	p.FreeShippingThreshold = &negative
	require.True(t, errors.Is(p.Validate(), ErrInvalidPolicy))

	p = samplePolicy(t)
	p.Destinations["CAIRO"] = Rate{Fee: money(t, "1")}
	require.True(t, errors.Is(p.Validate(), ErrInvalidPolicy))

	p = samplePolicy(t)
	p.Destinations["giza"] = Rate{Fee: money(t, "1"), EstimatedDays: -1}
	require.True(t, errors.Is(p.Validate(), ErrInvalidPolicy))
}

func TestParseRates(t *testing.T) {
	rates, err := ParseRates("Cairo:50:2, giza:45.5 ,")
	require.NoError(t, err)
	require.Len(t, rates, 2)
	require.True(t, rates["cairo"].Fee.Equal(money(t, "50")))
	require.Equal(t, 2, rates["cairo"].EstimatedDays)
	require.True(t, rates["giza"].Fee.Equal(money(t, "45.5")))

	for _, bad := range []string{"cairo", "cairo:x", "cairo:5:two", ":5", "a:1,A:2"} {
		_, err := ParseRates(bad)
		require.Truef(t, errors.Is(err, ErrInvalidPolicy), "input %q", bad)
	}
}

func TestPolicyListSorted(t *testing.T) {
	list := samplePolicy(t).List()
	require.Len(t, list, 3)
	require.Equal(t, "aswan", list[0].Name)
	require.Equal(t, "giza", list[2].Name)
}
