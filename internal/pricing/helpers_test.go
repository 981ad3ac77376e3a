package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func m(value string) Money {
	return decimal.RequireFromString(value)
}

func mp(value string) *Money {
	v := m(value)
	return &v
}

func requireMoney(t *testing.T, want string, got Money) {
	t.Helper()
	require.Truef(t, m(want).Equal(got), "expected %s, got %s", want, got.String())
}
