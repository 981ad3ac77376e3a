package cart

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/pricing"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func TestSessionEvents(t *testing.T) {
	s := NewSession(NewState(t0))

	require.NoError(t, s.Apply(AddItem{Line: Line{ProductID: lampID, Quantity: 2}}, t0))
	require.NoError(t, s.Apply(AddItem{Line: Line{ProductID: shirtID, Quantity: 1, Selections: pricing.Selections{"color": "white"}}}, t0))
	require.NoError(t, s.Apply(UpdateItem{Index: 1, Quantity: intPtr(3), Selections: pricing.Selections{"color": "navy"}}, t0))
	require.NoError(t, s.Apply(ApplyPromo{Code: "  SAVE10 "}, t0))
	later := t0.Add(time.Minute)
	require.NoError(t, s.Apply(SetDestination{Destination: "Cairo"}, later))

	state := s.State()
	require.Len(t, state.Lines, 2)
	require.Equal(t, 3, state.Lines[1].Quantity)
	require.Equal(t, "navy", state.Lines[1].Selections["color"])
	require.Equal(t, "save10", state.PromoCode)
	require.Equal(t, "cairo", state.Destination)
	require.Equal(t, later, state.UpdatedAt)
	require.NotNil(t, state.Lines[0].Selections)

	require.NoError(t, s.Apply(RemoveItem{Index: 0}, t0))
	require.NoError(t, s.Apply(RemovePromo{}, t0))
	state = s.State()
	require.Len(t, state.Lines, 1)
	require.Equal(t, shirtID, state.Lines[0].ProductID)
	require.Empty(t, state.PromoCode)
}

func TestSessionFailedEventLeavesStateUntouched(t *testing.T) {
	s := NewSession(NewState(t0))
	require.NoError(t, s.Apply(AddItem{Line: Line{ProductID: lampID, Quantity: 2}}, t0))
	before := s.State()

	err := s.Apply(UpdateItem{Index: 0, Quantity: intPtr(0)}, t0.Add(time.Hour))
	require.True(t, errors.Is(err, ErrInvalidQuantity))
	var lineErr *LineError
	require.True(t, errors.As(err, &lineErr))
	require.Equal(t, 0, lineErr.Index)

	require.True(t, errors.Is(s.Apply(RemoveItem{Index: 4}, t0), ErrLineNotFound))
	require.True(t, errors.Is(s.Apply(UpdateItem{Index: -1, Quantity: intPtr(1)}, t0), ErrLineNotFound))
	require.True(t, errors.Is(s.Apply(AddItem{Line: Line{ProductID: lampID}}, t0), ErrInvalidQuantity))
	require.Equal(t, before, s.State())
}

func TestSessionStateIsACopy(t *testing.T) {
	s := NewSession(NewState(t0))
	require.NoError(t, s.Apply(AddItem{Line: Line{ProductID: shirtID, Quantity: 1, Selections: pricing.Selections{"color": "white"}}}, t0))

	state := s.State()
	state.Lines[0].Selections["color"] = "navy"
	state.Lines[0].Quantity = 9

	again := s.State()
	require.Equal(t, "white", again.Lines[0].Selections["color"])
	require.Equal(t, 1, again.Lines[0].Quantity)
}

func pricingData(t *testing.T) Pricing {
	return Pricing{
		Products: map[uuid.UUID]pricing.Product{lampID: lamp(), shirtID: shirt()},
		Promos:   promos(t),
		Policy:   policy(),
		TaxRate:  m("0.08"),
	}
}

func TestRecomputeProducesReceipt(t *testing.T) {
	s := NewSession(NewState(t0))
	require.NoError(t, s.Apply(AddItem{Line: Line{ProductID: lampID, Quantity: 6}}, t0))
	require.NoError(t, s.Apply(ApplyPromo{Code: "save10"}, t0))
	require.NoError(t, s.Apply(SetDestination{Destination: "cairo"}, t0))

	view := s.Recompute(pricingData(t))
	require.Empty(t, view.Problems)
	require.NotNil(t, view.Receipt)
	requireMoney(t, "600", view.Subtotal)
	requireMoney(t, "583.2", view.Receipt.Total)

	// Removing the promo drops the discounted subtotal below the threshold.
	require.NoError(t, s.Apply(RemovePromo{}, t0))
	require.NoError(t, s.Apply(UpdateItem{Index: 0, Quantity: intPtr(4)}, t0))
	view = s.Recompute(pricingData(t))
	requireMoney(t, "457", view.Receipt.Total)
}

func TestRecomputeReportsProblems(t *testing.T) {
	ghost := uuid.MustParse("11111111-2222-4333-8444-555555555555")
	state := NewState(t0)
	state.Lines = []Line{
		{ProductID: lampID, Quantity: 1},
		{ProductID: ghost, Quantity: 1},
		{ProductID: shirtID, Quantity: 1},
	}

	view := Recompute(state, pricingData(t))
	require.Nil(t, view.Receipt)
	requireMoney(t, "100", view.Subtotal)
	require.Len(t, view.Problems, 3)

	require.Equal(t, "PRODUCT_UNAVAILABLE", view.Problems[0].Code)
	require.Equal(t, 1, *view.Problems[0].Line)
	require.Equal(t, "VARIANT_INVALID", view.Problems[1].Code)
	require.Equal(t, 2, *view.Problems[1].Line)
	require.Equal(t, "DESTINATION_REQUIRED", view.Problems[2].Code)
	require.Nil(t, view.Problems[2].Line)
}

func TestRecomputeStoredUnknownDestination(t *testing.T) {
	state := NewState(t0)
	state.Lines = []Line{{ProductID: lampID, Quantity: 1}}
	state.Destination = "mars"

	view := Recompute(state, pricingData(t))
	require.Nil(t, view.Receipt)
	require.Len(t, view.Problems, 1)
	require.Equal(t, "UNKNOWN_DESTINATION", view.Problems[0].Code)
}

func TestProblemCode(t *testing.T) {
	require.Equal(t, "INVALID_QUANTITY", ProblemCode(&LineError{Index: 0, Err: ErrInvalidQuantity}))
	require.Equal(t, "VARIANT_INVALID", ProblemCode(pricing.ErrMissingRequiredVariant))
	require.Equal(t, "INVALID_DISCOUNT", ProblemCode(pricing.ErrInvalidDiscountConfiguration))
	require.Equal(t, "PRICING_FAILED", ProblemCode(errors.New("boom")))
}
