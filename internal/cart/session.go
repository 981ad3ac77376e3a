package cart

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/shipping"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

var (
	// ErrNotFound indicates the requested cart could not be located.
	ErrNotFound = errors.New("cart not found")
	// ErrLineNotFound is returned when an event references a missing line index.
	ErrLineNotFound = errors.New("cart line not found")
)

// State is the persisted cart: lines, promo code and destination. Prices are
// never stored; they are recomputed from State on every read.
type State struct {
	ID          string    `json:"id"`
	Lines       []Line    `json:"lines"`
	PromoCode   string    `json:"promoCode,omitempty"`
	Destination string    `json:"destination,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewState starts an empty cart.
func NewState(now time.Time) State {
	return State{ID: uuid.NewString(), Lines: []Line{}, UpdatedAt: now}
}

func (s State) clone() State {
	out := s
	out.Lines = make([]Line, len(s.Lines))
	for i, l := range s.Lines {
		l.Selections = maps.Clone(l.Selections)
		out.Lines[i] = l
	}
	return out
}

// Event is a state-changing storefront interaction.
type Event interface {
	apply(*State) error
}

// AddItem appends a line.
type AddItem struct{ Line Line }

// UpdateItem changes the quantity and/or selections of the line at Index.
type UpdateItem struct {
	Index      int
	Quantity   *int
	Selections pricing.Selections
}

// RemoveItem drops the line at Index.
type RemoveItem struct{ Index int }

// ApplyPromo records a promo code. Unknown codes are kept and simply not applied.
type ApplyPromo struct{ Code string }

// RemovePromo clears the promo code.
type RemovePromo struct{}

// SetDestination records the shipping destination.
type SetDestination struct{ Destination string }

func (e AddItem) apply(s *State) error {
	if e.Line.Quantity < 1 {
		return fmt.Errorf("quantity %d: %w", e.Line.Quantity, ErrInvalidQuantity)
	}
	line := e.Line
	line.Selections = maps.Clone(line.Selections)
	if line.Selections == nil {
		line.Selections = pricing.Selections{}
	}
	s.Lines = append(s.Lines, line)
	return nil
}

func (e UpdateItem) apply(s *State) error {
	if e.Index < 0 || e.Index >= len(s.Lines) {
		return fmt.Errorf("index %d: %w", e.Index, ErrLineNotFound)
	}
	if e.Quantity != nil {
		if *e.Quantity < 1 {
			return &LineError{Index: e.Index, Err: fmt.Errorf("quantity %d: %w", *e.Quantity, ErrInvalidQuantity)}
		}
		s.Lines[e.Index].Quantity = *e.Quantity
	}
	if e.Selections != nil {
		s.Lines[e.Index].Selections = maps.Clone(e.Selections)
	}
	return nil
}

func (e RemoveItem) apply(s *State) error {
	if e.Index < 0 || e.Index >= len(s.Lines) {
		return fmt.Errorf("index %d: %w", e.Index, ErrLineNotFound)
	}
	s.Lines = slices.Delete(s.Lines, e.Index, e.Index+1)
	return nil
}

func (e ApplyPromo) apply(s *State) error {
	s.PromoCode = voucher.NormalizeCode(e.Code)
	return nil
}

func (RemovePromo) apply(s *State) error {
	s.PromoCode = ""
	return nil
}

func (e SetDestination) apply(s *State) error {
	s.Destination = shipping.NormalizeDestination(e.Destination)
	return nil
}

// Session is the externally owned cart state object. It serialises events so
// two concurrent edits never interleave into an inconsistent receipt.
type Session struct {
	mu    sync.Mutex
	state State
}

// NewSession wraps state.
func NewSession(state State) *Session {
	return &Session{state: state.clone()}
}

// Apply runs ev against the session. A failing event leaves the state untouched.
func (s *Session) Apply(ev Event, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	if err := ev.apply(&next); err != nil {
		return err
	}
	next.UpdatedAt = now
	s.state = next
	return nil
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Problem explains why a cart view has no receipt yet.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    *int   `json:"line,omitempty"`
}

// View is the cart page payload: the state plus its freshly computed receipt.
// Receipt is nil while Problems is non-empty.
type View struct {
	State
	Subtotal pricing.Money `json:"subtotal"`
	Receipt  *Receipt      `json:"receipt"`
	Problems []Problem     `json:"problems"`
}

// Pricing is the external data a session view is computed against.
type Pricing struct {
	Products map[uuid.UUID]pricing.Product
	Promos   voucher.Table
	Policy   shipping.Policy
	TaxRate  pricing.Money
}

// Recompute prices the current state from scratch.
func (s *Session) Recompute(p Pricing) View {
	return Recompute(s.State(), p)
}

// Recompute prices state from scratch. Lines that cannot be priced and a
// missing destination are reported as problems; the subtotal then covers only
// the lines that priced cleanly.
func Recompute(state State, p Pricing) View {
	view := View{State: state, Problems: []Problem{}}
	lines := make([]PricedLine, 0, len(state.Lines))
	subtotal := decimal.Zero
	for i, l := range state.Lines {
		product, ok := p.Products[l.ProductID]
		if !ok {
			view.Problems = append(view.Problems, lineProblem(i, "PRODUCT_UNAVAILABLE", "product is no longer available"))
			continue
		}
		pl := PricedLine{Product: product, Quantity: l.Quantity, Selections: l.Selections}
		lineSubtotal, err := Subtotal([]PricedLine{pl})
		if err != nil {
			message := err.Error()
			var lineErr *LineError
			if errors.As(err, &lineErr) {
				message = lineErr.Err.Error()
			}
			view.Problems = append(view.Problems, lineProblem(i, ProblemCode(err), message))
			continue
		}
		subtotal = subtotal.Add(lineSubtotal)
		lines = append(lines, pl)
	}
	view.Subtotal = pricing.Round(subtotal)
	if strings.TrimSpace(state.Destination) == "" {
		view.Problems = append(view.Problems, Problem{Code: "DESTINATION_REQUIRED", Message: "choose a shipping destination"})
	}
	if len(view.Problems) > 0 {
		return view
	}
	receipt, err := Aggregate(Input{
		Lines:       lines,
		Discount:    DiscountInput{PromoCode: state.PromoCode, Promos: p.Promos},
		Destination: state.Destination,
		TaxRate:     p.TaxRate,
		Shipping:    p.Policy,
	})
	if err != nil {
		view.Problems = append(view.Problems, Problem{Code: ProblemCode(err), Message: err.Error()})
		return view
	}
	view.Receipt = &receipt
	return view
}

func lineProblem(index int, code, message string) Problem {
	return Problem{Code: code, Message: message, Line: &index}
}

// ProblemCode maps a pricing failure onto a stable machine-readable code.
func ProblemCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		return "INVALID_QUANTITY"
	case errors.Is(err, pricing.ErrMissingRequiredVariant), errors.Is(err, pricing.ErrUnknownVariantOption):
		return "VARIANT_INVALID"
	case errors.Is(err, shipping.ErrUnknownDestination):
		return "UNKNOWN_DESTINATION"
	case errors.Is(err, pricing.ErrInvalidDiscountConfiguration):
		return "INVALID_DISCOUNT"
	default:
		return "PRICING_FAILED"
	}
}
