package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/catalog"
	"github.com/noah-isme/toko-pricing/internal/lock"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/shipping"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

// ProductSource supplies product snapshots.
type ProductSource interface {
	Get(ctx context.Context, id uuid.UUID) (pricing.Product, error)
}

// PromoSource supplies the promo table.
type PromoSource interface {
	Table(ctx context.Context) (voucher.Table, error)
}

// PolicySource supplies the shipping policy.
type PolicySource interface {
	Policy(ctx context.Context) (shipping.Policy, error)
}

// Service loads collaborator data, applies storefront events to cart sessions
// and recomputes receipts.
type Service struct {
	Products ProductSource
	Promos   PromoSource
	Shipping PolicySource
	Store    Store
	Guard    lock.Guard
	TaxRate  pricing.Money
	LockTTL  time.Duration
	Now      func() time.Time
	Logger   zerolog.Logger
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) lockTTL() time.Duration {
	if s == nil || s.LockTTL <= 0 {
		return 5 * time.Second
	}
	return s.LockTTL
}

// ErrNotConfigured is returned when a collaborator the call needs is missing.
var ErrNotConfigured = errors.New("cart service not configured")

// configured checks the pricing collaborators; sessions also requires the
// cart store and lock.
func (s *Service) configured(sessions bool) error {
	if s == nil || s.Products == nil || s.Promos == nil || s.Shipping == nil {
		return ErrNotConfigured
	}
	if sessions && (s.Store == nil || s.Guard == nil) {
		return ErrNotConfigured
	}
	return nil
}

// QuoteRequest is a stateless cart pricing request.
type QuoteRequest struct {
	Lines        []Line
	PromoCode    string
	DiscountRule *pricing.DiscountRule
	Destination  string
}

// Quote prices a cart that is not stored anywhere.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (Receipt, error) {
	if err := s.configured(false); err != nil {
		return Receipt{}, err
	}
	receipt, err := s.quote(ctx, req)
	obs.ObserveReceipt("quote", resultLabel(err))
	return receipt, err
}

func (s *Service) quote(ctx context.Context, req QuoteRequest) (Receipt, error) {
	lines := make([]PricedLine, 0, len(req.Lines))
	for i, l := range req.Lines {
		p, err := s.Products.Get(ctx, l.ProductID)
		if err != nil {
			return Receipt{}, &LineError{Index: i, Err: err}
		}
		lines = append(lines, PricedLine{Product: p, Quantity: l.Quantity, Selections: l.Selections})
	}
	discount := DiscountInput{Rule: req.DiscountRule, PromoCode: req.PromoCode}
	if strings.TrimSpace(req.PromoCode) != "" {
		table, err := s.Promos.Table(ctx)
		if err != nil {
			return Receipt{}, err
		}
		discount.Promos = table
	}
	policy, err := s.Shipping.Policy(ctx)
	if err != nil {
		return Receipt{}, err
	}
	receipt, err := Aggregate(Input{
		Lines:       lines,
		Discount:    discount,
		Destination: req.Destination,
		TaxRate:     s.TaxRate,
		Shipping:    policy,
	})
	if err != nil {
		return Receipt{}, err
	}
	if discount.PromoCode != "" {
		obs.ObservePromoEvaluation(receipt.PromoApplied)
	}
	return receipt, nil
}

// Create starts an empty cart, optionally with a destination.
func (s *Service) Create(ctx context.Context, destination string) (View, error) {
	if err := s.configured(true); err != nil {
		return View{}, err
	}
	state := NewState(s.now())
	if strings.TrimSpace(destination) != "" {
		if err := s.checkDestination(ctx, destination); err != nil {
			return View{}, err
		}
		state.Destination = shipping.NormalizeDestination(destination)
	}
	if err := s.Store.Save(ctx, state); err != nil {
		return View{}, fmt.Errorf("save cart: %w", err)
	}
	s.Logger.Debug().Str("cart_id", state.ID).Msg("cart created")
	return s.view(ctx, state)
}

// Get recomputes the cart view.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	if err := s.configured(true); err != nil {
		return View{}, err
	}
	state, err := s.Store.Load(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, state)
}

// Apply runs ev against the cart under its lock, persists the new state and
// returns the recomputed view.
func (s *Service) Apply(ctx context.Context, id string, ev Event) (View, error) {
	if err := s.configured(true); err != nil {
		return View{}, err
	}
	if err := s.validateEvent(ctx, ev); err != nil {
		return View{}, err
	}
	var state State
	err := s.Guard.WithLock(ctx, "cart-lock:"+id, s.lockTTL(), func(ctx context.Context) error {
		current, err := s.Store.Load(ctx, id)
		if err != nil {
			return err
		}
		session := NewSession(current)
		if err := session.Apply(ev, s.now()); err != nil {
			return err
		}
		state = session.State()
		if err := s.checkLines(ctx, ev, state); err != nil {
			return err
		}
		return s.Store.Save(ctx, state)
	})
	if err != nil {
		return View{}, err
	}
	view, err := s.view(ctx, state)
	if err != nil {
		return View{}, err
	}
	if _, ok := ev.(ApplyPromo); ok && view.Receipt != nil {
		obs.ObservePromoEvaluation(view.Receipt.PromoApplied)
	}
	return view, nil
}

// validateEvent rejects input that can be checked before touching the cart.
func (s *Service) validateEvent(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case AddItem:
		if e.Line.Quantity < 1 {
			return fmt.Errorf("quantity %d: %w", e.Line.Quantity, ErrInvalidQuantity)
		}
		p, err := s.Products.Get(ctx, e.Line.ProductID)
		if err != nil {
			return err
		}
		return pricing.ValidateSelections(p, e.Line.Selections)
	case SetDestination:
		return s.checkDestination(ctx, e.Destination)
	}
	return nil
}

// checkLines validates selections changed by an update against the product.
func (s *Service) checkLines(ctx context.Context, ev Event, state State) error {
	update, ok := ev.(UpdateItem)
	if !ok || update.Selections == nil {
		return nil
	}
	line := state.Lines[update.Index]
	p, err := s.Products.Get(ctx, line.ProductID)
	if err != nil {
		return err
	}
	if err := pricing.ValidateSelections(p, line.Selections); err != nil {
		return &LineError{Index: update.Index, Err: err}
	}
	return nil
}

func (s *Service) checkDestination(ctx context.Context, destination string) error {
	policy, err := s.Shipping.Policy(ctx)
	if err != nil {
		return err
	}
	if _, _, ok := policy.Lookup(destination); !ok {
		return fmt.Errorf("destination %q: %w", strings.TrimSpace(destination), shipping.ErrUnknownDestination)
	}
	return nil
}

func (s *Service) view(ctx context.Context, state State) (View, error) {
	products := make(map[uuid.UUID]pricing.Product, len(state.Lines))
	for _, l := range state.Lines {
		if _, done := products[l.ProductID]; done {
			continue
		}
		p, err := s.Products.Get(ctx, l.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				continue
			}
			return View{}, err
		}
		products[l.ProductID] = p
	}
	var promos voucher.Table
	if state.PromoCode != "" {
		table, err := s.Promos.Table(ctx)
		if err != nil {
			return View{}, err
		}
		promos = table
	}
	policy, err := s.Shipping.Policy(ctx)
	if err != nil {
		return View{}, err
	}
	view := Recompute(state, Pricing{Products: products, Promos: promos, Policy: policy, TaxRate: s.TaxRate})
	result := "ok"
	if view.Receipt == nil {
		result = "incomplete"
	}
	obs.ObserveReceipt("cart", result)
	return view, nil
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(ProblemCode(err))
}
