package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/cache"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// Service serves product snapshots to the pricing engine with a Redis cache in front of the store.
type Service struct {
	store  Store
	cache  *cache.JSON
	logger zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store  Store
	Cache  *cache.JSON
	Logger zerolog.Logger
}

// NewService constructs a catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog store is required")
	}
	return &Service{store: cfg.Store, cache: cfg.Cache, logger: cfg.Logger}, nil
}

// ProductView is the product page payload: the snapshot plus its default configuration.
type ProductView struct {
	Product           pricing.Product    `json:"product"`
	DefaultSelections pricing.Selections `json:"defaultSelections"`
	DefaultUnitPrice  pricing.UnitPrice  `json:"defaultUnitPrice"`
}

// Get returns a product snapshot.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (pricing.Product, error) {
	key := cache.KeyProduct(id.String())
	var cached pricing.Product
	if found, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("product_id", id.String()).Msg("read product cache")
	} else if found {
		return cached, nil
	}
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return pricing.Product{}, err
	}
	if err := s.cache.Set(ctx, key, p); err != nil {
		s.logger.Warn().Err(err).Str("product_id", id.String()).Msg("write product cache")
	}
	return p, nil
}

// Products resolves several ids, failing on the first miss.
func (s *Service) Products(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]pricing.Product, error) {
	out := make(map[uuid.UUID]pricing.Product, len(ids))
	for _, id := range ids {
		if _, done := out[id]; done {
			continue
		}
		p, err := s.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", id, err)
		}
		out[id] = p
	}
	return out, nil
}

// View builds the product page payload.
func (s *Service) View(ctx context.Context, id uuid.UUID) (ProductView, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return ProductView{}, err
	}
	sel := pricing.DefaultSelections(p)
	return ProductView{Product: p, DefaultSelections: sel, DefaultUnitPrice: pricing.ResolveUnitPrice(p, sel)}, nil
}

// List returns every product snapshot.
func (s *Service) List(ctx context.Context) ([]pricing.Product, error) {
	return s.store.List(ctx)
}

// Save validates and stores a product, evicting its cached snapshot.
func (s *Service) Save(ctx context.Context, p pricing.Product) (pricing.Product, error) {
	if p.ID == uuid.Nil {
		return pricing.Product{}, fmt.Errorf("product id is required: %w", pricing.ErrInvalidProduct)
	}
	if p.VariantGroups == nil {
		p.VariantGroups = []pricing.VariantGroup{}
	}
	if err := p.Validate(); err != nil {
		return pricing.Product{}, err
	}
	if err := s.store.Save(ctx, p); err != nil {
		return pricing.Product{}, err
	}
	if err := s.cache.Delete(ctx, cache.KeyProduct(p.ID.String())); err != nil {
		s.logger.Warn().Err(err).Str("product_id", p.ID.String()).Msg("evict product cache")
	}
	return p, nil
}

// Preview is the merchant pricing form result for a draft product.
type Preview struct {
	UnitPrice           pricing.UnitPrice `json:"unitPrice"`
	Quantity            int               `json:"quantity"`
	LineTotal           pricing.Money     `json:"lineTotal"`
	Discount            pricing.Money     `json:"discount"`
	DiscountedLineTotal pricing.Money     `json:"discountedLineTotal"`
}

// PreviewPrice prices a draft product without persisting it. The draft and the
// rule are validated as they would be on save; variant problems are reported
// in the unit price rather than failing the preview.
func PreviewPrice(draft pricing.Product, sel pricing.Selections, quantity int, rule *pricing.DiscountRule) (Preview, error) {
	if err := draft.Validate(); err != nil {
		return Preview{}, err
	}
	if rule != nil {
		if err := rule.Validate(); err != nil {
			return Preview{}, err
		}
	}
	if quantity < 1 {
		quantity = 1
	}
	if sel == nil {
		sel = pricing.DefaultSelections(draft)
	}
	unit := pricing.ResolveUnitPrice(draft, sel)
	line := unit.Amount.Mul(pricing.FromInt(int64(quantity)))
	discounted := pricing.ApplyDiscount(line, rule)
	return Preview{
		UnitPrice:           unit,
		Quantity:            quantity,
		LineTotal:           pricing.Round(line),
		Discount:            pricing.Round(line.Sub(discounted)),
		DiscountedLineTotal: pricing.Round(discounted),
	}, nil
}
