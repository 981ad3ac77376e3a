package shipping

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/cache"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// Service loads the shipping policy for the pricing engine and lets merchants replace it.
type Service struct {
	Store  Store
	Cache  *cache.JSON
	Logger zerolog.Logger
}

// Policy returns the current policy, preferring the cached copy.
func (s *Service) Policy(ctx context.Context) (Policy, error) {
	if s == nil || s.Store == nil {
		return Policy{}, errors.New("shipping service not configured")
	}
	var cached Policy
	if found, err := s.Cache.Get(ctx, cache.KeyShippingPolicy, &cached); err != nil {
		s.Logger.Warn().Err(err).Msg("read shipping policy cache")
	} else if found {
		return cached, nil
	}
	p, err := s.Store.Load(ctx)
	if err != nil {
		return Policy{}, fmt.Errorf("load shipping policy: %w", err)
	}
	if err := s.Cache.Set(ctx, cache.KeyShippingPolicy, p); err != nil {
		s.Logger.Warn().Err(err).Msg("write shipping policy cache")
	}
	return p, nil
}

// Resolve prices shipping to dest with the current policy.
func (s *Service) Resolve(ctx context.Context, dest string, discountedSubtotal pricing.Money) (Quote, error) {
	p, err := s.Policy(ctx)
	if err != nil {
		return Quote{}, err
	}
	q, err := Resolve(dest, discountedSubtotal, p)
	obs.ObserveShippingResolution(ResultLabel(q, err))
	return q, err
}

// ResultLabel classifies a resolution for metrics.
func ResultLabel(q Quote, err error) string {
	switch {
	case errors.Is(err, ErrUnknownDestination):
		return "unknown_destination"
	case err != nil:
		return "error"
	case q.FreeShipping:
		return "free"
	default:
		return "charged"
	}
}

// Save validates and replaces the policy.
func (s *Service) Save(ctx context.Context, p Policy) (Policy, error) {
	if s == nil || s.Store == nil {
		return Policy{}, errors.New("shipping service not configured")
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	p = p.Normalized()
	if err := s.Store.Save(ctx, p); err != nil {
		return Policy{}, err
	}
	if err := s.Cache.Delete(ctx, cache.KeyShippingPolicy); err != nil {
		s.Logger.Warn().Err(err).Msg("evict shipping policy cache")
	}
	s.Logger.Info().Int("destinations", len(p.Destinations)).Msg("shipping policy saved")
	return p, nil
}
