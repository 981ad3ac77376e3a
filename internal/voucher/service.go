package voucher

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/cache"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// Service serves the promo table to the pricing engine and lets merchants edit it.
type Service struct {
	Store  Store
	Cache  *cache.JSON
	Logger zerolog.Logger
}

// Table loads the promo table, preferring the cached copy.
func (s *Service) Table(ctx context.Context) (Table, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("voucher service not configured")
	}
	var cached []PromoCode
	if found, err := s.Cache.Get(ctx, cache.KeyPromoTable, &cached); err != nil {
		s.Logger.Warn().Err(err).Msg("read promo table cache")
	} else if found {
		if table, err := NewTable(cached...); err == nil {
			return table, nil
		}
	}
	codes, err := s.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list promo codes: %w", err)
	}
	table, err := NewTable(codes...)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Set(ctx, cache.KeyPromoTable, table.Codes()); err != nil {
		s.Logger.Warn().Err(err).Msg("write promo table cache")
	}
	return table, nil
}

// Evaluate applies code to subtotal using the current promo table.
func (s *Service) Evaluate(ctx context.Context, code string, subtotal pricing.Money) (Result, error) {
	table, err := s.Table(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Evaluate(code, subtotal, table)
	obs.ObservePromoEvaluation(res.Applied)
	return res, nil
}

// Save validates and stores a promo code, evicting the cached table.
func (s *Service) Save(ctx context.Context, promo PromoCode) (PromoCode, error) {
	if s == nil || s.Store == nil {
		return PromoCode{}, errors.New("voucher service not configured")
	}
	if err := promo.Validate(); err != nil {
		return PromoCode{}, err
	}
	promo.Code = NormalizeCode(promo.Code)
	if err := s.Store.Save(ctx, promo); err != nil {
		return PromoCode{}, err
	}
	s.evict(ctx)
	return promo, nil
}

// Delete removes a promo code.
func (s *Service) Delete(ctx context.Context, code string) error {
	if s == nil || s.Store == nil {
		return errors.New("voucher service not configured")
	}
	if err := s.Store.Delete(ctx, code); err != nil {
		return err
	}
	s.evict(ctx)
	return nil
}

func (s *Service) evict(ctx context.Context) {
	if err := s.Cache.Delete(ctx, cache.KeyPromoTable); err != nil {
		s.Logger.Warn().Err(err).Msg("evict promo table cache")
	}
}
