package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/catalog"
	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/db"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/shipping"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("cmd", "seeder").Logger()
	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL, "toko-pricing-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{Store: catalog.PGStore{DB: pool}, Logger: logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	for _, p := range demoProducts() {
		if _, err := catalogSvc.Save(ctx, p); err != nil {
			logger.Fatal().Err(err).Str("product", p.Name).Msg("seed product")
		}
	}
	logger.Info().Int("count", len(demoProducts())).Msg("products seeded")

	promoSvc := &voucher.Service{Store: voucher.PGStore{DB: pool}, Logger: logger}
	codes := cfg.PromoCodes
	if len(codes) == 0 {
		codes = []voucher.PromoCode{{
			Code:        "save10",
			Rule:        pricing.PercentageRule(decimal.NewFromInt(10)),
			Description: "10% off the whole order",
		}}
	}
	for _, code := range codes {
		if _, err := promoSvc.Save(ctx, code); err != nil {
			logger.Fatal().Err(err).Str("code", code.Code).Msg("seed promo code")
		}
	}
	logger.Info().Int("count", len(codes)).Msg("promo codes seeded")

	shipSvc := &shipping.Service{Store: shipping.PGStore{DB: pool}, Logger: logger}
	policy, err := shipSvc.Save(ctx, cfg.ShippingPolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed shipping policy")
	}
	logThreshold(logger, policy)
}

func logThreshold(logger zerolog.Logger, p shipping.Policy) {
	evt := logger.Info().Int("destinations", len(p.Destinations))
	if p.FreeShippingThreshold != nil {
		evt = evt.Str("free_shipping_threshold", p.FreeShippingThreshold.String())
	}
	evt.Msg("shipping policy seeded")
}

func money(v string) pricing.Money {
	return decimal.RequireFromString(v)
}

func demoProducts() []pricing.Product {
	return []pricing.Product{
		{
			ID:        uuid.MustParse("6f1c1c43-1d1a-4a39-9a0c-3c1f3b0c7a01"),
			Name:      "Brass desk lamp",
			BasePrice: money("100"),
		},
		{
			ID:        uuid.MustParse("0b7a4a2e-4c55-4d7b-9d8e-6f0e2d1c9a11"),
			Name:      "Linen shirt",
			BasePrice: money("250"),
			VariantGroups: []pricing.VariantGroup{
				{ID: "size", Name: "Size", Required: true, Options: []pricing.VariantOption{
					{ID: "s", Label: "Small", PriceAdjustment: money("0")},
					{ID: "m", Label: "Medium", PriceAdjustment: money("0")},
					{ID: "xl", Label: "Extra large", PriceAdjustment: money("20")},
				}},
				{ID: "color", Name: "Colour", Required: true, Options: []pricing.VariantOption{
					{ID: "white", Label: "White", PriceAdjustment: money("0")},
					{ID: "indigo", Label: "Indigo dye", PriceAdjustment: money("35")},
				}},
				{ID: "gift-wrap", Name: "Gift wrap", Options: []pricing.VariantOption{
					{ID: "yes", Label: "Wrapped", PriceAdjustment: money("15")},
				}},
			},
		},
		{
			ID:        uuid.MustParse("9d3e2f10-7b8a-4c1d-8e2f-3a4b5c6d7e81"),
			Name:      "Clearance tote",
			BasePrice: money("40"),
			VariantGroups: []pricing.VariantGroup{
				{ID: "print", Name: "Print", Required: true, Options: []pricing.VariantOption{
					{ID: "plain", Label: "Plain", PriceAdjustment: money("0")},
					{ID: "misprint", Label: "Misprint", PriceAdjustment: money("-50")},
				}},
			},
		},
	}
}
