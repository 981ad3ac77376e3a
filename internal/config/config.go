package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/shipping"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

const (
	defaultTaxRate           = "0.08"
	defaultFreeShipThreshold = "500"
	defaultShippingRates     = "cairo:25:2,giza:25:2,alexandria:35:3,dakahlia:40:4,aswan:60:6"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	CurrencyCode       string

	TaxRate        pricing.Money
	ShippingPolicy shipping.Policy
	PromoCodes     []voucher.PromoCode

	CatalogCacheTTL      time.Duration
	CartSessionTTL       time.Duration
	PromoRateLimitMax    int
	PromoRateLimitWindow time.Duration

	AdminAPIToken   string
	SecurityHeaders bool
	EnableHSTS      bool

	Obs ObsConfig
}

// ObsConfig groups logging, metrics and tracing settings.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	EnablePrometheus bool
	MetricsNamespace string
	MetricsBuckets   string
	EnableTracing    bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
}

// Load reads configuration from environment variables and optional .env files.
// Tax, shipping and promo settings are validated here so a bad deploy fails at boot.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:               valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                 valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:          strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:             strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins:   splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:         strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "EGP")),
		CatalogCacheTTL:      parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CartSessionTTL:       parseDuration(k.String("CART_SESSION_TTL"), "72h"),
		PromoRateLimitMax:    parseInt(k.String("PROMO_RATE_LIMIT_MAX"), 10),
		PromoRateLimitWindow: parseDuration(k.String("PROMO_RATE_LIMIT_WINDOW"), "1m"),
		AdminAPIToken:        strings.TrimSpace(k.String("ADMIN_API_TOKEN")),
		SecurityHeaders:      parseBoolDefault(k.String("SECURE_HEADERS"), true),
		EnableHSTS:           parseBool(k.String("SECURE_HSTS")),
		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			EnablePrometheus: parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko_pricing"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			EnableTracing:    parseBool(k.String("OBS_ENABLE_TRACING")),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
		},
	}

	var err error
	if cfg.TaxRate, err = pricing.ParseMoney(valueOrDefault(k.String("PRICING_TAX_RATE"), defaultTaxRate)); err != nil {
		return nil, fmt.Errorf("PRICING_TAX_RATE: %w", err)
	}
	if err := pricing.ValidateTaxRate(cfg.TaxRate); err != nil {
		return nil, fmt.Errorf("PRICING_TAX_RATE: %w", err)
	}

	rates, err := shipping.ParseRates(valueOrDefault(k.String("SHIPPING_RATES"), defaultShippingRates))
	if err != nil {
		return nil, fmt.Errorf("SHIPPING_RATES: %w", err)
	}
	cfg.ShippingPolicy = shipping.Policy{Destinations: rates}
	if threshold := valueOrDefault(k.String("SHIPPING_FREE_THRESHOLD"), defaultFreeShipThreshold); !isDisabled(threshold) {
		amount, err := pricing.ParseMoney(threshold)
		if err != nil {
			return nil, fmt.Errorf("SHIPPING_FREE_THRESHOLD: %w", err)
		}
		cfg.ShippingPolicy.FreeShippingThreshold = &amount
	}
	if err := cfg.ShippingPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("shipping policy: %w", err)
	}

	if cfg.PromoCodes, err = voucher.ParseCodes(k.String("PROMO_CODES")); err != nil {
		return nil, fmt.Errorf("PROMO_CODES: %w", err)
	}
	if cfg.PromoRateLimitMax < 0 {
		return nil, fmt.Errorf("PROMO_RATE_LIMIT_MAX must not be negative")
	}
	if cfg.IsProduction() && cfg.AdminAPIToken == "" {
		return nil, fmt.Errorf("ADMIN_API_TOKEN is required in production")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// TaxRatePercent renders the tax rate as a percentage for logs.
func (c *Config) TaxRatePercent() string {
	return c.TaxRate.Mul(decimal.NewFromInt(100)).String() + "%"
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func isDisabled(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "off", "none", "disabled", "-":
		return true
	default:
		return false
	}
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
