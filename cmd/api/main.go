package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/cache"
	"github.com/noah-isme/toko-pricing/internal/cart"
	"github.com/noah-isme/toko-pricing/internal/catalog"
	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/db"
	"github.com/noah-isme/toko-pricing/internal/health"
	"github.com/noah-isme/toko-pricing/internal/lock"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/ratelimit"
	"github.com/noah-isme/toko-pricing/internal/resilience"
	"github.com/noah-isme/toko-pricing/internal/security"
	"github.com/noah-isme/toko-pricing/internal/shipping"
	"github.com/noah-isme/toko-pricing/internal/voucher"
)

const serviceName = "toko-pricing"

type stores struct {
	catalog  catalog.Store
	promos   voucher.Store
	shipping shipping.Store
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	if cfg.Obs.EnablePrometheus {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
		resilience.MustRegisterMetrics(cfg.Obs.MetricsNamespace, nil)
	}

	tracingEnabled := cfg.Obs.EnableTracing
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   serviceName,
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var pool *pgxpool.Pool
	st := stores{
		catalog:  catalog.NewMemoryStore(),
		promos:   voucher.NewMemoryStore(cfg.PromoCodes...),
		shipping: shipping.NewMemoryStore(cfg.ShippingPolicy),
	}
	if cfg.DatabaseURL != "" {
		if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		pool, err = db.Connect(ctx, cfg.DatabaseURL, serviceName)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect database")
		}
		defer pool.Close()
		st = stores{
			catalog:  catalog.PGStore{DB: pool},
			promos:   voucher.PGStore{DB: pool},
			shipping: shipping.PGStore{DB: pool},
		}
	} else {
		logger.Warn().Msg("DATABASE_URL not set; using in-memory stores seeded from config")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = connectRedis(ctx, cfg, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	} else {
		logger.Warn().Msg("REDIS_URL not set; carts, locks and rate limits are process-local")
	}

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:       "redis-cache",
		MinRequests:  5,
		FailureRatio: 0.5,
		OpenFor:      30 * time.Second,
		Logger:       logger,
	})
	readCache := func(ttl time.Duration) *cache.JSON {
		if redisClient == nil {
			return nil
		}
		return cache.NewJSON(redisClient, serviceName+":", ttl).WithBreaker(breaker)
	}

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Store:  st.catalog,
		Cache:  readCache(cfg.CatalogCacheTTL),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	promoSvc := &voucher.Service{Store: st.promos, Cache: readCache(cfg.CatalogCacheTTL), Logger: logger}
	shipSvc := &shipping.Service{Store: st.shipping, Cache: readCache(cfg.CatalogCacheTTL), Logger: logger}

	var (
		sessions cart.Store
		guard    lock.Guard
		limiter  ratelimit.Allower
	)
	if redisClient != nil {
		sessions = cart.RedisStore{JSON: cache.NewJSON(redisClient, serviceName+":", cfg.CartSessionTTL)}
		guard = lock.Locker{Client: redisClient, Prefix: serviceName + ":"}
		limiter = ratelimit.Limiter{Client: redisClient, Prefix: serviceName + ":rl:"}
	} else {
		sessions = cart.NewMemoryStore(cfg.CartSessionTTL)
		guard = lock.NewLocal()
		limiter = ratelimit.NewMemoryLimiter()
	}
	cartSvc := &cart.Service{
		Products: catalogSvc,
		Promos:   promoSvc,
		Shipping: shipSvc,
		Store:    sessions,
		Guard:    guard,
		TaxRate:  cfg.TaxRate,
		Logger:   logger,
	}

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc, Logger: logger})
	promoHandler := &voucher.Handler{Svc: promoSvc, Logger: logger}
	shipHandler := &shipping.Handler{Svc: shipSvc, Logger: logger}
	cartHandler := &cart.Handler{Svc: cartSvc, Logger: logger}

	promoLimit := ratelimit.PromoAttempts(limiter, ratelimit.Rule{Window: cfg.PromoRateLimitWindow, Max: cfg.PromoRateLimitMax}, func(err error) {
		logger.Warn().Err(err).Msg("promo rate limiter unavailable")
	})
	adminAuth := security.AdminToken{Token: cfg.AdminAPIToken, Logger: logger}
	if cfg.AdminAPIToken == "" {
		logger.Warn().Msg("ADMIN_API_TOKEN not set; merchant routes are unauthenticated")
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.EnablePrometheus {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.Instrument{Logger: logger, Metrics: httpMetrics, Tracing: tracingEnabled}.Handler)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.EnableHSTS}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	}))

	if cfg.Obs.EnablePrometheus {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), os.Getenv("SECURE_PPROF_BASIC_AUTH_USER"), os.Getenv("SECURE_PPROF_BASIC_AUTH_PASS")))
	}

	healthHandler := health.Handler{Dependencies: readinessChecks(pool, redisClient)}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/products", catalogHandler.List)
		v.Get("/products/{id}", catalogHandler.Get)
		v.Post("/products/{id}/price", catalogHandler.Price)
		v.Post("/pricing/quote", cartHandler.Quote)
		v.With(promoLimit.Middleware).Post("/promo/evaluate", promoHandler.Evaluate)
		v.Get("/shipping/destinations", shipHandler.Destinations)

		v.Route("/carts", func(c chi.Router) {
			c.Post("/", cartHandler.Create)
			c.Get("/{id}", cartHandler.Get)
			c.Post("/{id}/items", cartHandler.AddItem)
			c.Patch("/{id}/items/{index}", cartHandler.UpdateItem)
			c.Delete("/{id}/items/{index}", cartHandler.RemoveItem)
			c.With(promoLimit.Middleware).Post("/{id}/promo", cartHandler.ApplyPromo)
			c.Delete("/{id}/promo", cartHandler.RemovePromo)
			c.Put("/{id}/destination", cartHandler.SetDestination)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(adminAuth.Middleware)
			admin.Post("/pricing/preview", catalogHandler.Preview)
			admin.Put("/products/{id}", catalogHandler.Save)
			admin.Get("/promo-codes", promoHandler.List)
			admin.Put("/promo-codes/{code}", promoHandler.Put)
			admin.Delete("/promo-codes/{code}", promoHandler.Delete)
			admin.Put("/shipping/policy", shipHandler.SavePolicy)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("currency", cfg.CurrencyCode).
			Str("tax_rate", cfg.TaxRatePercent()).
			Bool("postgres", pool != nil).
			Bool("redis", redisClient != nil).
			Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-stop.Done():
		health.SetReady(false)
		logger.Info().Msg("shutdown requested")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func connectRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.Obs.EnablePrometheus {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func readinessChecks(pool *pgxpool.Pool, client *redis.Client) []health.Dependency {
	var out []health.Dependency
	if pool != nil {
		out = append(out, health.Dependency{
			Name:    "db",
			Timeout: envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
			Check:   pool.Ping,
		})
	}
	if client != nil {
		out = append(out, health.Dependency{
			Name:    "redis",
			Timeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
			Check:   func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
	}
	return out
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(val) + "ms"); err == nil {
			return parsed
		}
	}
	return time.Duration(fallback) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
