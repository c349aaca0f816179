package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-api/internal/auth"
	"github.com/noah-isme/storefront-api/internal/basket"
	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/checkout"
	"github.com/noah-isme/storefront-api/internal/config"
	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/health"
	"github.com/noah-isme/storefront-api/internal/lock"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/order"
	"github.com/noah-isme/storefront-api/internal/ratelimit"
	"github.com/noah-isme/storefront-api/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Str("service", cfg.ServiceName).Logger()
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)
	resilience.MustRegisterMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)
	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), prometheus.DefaultRegisterer)

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   cfg.ServiceName,
		Endpoint:      cfg.TracingEndpoint,
		Exporter:      cfg.TracingExporter,
		SamplingRatio: cfg.TracingSampleRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		shutdownTracer = func(context.Context) error { return nil }
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	if cfg.MigrateOnStart {
		if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
			return err
		}
		logger.Info().Msg("migrations applied")
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := openRedis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	authService, err := auth.NewService(auth.Config{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		ClockSkew: cfg.JWTClockSkew,
	})
	if err != nil {
		return err
	}

	queries := db.New(pool)
	locker := lock.Locker{R: redisClient, MaxWait: cfg.LockMaxWait}
	policy := cfg.PricingPolicy()
	bus := &events.Bus{Store: queries, Notifiers: []events.Notifier{events.LogNotifier{Logger: &logger}}}
	if cfg.WebhookURL != "" {
		notifier, closeNotifier, err := webhookNotifier(cfg)
		if err != nil {
			return err
		}
		defer closeNotifier()
		bus.Notifiers = append(bus.Notifiers, notifier)
		logger.Info().Str("url", cfg.WebhookURL).Bool("async", cfg.WebhookAsync && cfg.RedisURL != "").Msg("webhook notifications enabled")
	}

	catalogSvc := &catalog.Service{Store: queries, Cache: catalog.NewCache(redisClient, cfg.ProductCacheTTL), Logger: &logger}
	couponSvc := &coupon.Service{Store: queries}
	basketSvc := &basket.Service{
		Store:    queries,
		Tx:       basket.NewTransactor(pool),
		Products: catalogSvc,
		Coupons:  couponSvc,
		Locker:   locker,
		Policy:   policy,
		TTL:      cfg.BasketTTL,
		LockTTL:  cfg.LockTTL,
	}
	checkoutSvc := &checkout.Service{
		Tx:       checkout.NewTransactor(pool),
		Baskets:  basketSvc,
		Locker:   locker,
		LockTTL:  cfg.LockTTL,
		Events:   bus,
		Currency: cfg.Currency,
	}
	orderSvc := &order.Service{Store: queries, Tx: order.NewTransactor(pool), Events: bus}

	limiterStore, err := ratelimit.NewStore(redisClient, "ratelimit:coupon")
	if err != nil {
		return err
	}

	formatter := cfg.Formatter()
	router := newRouter(routerDeps{
		Config:      cfg,
		Logger:      logger,
		HTTPMetrics: httpMetrics,
		Auth:        auth.Middleware{Service: authService},
		Redis:       redisClient,
		Health:      health.Handler{Checker: health.Probes{DB: pool, Redis: redisClient}},
		Baskets:     &basket.Handler{Svc: basketSvc, Formatter: formatter},
		Checkout:    &checkout.Handler{Svc: checkoutSvc, Formatter: formatter},
		Orders:      &order.Handler{Svc: orderSvc, Formatter: formatter},
		OrderAdmin:  &order.AdminHandler{Svc: orderSvc, Formatter: formatter},
		Coupons:     &coupon.Handler{Svc: couponSvc, Products: catalogSvc, Policy: policy},
		CouponLimit: ratelimit.New(limiterStore, cfg.CouponRateWindow, cfg.CouponRateMax),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutdown signal received")
	health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = cfg.ServiceName

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// openRedis returns nil when REDIS_URL is unset; locking, idempotency and
// caching then degrade to their in-process behaviour.
// webhookNotifier queues deliveries for the worker when Redis is available and
// async delivery is enabled, otherwise it delivers inline after commit.
func webhookNotifier(cfg *config.Config) (events.Notifier, func(), error) {
	if cfg.WebhookAsync && cfg.RedisURL != "" {
		opt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		client := asynq.NewClient(opt)
		return events.QueueNotifier{Client: client, Queue: cfg.WebhookQueue, MaxRetry: cfg.WebhookMaxAttempts},
			func() { _ = client.Close() }, nil
	}
	hook, err := events.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookTimeout, cfg.WebhookMaxAttempts, cfg.WebhookTopics)
	if err != nil {
		return nil, nil, err
	}
	return hook, func() {}, nil
}

func openRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set, running without redis")
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
