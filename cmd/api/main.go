package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-mess/internal/attendance"
	"github.com/noah-isme/backend-mess/internal/audit"
	"github.com/noah-isme/backend-mess/internal/auth"
	"github.com/noah-isme/backend-mess/internal/billing"
	"github.com/noah-isme/backend-mess/internal/cache"
	"github.com/noah-isme/backend-mess/internal/common"
	"github.com/noah-isme/backend-mess/internal/config"
	"github.com/noah-isme/backend-mess/internal/health"
	"github.com/noah-isme/backend-mess/internal/obs"
	"github.com/noah-isme/backend-mess/internal/ratelimit"
	"github.com/noah-isme/backend-mess/internal/store"
)

const (
	serviceName      = "mess-api"
	metricsNamespace = "mess"
)

func main() {
	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	shutdownTracer, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		ServiceName:   serviceName,
		Endpoint:      cfg.OTelEndpoint,
		Exporter:      cfg.OTelExporter,
		SamplingRatio: cfg.OTelSamplingRatio,
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
		if err := store.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient, err := openRedis(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs.MustRegisterDomainMetrics(metricsNamespace, registry)
	httpMetrics := obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBucketsMS), registry)

	limiter, err := ratelimit.New(redisClient, cfg.RateLimit, metricsNamespace+":ratelimit")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	st := store.New(pool)
	summaryCache := cache.NewJSON(redisClient, cfg.BillSummaryCacheTTL)
	validate := validator.New(validator.WithRequiredStructEnabled())
	defaults := billing.FixedCharges{
		RoomRent:             cfg.Billing.RoomRent,
		WaterCharges:         cfg.Billing.WaterCharges,
		ElectricityCharges:   cfg.Billing.ElectricityCharges,
		EstablishmentCharges: cfg.Billing.EstablishmentCharges,
	}

	deps := routerDeps{
		cfg:         cfg,
		logger:      logger,
		registry:    registry,
		httpMetrics: httpMetrics,
		limiter:     limiter,
		verifier:    auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		idem:        common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL},
		health:      health.Handler{Checker: health.Probe{Pool: pool, Redis: redisClient}},
		attendance:  attendance.NewHandler(attendance.NewService(st, &logger), validate),
		billing: billing.NewHandler(
			billing.NewEngine(st, summaryCache, defaults, &logger),
			billing.NewService(st, summaryCache, &logger),
			validate,
		),
		audit:     audit.Service{Store: st, Enabled: true, SamplingRate: 1},
		auditLogs: audit.Handler{Store: st},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           obs.TraceHandler(newRouter(deps), serviceName),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
		return
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	health.SetReady(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if cfg.DBMaxConns > 0 {
		poolConfig.MaxConns = cfg.DBMaxConns
	}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = serviceName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func openRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
