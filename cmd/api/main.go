package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-tour/internal/booking"
	"github.com/noah-isme/backend-tour/internal/cache"
	"github.com/noah-isme/backend-tour/internal/common"
	"github.com/noah-isme/backend-tour/internal/config"
	"github.com/noah-isme/backend-tour/internal/events"
	"github.com/noah-isme/backend-tour/internal/health"
	"github.com/noah-isme/backend-tour/internal/notify"
	"github.com/noah-isme/backend-tour/internal/obs"
	"github.com/noah-isme/backend-tour/internal/ratelimit"
	"github.com/noah-isme/backend-tour/internal/refgen"
	"github.com/noah-isme/backend-tour/internal/store"
	"github.com/noah-isme/backend-tour/internal/tours"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := "tour"
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("TRACING_ENABLED", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "tour-api",
			Endpoint:      cfg.TracingEndpoint,
			SamplingRatio: cfg.TracingSamplingRatio,
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

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "tour-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	st := store.New(pool, logger)
	st.QueryTimeout = cfg.StoreQueryTimeout
	st.RetryAttempts = cfg.StoreRetryAttempts
	st.RetryBase = cfg.StoreRetryBase

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(redisConn)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	bus := &events.Bus{
		Store: st,
		Notifiers: []events.Notifier{
			notify.Enqueuer{Client: taskClient, Enabled: true},
		},
	}

	toursSvc := &tours.Service{
		Queries: st,
		Cache:   &cache.Cache{Client: redisClient, TTL: cfg.CacheTTL},
	}
	tourHandler := &tours.Handler{Svc: toursSvc}

	bookingSvc := &booking.Service{
		Store:   st,
		Catalog: toursSvc,
		Refs:    refgen.Generator{Prefix: cfg.BookingRefPrefix},
		Events:  bus,
		Cache:   cache.Invalidator{Client: redisClient, Logger: logger},
		Logger:  logger,
	}
	bookingHandler := &booking.Handler{Svc: bookingSvc}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	writeLimit := ratelimit.Middleware{
		Window: ratelimit.Window{Client: redisClient, Prefix: "rl:bookings:"},
		Max:    cfg.RateLimitRequests,
		Per:    cfg.RateLimitWindow,
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}

	httpMetrics := obs.NewHTTPMetrics(metricsNamespace, nil, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{
		Checker: health.Probes{DB: pool, Redis: redisClient},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/tours", tourHandler.List)
		v.Get("/tours/{id}", tourHandler.Get)

		v.Route("/bookings", func(b chi.Router) {
			b.Get("/{id}", bookingHandler.Get)
			b.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Use(writeLimit.Handler)
				g.Post("/", bookingHandler.Create)
				g.Put("/{id}", bookingHandler.Update)
				g.Delete("/{id}", bookingHandler.Delete)
			})
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
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
