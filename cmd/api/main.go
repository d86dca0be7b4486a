// Package main is the entry point for the induction API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/kmrl/induction/internal/api"
	"github.com/kmrl/induction/internal/config"
	"github.com/kmrl/induction/internal/health"
	"github.com/kmrl/induction/internal/ingest"
	"github.com/kmrl/induction/internal/middleware"
	"github.com/kmrl/induction/internal/ranking"
	"github.com/kmrl/induction/internal/tracing"
)

// serviceName identifies the server in traces and the root endpoint.
const serviceName = "induction-api"

func main() {
	configPath := flag.String("config", "", "path to YAML config file (env vars take precedence)")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Induction API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// run wires the server from cfg and blocks until SIGINT or SIGTERM.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: api.Version,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		ExporterType:   cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   cfg.TracingSampleRate,
		Insecure:       !cfg.IsProduction(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialise tracing: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	weights, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		logger.Warn("using default ranking weights", "error", err)
	}

	limiter := middleware.NewInMemoryRateLimitStore()
	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go limiter.RunCleanup(cleanupCtx, 5*time.Minute)

	handler, err := newHandler(cfg, logger, prometheus.NewRegistry(), store, weights, limiter)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port, "storage_backend", cfg.StorageBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown failed", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

// newHandler registers metrics on reg, builds the router and wraps it in the
// middleware chain RequestID -> CORS -> Tracing -> Logging -> HTTPMetrics.
func newHandler(cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry, store ingest.Store, weights ranking.Weights, limiter middleware.RateLimitStore) (http.Handler, error) {
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	httpMetrics := middleware.NewMetrics()
	ingestMetrics := ingest.NewMetrics()
	rankMetrics := ranking.NewMetrics()
	for _, m := range []interface {
		Register(prometheus.Registerer) error
	}{httpMetrics, ingestMetrics, rankMetrics} {
		if err := m.Register(reg); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	checks := health.NewRegistry(health.DefaultTimeout)
	if checker, ok := store.(health.Checker); ok {
		checks.Register("store", checker)
	}

	service := ingest.NewService(store, ingest.ServiceConfig{
		MaxRows:    cfg.IngestMaxRows,
		SampleRows: cfg.IngestSampleRows,
	}, ingestMetrics, logger)

	mux := api.NewRouter(api.RouterConfig{
		Ingest: api.NewIngestHandlers(service, 0),
		Rank: api.NewRankHandlers(api.RankHandlersConfig{
			Weights: weights,
			Store:   store,
			Metrics: rankMetrics,
			Logger:  logger,
		}),
		Health:  api.NewHealthHandlers(checks),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		IngestMiddleware: middleware.RateLimiter(limiter, middleware.IngestLimit(cfg.IngestRateLimit),
			middleware.IPKeyFunc(), httpMetrics, "ingest"),
	})

	var handler http.Handler = mux
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins))(handler)
	handler = middleware.RequestID(handler)
	return handler, nil
}

// openStore connects the configured batch backend. The returned func
// releases its connections.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ingest.Store, func(), error) {
	noop := func() {}

	switch cfg.StorageBackend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open database: %w", err)
		}
		store := ingest.NewPostgresStore(db, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("failed to prepare database: %w", err)
		}
		return store, func() { _ = db.Close() }, nil

	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		ttl := time.Duration(cfg.RedisTTLHours) * time.Hour
		return ingest.NewRedisStore(client, ttl), func() { _ = client.Close() }, nil

	case config.BackendS3:
		store, err := ingest.NewS3Store(ingest.S3Config{
			BucketName:      cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("failed to configure S3 store: %w", err)
		}
		return store, noop, nil

	default:
		logger.Warn("using in-memory batch store; uploads are lost on restart")
		return ingest.NewInMemoryStore(), noop, nil
	}
}
