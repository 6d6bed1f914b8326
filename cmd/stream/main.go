// Command stream starts the webhook ingestion HTTP service.
//
// The service accepts transactional records via POST /api/v1/transactions,
// verifies the HMAC signature on the raw body, validates each record against
// its schema, and publishes accepted records to Kafka. Records that cannot be
// delivered are routed to a dead-letter topic, with a local fallback log as
// the last resort. It provides health endpoints at GET /health and GET /ready.
//
// Usage:
//
//	go run ./cmd/stream [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline/deadletter"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline/publisher"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline/router"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline/schema"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline/signature"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/stream/handler"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/stream/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/redis"
)

// main loads configuration, creates the Kafka producers and optional
// Postgres/Redis clients, wires the record router behind the stream handler,
// and starts the HTTP server. Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting stream service", "port", cfg.Server.Port)

	secret, err := cfg.Webhook.Secret()
	if err != nil {
		slog.Error("invalid webhook secret", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	primary := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Transactions)
	defer primary.Close()
	dlq := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DeadLetter)
	defer dlq.Close()
	slog.Info("kafka producers initialized",
		"primary_topic", cfg.Kafka.Topics.Transactions,
		"dead_letter_topic", cfg.Kafka.Topics.DeadLetter,
	)

	checker := health.NewChecker()

	// Optional dead-letter archive backed by PostgreSQL.
	var archive deadletter.Archive
	var reader handler.EnvelopeReader
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pgArchive, err := deadletter.NewPostgresArchive(context.Background(), db)
		if err != nil {
			slog.Error("failed to initialize dead-letter archive", "error", err)
			os.Exit(1)
		}
		archive = pgArchive
		reader = pgArchive
		checker.Register("postgres", healthCheck(db.Ping))
		slog.Info("dead-letter archive enabled")
	}

	// Optional duplicate-delivery guard backed by Redis.
	var guard *handler.DuplicateGuard
	if cfg.Webhook.DuplicateGuard {
		rdb, err := redis.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		guard = handler.NewDuplicateGuard(rdb, cfg.Webhook.DuplicateTTL)
		checker.Register("redis", healthCheck(rdb.Ping))
		slog.Info("duplicate-delivery guard enabled", "ttl", cfg.Webhook.DuplicateTTL)
	}

	validator := schema.NewValidator(cfg.Pipeline.ClockSkew)
	sigChecker := signature.NewChecker(secret)
	counters := &pipeline.ServiceCounters{}

	pub := publisher.New(primary, publisher.Config{
		MaxAttempts:    cfg.Pipeline.MaxPublishAttempts,
		InitialBackoff: cfg.Pipeline.InitialBackoff,
		MaxBackoff:     cfg.Pipeline.MaxBackoff,
		AttemptTimeout: cfg.Pipeline.AttemptTimeout,
	}, m)
	sink := deadletter.New(dlq, archive, deadletter.Config{
		MaxAttempts:    cfg.Pipeline.MaxDeadLetterAttempts,
		InitialBackoff: cfg.Pipeline.InitialBackoff,
		MaxBackoff:     cfg.Pipeline.MaxBackoff,
		AttemptTimeout: cfg.Pipeline.AttemptTimeout,
	}, m)
	rt := router.New(validator, pub, sink, sigChecker, counters, m, router.Config{
		RecordDeadline: cfg.Pipeline.RecordDeadline,
	})

	limiter := ratelimit.New(cfg.Webhook.RateWindow)
	h := handler.New(rt, validator, sigChecker, handler.Options{
		SignatureHeader: cfg.Webhook.SignatureHeader,
		RateLimit:       cfg.Webhook.RateLimit,
		RateLimiter:     limiter,
		Guard:           guard,
		Archive:         reader,
		Metrics:         m,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/transactions", h.Ingest)
	mux.HandleFunc("POST /api/v1/transactions/validate", h.Validate)
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("GET /api/v1/deadletters", h.DeadLetters)
	mux.HandleFunc("GET /health", checker.LiveHandler())
	mux.HandleFunc("GET /ready", checker.ReadyHandler())

	chain := middleware.RequestID(middleware.Metrics(m)(middleware.Timeout(cfg.Server.WriteTimeout)(mux)))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if shutdownMetrics != nil {
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()
	slog.Info("stream service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("stream service stopped")
}

// healthCheck adapts a ping function into a health.Check.
func healthCheck(ping func(ctx context.Context) error) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		start := time.Now()
		if err := ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Latency: time.Since(start).String()}
	}
}
