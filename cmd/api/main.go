// Package main is the entry point for the StashBox account API server.
//
// It loads configuration, connects the Postgres pool, wires the repositories
// and services behind the HTTP chassis (middleware, routing, health checks),
// and serves until an OS signal triggers graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"stashbox/internal/account"
	"stashbox/internal/api/handlers"
	"stashbox/internal/config"
	"stashbox/internal/core"
	"stashbox/internal/db"
	"stashbox/internal/plans"
	"stashbox/internal/subscription"
	"stashbox/internal/telemetry"
	"stashbox/internal/usage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(secretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("stashbox API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	// Database pool with an eager connectivity check.
	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(startCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	// All single-statement access goes through the circuit breaker;
	// transactional flows use the pool directly since a transaction already
	// fails as a unit.
	breakerDB := db.NewBreakerDB("postgres", pool)
	accountRepo := db.NewAccountRepository(breakerDB)
	subscriptionRepo := db.NewSubscriptionRepository(breakerDB)
	txManager := &accountTxManager{pool: pool}

	catalog := plans.NewStaticCatalog()
	evaluator := usage.NewEvaluator()

	accountSvc := account.NewService(account.ServiceConfig{
		Repo:             accountRepo,
		SubscriptionRepo: subscriptionRepo,
		TxManager:        txManager,
		Logger:           logger,
	})
	subscriptionSvc := subscription.NewService(subscription.ServiceConfig{
		Repo:      subscriptionRepo,
		Catalog:   catalog,
		Evaluator: evaluator,
		Logger:    logger,
	})

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	metrics, metricsCleanup, err := newMetrics(startCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating metrics collector: %w", err)
	}
	defer metricsCleanup()
	srv.Metrics = metrics

	srv.HealthProbes = append(srv.HealthProbes, db.NewPoolHealthProbe(pool))

	accountHandler := handlers.NewAccountHandler(accountSvc, subscriptionSvc, srv.Validator, logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionSvc, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		accountHandler.RegisterRoutes,
		subscriptionHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// secretProvider picks the config secret source before the config itself is
// loaded. Local development bypasses SSM entirely.
func secretProvider() config.SecretProvider {
	env := os.Getenv("APP_ENV")
	if env == "" || env == "local" {
		return nil
	}
	return config.NewSSMProvider(os.Getenv("AWS_REGION"))
}

// newMetrics builds the request metrics collector. CloudWatch publishing is
// only enabled outside local development and when configured on.
func newMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (core.MetricsCollector, func(), error) {
	if !cfg.Observability.EnableMetrics || cfg.Environment == "local" {
		return telemetry.NoopMetrics{}, func() {}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, nil, fmt.Errorf("loading AWS config: %w", err)
	}

	cw := telemetry.NewCloudWatchMetrics(
		cloudwatch.NewFromConfig(awsCfg),
		cfg.Observability.MetricNamespace,
		logger,
	)
	return cw, cw.Close, nil
}

// runHTTPServer serves until SIGINT/SIGTERM, then drains in-flight requests
// within a 10-second grace period.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(drainCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(drainCtx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func newLogger(level string) *slog.Logger {
	lvl, ok := logLevels[level]
	if !ok {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// accountTxManager implements account.TxManager over a pgx pool, handing the
// callback repositories bound to the open transaction.
type accountTxManager struct {
	pool db.TxBeginner
}

func (m *accountTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context, accounts account.Repo, subs account.SubscriptionRepo) error) error {
	return db.WithTx(ctx, m.pool, func(q db.DBTX) error {
		return fn(ctx, db.NewAccountRepository(q), db.NewSubscriptionRepository(q))
	})
}
