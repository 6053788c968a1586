/**
 * @description
 * This is the main entry point for the bookkeeping automation service. It
 * wires configuration, the database pool, the optional Redis and RabbitMQ
 * clients, the ledger poster, the automation engines, the in-process cron
 * scheduler and the HTTP trigger surface, then runs until a termination
 * signal arrives.
 */
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/rroihans/dompetku-sub003/internal/api"
	"github.com/rroihans/dompetku-sub003/internal/app"
	"github.com/rroihans/dompetku-sub003/internal/config"
	"github.com/rroihans/dompetku-sub003/internal/ledger"
	"github.com/rroihans/dompetku-sub003/internal/store"
	"github.com/rroihans/dompetku-sub003/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load a local .env in development; ignore when absent.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("invalid timezone, defaulting to UTC", "timezone", cfg.Timezone, "error", err)
		loc = time.UTC
	}

	ctx := context.Background()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			logger.Warn("redis url parse failed, daily trigger debouncing disabled", "error", parseErr)
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				logger.Warn("redis ping failed, daily trigger debouncing disabled", "error", pingErr)
				redisClient = nil
			}
			cancelPing()
		}
	}

	var producer *rabbitmq.EventProducer
	if strings.TrimSpace(cfg.RabbitMQURL) != "" {
		producer, err = rabbitmq.NewEventProducer(cfg.RabbitMQURL)
		if err != nil {
			logger.Warn("rabbitmq producer unavailable, events disabled", "error", err)
			producer = nil
		} else {
			defer producer.Close()
			logger.Info("rabbitmq producer connected")
		}
	}
	var posterPublisher ledger.Publisher
	var runPublisher app.Publisher
	if producer != nil {
		posterPublisher = producer
		runPublisher = producer
	}

	repository := store.NewPostgresRepository(dbpool)
	poster := ledger.NewPoster(repository, posterPublisher, logger)

	orchestrator := app.NewOrchestrator(
		app.NewRecurringExecutor(repository, poster, logger),
		app.NewAdminFeeEngine(repository, poster, logger),
		app.NewInterestEngine(repository, poster, logger),
		repository,
		runPublisher,
		logger,
	)

	scheduler := app.NewScheduler(orchestrator, logger, cfg.DailyJobSchedule, loc)
	scheduler.Start()
	logger.Info("scheduler started", "schedule", cfg.DailyJobSchedule, "timezone", cfg.Timezone)

	var redisUniversal redis.UniversalClient
	if redisClient != nil {
		redisUniversal = redisClient
	}
	debouncer := app.NewRedisRunDebouncer(redisUniversal, "dompetku:automation")
	handler := api.NewHandler(orchestrator, debouncer, logger, loc)
	router := api.NewRouter(handler, cfg.InternalAPIKey)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}

	stopCtx := scheduler.Stop()
	<-stopCtx.Done() // Wait for any in-flight run to finish.
	logger.Info("scheduler stopped gracefully")
}
