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

	"github.com/challenge75/internal/auth"
	"github.com/challenge75/internal/challenge"
	"github.com/challenge75/internal/config"
	"github.com/challenge75/internal/handler"
	"github.com/challenge75/internal/kafka"
	"github.com/challenge75/internal/memstore"
	"github.com/challenge75/internal/metrics"
	"github.com/challenge75/internal/postgres"
	"github.com/challenge75/internal/redis"
	"github.com/challenge75/internal/service"
	"github.com/challenge75/internal/websocket"
	"github.com/challenge75/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		store    service.Store
		handlers []handler.Option
		svcOpts  []service.Option
	)

	m := metrics.New()
	svcOpts = append(svcOpts, service.WithMetrics(m))
	handlers = append(handlers,
		handler.WithMetrics(m),
		handler.WithRateLimit(cfg.RateLimit),
		handler.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	)

	// Initialize storage
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		repo, err := postgres.NewRepository(ctx, &cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer repo.Close()
		logger.Info("connected to PostgreSQL")

		// Run database migrations
		if err := repo.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		store = repo
		handlers = append(handlers, handler.WithReadinessCheck("postgres", repo.Ping))
	default:
		logger.Warn("using in-memory storage, data is lost on restart")
		store = memstore.New()
	}

	// Initialize Redis login limiter
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		client, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		logger.Info("connected to Redis")

		svcOpts = append(svcOpts, service.WithLimiter(redis.NewLoginLimiter(client, &cfg.Auth, logger)))
		handlers = append(handlers, handler.WithReadinessCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}

	// Initialize Kafka event publisher
	var publisher *kafka.Publisher
	if cfg.Kafka.Enabled {
		publisher, err = kafka.NewPublisher(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka publisher, continuing without events", "error", err)
		} else {
			defer publisher.Close()
			svcOpts = append(svcOpts, service.WithPublisher(publisher))
		}
	}

	calendar, err := challenge.NewCalendar(&cfg.Challenge)
	if err != nil {
		logger.Error("invalid challenge calendar", "error", err)
		os.Exit(1)
	}
	creds := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	svcOpts = append(svcOpts, service.WithNotifier(wsHub))
	logger.Info("WebSocket hub initialized")

	// Initialize services
	trackerService := service.NewTrackerService(store, creds, calendar, logger, svcOpts...)

	if err := trackerService.EnsureChallengeDays(ctx); err != nil {
		logger.Error("failed to seed challenge days", "error", err)
		os.Exit(1)
	}
	if err := trackerService.EnsureAdmin(ctx, cfg.Auth.AdminName, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		logger.Error("failed to bootstrap admin account", "error", err)
		os.Exit(1)
	}

	// Start standings worker
	standingsWorker := worker.NewStandingsWorker(trackerService, wsHub, &cfg.Standings, logger)
	if cfg.Standings.Enabled {
		if err := standingsWorker.Start(ctx); err != nil {
			logger.Error("failed to start standings worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for bulk grading
	var gradeConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.GradesTopic,
		)
		gradeConsumer, err = kafka.NewConsumer(&cfg.Kafka, trackerService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else if err := gradeConsumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
			gradeConsumer = nil
		} else {
			logger.Info("Kafka consumer started successfully")
		}
	}

	httpHandler := handler.NewHandler(trackerService, wsHub, logger, handlers...)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "storage", cfg.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	// Stop Kafka consumer
	if gradeConsumer != nil {
		if err := gradeConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop standings worker
	if err := standingsWorker.Stop(); err != nil {
		logger.Error("failed to stop standings worker", "error", err)
	}

	// Stop WebSocket hub
	wsHub.Stop()

	logger.Info("server stopped")
}
