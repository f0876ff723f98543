package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ritikbhatt20/Helius-Dexer/internal/config"
	"github.com/ritikbhatt20/Helius-Dexer/internal/helius"
	"github.com/ritikbhatt20/Helius-Dexer/internal/metrics"
	"github.com/ritikbhatt20/Helius-Dexer/internal/processor"
	"github.com/ritikbhatt20/Helius-Dexer/internal/queue"
	"github.com/ritikbhatt20/Helius-Dexer/internal/storage"
	"github.com/ritikbhatt20/Helius-Dexer/internal/tenant"
	"github.com/ritikbhatt20/Helius-Dexer/internal/vault"
	"github.com/ritikbhatt20/Helius-Dexer/internal/worker"
	"github.com/ritikbhatt20/Helius-Dexer/shared/logger"
	"github.com/ritikbhatt20/Helius-Dexer/shared/postgresql"
	"github.com/ritikbhatt20/Helius-Dexer/shared/rabbitmq"
	"github.com/ritikbhatt20/Helius-Dexer/shared/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(config.RoleWorker); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	v, err := vault.NewFromHex(cfg.Vault.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize vault: %w", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logging.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := postgresql.NewClient(cfg.Database.ClientConfig(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	store := storage.NewStorage(dbClient.GetDB(), appLogger.Component("storage"))
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(context.Background()); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client
	rabbitClient, err := rabbitmq.NewClient(cfg.RabbitMQ.ClientConfig(queue.Names()), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	broker := queue.NewRabbitBroker(rabbitClient, appLogger.Component("broker"))
	defer broker.Close()

	appLogger.Info("RabbitMQ connection established")

	// The price cache runs uncached when Redis is disabled.
	var rdb goredis.Cmdable
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis.ClientConfig(), appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer client.Close()
		rdb = client
	}

	m := metrics.New(cfg.Metrics.Enabled)

	heliusClient := helius.NewClient(cfg.Helius.ClientConfig(), appLogger.Component("helius"))
	provisioner := helius.NewProvisioner(heliusClient, cfg.ProvisionerConfig(), appLogger.Component("provisioner"))
	provisioner.OnAttempt(m.RecordProvisioningAttempt)

	prices := helius.NewPriceCache(heliusClient, rdb, cfg.Helius.PriceCacheTTL, appLogger.Component("prices"))
	proc := processor.New(
		store,
		store,
		v,
		tenant.NewOpener(cfg.Tenant.OpenerConfig(), appLogger.Component("tenant")),
		processor.NewExtractor(prices, appLogger.Component("extractor")),
		appLogger.Component("processor"),
	)

	// Create worker instance
	workerInstance := worker.NewWorker(&worker.Config{
		Logger:         appLogger.Component("worker"),
		Broker:         broker,
		Jobs:           store,
		Provisioner:    provisioner,
		Processor:      proc,
		Metrics:        m,
		WorkerID:       workerID(cfg.Worker.ID),
		Queues:         queue.Names(),
		Concurrency:    cfg.Worker.Concurrency,
		JobTimeout:     cfg.Worker.JobTimeout,
		MaxAttempts:    cfg.Worker.MaxAttempts,
		RetryBaseDelay: cfg.Worker.RetryBaseDelay,
	})

	var metricsSrv *http.Server
	if m.IsEnabled() && cfg.Worker.MetricsPort > 0 {
		metricsSrv = m.NewServer(fmt.Sprintf(":%d", cfg.Worker.MetricsPort))
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.Error("Metrics server failed", slog.Any("error", err))
			}
		}()
		appLogger.Info("Metrics server listening", slog.String("address", metricsSrv.Addr))
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case runErr = <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", runErr),
		)
	}

	// Cancel context to stop worker
	cancel()

	// Give worker time to shutdown gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Stop worker
	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("Metrics server shutdown failed", slog.Any("error", err))
		}
	}

	appLogger.Info("Worker service shutdown complete")
	return runErr
}

// workerID names this process in consumer tags and logs.
func workerID(configured string) string {
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().Unix()%10000)
}
