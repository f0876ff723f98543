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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ritikbhatt20/Helius-Dexer/internal/api/handler"
	"github.com/ritikbhatt20/Helius-Dexer/internal/api/router"
	"github.com/ritikbhatt20/Helius-Dexer/internal/config"
	"github.com/ritikbhatt20/Helius-Dexer/internal/connection"
	"github.com/ritikbhatt20/Helius-Dexer/internal/helius"
	"github.com/ritikbhatt20/Helius-Dexer/internal/job"
	"github.com/ritikbhatt20/Helius-Dexer/internal/metrics"
	"github.com/ritikbhatt20/Helius-Dexer/internal/queue"
	"github.com/ritikbhatt20/Helius-Dexer/internal/storage"
	"github.com/ritikbhatt20/Helius-Dexer/internal/tenant"
	"github.com/ritikbhatt20/Helius-Dexer/internal/vault"
	"github.com/ritikbhatt20/Helius-Dexer/shared/logger"
	"github.com/ritikbhatt20/Helius-Dexer/shared/postgresql"
	"github.com/ritikbhatt20/Helius-Dexer/shared/rabbitmq"
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
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(config.RoleAPI); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// The vault key is checked before anything connects.
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

	appLogger.Info("Starting API service",
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

	m := metrics.New(cfg.Metrics.Enabled)
	dispatcher := queue.NewDispatcher(broker)

	provisioner := helius.NewProvisioner(
		helius.NewClient(cfg.Helius.ClientConfig(), appLogger.Component("helius")),
		cfg.ProvisionerConfig(),
		appLogger.Component("provisioner"),
	)
	provisioner.OnAttempt(m.RecordProvisioningAttempt)

	opener := tenant.NewOpener(cfg.Tenant.OpenerConfig(), appLogger.Component("tenant"))
	connections := connection.NewRegistry(store, opener, v, appLogger.Component("connections"))
	jobs := job.NewRegistry(store, connections, dispatcher, provisioner, appLogger.Component("jobs"))

	// Initialize router
	r := initRouter(cfg, &handler.Dependencies{
		Logger:            appLogger.Logger,
		Connections:       connections,
		Jobs:              jobs,
		Events:            dispatcher,
		JobLookup:         store,
		Metrics:           m,
		JWTSecret:         cfg.Auth.JWTSecret,
		WebhookAuthHeader: cfg.Webhook.AuthHeader,
		MaxBodyBytes:      cfg.Webhook.MaxBodyBytes,
		Readiness: map[string]func(ctx context.Context) error{
			"database": dbClient.HealthCheck,
			"rabbitmq": func(context.Context) error {
				if !rabbitClient.IsConnected() {
					return errors.New("connection closed")
				}
				return nil
			},
		},
	})

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
		slog.Bool("metrics_enabled", m.IsEnabled()),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-serverErr:
		appLogger.Error("Server failed", slog.Any("error", err))
		return err
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, deps *handler.Dependencies) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps)
}
