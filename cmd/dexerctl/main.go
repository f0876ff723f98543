// Command dexerctl is the operator CLI for the indexing pipeline.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ritikbhatt20/Helius-Dexer/internal/config"
	"github.com/ritikbhatt20/Helius-Dexer/internal/job"
	"github.com/ritikbhatt20/Helius-Dexer/internal/queue"
	"github.com/ritikbhatt20/Helius-Dexer/internal/storage"
	"github.com/ritikbhatt20/Helius-Dexer/shared/logger"
	"github.com/ritikbhatt20/Helius-Dexer/shared/postgresql"
	"github.com/ritikbhatt20/Helius-Dexer/shared/rabbitmq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	a := &app{}
	defer a.close()

	if err := newRootCmd(a).Execute(); err != nil {
		os.Exit(1)
	}
}

// app opens configuration and backing services on first use.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *logger.Logger
	store      *storage.Storage
	closers    []func() error
}

func newRootCmd(a *app) *cobra.Command {
	defaultConfigPath := os.Getenv("DEXERCTL_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}

	rootCmd := &cobra.Command{
		Use:           "dexerctl",
		Short:         "Operate the Helius indexing pipeline",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "Path to configuration file")

	rootCmd.AddCommand(MigrateCmd(a.migrator))
	rootCmd.AddCommand(LogsCmd(a.logReader))
	rootCmd.AddCommand(SetupCmd(a.setupRequeuer))
	rootCmd.AddCommand(VaultCmd(a.encryptionKey, a.connectionReader))
	return rootCmd
}

func (a *app) load() error {
	if a.cfg != nil {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(config.RoleCLI); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Operator output goes to stdout; the CLI logs to stderr.
	logCfg := cfg.Logging.LoggerConfig()
	if logCfg.Output == "" || logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	l, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg = cfg
	a.logger = l
	a.closers = append(a.closers, l.Close)
	return nil
}

func (a *app) openStore() (*storage.Storage, error) {
	if a.store != nil {
		return a.store, nil
	}
	if err := a.load(); err != nil {
		return nil, err
	}

	dbClient, err := postgresql.NewClient(a.cfg.Database.ClientConfig(), a.logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.closers = append(a.closers, dbClient.Close)
	a.store = storage.NewStorage(dbClient.GetDB(), a.logger.Component("storage"))
	return a.store, nil
}

func (a *app) migrator(context.Context) (Migrator, error) {
	return a.openStore()
}

func (a *app) logReader(context.Context) (LogReader, error) {
	return a.openStore()
}

func (a *app) connectionReader(context.Context) (ConnectionReader, error) {
	return a.openStore()
}

func (a *app) setupRequeuer(context.Context) (SetupRequeuer, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}

	rabbitClient, err := rabbitmq.NewClient(a.cfg.RabbitMQ.ClientConfig(queue.Names()), a.logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	broker := queue.NewRabbitBroker(rabbitClient, a.logger.Component("broker"))
	a.closers = append(a.closers, broker.Close)

	// Requeueing touches neither connections nor provider webhooks.
	return job.NewRegistry(store, nil, queue.NewDispatcher(broker), nil, a.logger.Component("jobs")), nil
}

func (a *app) encryptionKey() (string, error) {
	if err := a.load(); err != nil {
		return "", err
	}
	return a.cfg.Vault.EncryptionKey, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn("Failed to release resource", slog.Any("error", err))
		}
	}
}
