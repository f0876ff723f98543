package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Environment variables that override secrets from the YAML file.
const (
	EnvEncryptionKey     = "DEXER_ENCRYPTION_KEY"
	EnvJWTSecret         = "DEXER_JWT_SECRET"
	EnvHeliusAPIKey      = "HELIUS_API_KEY"
	EnvWebhookAuthHeader = "WEBHOOK_AUTH_HEADER"
	EnvDBPassword        = "DB_PASSWORD"
	EnvRabbitMQPassword  = "RABBITMQ_PASSWORD"
	EnvRedisPassword     = "REDIS_PASSWORD"
)

// Role selects which sections Validate requires.
type Role string

const (
	RoleAPI    Role = "api"
	RoleWorker Role = "worker"
	RoleCLI    Role = "cli"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Worker   WorkerConfig   `yaml:"worker"`
	Vault    VaultConfig    `yaml:"vault"`
	Helius   HeliusConfig   `yaml:"helius"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Auth     AuthConfig     `yaml:"auth"`
	Redis    RedisConfig    `yaml:"redis"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tenant   TenantConfig   `yaml:"tenant"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration for the metadata store
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration.
// Queue names are fixed by the application and not configurable.
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   string           `yaml:"exchange"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableSource bool   `yaml:"enable_source"`
	NoColor      bool   `yaml:"no_color"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	ID              string        `yaml:"id"`
	Concurrency     int           `yaml:"concurrency"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// MetricsPort serves /metrics and /health from the worker; 0 disables the listener.
	MetricsPort int `yaml:"metrics_port"`
}

// VaultConfig holds the credential cipher key, hex encoded.
type VaultConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

// HeliusConfig holds provider API settings
type HeliusConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	PriceCacheTTL  time.Duration `yaml:"price_cache_ttl"`
}

// WebhookConfig holds provider callback settings
type WebhookConfig struct {
	// CallbackBaseURL is the public root under which /webhooks/{jobType}/{jobId} is reachable.
	CallbackBaseURL string `yaml:"callback_base_url"`
	AuthHeader      string `yaml:"auth_header"`
	MaxBodyBytes    int64  `yaml:"max_body_bytes"`
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// RedisConfig holds the price cache connection. Disabled means lookups are not cached across processes.
type RedisConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// MetricsConfig toggles Prometheus collection
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TenantConfig bounds pools opened against tenant databases
type TenantConfig struct {
	MaxOpenConns     int           `yaml:"max_open_conns"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// Load reads and parses the configuration file, then applies environment overrides
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv(os.LookupEnv)
	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	overrides := map[string]*string{
		EnvEncryptionKey:     &c.Vault.EncryptionKey,
		EnvJWTSecret:         &c.Auth.JWTSecret,
		EnvHeliusAPIKey:      &c.Helius.APIKey,
		EnvWebhookAuthHeader: &c.Webhook.AuthHeader,
		EnvDBPassword:        &c.Database.Password,
		EnvRabbitMQPassword:  &c.RabbitMQ.Password,
		EnvRedisPassword:     &c.Redis.Password,
	}
	for env, field := range overrides {
		if v, ok := lookup(env); ok && v != "" {
			*field = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 1
	}
	if c.Worker.MaxAttempts <= 0 {
		c.Worker.MaxAttempts = 3
	}
	if c.Worker.RetryBaseDelay <= 0 {
		c.Worker.RetryBaseDelay = 5 * time.Second
	}
	if c.Worker.JobTimeout <= 0 {
		c.Worker.JobTimeout = 2 * time.Minute
	}
	if c.Worker.ShutdownTimeout <= 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}
	if c.Helius.MaxAttempts <= 0 {
		c.Helius.MaxAttempts = 3
	}
	if c.Helius.RetryBaseDelay <= 0 {
		c.Helius.RetryBaseDelay = time.Second
	}
	if c.Helius.PriceCacheTTL <= 0 {
		c.Helius.PriceCacheTTL = time.Minute
	}
	if c.Webhook.MaxBodyBytes <= 0 {
		c.Webhook.MaxBodyBytes = 5 << 20
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "dexer"
	}
}

// Validate checks the sections required by role
func (c *Config) Validate(role Role) error {
	switch role {
	case RoleAPI:
		return c.ValidateAPIConfig()
	case RoleWorker:
		return c.ValidateWorkerConfig()
	case RoleCLI:
		return c.validateCommon()
	default:
		return fmt.Errorf("unknown config role %q", role)
	}
}

// ValidateAPIConfig checks the settings needed by the API service
func (c *Config) ValidateAPIConfig() error {
	if err := c.validateCommon(); err != nil {
		return err
	}

	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required (or set %s)", EnvJWTSecret)
	}

	if c.Webhook.AuthHeader == "" {
		return fmt.Errorf("webhook auth_header is required (or set %s)", EnvWebhookAuthHeader)
	}

	// Completing or deleting a job removes its provider webhook.
	if c.Helius.APIKey == "" {
		return fmt.Errorf("helius api_key is required (or set %s)", EnvHeliusAPIKey)
	}

	return nil
}

// ValidateWorkerConfig checks the settings needed by the worker service
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateCommon(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.MaxAttempts <= 0 {
		return fmt.Errorf("worker max_attempts must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.MetricsPort < 0 || c.Worker.MetricsPort > MaxPort {
		return fmt.Errorf("invalid worker metrics_port: %d", c.Worker.MetricsPort)
	}

	if c.Helius.APIKey == "" {
		return fmt.Errorf("helius api_key is required (or set %s)", EnvHeliusAPIKey)
	}

	if c.Webhook.CallbackBaseURL == "" {
		return fmt.Errorf("webhook callback_base_url is required")
	}

	if !strings.HasPrefix(c.Webhook.CallbackBaseURL, "http://") && !strings.HasPrefix(c.Webhook.CallbackBaseURL, "https://") {
		return fmt.Errorf("webhook callback_base_url must be an http(s) URL")
	}

	if c.Webhook.AuthHeader == "" {
		return fmt.Errorf("webhook auth_header is required (or set %s)", EnvWebhookAuthHeader)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}

	return nil
}

// validateCommon checks the stores every binary connects to.
func (c *Config) validateCommon() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.Vault.EncryptionKey == "" {
		return fmt.Errorf("vault encryption_key is required (or set %s)", EnvEncryptionKey)
	}

	return nil
}
