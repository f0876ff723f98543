package config

import (
	"time"

	"github.com/ritikbhatt20/Helius-Dexer/internal/helius"
	"github.com/ritikbhatt20/Helius-Dexer/internal/tenant"
	"github.com/ritikbhatt20/Helius-Dexer/shared/logger"
	"github.com/ritikbhatt20/Helius-Dexer/shared/postgresql"
	"github.com/ritikbhatt20/Helius-Dexer/shared/rabbitmq"
	"github.com/ritikbhatt20/Helius-Dexer/shared/redis"
)

// LoggerConfig converts the logging section for shared/logger.
func (c *LoggingConfig) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:        c.Level,
		Format:       c.Format,
		Output:       c.Output,
		EnableSource: c.EnableSource,
		NoColor:      c.NoColor,
		TimeFormat:   time.RFC3339,
	}
}

// ClientConfig converts the database section for shared/postgresql.
func (c *DatabaseConfig) ClientConfig() *postgresql.Config {
	return &postgresql.Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Database,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
	}
}

// ClientConfig converts the rabbitmq section for shared/rabbitmq, declaring queues.
func (c *RabbitMQConfig) ClientConfig(queues []string) *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               c.Host,
		Port:               c.Port,
		User:               c.User,
		Password:           c.Password,
		VHost:              c.VHost,
		ExchangeName:       c.Exchange,
		Queues:             queues,
		Prefetch:           c.Consumer.PrefetchCount,
		RetryAttempts:      c.Connection.RetryAttempts,
		RetryInterval:      c.Connection.RetryInterval,
		Heartbeat:          c.Connection.Heartbeat,
		PublishRetries:     c.Publish.RetryAttempts,
		PublishRetryDelay:  c.Publish.RetryInterval,
		PublishBackoffMult: c.Publish.BackoffMultiplier,
	}
}

// ClientConfig converts the redis section for shared/redis.
func (c *RedisConfig) ClientConfig() *redis.Config {
	return &redis.Config{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: c.DialTimeout,
	}
}

// ClientConfig converts the helius section for the provider client.
func (c *HeliusConfig) ClientConfig() helius.Config {
	return helius.Config{
		BaseURL:        c.BaseURL,
		APIKey:         c.APIKey,
		RequestTimeout: c.RequestTimeout,
	}
}

// ProvisionerConfig combines provider retry settings with the callback settings.
func (c *Config) ProvisionerConfig() helius.ProvisionerConfig {
	return helius.ProvisionerConfig{
		CallbackBaseURL: c.Webhook.CallbackBaseURL,
		AuthHeader:      c.Webhook.AuthHeader,
		Retry: helius.RetryPolicy{
			MaxAttempts:    c.Helius.MaxAttempts,
			BaseDelay:      c.Helius.RetryBaseDelay,
			AttemptTimeout: c.Helius.RequestTimeout,
		},
	}
}

// OpenerConfig converts the tenant section for tenant pools.
func (c *TenantConfig) OpenerConfig() tenant.Config {
	return tenant.Config{
		MaxOpenConns:     c.MaxOpenConns,
		ConnectTimeout:   c.ConnectTimeout,
		OperationTimeout: c.OperationTimeout,
	}
}
