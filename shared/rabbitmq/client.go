package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RetrySuffix names the delay queue paired with every work queue.
const RetrySuffix = ".retry"

// ErrNotConnected is returned when the client has been closed or never connected.
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// ErrNacked is returned when the broker refuses to confirm a publish.
var ErrNacked = errors.New("publish was not confirmed by broker")

// Config holds RabbitMQ connection configuration
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	VHost              string
	ExchangeName       string
	Queues             []string
	Prefetch           int
	RetryAttempts      int
	RetryInterval      time.Duration
	Heartbeat          time.Duration
	PublishRetries     int
	PublishRetryDelay  time.Duration
	PublishBackoffMult float64
}

// Message is an outgoing publish.
type Message struct {
	RoutingKey string
	Body       []byte
	Headers    amqp.Table
	// Expiration delays delivery when published to a retry queue.
	Expiration time.Duration
}

// Client owns one connection, a confirm-mode publishing channel and one channel per consumer.
type Client struct {
	config *Config
	conn   *amqp.Connection
	logger *slog.Logger

	pubMu sync.Mutex // orders frames on pubCh, never held while waiting for a confirm
	pubCh *amqp.Channel

	mu        sync.Mutex // guards consumers
	consumers []*amqp.Channel
	closed    atomic.Bool
}

// NewClient dials the broker, declares the topology and enables publisher confirms.
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config: config,
		logger: logger,
	}

	if err := client.connect(); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	return client, nil
}

// connect establishes connection to RabbitMQ with retry logic
func (c *Client) connect() error {
	var err error

	vhost := c.config.VHost
	if vhost == "" {
		vhost = "/"
	}
	dsn := fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		url.QueryEscape(c.config.User),
		url.QueryEscape(c.config.Password),
		c.config.Host,
		c.config.Port,
		url.PathEscape(vhost),
	)

	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}

	attempts := c.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		c.conn, err = amqp.DialConfig(dsn, amqpConfig)
		if err == nil {
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < attempts {
			time.Sleep(c.config.RetryInterval)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	c.pubCh, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := c.setup(c.pubCh); err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to setup topology: %w", err)
	}

	if err := c.pubCh.Confirm(false); err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.Int("queues", len(c.config.Queues)),
	)

	return nil
}

// setup declares the exchange and, for every work queue, the queue itself plus
// a retry queue that dead-letters expired messages back to it.
func (c *Client) setup(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		c.config.ExchangeName, // name
		amqp.ExchangeDirect,   // type
		true,                  // durable
		false,                 // auto-deleted
		false,                 // internal
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	for _, queue := range c.config.Queues {
		if err := c.declareQueue(ch, queue, nil); err != nil {
			return err
		}

		retry := queue + RetrySuffix
		args := amqp.Table{
			"x-dead-letter-exchange":    c.config.ExchangeName,
			"x-dead-letter-routing-key": queue,
		}
		if err := c.declareQueue(ch, retry, args); err != nil {
			return err
		}
	}

	return nil
}

func (c *Client) declareQueue(ch *amqp.Channel, name string, args amqp.Table) error {
	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		args,  // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}

	if err := ch.QueueBind(name, name, c.config.ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", name, err)
	}
	return nil
}

// Publish sends a persistent message and waits for the broker to confirm it.
func (c *Client) Publish(ctx context.Context, msg Message) error {
	if c.closed.Load() || c.pubCh == nil {
		return ErrNotConnected
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         msg.Body,
		Headers:      msg.Headers,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}
	if msg.Expiration > 0 {
		publishing.Expiration = strconv.FormatInt(msg.Expiration.Milliseconds(), 10)
	}

	c.pubMu.Lock()
	confirm, err := c.pubCh.PublishWithDeferredConfirmWithContext(
		ctx,
		c.config.ExchangeName, // exchange
		msg.RoutingKey,        // routing key
		false,                 // mandatory
		false,                 // immediate
		publishing,
	)
	c.pubMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to wait for publish confirm: %w", err)
	}
	if !acked {
		return ErrNacked
	}

	c.logger.Debug("Message published to RabbitMQ",
		slog.String("routing_key", msg.RoutingKey),
		slog.Int("body_size", len(msg.Body)),
	)
	return nil
}

// PublishWithRetry publishes a message to RabbitMQ with retry logic and exponential backoff
func (c *Client) PublishWithRetry(ctx context.Context, msg Message) error {
	maxRetries := c.config.PublishRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	baseDelay := c.config.PublishRetryDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	backoffMult := c.config.PublishBackoffMult
	if backoffMult <= 0 {
		backoffMult = 2.0
	}

	var lastErr error
	delay := baseDelay
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := c.Publish(ctx, msg)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("Published message to RabbitMQ after retry",
					slog.Int("attempt", attempt+1),
					slog.String("routing_key", msg.RoutingKey),
				)
			}
			return nil
		}
		if errors.Is(err, ErrNotConnected) {
			return err
		}

		lastErr = err

		if attempt < maxRetries {
			c.logger.Warn("Failed to publish message to RabbitMQ, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", maxRetries),
				slog.Duration("retry_after", delay),
				slog.Any("error", err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * backoffMult)
		}
	}

	c.logger.Error("Failed to publish message to RabbitMQ after all retries",
		slog.Int("attempts", maxRetries+1),
		slog.Any("error", lastErr),
	)
	return fmt.Errorf("failed to publish message after %d attempts: %w", maxRetries+1, lastErr)
}

// Consume opens a dedicated channel with the configured prefetch and starts
// consuming queue with manual acknowledgements.
func (c *Client) Consume(queue, consumerTag string) (<-chan amqp.Delivery, error) {
	if c.closed.Load() || c.conn == nil {
		return nil, ErrNotConnected
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}

	prefetch := c.config.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	messages, err := ch.Consume(
		queue,       // queue
		consumerTag, // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume messages: %w", err)
	}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		ch.Close()
		return nil, ErrNotConnected
	}
	c.consumers = append(c.consumers, ch)
	c.mu.Unlock()

	c.logger.Info("Started consuming messages from RabbitMQ",
		slog.String("queue", queue),
		slog.String("consumer_tag", consumerTag),
	)

	return messages, nil
}

// Close closes every channel and the connection.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("Closing RabbitMQ connection")

	for _, ch := range c.consumers {
		if err := ch.Close(); err != nil {
			c.logger.Warn("Failed to close RabbitMQ consumer channel", slog.Any("error", err))
		}
	}
	if c.pubCh != nil {
		if err := c.pubCh.Close(); err != nil {
			c.logger.Warn("Failed to close RabbitMQ channel", slog.Any("error", err))
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ connection", slog.Any("error", err))
			return err
		}
	}
	return nil
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	return !c.closed.Load() && c.conn != nil && !c.conn.IsClosed()
}
