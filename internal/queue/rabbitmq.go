package queue

import (
	"context"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ritikbhatt20/Helius-Dexer/shared/rabbitmq"
)

// AttemptHeader carries the delivery attempt number.
const AttemptHeader = "x-attempt"

// RabbitBroker implements Broker on RabbitMQ. Delayed messages go to the queue's
// retry queue with a per-message TTL and are dead-lettered back when it expires.
type RabbitBroker struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// NewRabbitBroker wraps a connected client.
func NewRabbitBroker(client *rabbitmq.Client, logger *slog.Logger) *RabbitBroker {
	return &RabbitBroker{client: client, logger: logger}
}

func (b *RabbitBroker) Publish(ctx context.Context, msg Message) error {
	routingKey := msg.Queue
	if msg.Delay > 0 {
		routingKey = msg.Queue + rabbitmq.RetrySuffix
	}
	attempt := msg.Attempt
	if attempt < 1 {
		attempt = 1
	}

	return b.client.PublishWithRetry(ctx, rabbitmq.Message{
		RoutingKey: routingKey,
		Body:       msg.Body,
		Headers:    amqp.Table{AttemptHeader: int32(attempt)},
		Expiration: msg.Delay,
	})
}

func (b *RabbitBroker) Consume(ctx context.Context, queue, consumer string) (<-chan Delivery, error) {
	msgs, err := b.client.Consume(queue, consumer)
	if err != nil {
		return nil, err
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					b.logger.Warn("RabbitMQ delivery channel closed", slog.String("queue", queue))
					return
				}
				d := Delivery{
					Queue:   queue,
					Body:    m.Body,
					Attempt: attemptFromHeaders(m.Headers),
					Ack:     func() error { return m.Ack(false) },
					Reject:  func() error { return m.Nack(false, false) },
					Release: func() error { return m.Nack(false, true) },
				}
				select {
				case out <- d:
				case <-ctx.Done():
					// Unhandled; let the broker redeliver it.
					m.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RabbitBroker) Close() error {
	return b.client.Close()
}

func attemptFromHeaders(h amqp.Table) int {
	switch v := h[AttemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	}
	return 1
}
