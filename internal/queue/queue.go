// Package queue carries setup tasks and webhook events between the API and the worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
)

// Setup is the queue that provisions webhooks for newly created jobs.
const Setup = "setup"

// ForJobType returns the queue that carries events for a job type.
func ForJobType(t domain.JobType) string {
	return string(t)
}

// Names lists every work queue.
func Names() []string {
	names := []string{Setup}
	for _, t := range domain.JobTypes {
		names = append(names, ForJobType(t))
	}
	return names
}

// SetupTask asks the worker to provision a job's webhook.
type SetupTask struct {
	JobID string `json:"job_id"`
}

// WebhookEvent is one provider delivery for one job.
type WebhookEvent struct {
	JobType domain.JobType  `json:"job_type"`
	JobID   string          `json:"job_id"`
	Payload json.RawMessage `json:"payload"`
}

// Message is a unit of work to publish.
type Message struct {
	Queue string
	Body  []byte
	// Attempt is 1 for a first delivery.
	Attempt int
	// Delay postpones delivery; zero means immediately.
	Delay time.Duration
}

// Delivery is a received message. Exactly one of Ack, Reject or Release must be called.
type Delivery struct {
	Queue   string
	Body    []byte
	Attempt int
	Ack     func() error
	// Reject drops the message without redelivery.
	Reject func() error
	// Release hands the message back for immediate redelivery with the same attempt.
	Release func() error
}

// Broker is a durable, at-least-once message transport.
type Broker interface {
	// Publish returns once the message is durably recorded.
	Publish(ctx context.Context, msg Message) error
	// Consume streams deliveries from queue until ctx is done or the broker closes.
	Consume(ctx context.Context, queue, consumer string) (<-chan Delivery, error)
	Close() error
}

// Dispatcher enqueues typed work onto a Broker.
type Dispatcher struct {
	broker Broker
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(broker Broker) *Dispatcher {
	return &Dispatcher{broker: broker}
}

// EnqueueSetup schedules webhook provisioning for a job.
func (d *Dispatcher) EnqueueSetup(ctx context.Context, jobID string) error {
	body, err := json.Marshal(SetupTask{JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to marshal setup task: %w", err)
	}
	if err := d.broker.Publish(ctx, Message{Queue: Setup, Body: body, Attempt: 1}); err != nil {
		return fmt.Errorf("failed to enqueue setup task: %w", err)
	}
	return nil
}

// EnqueueEvent routes a webhook delivery to its job type's queue.
func (d *Dispatcher) EnqueueEvent(ctx context.Context, ev WebhookEvent) error {
	if !ev.JobType.Valid() {
		return domain.NewValidationError("job_type", fmt.Sprintf("unknown job type %q", ev.JobType))
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}
	if err := d.broker.Publish(ctx, Message{Queue: ForJobType(ev.JobType), Body: body, Attempt: 1}); err != nil {
		return fmt.Errorf("failed to enqueue webhook event: %w", err)
	}
	return nil
}

// Requeue publishes d again with its attempt incremented after delay.
// The caller acks the original once this returns nil.
func Requeue(ctx context.Context, b Broker, d Delivery, delay time.Duration) error {
	return b.Publish(ctx, Message{
		Queue:   d.Queue,
		Body:    d.Body,
		Attempt: d.Attempt + 1,
		Delay:   delay,
	})
}
