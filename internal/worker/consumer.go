package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/internal/queue"
)

// errStreamClosed is returned when a broker closes a delivery stream while the worker is still running.
var errStreamClosed = errors.New("delivery stream closed")

// task is one decoded delivery waiting for a pool goroutine.
type task struct {
	delivery queue.Delivery
	jobID    string
	setup    *queue.SetupTask
	event    *queue.WebhookEvent
}

// setupConsumer subscribes to one queue under a consumer tag unique to this worker
func (w *Worker) setupConsumer(ctx context.Context, q string) (<-chan queue.Delivery, error) {
	consumerTag := w.workerID + "-" + q

	deliveries, err := w.broker.Consume(ctx, q, consumerTag)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming %s: %w", q, err)
	}

	w.logger.Info("Consumer started",
		slog.String("consumer_tag", consumerTag),
		slog.String("queue", q),
	)
	return deliveries, nil
}

// startMessageDispatcher decodes deliveries from one queue and hands them to the worker pool
func (w *Worker) startMessageDispatcher(ctx context.Context, q string, deliveries <-chan queue.Delivery) error {
	log := w.logger.With(slog.String("queue", q))
	log.Info("Message dispatcher started")

	for {
		select {
		case <-ctx.Done():
			log.Info("Message dispatcher stopped - context canceled")
			return nil

		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				log.Warn("Delivery channel closed")
				return fmt.Errorf("%s: %w", q, errStreamClosed)
			}

			t, err := decodeTask(d)
			if err != nil {
				// Poison message: nothing can ever process it.
				log.Error("Dropping malformed message",
					slog.Any("error", err),
					slog.Int("attempt", d.Attempt),
				)
				w.recordPoison(ctx, d, err)
				if rejectErr := d.Reject(); rejectErr != nil {
					log.Error("Failed to reject malformed message", slog.Any("error", rejectErr))
				}
				w.metrics.RecordDelivery(q, outcomeDropped)
				continue
			}

			select {
			case w.jobsChan <- t:
				log.Debug("Task dispatched to worker pool",
					slog.String("job_id", t.jobID),
					slog.Int("attempt", d.Attempt),
				)
			case <-ctx.Done():
				log.Info("Message dispatcher stopped while dispatching task")
				if releaseErr := d.Release(); releaseErr != nil {
					log.Error("Failed to release message on shutdown", slog.Any("error", releaseErr))
				}
				return nil
			}
		}
	}
}

func decodeTask(d queue.Delivery) (*task, error) {
	if d.Queue == queue.Setup {
		var st queue.SetupTask
		if err := json.Unmarshal(d.Body, &st); err != nil {
			return nil, fmt.Errorf("failed to parse setup task: %w", err)
		}
		if _, err := uuid.Parse(st.JobID); err != nil {
			return nil, fmt.Errorf("invalid job_id %q: %w", st.JobID, err)
		}
		return &task{delivery: d, jobID: st.JobID, setup: &st}, nil
	}

	var ev queue.WebhookEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse webhook event: %w", err)
	}
	if _, err := uuid.Parse(ev.JobID); err != nil {
		return nil, fmt.Errorf("invalid job_id %q: %w", ev.JobID, err)
	}
	if queue.ForJobType(ev.JobType) != d.Queue {
		return nil, domain.NewValidationError("job_type",
			fmt.Sprintf("event for %q delivered on queue %q", ev.JobType, d.Queue))
	}
	return &task{delivery: d, jobID: ev.JobID, event: &ev}, nil
}

// recordPoison writes a job log entry for a dropped message when the message still names a job.
func (w *Worker) recordPoison(ctx context.Context, d queue.Delivery, cause error) {
	var probe struct {
		JobID string `json:"job_id"`
	}
	if json.Unmarshal(d.Body, &probe) != nil {
		return
	}
	if _, err := uuid.Parse(probe.JobID); err != nil {
		return
	}
	w.appendLog(ctx, probe.JobID, domain.LogLevelError, "Dropped malformed queue message", map[string]string{
		"queue": d.Queue,
		"error": cause.Error(),
	})
}
