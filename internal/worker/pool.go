package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/internal/queue"
)

// Delivery outcomes, used as metric labels.
const (
	outcomeAck     = "ack"
	outcomeRetry   = "retry"
	outcomeDropped = "dropped"
	outcomeFailed  = "failed"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	log := w.logger.With(slog.String("worker_name", workerName))
	log.Debug("Worker goroutine started")

	for {
		select {
		case <-w.stopChan:
			log.Debug("Worker goroutine stopping - stopChan closed")
			return

		case <-ctx.Done():
			log.Debug("Worker goroutine stopping - context canceled")
			return

		case t := <-w.jobsChan:
			w.runTask(ctx, log, t)
		}
	}
}

// runTask handles one task and settles its delivery.
func (w *Worker) runTask(ctx context.Context, log *slog.Logger, t *task) {
	taskCtx, cancel := w.taskContext(ctx)
	defer cancel()

	log = log.With(
		slog.String("queue", t.delivery.Queue),
		slog.String("job_id", t.jobID),
		slog.Int("attempt", t.delivery.Attempt),
	)

	var err error
	if t.setup != nil {
		err = w.handleSetup(taskCtx, t.jobID)
	} else {
		err = w.handleEvent(taskCtx, t.event)
	}

	outcome := w.settle(taskCtx, log, t, err)
	w.metrics.RecordDelivery(t.delivery.Queue, outcome)
}

// settle acknowledges, retries or drops a delivery based on the handler result.
func (w *Worker) settle(ctx context.Context, log *slog.Logger, t *task, err error) string {
	d := t.delivery

	if err == nil {
		if ackErr := d.Ack(); ackErr != nil {
			log.Error("Failed to ACK message", slog.Any("error", ackErr))
		}
		return outcomeAck
	}

	switch {
	case errors.Is(err, domain.ErrNotFound) && !domain.IsFatal(err):
		// The job was deleted after the message was queued.
		log.Info("Job no longer exists, dropping message")
		w.reject(log, d)
		return outcomeDropped

	case domain.IsValidation(err):
		log.Error("Dropping invalid message", slog.Any("error", err))
		w.reject(log, d)
		return outcomeDropped

	case domain.IsFatal(err):
		log.Error("Task failed permanently", slog.Any("error", err))
		w.failJob(ctx, t.jobID, "Job failed", err)
		w.reject(log, d)
		return outcomeFailed
	}

	if !w.shouldRequeueJob(d) {
		log.Error("Task retries exhausted", slog.Any("error", err))
		w.failJob(ctx, t.jobID, "Processing retries exhausted", err)
		w.reject(log, d)
		return outcomeFailed
	}

	delay := w.retryBaseDelay * time.Duration(d.Attempt)
	if reqErr := queue.Requeue(ctx, w.broker, d, delay); reqErr != nil {
		log.Error("Failed to schedule retry, releasing message", slog.Any("error", reqErr))
		if relErr := d.Release(); relErr != nil {
			log.Error("Failed to release message", slog.Any("error", relErr))
		}
		return outcomeRetry
	}
	if ackErr := d.Ack(); ackErr != nil {
		log.Error("Failed to ACK retried message", slog.Any("error", ackErr))
	}

	log.Warn("Task failed, retry scheduled",
		slog.Any("error", err),
		slog.Duration("delay", delay),
		slog.Int("max_attempts", w.maxAttempts),
	)
	return outcomeRetry
}

// shouldRequeueJob reports whether the delivery has attempts left.
func (w *Worker) shouldRequeueJob(d queue.Delivery) bool {
	return d.Attempt < w.maxAttempts
}

func (w *Worker) reject(log *slog.Logger, d queue.Delivery) {
	if err := d.Reject(); err != nil {
		log.Error("Failed to reject message", slog.Any("error", err))
	}
}

// failJob moves a job to failed and records why. A job already in a terminal state is left alone.
func (w *Worker) failJob(ctx context.Context, jobID, message string, cause error) {
	log := w.logger.With(slog.String("job_id", jobID))

	if _, err := w.jobs.TransitionStatus(ctx, jobID, domain.JobStatusFailed, nil); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return
		}
		if !errors.Is(err, domain.ErrInvalidTransition) {
			log.Error("Failed to mark job failed", slog.Any("error", err))
		}
	}
	w.appendLog(ctx, jobID, domain.LogLevelError, message, map[string]string{"error": cause.Error()})
}

func (w *Worker) appendLog(ctx context.Context, jobID string, level domain.LogLevel, message string, details any) {
	if err := w.jobs.AppendLog(ctx, jobID, level, message, details); err != nil {
		w.logger.Error("Failed to write job log",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}
