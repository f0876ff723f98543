package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ritikbhatt20/Helius-Dexer/internal/queue"
)

// handleEvent runs one webhook event through the processor and records its metrics.
func (w *Worker) handleEvent(ctx context.Context, ev *queue.WebhookEvent) error {
	start := time.Now()
	jobType := string(ev.JobType)

	res, err := w.processor.Process(ctx, ev.JobType, ev.JobID, ev.Payload)
	w.metrics.RecordProcessingDuration(jobType, time.Since(start))
	w.metrics.RecordRecordsWritten(jobType, res.ProcessedCount)
	if err != nil {
		return err
	}

	if res.Skipped {
		w.logger.Debug("Event skipped",
			slog.String("job_id", ev.JobID),
			slog.String("job_type", jobType),
		)
	}
	return nil
}
