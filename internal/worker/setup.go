package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
)

// handleSetup provisions the provider webhook of a pending job and activates it.
//
// Provisioning retries happen inside the provisioner, so an exhausted attempt
// fails the job here and the delivery is acknowledged. Only metadata store
// errors and shutdown are handed back for a queue-level retry.
func (w *Worker) handleSetup(ctx context.Context, jobID string) error {
	log := w.logger.With(slog.String("job_id", jobID))

	job, err := w.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Info("Job deleted before setup, nothing to provision")
			return nil
		}
		return domain.NewRetryableError(fmt.Errorf("failed to load job: %w", err))
	}
	if job.Status != domain.JobStatusPending {
		log.Info("Job is not pending, skipping setup", slog.String("status", string(job.Status)))
		return nil
	}

	webhookID, err := w.provisioner.CreateSubscription(ctx, job)
	if err != nil {
		if ctx.Err() != nil && !domain.IsFatal(err) {
			return domain.NewRetryableError(fmt.Errorf("setup interrupted: %w", err))
		}
		log.Error("Indexing job setup failed", slog.Any("error", err))
		if _, tErr := w.jobs.TransitionStatus(ctx, jobID, domain.JobStatusFailed, nil); tErr != nil && !errors.Is(tErr, domain.ErrInvalidTransition) && !errors.Is(tErr, domain.ErrNotFound) {
			log.Error("Failed to mark job failed", slog.Any("error", tErr))
		}
		w.appendLog(ctx, jobID, domain.LogLevelError, "Indexing job setup failed", map[string]string{"error": err.Error()})
		return nil
	}

	activated, err := w.jobs.TransitionStatus(ctx, jobID, domain.JobStatusActive, &webhookID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		log.Info("Job deleted during setup, removing its webhook", slog.String("webhook_id", webhookID))
		w.removeOrphan(ctx, log, webhookID)
		return nil
	case errors.Is(err, domain.ErrInvalidTransition):
		// Another delivery or an operator moved the job first.
		if activated == nil || activated.WebhookID == nil || *activated.WebhookID != webhookID {
			log.Info("Job left pending during setup, removing its webhook",
				slog.String("webhook_id", webhookID),
				slog.String("status", statusOf(activated)),
			)
			w.removeOrphan(ctx, log, webhookID)
		}
		return nil
	default:
		w.removeOrphan(ctx, log, webhookID)
		return domain.NewRetryableError(fmt.Errorf("failed to activate job: %w", err))
	}

	log.Info("Indexing job setup successful", slog.String("webhook_id", webhookID))
	w.appendLog(ctx, jobID, domain.LogLevelInfo, "Indexing job setup successful", map[string]string{"webhook_id": webhookID})
	return nil
}

func (w *Worker) removeOrphan(ctx context.Context, log *slog.Logger, webhookID string) {
	if err := w.provisioner.DeleteSubscription(ctx, webhookID); err != nil {
		log.Warn("Failed to remove orphaned webhook",
			slog.String("webhook_id", webhookID),
			slog.Any("error", err),
		)
	}
}

func statusOf(job *domain.Job) string {
	if job == nil {
		return ""
	}
	return string(job.Status)
}
