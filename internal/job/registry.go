// Package job owns the indexing job lifecycle: creation, status control and deletion.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/internal/schema"
	"github.com/ritikbhatt20/Helius-Dexer/internal/storage"
)

// Store persists jobs and their logs.
type Store interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJobByID(ctx context.Context, id string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]*domain.Job, error)
	TransitionStatus(ctx context.Context, id string, next domain.JobStatus, webhookID *string) (*domain.Job, error)
	DeleteJob(ctx context.Context, id string) error
	AppendLog(ctx context.Context, jobID string, level domain.LogLevel, message string, details any) error
	ListLogs(ctx context.Context, jobID string, limit int) ([]domain.JobLog, error)
}

// Connections resolves an owner's connection.
type Connections interface {
	Owned(ctx context.Context, ownerID, id string) (*domain.ConnectionRecord, error)
}

// SetupQueue enqueues webhook provisioning for a job.
type SetupQueue interface {
	EnqueueSetup(ctx context.Context, jobID string) error
}

// Deprovisioner removes a provider webhook.
type Deprovisioner interface {
	DeleteSubscription(ctx context.Context, webhookID string) error
}

// CreateInput is a request to start indexing.
type CreateInput struct {
	ConnectionID  string
	JobType       string
	Configuration json.RawMessage
	TargetTable   string
}

// Page is one slice of an owner's jobs.
type Page struct {
	Jobs []*domain.Job
	// Next is nil on the last page.
	Next *storage.JobCursor
}

// Registry is the owner-scoped job service.
type Registry struct {
	store       Store
	connections Connections
	setup       SetupQueue
	webhooks    Deprovisioner
	logger      *slog.Logger
}

// NewRegistry creates a Registry
func NewRegistry(store Store, connections Connections, setup SetupQueue, webhooks Deprovisioner, logger *slog.Logger) *Registry {
	return &Registry{
		store:       store,
		connections: connections,
		setup:       setup,
		webhooks:    webhooks,
		logger:      logger,
	}
}

// Create validates in, stores a pending job and enqueues its setup task.
//
// A job whose setup task could not be enqueued is still returned: it stays
// pending with an error log entry and can be re-enqueued by an operator.
func (r *Registry) Create(ctx context.Context, ownerID string, in CreateInput) (*domain.Job, error) {
	jobType, err := domain.ParseJobType(in.JobType)
	if err != nil {
		return nil, err
	}
	cfg, err := domain.ParseJobConfig(jobType, in.Configuration)
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateIdentifier(in.TargetTable); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(in.ConnectionID); err != nil {
		return nil, domain.NewValidationError("connection_id", "must be a valid UUID")
	}
	if _, err := r.connections.Owned(ctx, ownerID, in.ConnectionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("connection %s: %w", in.ConnectionID, domain.ErrNotFound)
		}
		return nil, err
	}

	job := &domain.Job{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		ConnectionID:  in.ConnectionID,
		JobType:       jobType,
		Configuration: cfg,
		TargetTable:   in.TargetTable,
		Status:        domain.JobStatusPending,
	}
	if err := r.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	log := r.logger.With(slog.String("job_id", job.ID))
	r.appendLog(ctx, log, job.ID, domain.LogLevelInfo, "Indexing job created", map[string]string{
		"job_type":     string(job.JobType),
		"target_table": job.TargetTable,
	})

	if err := r.setup.EnqueueSetup(ctx, job.ID); err != nil {
		log.Error("Failed to enqueue setup task", slog.Any("error", err))
		r.appendLog(ctx, log, job.ID, domain.LogLevelError, "Failed to enqueue setup task", map[string]string{"error": err.Error()})
	}
	return job, nil
}

// Get returns the owner's job. Jobs of other owners are reported as not found.
func (r *Registry) Get(ctx context.Context, ownerID, id string) (*domain.Job, error) {
	job, err := r.store.GetJobByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

// List returns one page of the owner's jobs, newest first.
func (r *Registry) List(ctx context.Context, filter storage.JobFilter) (Page, error) {
	jobs, err := r.store.ListJobs(ctx, filter)
	if err != nil {
		return Page{}, err
	}

	page := Page{Jobs: jobs}
	if len(jobs) > filter.PageSize {
		page.Jobs = jobs[:filter.PageSize]
		last := page.Jobs[len(page.Jobs)-1]
		page.Next = &storage.JobCursor{CreatedAt: last.CreatedAt, JobID: last.ID}
	}
	return page, nil
}

// Pause stops event processing for an active job.
func (r *Registry) Pause(ctx context.Context, ownerID, id string) (*domain.Job, error) {
	return r.transition(ctx, ownerID, id, domain.JobStatusActive, domain.JobStatusPaused)
}

// Resume reactivates a paused job.
func (r *Registry) Resume(ctx context.Context, ownerID, id string) (*domain.Job, error) {
	return r.transition(ctx, ownerID, id, domain.JobStatusPaused, domain.JobStatusActive)
}

// Complete finishes an active or paused job and removes its webhook on a best-effort basis.
func (r *Registry) Complete(ctx context.Context, ownerID, id string) (*domain.Job, error) {
	job, err := r.transition(ctx, ownerID, id, "", domain.JobStatusCompleted)
	if err != nil {
		return nil, err
	}
	r.deprovision(ctx, job)
	return job, nil
}

// Delete removes the owner's job and its logs after a best-effort webhook removal.
func (r *Registry) Delete(ctx context.Context, ownerID, id string) error {
	job, err := r.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	r.deprovision(ctx, job)

	if err := r.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	r.logger.Info("Job deleted", slog.String("job_id", id))
	return nil
}

// Logs returns the most recent log entries of the owner's job.
func (r *Registry) Logs(ctx context.Context, ownerID, id string, limit int) ([]domain.JobLog, error) {
	if _, err := r.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return r.store.ListLogs(ctx, id, domain.ClampLogLimit(limit))
}

// RequeueSetup enqueues another setup task for a job stuck in pending.
func (r *Registry) RequeueSetup(ctx context.Context, id string) error {
	job, err := r.store.GetJobByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusPending {
		return fmt.Errorf("%w: job is %s, setup only runs for pending jobs", domain.ErrInvalidTransition, job.Status)
	}
	if err := r.setup.EnqueueSetup(ctx, id); err != nil {
		return err
	}
	r.appendLog(ctx, r.logger.With(slog.String("job_id", id)), id, domain.LogLevelInfo, "Setup task re-enqueued", nil)
	return nil
}

// transition moves the owner's job to next. A non-empty from narrows the
// states the move is accepted from beyond what the state machine allows.
func (r *Registry) transition(ctx context.Context, ownerID, id string, from, next domain.JobStatus) (*domain.Job, error) {
	job, err := r.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if (from != "" && job.Status != from) || !job.Status.CanTransitionTo(next) {
		return job, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, job.Status, next)
	}

	updated, err := r.store.TransitionStatus(ctx, id, next, nil)
	if err != nil {
		return updated, err
	}

	log := r.logger.With(slog.String("job_id", id))
	r.appendLog(ctx, log, id, domain.LogLevelInfo, "Job "+string(next), map[string]string{
		"from": string(job.Status),
		"to":   string(next),
	})
	return updated, nil
}

func (r *Registry) deprovision(ctx context.Context, job *domain.Job) {
	if !job.HasWebhook() {
		return
	}
	if err := r.webhooks.DeleteSubscription(ctx, *job.WebhookID); err != nil {
		r.logger.Warn("Failed to delete webhook, continuing",
			slog.String("job_id", job.ID),
			slog.String("webhook_id", *job.WebhookID),
			slog.Any("error", err),
		)
	}
}

func (r *Registry) appendLog(ctx context.Context, log *slog.Logger, jobID string, level domain.LogLevel, message string, details any) {
	if err := r.store.AppendLog(ctx, jobID, level, message, details); err != nil {
		log.Error("Failed to write job log", slog.Any("error", err))
	}
}
