package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
)

type jobRow struct {
	ID            string         `db:"id"`
	OwnerID       string         `db:"owner_id"`
	ConnectionID  string         `db:"connection_id"`
	JobType       string         `db:"job_type"`
	Configuration []byte         `db:"configuration"`
	TargetTable   string         `db:"target_table"`
	Status        string         `db:"status"`
	WebhookID     sql.NullString `db:"webhook_id"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r jobRow) toDomain() (*domain.Job, error) {
	jobType := domain.JobType(r.JobType)
	cfg, err := domain.LoadJobConfig(jobType, r.Configuration)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", r.ID, err)
	}

	job := &domain.Job{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		ConnectionID:  r.ConnectionID,
		JobType:       jobType,
		Configuration: cfg,
		TargetTable:   r.TargetTable,
		Status:        domain.JobStatus(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.WebhookID.Valid {
		id := r.WebhookID.String
		job.WebhookID = &id
	}
	return job, nil
}

const jobColumns = `id, owner_id, connection_id, job_type, configuration, target_table, status, webhook_id, created_at, updated_at`

// CreateJob inserts job and fills in its timestamps.
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	cfg, err := json.Marshal(job.Configuration)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	query := `
		INSERT INTO jobs (
			id, owner_id, connection_id, job_type,
			configuration, target_table, status
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7
		)
		RETURNING created_at, updated_at
	`

	err = s.db.QueryRowxContext(ctx, query,
		job.ID,
		job.OwnerID,
		job.ConnectionID,
		job.JobType,
		cfg,
		job.TargetTable,
		job.Status,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.JobType)),
	)
	return nil
}

// GetJobByID retrieves a job from the database by its ID
func (s *Storage) GetJobByID(ctx context.Context, id string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	var row jobRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return row.toDomain()
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	OwnerID  string
	JobType  string
	Status   string
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is the keyset position of the last job of a page.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns up to PageSize+1 jobs so callers can tell whether another page exists.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.OwnerID != "" {
		query += fmt.Sprintf(" AND owner_id = $%d", argIdx)
		args = append(args, filter.OwnerID)
		argIdx++
	}

	if filter.JobType != "" {
		query += fmt.Sprintf(" AND job_type = $%d", argIdx)
		args = append(args, filter.JobType)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"

	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*domain.Job, 0, len(rows))
	for _, r := range rows {
		job, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// TransitionStatus moves a job to next if its current status is one that may legally do so.
// A non-nil webhookID is recorded in the same statement.
// Returns ErrNotFound if the job is gone and ErrInvalidTransition if the guard rejected it.
func (s *Storage) TransitionStatus(ctx context.Context, id string, next domain.JobStatus, webhookID *string) (*domain.Job, error) {
	from := domain.SourcesFor(next)
	fromStrings := make([]string, len(from))
	for i, st := range from {
		fromStrings[i] = string(st)
	}

	query := `
		UPDATE jobs
		SET status = $1,
		    webhook_id = COALESCE($2, webhook_id),
		    updated_at = NOW()
		WHERE id = $3
		  AND status = ANY($4)
		RETURNING ` + jobColumns

	var wh sql.NullString
	if webhookID != nil {
		wh = sql.NullString{String: *webhookID, Valid: true}
	}

	var row jobRow
	err := s.db.GetContext(ctx, &row, query, string(next), wh, id, pq.Array(fromStrings))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to update job status: %w", err)
		}

		current, getErr := s.GetJobByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		s.logger.Warn("Job status transition rejected",
			slog.String("job_id", id),
			slog.String("from", string(current.Status)),
			slog.String("to", string(next)),
		)
		return current, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, next)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", id),
		slog.String("status", string(next)),
	)
	return row.toDomain()
}

// DeleteJob removes a job; its logs go with it.
func (s *Storage) DeleteJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
