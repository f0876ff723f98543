package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
)

type jobLogRow struct {
	ID        int64     `db:"id"`
	JobID     string    `db:"job_id"`
	LogLevel  string    `db:"log_level"`
	Message   string    `db:"message"`
	Details   []byte    `db:"details"`
	CreatedAt time.Time `db:"created_at"`
}

// AppendLog records an audit entry for a job. details may be nil.
func (s *Storage) AppendLog(ctx context.Context, jobID string, level domain.LogLevel, message string, details any) error {
	var raw []byte
	if details != nil {
		var err error
		raw, err = json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal log details: %w", err)
		}
	}

	query := `INSERT INTO job_logs (job_id, log_level, message, details) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, query, jobID, string(level), message, raw); err != nil {
		return fmt.Errorf("failed to append job log: %w", err)
	}
	return nil
}

// ListLogs returns a job's log entries, most recent first.
func (s *Storage) ListLogs(ctx context.Context, jobID string, limit int) ([]domain.JobLog, error) {
	query := `
		SELECT id, job_id, log_level, message, details, created_at
		FROM job_logs
		WHERE job_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	var rows []jobLogRow
	if err := s.db.SelectContext(ctx, &rows, query, jobID, domain.ClampLogLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list job logs: %w", err)
	}

	logs := make([]domain.JobLog, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, domain.JobLog{
			ID:        r.ID,
			JobID:     r.JobID,
			LogLevel:  domain.LogLevel(r.LogLevel),
			Message:   r.Message,
			Details:   json.RawMessage(r.Details),
			CreatedAt: r.CreatedAt,
		})
	}
	return logs, nil
}
