package dto

import (
	"encoding/json"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
)

type CreateJobRequest struct {
	ConnectionID  string          `json:"connection_id" binding:"required"`
	JobType       string          `json:"job_type" binding:"required"`
	Configuration json.RawMessage `json:"configuration"`
	TargetTable   string          `json:"target_table" binding:"required"`
}

type ListJobsRequest struct {
	JobType  string `form:"job_type"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []*domain.Job `json:"jobs"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type JobLogsRequest struct {
	Limit int `form:"limit"`
}

type JobLogsResponse struct {
	Logs []domain.JobLog `json:"logs"`
}

type DeletedResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
