package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ritikbhatt20/Helius-Dexer/internal/api/dto"
	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/internal/job"
	"github.com/ritikbhatt20/Helius-Dexer/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateJob handles POST /api/v1/jobs
// The job is stored as pending; webhook provisioning happens on the worker.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request body", slog.String("error", err.Error()))
		RespondError(c, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}

	created, err := h.jobs.Create(c.Request.Context(), ownerID(c), job.CreateInput{
		ConnectionID:  req.ConnectionID,
		JobType:       req.JobType,
		Configuration: req.Configuration,
		TargetTable:   req.TargetTable,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Job created",
		slog.String("job_id", created.ID),
		slog.String("job_type", string(created.JobType)),
	)
	c.JSON(http.StatusCreated, created)
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := validID(c, "id")
	if !ok {
		return
	}

	j, err := h.jobs.Get(c.Request.Context(), ownerID(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

// ListJobs handles GET /api/v1/jobs
// Supports filtering by job_type and status with cursor-based pagination.
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		RespondError(c, http.StatusBadRequest, CodeValidation, "invalid query parameters")
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}
	if req.JobType != "" {
		if _, err := domain.ParseJobType(req.JobType); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}
	if req.Status != "" && !validStatus(req.Status) {
		RespondError(c, http.StatusBadRequest, CodeValidation, "status is not a known job status")
		return
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		RespondError(c, http.StatusBadRequest, CodeValidation, "cursor is invalid")
		return
	}

	page, err := h.jobs.List(c.Request.Context(), storage.JobFilter{
		OwnerID:  ownerID(c),
		JobType:  req.JobType,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := dto.ListJobsResponse{Jobs: page.Jobs}
	if resp.Jobs == nil {
		resp.Jobs = []*domain.Job{}
	}
	if page.Next != nil {
		resp.NextCursor = EncodeJobCursor(page.Next)
	}
	c.JSON(http.StatusOK, resp)
}

// PauseJob handles POST /api/v1/jobs/:id/pause
func (h *JobHandler) PauseJob(c *gin.Context) {
	h.changeStatus(c, h.jobs.Pause)
}

// ResumeJob handles POST /api/v1/jobs/:id/resume
func (h *JobHandler) ResumeJob(c *gin.Context) {
	h.changeStatus(c, h.jobs.Resume)
}

// CompleteJob handles POST /api/v1/jobs/:id/complete
func (h *JobHandler) CompleteJob(c *gin.Context) {
	h.changeStatus(c, h.jobs.Complete)
}

// DeleteJob handles DELETE /api/v1/jobs/:id
// The tenant table and its rows are left in place.
func (h *JobHandler) DeleteJob(c *gin.Context) {
	id, ok := validID(c, "id")
	if !ok {
		return
	}

	if err := h.jobs.Delete(c.Request.Context(), ownerID(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Job deleted", slog.String("job_id", id))
	c.JSON(http.StatusOK, dto.DeletedResponse{ID: id, Deleted: true})
}

// GetJobLogs handles GET /api/v1/jobs/:id/logs
func (h *JobHandler) GetJobLogs(c *gin.Context) {
	id, ok := validID(c, "id")
	if !ok {
		return
	}

	var req dto.JobLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		RespondError(c, http.StatusBadRequest, CodeValidation, "limit must be an integer")
		return
	}

	logs, err := h.jobs.Logs(c.Request.Context(), ownerID(c), id, req.Limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if logs == nil {
		logs = []domain.JobLog{}
	}
	c.JSON(http.StatusOK, dto.JobLogsResponse{Logs: logs})
}

type statusChange func(ctx context.Context, ownerID, id string) (*domain.Job, error)

func (h *JobHandler) changeStatus(c *gin.Context, change statusChange) {
	id, ok := validID(c, "id")
	if !ok {
		return
	}

	j, err := change(c.Request.Context(), ownerID(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Job status changed",
		slog.String("job_id", id),
		slog.String("status", string(j.Status)),
	)
	c.JSON(http.StatusOK, j)
}

func validStatus(s string) bool {
	switch domain.JobStatus(s) {
	case domain.JobStatusPending, domain.JobStatusActive, domain.JobStatusPaused,
		domain.JobStatusCompleted, domain.JobStatusFailed:
		return true
	}
	return false
}
