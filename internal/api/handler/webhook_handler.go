package handler

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/internal/processor"
	"github.com/ritikbhatt20/Helius-Dexer/internal/queue"
)

// Rejection reasons, used as metric labels.
const (
	rejectUnauthorized = "unauthorized"
	rejectBadRequest   = "bad_request"
	rejectUnknownJob   = "unknown_job"
	rejectJobStatus    = "job_status"
	rejectEnqueue      = "enqueue_failed"
)

type webhookBody struct {
	Transactions []json.RawMessage `json:"transactions"`
}

// ReceiveWebhook handles POST /webhooks/:jobType/:jobId
// A valid delivery is queued for its job type and acknowledged with 202.
func (h *WebhookHandler) ReceiveWebhook(c *gin.Context) {
	if !h.authorized(c.GetHeader("Authorization")) {
		h.metrics.RecordWebhookRejected(rejectUnauthorized)
		RespondError(c, http.StatusUnauthorized, CodeUnauthorized, "invalid webhook credentials")
		return
	}

	jobType, err := domain.ParseJobType(c.Param("jobType"))
	if err != nil {
		h.metrics.RecordWebhookRejected(rejectBadRequest)
		respondError(c, h.logger, err)
		return
	}
	jobID := c.Param("jobId")
	if _, err := uuid.Parse(jobID); err != nil {
		h.metrics.RecordWebhookRejected(rejectBadRequest)
		RespondError(c, http.StatusBadRequest, CodeValidation, "jobId must be a valid UUID")
		return
	}

	log := h.logger.With(
		slog.String("job_id", jobID),
		slog.String("job_type", string(jobType)),
	)

	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		h.metrics.RecordWebhookRejected(rejectBadRequest)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(c, http.StatusRequestEntityTooLarge, CodeValidation, "request body too large")
			return
		}
		RespondError(c, http.StatusBadRequest, CodeValidation, "could not read request body")
		return
	}

	txs, err := processor.DecodeTransactions(raw)
	if err != nil || txs == nil {
		h.metrics.RecordWebhookRejected(rejectBadRequest)
		RespondError(c, http.StatusBadRequest, CodeValidation, "body must be a transaction array or an object with a transactions array")
		return
	}

	j, err := h.jobs.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.metrics.RecordWebhookRejected(rejectUnknownJob)
		}
		respondError(c, log, err)
		return
	}
	if j.JobType != jobType {
		h.metrics.RecordWebhookRejected(rejectUnknownJob)
		RespondError(c, http.StatusNotFound, CodeNotFound, "resource not found")
		return
	}
	if !j.Status.AcceptsEvents() {
		h.metrics.RecordWebhookRejected(rejectJobStatus)
		RespondError(c, http.StatusConflict, CodeJobNotAccepting, "job is "+string(j.Status))
		return
	}

	payload, err := json.Marshal(webhookBody{Transactions: txs})
	if err != nil {
		respondError(c, log, err)
		return
	}

	if err := h.events.EnqueueEvent(c.Request.Context(), queue.WebhookEvent{
		JobType: jobType,
		JobID:   jobID,
		Payload: payload,
	}); err != nil {
		h.metrics.RecordWebhookRejected(rejectEnqueue)
		respondError(c, log, err)
		return
	}

	h.metrics.RecordWebhookReceived(string(jobType))
	log.Debug("Webhook event queued", slog.Int("transactions", len(txs)))
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Webhook received and queued for processing",
	})
}

// authorized compares the Authorization header with the shared secret in constant time.
func (h *WebhookHandler) authorized(got string) bool {
	if h.authHeader == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.authHeader)) == 1
}
