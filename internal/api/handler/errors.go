package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
)

// Stable error codes returned in the envelope.
const (
	CodeValidation           = "validation_error"
	CodeConnectionTestFailed = "connection_test_failed"
	CodeNotFound             = "not_found"
	CodeInvalidTransition    = "invalid_transition"
	CodeUnauthorized         = "unauthorized"
	CodeJobNotAccepting      = "job_not_accepting_events"
	CodeInternal             = "internal_error"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes the error envelope with an explicit status and code.
func RespondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{Code: code, Message: message},
	})
}

// respondError maps a service error onto its HTTP status.
// Unclassified errors are logged and reported without detail.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		RespondError(c, http.StatusBadRequest, CodeValidation, verr.Error())
	case errors.Is(err, domain.ErrConnectionTestFailed):
		RespondError(c, http.StatusBadRequest, CodeConnectionTestFailed, domain.ErrConnectionTestFailed.Error())
	case errors.Is(err, domain.ErrNotFound):
		RespondError(c, http.StatusNotFound, CodeNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		RespondError(c, http.StatusConflict, CodeInvalidTransition, err.Error())
	default:
		logger.Error("Request failed",
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
		RespondError(c, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

func ownerID(c *gin.Context) string {
	return c.GetString(OwnerKey)
}

// validID rejects path ids that are not UUIDs before they reach the store.
func validID(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		RespondError(c, http.StatusBadRequest, CodeValidation, name+" must be a valid UUID")
		return "", false
	}
	return id, true
}
