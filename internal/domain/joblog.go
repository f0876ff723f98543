package domain

import (
	"encoding/json"
	"time"
)

// LogLevel is the severity of a job log entry.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// JobLog is one append-only audit entry for a job.
type JobLog struct {
	ID        int64           `json:"id"`
	JobID     string          `json:"job_id"`
	LogLevel  LogLevel        `json:"log_level"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Default and maximum number of log entries returned by a single query.
const (
	DefaultLogLimit = 100
	MaxLogLimit     = 1000
)

// ClampLogLimit bounds a caller-supplied limit.
func ClampLogLimit(limit int) int {
	if limit <= 0 {
		return DefaultLogLimit
	}
	if limit > MaxLogLimit {
		return MaxLogLimit
	}
	return limit
}
