package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a connection or job does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrConnectionTestFailed is returned when a tenant database cannot be reached with the supplied credentials.
	ErrConnectionTestFailed = errors.New("could not connect to database with provided credentials")

	// ErrCrypto is returned when the vault cannot seal or open a secret.
	ErrCrypto = errors.New("credential vault error")

	// ErrInvalidTransition is returned when a status change is not allowed by the job state machine.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error for field
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ProvisioningError wraps the last error of an exhausted webhook provisioning attempt.
type ProvisioningError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("webhook %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// FatalError marks a failure that no amount of redelivery can fix,
// such as a payload for an unknown job type.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return "fatal error: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatalError creates a new fatal error
func NewFatalError(err error) error {
	return &FatalError{Err: err}
}

// IsFatal reports whether err must not be retried.
// Validation errors are always fatal.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe) || IsValidation(err)
}

// IsRetryable reports whether err, or anything it wraps, is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
