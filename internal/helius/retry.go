package helius

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
)

// RetryPolicy bounds provider calls. The delay before attempt n+1 is BaseDelay*n.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// AttemptTimeout bounds each individual request.
	AttemptTimeout time.Duration
}

// Do runs fn until it succeeds, fails permanently or the attempts are used up.
// Any failure is returned as a *domain.ProvisioningError wrapping the last error.
func (r RetryPolicy) Do(ctx context.Context, op string, logger *slog.Logger, fn func(ctx context.Context) error) error {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = r.attempt(ctx, fn)
		if lastErr == nil {
			return nil
		}

		if !isTransient(lastErr) || ctx.Err() != nil {
			return &domain.ProvisioningError{Op: op, Attempts: attempt, Err: lastErr}
		}

		if attempt < attempts {
			delay := r.BaseDelay * time.Duration(attempt)
			logger.Warn("Webhook provider call failed, retrying",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", attempts),
				slog.Duration("retry_after", delay),
				slog.Any("error", lastErr),
			)
			select {
			case <-ctx.Done():
				return &domain.ProvisioningError{Op: op, Attempts: attempt, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}
	}

	logger.Error("Webhook provider call failed after all attempts",
		slog.String("op", op),
		slog.Int("attempts", attempts),
		slog.Any("error", lastErr),
	)
	return &domain.ProvisioningError{Op: op, Attempts: attempts, Err: lastErr}
}

func (r RetryPolicy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, r.AttemptTimeout)
	defer cancel()
	return fn(ctx)
}

// isTransient treats network failures, timeouts, 429 and 5xx as worth repeating.
func isTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return !domain.IsFatal(err) && !errors.Is(err, context.Canceled) && !errors.Is(err, errMalformedResponse)
}
