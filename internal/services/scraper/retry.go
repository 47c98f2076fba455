package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryPolicy defines the per-target retry behavior shared by the
// sequential and parallel extraction paths. Delays are fixed rather than
// exponential: a target either recovers within a few attempts or it is
// skipped and the run moves on.
type RetryPolicy struct {
	MaxAttempts    int
	Delay          time.Duration
	BlockedBackoff time.Duration // extra delay after a blocked/sorry page
}

// Execute runs fn up to MaxAttempts times, sleeping Delay between attempts
// and adding BlockedBackoff when the failure was a blocked-page signal.
// Returns nil on the first success, the last error once the budget is
// exhausted, and the context error if cancelled mid-wait.
func (p *RetryPolicy) Execute(ctx context.Context, logger arbor.ILogger, fn func(attempt int) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}

		// Cancellation is not retryable
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, ErrRunCancelled) {
			return lastErr
		}

		if attempt == p.MaxAttempts {
			break
		}

		wait := p.Delay
		if errors.Is(lastErr, errBlocked) {
			wait += p.BlockedBackoff
		}

		logger.Debug().
			Int("attempt", attempt).
			Int("max_attempts", p.MaxAttempts).
			Dur("wait", wait).
			Err(lastErr).
			Msg("Retrying after delay")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	logger.Warn().
		Int("max_attempts", p.MaxAttempts).
		Err(lastErr).
		Msg("All retry attempts exhausted")

	return lastErr
}
