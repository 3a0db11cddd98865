// Package retry provides a bounded retry policy for store writes.
package retry

import (
	"context"
	"time"

	"github.com/ovelia/keepsake/internal/logging"
)

// Policy describes how many times an operation is attempted and how
// long to wait between attempts. The zero value performs exactly one
// attempt with no backoff.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Default is the policy applied to mutating store statements and
// metadata dual-writes: 3 attempts, 1s fixed backoff.
var Default = Policy{MaxAttempts: 3, Backoff: time.Second}

// attempts normalizes MaxAttempts so the zero value still runs once.
func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do runs fn until it succeeds, the attempt budget is exhausted, or the
// context is done. retryable gates which errors are worth another
// attempt; a nil retryable retries every error. The last error is
// returned after the final attempt.
func (p Policy) Do(ctx context.Context, op string, retryable func(error) bool, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.attempts(); attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == p.attempts() {
			break
		}

		logging.Warn("operation failed, retrying", logging.Fields{
			"op":      op,
			"attempt": attempt,
			"error":   lastErr.Error(),
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff):
		}
	}
	return lastErr
}
