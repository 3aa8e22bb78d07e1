package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// MaxRetries bounds attempts per call, transient errors only.
const MaxRetries = 3

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// CompleteWithRetry wraps Client.Complete with bounded retries on
// transient errors.
func CompleteWithRetry(ctx context.Context, c Client, prompt string) (string, error) {
	var out string
	var lastErr error
	for attempt := range MaxRetries {
		out, lastErr = c.Complete(ctx, prompt)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return out, lastErr
}
