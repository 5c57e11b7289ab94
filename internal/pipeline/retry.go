package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/highlighter/internal/doctree"
	"github.com/dgallion1/highlighter/internal/extract"
)

const (
	maxBackoff    = 30 * time.Second
	maxRetryAfter = 2 * time.Minute
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	return extract.IsRetryable(err)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := min(time.Duration(1<<uint(min(attempt, 16)))*time.Second, maxBackoff)
	return base + time.Duration(rand.Int64N(int64(base)/2))
}

// retryDelay prefers the service's Retry-After hint, capped, over the
// computed backoff.
func retryDelay(err error, attempt int, backoff func(int) time.Duration) time.Duration {
	var svcErr *extract.ServiceError
	if errors.As(err, &svcErr) && svcErr.RetryAfter > 0 {
		return min(svcErr.RetryAfter, maxRetryAfter)
	}
	return backoff(attempt)
}

func (p *Pipeline) extractWithRetry(ctx context.Context, log *slog.Logger, chunk doctree.Chunk, maxRetries int) ([]string, error) {
	for attempt := 0; ; attempt++ {
		points, err := p.points.Extract(ctx, chunk)
		if err == nil || attempt >= maxRetries || !IsRetryable(err) {
			return points, err
		}
		delay := retryDelay(err, attempt, p.backoff)
		log.Warn("retryable extraction error", "chunk", chunk.Index, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
