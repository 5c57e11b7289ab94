package extract

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// ResponseParseError reports a completion whose text is not a list of
// strings.
type ResponseParseError struct {
	Raw string
	Err error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("parse model reply: %v (raw: %s)", e.Err, truncate(e.Raw, 200))
}

func (e *ResponseParseError) Unwrap() error { return e.Err }

// ServiceError reports a failed call to a completion service: transport,
// authentication, quota, or a non-success HTTP status.
type ServiceError struct {
	Provider   string
	StatusCode int           // 0 when no HTTP response was received
	RetryAfter time.Duration // server hint from a Retry-After header, if any
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether the call may succeed if repeated: rate limits,
// server errors and timeouts.
func (e *ServiceError) Retryable() bool {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500 {
		return true
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// IsRetryable reports whether err wraps a retryable ServiceError.
func IsRetryable(err error) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Retryable()
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date. It returns 0 when the header is absent or unusable.
func ParseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return max(time.Duration(secs)*time.Second, 0)
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(t.Sub(now), 0)
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
