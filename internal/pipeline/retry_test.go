package pipeline

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dgallion1/highlighter/internal/extract"
)

func TestBackoffBounds(t *testing.T) {
	for attempt := 0; attempt < 40; attempt++ {
		d := Backoff(attempt)
		base := min(time.Duration(1<<uint(min(attempt, 16)))*time.Second, maxBackoff)
		if d < base || d >= base+base/2 {
			t.Fatalf("attempt %d: %v outside [%v, %v)", attempt, d, base, base+base/2)
		}
	}
}

func TestRetryDelay(t *testing.T) {
	fixed := func(int) time.Duration { return time.Second }

	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"no hint", &extract.ServiceError{StatusCode: 503}, time.Second},
		{"hint", &extract.ServiceError{StatusCode: 429, RetryAfter: 7 * time.Second}, 7 * time.Second},
		{"wrapped hint", fmt.Errorf("points: %w", &extract.ServiceError{StatusCode: 429, RetryAfter: 3 * time.Second}), 3 * time.Second},
		{"capped hint", &extract.ServiceError{StatusCode: 429, RetryAfter: time.Hour}, maxRetryAfter},
		{"plain error", errors.New("boom"), time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryDelay(tt.err, 0, fixed); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
