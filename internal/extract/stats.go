package extract

import (
	"slices"
	"sync"
	"time"
)

// Outcome classifies one completion call.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeServiceError Outcome = "service_error"
	OutcomeParseError   Outcome = "parse_error"
)

type call struct {
	at      time.Time
	latency time.Duration
	outcome Outcome
	points  int
}

// StatsSnapshot aggregates the calls inside the window. Latencies cover
// every call whatever its outcome.
type StatsSnapshot struct {
	Calls       int     `json:"calls"`
	Failures    int     `json:"failures"`
	ParseErrors int     `json:"parse_errors"`
	Points      int     `json:"points"`
	MinMs       int64   `json:"min_ms"`
	MaxMs       int64   `json:"max_ms"`
	AvgMs       float64 `json:"avg_ms"`
	P50Ms       float64 `json:"p50_ms"`
	P95Ms       float64 `json:"p95_ms"`
	P99Ms       float64 `json:"p99_ms"`
}

// LLMStats keeps the completion calls of a rolling window.
type LLMStats struct {
	mu     sync.Mutex
	calls  []call
	window time.Duration
	now    func() time.Time
}

func NewLLMStats(window time.Duration) *LLMStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LLMStats{
		calls:  make([]call, 0, 256),
		window: window,
		now:    time.Now,
	}
}

// Record adds one call. points is the number of sentences the reply held.
func (s *LLMStats) Record(latency time.Duration, outcome Outcome, points int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(now)
	s.calls = append(s.calls, call{
		at:      now,
		latency: max(latency, 0),
		outcome: outcome,
		points:  points,
	})
}

func (s *LLMStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(s.now())
	if len(s.calls) == 0 {
		return StatsSnapshot{}
	}

	var snap StatsSnapshot
	ms := make([]int64, 0, len(s.calls))
	var sum int64
	for _, c := range s.calls {
		switch c.outcome {
		case OutcomeServiceError:
			snap.Failures++
		case OutcomeParseError:
			snap.ParseErrors++
		}
		snap.Points += c.points
		v := c.latency.Milliseconds()
		ms = append(ms, v)
		sum += v
	}
	slices.Sort(ms)

	snap.Calls = len(ms)
	snap.MinMs = ms[0]
	snap.MaxMs = ms[len(ms)-1]
	snap.AvgMs = float64(sum) / float64(len(ms))
	snap.P50Ms = quantile(ms, 0.50)
	snap.P95Ms = quantile(ms, 0.95)
	snap.P99Ms = quantile(ms, 0.99)
	return snap
}

func (s *LLMStats) expireLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	s.calls = slices.DeleteFunc(s.calls, func(c call) bool {
		return c.at.Before(cutoff)
	})
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []int64, q float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case q <= 0:
		return float64(sorted[0])
	case q >= 1:
		return float64(sorted[len(sorted)-1])
	}
	pos := float64(len(sorted)-1) * q
	lo := int(pos)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := pos - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
}
