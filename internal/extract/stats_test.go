package extract

import (
	"math"
	"testing"
	"time"
)

func near(got, want float64) bool {
	return math.Abs(got-want) < 1e-6
}

// fakeClock returns a stats tracker whose clock the test moves by hand.
func fakeClock(window time.Duration) (*LLMStats, *time.Time) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewLLMStats(window)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestLLMStatsLatencyPercentiles(t *testing.T) {
	stats, _ := fakeClock(time.Hour)
	for _, ms := range []int{300, 100, 500, 200, 400} {
		stats.Record(time.Duration(ms)*time.Millisecond, OutcomeOK, 2)
	}

	snap := stats.Snapshot()
	if snap.Calls != 5 || snap.Points != 10 {
		t.Fatalf("expected 5 calls and 10 points, got %d and %d", snap.Calls, snap.Points)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if !near(snap.P50Ms, 300) || !near(snap.P95Ms, 480) || !near(snap.P99Ms, 496) {
		t.Fatalf("unexpected percentiles p50=%f p95=%f p99=%f", snap.P50Ms, snap.P95Ms, snap.P99Ms)
	}
}

func TestLLMStatsCountsOutcomes(t *testing.T) {
	stats, _ := fakeClock(time.Hour)
	stats.Record(time.Second, OutcomeOK, 3)
	stats.Record(time.Second, OutcomeServiceError, 0)
	stats.Record(time.Second, OutcomeParseError, 0)
	stats.Record(time.Second, OutcomeParseError, 0)

	snap := stats.Snapshot()
	if snap.Calls != 4 || snap.Failures != 1 || snap.ParseErrors != 2 || snap.Points != 3 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestLLMStatsWindowExpiry(t *testing.T) {
	stats, now := fakeClock(time.Minute)
	stats.Record(100*time.Millisecond, OutcomeOK, 1)

	*now = now.Add(2 * time.Minute)
	if snap := stats.Snapshot(); snap.Calls != 0 {
		t.Fatalf("expected the old call to expire, got %d calls", snap.Calls)
	}

	stats.Record(200*time.Millisecond, OutcomeOK, 1)
	snap := stats.Snapshot()
	if snap.Calls != 1 || snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected one fresh call of 200ms, got %+v", snap)
	}
}

func TestLLMStatsClampsNegativeLatency(t *testing.T) {
	stats, _ := fakeClock(time.Hour)
	stats.Record(-time.Second, OutcomeOK, 0)
	if snap := stats.Snapshot(); snap.Calls != 1 || snap.MaxMs != 0 {
		t.Fatalf("expected one call clamped to 0ms, got %+v", snap)
	}
}

func TestQuantileEdges(t *testing.T) {
	if q := quantile(nil, 0.5); q != 0 {
		t.Errorf("empty: got %f", q)
	}
	one := []int64{7}
	if quantile(one, 0.99) != 7 || quantile(one, 0) != 7 || quantile(one, 1) != 7 {
		t.Error("single value should be every quantile")
	}
}
