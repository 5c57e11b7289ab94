package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/highlighter/internal/annotate"
)

// fakeRunner records concurrency and the options each run received.
type fakeRunner struct {
	mu      sync.Mutex
	running int
	maxSeen int
	budgets []int
	fail    bool
	release chan struct{}
}

func (f *fakeRunner) Options() Options { return Options{MaxTokens: 3500} }

func (f *fakeRunner) RunWith(ctx context.Context, src, dst string, opts Options, progress ProgressFunc) (*Result, error) {
	f.mu.Lock()
	f.running++
	f.maxSeen = max(f.maxSeen, f.running)
	f.budgets = append(f.budgets, opts.MaxTokens)
	f.mu.Unlock()

	progress(Event{Stage: StageExtract})
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	f.running--
	f.mu.Unlock()

	if f.fail {
		return nil, &StageError{Stage: StagePoints, Chunk: 0, Err: errors.New("boom")}
	}
	return &Result{Source: src, Output: dst, Annotation: &annotate.Result{Highlights: 1}}, nil
}

func waitFor(t *testing.T, job *Job, status JobStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job.Snapshot().Status == status {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s: timed out waiting for %q, last %q", job.ID, status, job.Snapshot().Status)
}

func TestOrchestrator_RunsJobsOneAtATime(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	o := NewOrchestrator(runner, 10, time.Hour, discardLogger())
	o.Start(context.Background())
	defer o.Stop()

	var jobs []*Job
	for i := range 3 {
		job := NewJob("paper.pdf")
		if i == 1 {
			job.MaxTokens = 2000
		}
		if err := o.Submit(job); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		jobs = append(jobs, job)
	}
	for range jobs {
		runner.release <- struct{}{}
	}
	for _, job := range jobs {
		waitFor(t, job, StatusCompleted)
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.maxSeen != 1 {
		t.Errorf("expected at most one concurrent run, saw %d", runner.maxSeen)
	}
	if len(runner.budgets) != 3 || runner.budgets[1] != 2000 || runner.budgets[0] != 3500 {
		t.Errorf("unexpected budgets %v", runner.budgets)
	}
	if o.GetJob(jobs[0].ID) != jobs[0] {
		t.Error("expected job lookup by id")
	}
}

func TestOrchestrator_FailedJob(t *testing.T) {
	o := NewOrchestrator(&fakeRunner{fail: true}, 1, time.Hour, discardLogger())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("paper.pdf")
	if err := o.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, job, StatusFailed)

	snap := job.Snapshot()
	if snap.Phase != string(StagePoints) {
		t.Errorf("expected phase %q, got %q", StagePoints, snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("expected 1 error, got %v", snap.Progress.Errors)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	// Not started, so nothing drains the queue.
	o := NewOrchestrator(&fakeRunner{}, 1, time.Hour, discardLogger())

	if err := o.Submit(NewJob("a.pdf")); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	job := NewJob("b.pdf")
	if err := o.Submit(job); err == nil {
		t.Fatal("expected queue full error")
	}
	if job.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", job.Snapshot().Status)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	o := NewOrchestrator(&fakeRunner{}, 1, time.Hour, discardLogger())
	o.Start(context.Background())
	o.Stop()

	job := NewJob("late.pdf")
	if err := o.Submit(job); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if job.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", job.Snapshot().Status)
	}
	// A second Stop is a no-op.
	o.Stop()
}
