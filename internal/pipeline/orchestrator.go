package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Runner executes one highlight run.
type Runner interface {
	RunWith(ctx context.Context, src, dst string, opts Options, progress ProgressFunc) (*Result, error)
	Options() Options
}

// Orchestrator queues highlight jobs and runs them one at a time.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	runner Runner
	log    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu      sync.Mutex // guards stopped and sends on queue
	stopped bool
}

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("orchestrator stopped")

// NewOrchestrator creates the queue. Call Start to begin processing.
func NewOrchestrator(runner Runner, queueSize int, jobTTL time.Duration, log *slog.Logger) *Orchestrator {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Orchestrator{
		jobs:   NewJobStore(jobTTL),
		queue:  make(chan *Job, queueSize),
		runner: runner,
		log:    log,
	}
}

// Start launches the worker and the job cleanup loop. There is exactly one
// worker so runs never overlap.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case <-workerCtx.Done():
				return
			case job, ok := <-o.queue:
				if !ok {
					return
				}
				o.process(workerCtx, job)
			}
		}
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	o.once.Do(func() {
		o.mu.Lock()
		o.stopped = true
		close(o.queue)
		o.mu.Unlock()

		if o.cancel != nil {
			o.cancel()
		}
		o.wg.Wait()
	})
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "stopped")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", cap(o.queue))
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

func (o *Orchestrator) process(ctx context.Context, job *Job) {
	log := o.log.With("job_id", job.ID, "filename", job.Filename)

	opts := o.runner.Options()
	if job.MaxTokens > 0 {
		opts.MaxTokens = job.MaxTokens
	}

	log.Info("job started", "max_tokens", opts.MaxTokens)
	res, err := o.runner.RunWith(ctx, job.SrcPath, job.OutPath, opts, job.Observe)
	if err != nil {
		log.Error("job failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, phaseOf(err))
		return
	}
	job.Complete(res)
	log.Info("job completed", "highlights", res.Annotation.Highlights)
}

func phaseOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return string(se.Stage)
	}
	return "failed"
}
