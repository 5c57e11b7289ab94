package pipeline

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a highlight job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusChunking   JobStatus = "chunking"
	StatusPoints     JobStatus = "points"
	StatusAnnotating JobStatus = "annotating"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks the state of a single highlight run.
type Job struct {
	mu sync.Mutex

	ID string `json:"job_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	Dir       string // working directory owned by the job
	SrcPath   string
	OutPath   string
	MaxTokens int
	result    *Result
	errors    []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalChunks     int      `json:"total_chunks"`
	ChunksProcessed int      `json:"chunks_processed"`
	Page            int      `json:"page"`
	TotalPages      int      `json:"total_pages"`
	Sentences       int      `json:"sentences"`
	Highlights      int      `json:"highlights"`
	Errors          []string `json:"errors"`
}

// NewJob returns a queued job with a fresh id.
func NewJob(filename string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs and their working directories.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			if job.Dir != "" {
				os.RemoveAll(job.Dir)
			}
			delete(s.jobs, id)
		}
	}
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// Observe folds a pipeline progress event into the job state.
func (j *Job) Observe(ev Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch ev.Stage {
	case StageExtract:
		j.Status, j.Phase = StatusExtracting, "extracting text"
	case StageChunk:
		j.Status, j.Phase = StatusChunking, "chunking"
	case StagePoints:
		j.Status = StatusPoints
		j.Phase = fmt.Sprintf("chunk %d of %d", ev.Chunk, ev.TotalChunks)
		j.Progress.TotalChunks = ev.TotalChunks
		j.Progress.ChunksProcessed = ev.Chunk - 1
	case StageAnnotate:
		j.Status = StatusAnnotating
		j.Progress.ChunksProcessed = j.Progress.TotalChunks
		if ev.TotalPages > 0 {
			j.Phase = fmt.Sprintf("highlighting page %d of %d", ev.Page, ev.TotalPages)
			j.Progress.Page = ev.Page
			j.Progress.TotalPages = ev.TotalPages
		} else {
			j.Phase = "highlighting"
		}
	}
	j.UpdatedAt = time.Now()
}

// Complete stores the run result and marks the job completed.
func (j *Job) Complete(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.Status = StatusCompleted
	j.Phase = "done"
	j.Progress.Sentences = len(res.Sentences)
	if res.Annotation != nil {
		j.Progress.Highlights = res.Annotation.Highlights
		j.Progress.TotalPages = res.Annotation.Pages
		j.Progress.Page = res.Annotation.Pages
	}
	j.Progress.TotalChunks = res.Chunks
	j.Progress.ChunksProcessed = res.Chunks
	j.UpdatedAt = time.Now()
}

// Result returns the run result, or nil before completion.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash,omitempty"`
	Progress    Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = make([]string, len(j.errors))
	copy(p.Errors, j.errors)
	return JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		ContentHash: j.ContentHash,
		Progress:    p,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
