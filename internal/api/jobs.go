package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/bookpkg"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobRequest is the body of POST /jobs.
type JobRequest struct {
	Book string `json:"book"`
}

// Job is an asynchronous package assembly.
type Job struct {
	ID          string          `json:"id"`
	Book        string          `json:"book"`
	Status      JobStatus       `json:"status"`
	Progress    int             `json:"progress"` // 0-100
	Result      *PackageSummary `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	CompletedAt string          `json:"completed_at,omitempty"`

	ctx    context.Context
	cancel context.CancelFunc
}

// JobStore keeps assembly jobs in memory.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewJobStore creates an empty job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job), now: time.Now}
}

func (s *JobStore) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// Create registers a pending job for book.
func (s *JobStore) Create(book string) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	now := s.stamp()
	job := &Job{
		ID:        uuid.New().String(),
		Book:      book,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		ctx:       ctx,
		cancel:    cancel,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return job
}

// Get returns a copy of the job.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns copies of every job, oldest first.
func (s *JobStore) List() []Job {
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// update applies a transition unless the job already finished.
func (s *JobStore) update(id string, status JobStatus, progress int, result *PackageSummary, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status.finished() {
		return
	}
	job.Status = status
	job.Progress = progress
	job.UpdatedAt = s.stamp()
	if result != nil {
		job.Result = result
	}
	if errMsg != "" {
		job.Error = errMsg
	}
	if status.finished() {
		job.CompletedAt = job.UpdatedAt
		job.cancel()
	}
}

// Cancel stops a pending or running job.
func (s *JobStore) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return errors.NewNotFound("job", id)
	}
	if job.Status.finished() {
		return errors.NewValidation("status", "job already "+string(job.Status))
	}
	job.cancel()
	job.Status = JobStatusCancelled
	job.UpdatedAt = s.stamp()
	job.CompletedAt = job.UpdatedAt
	return nil
}

// Run assembles the job's package in the background and reports progress
// on hub when it is not nil.
func (s *JobStore) Run(job *Job, assemble func(ctx context.Context, book string) (*bookpkg.Package, error), hub *Hub) {
	notify := func(kind, stage string, progress int, message string, data map[string]any) {
		if hub == nil {
			return
		}
		if data == nil {
			data = map[string]any{}
		}
		data["jobId"] = job.ID
		hub.Broadcast(ProgressMessage{Type: kind, Operation: "job", Stage: stage, Progress: progress, Message: message, Data: data})
	}

	go func() {
		s.update(job.ID, JobStatusRunning, 10, nil, "")
		notify("progress", string(JobStatusRunning), 10, "assembling "+job.Book, nil)

		pkg, err := assemble(job.ctx, job.Book)
		switch {
		case job.ctx.Err() != nil:
			s.update(job.ID, JobStatusCancelled, 0, nil, "cancelled")
			notify("error", string(JobStatusCancelled), 0, "job cancelled", nil)
		case err != nil:
			s.update(job.ID, JobStatusFailed, 100, nil, err.Error())
			notify("error", string(JobStatusFailed), 100, err.Error(), nil)
		default:
			summary := summarize(pkg)
			s.update(job.ID, JobStatusCompleted, 100, &summary, "")
			notify("complete", string(JobStatusCompleted), 100, job.Book+" assembled", map[string]any{"types": summary.Types})
		}
	}()
}
