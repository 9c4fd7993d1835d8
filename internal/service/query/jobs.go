package query

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"duck-connect/internal/domain"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

// Job states. Every state but JobRunning is terminal.
const (
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
)

// IsTerminal reports whether the job has stopped.
func (s JobStatus) IsTerminal() bool { return s != JobRunning }

// CreateJobRequest submits an INSERT ... SELECT that runs in the
// background until its source is exhausted or the job is dropped.
type CreateJobRequest struct {
	Name        string `json:"name"`
	IfNotExists bool   `json:"if_not_exists,omitempty"`
	InsertSelectRequest
}

// Job describes a submitted job.
type Job struct {
	Name        string     `json:"name"`
	Table       string     `json:"table"`
	Source      string     `json:"source"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	RowsWritten int64      `json:"rows_written"`
	SubmittedAt time.Time  `json:"submitted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type jobEntry struct {
	job       Job
	rows      *atomic.Int64
	cancel    context.CancelFunc
	cancelled bool
	done      chan struct{}
}

// snapshot must be called with the manager lock held.
func (e *jobEntry) snapshot() Job {
	j := e.job
	j.RowsWritten = e.rows.Load()
	return j
}

// JobManager runs named jobs on the query service's executor. Jobs are
// detached from the request that submitted them. A name is unique among
// running jobs; a terminated job's name can be reused.
type JobManager struct {
	svc    *Service
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*jobEntry
}

// NewJobManager creates a JobManager.
func NewJobManager(svc *Service, logger *slog.Logger) *JobManager {
	return &JobManager{
		svc:    svc,
		logger: logger.With("component", "jobs"),
		jobs:   make(map[string]*jobEntry),
	}
}

// Submit plans and starts a job. It reports false when IfNotExists is set
// and a running job already has the name.
func (m *JobManager) Submit(ctx context.Context, req CreateJobRequest) (bool, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return false, domain.ErrValidation("job name is required")
	}
	plan, err := m.svc.planInsertSelect(ctx, req.InsertSelectRequest)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	if prev, ok := m.jobs[name]; ok && !prev.job.Status.IsTerminal() {
		m.mu.Unlock()
		if req.IfNotExists {
			m.logger.Debug("job exists, skipping", "job", name)
			return false, nil
		}
		return false, domain.ErrConflict("Another active job with equal name (%s) exists", name)
	}
	jobCtx, cancel := context.WithCancel(context.Background())
	entry := &jobEntry{
		job: Job{
			Name:        name,
			Table:       req.Table,
			Source:      req.Source,
			Status:      JobRunning,
			SubmittedAt: time.Now().UTC(),
		},
		rows:   plan.rows,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.jobs[name] = entry
	m.mu.Unlock()

	m.logger.Info("job submitted", "job", name, "table", req.Table, "source", req.Source, "stream", plan.stream)
	go m.run(jobCtx, entry, plan)
	return true, nil
}

func (m *JobManager) run(ctx context.Context, entry *jobEntry, plan *insertSelectPlan) {
	defer close(entry.done)
	defer entry.cancel()
	err := m.svc.executor.Run(ctx, plan.dag)

	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	entry.job.CompletedAt = &now
	switch {
	case entry.cancelled:
		entry.job.Status = JobCancelled
	case err != nil:
		entry.job.Status = JobFailed
		entry.job.Error = err.Error()
	default:
		entry.job.Status = JobCompleted
	}
	m.logger.Info("job finished", "job", entry.job.Name, "status", entry.job.Status, "rows", entry.rows.Load(), "error", err)
}

// Cancel stops a running job and waits for it to wind down. A job that is
// unknown or already terminated is an error unless ifExists is set.
func (m *JobManager) Cancel(ctx context.Context, name string, ifExists bool) error {
	m.mu.Lock()
	entry, ok := m.jobs[name]
	if !ok || entry.job.Status.IsTerminal() {
		m.mu.Unlock()
		if ifExists {
			return nil
		}
		return domain.ErrNotFound("Job doesn't exist or already terminated: %s", name)
	}
	entry.cancelled = true
	entry.cancel()
	m.mu.Unlock()

	select {
	case <-entry.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the named job.
func (m *JobManager) Get(name string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.jobs[name]
	if !ok {
		return nil, domain.ErrNotFound("job %q not found", name)
	}
	j := entry.snapshot()
	return &j, nil
}

// List returns every known job in submission order.
func (m *JobManager) List() []Job {
	m.mu.Lock()
	out := make([]Job, 0, len(m.jobs))
	for _, e := range m.jobs {
		out = append(out, e.snapshot())
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Shutdown cancels every running job and waits for them to stop.
func (m *JobManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	var running []*jobEntry
	for _, e := range m.jobs {
		if !e.job.Status.IsTerminal() {
			e.cancelled = true
			e.cancel()
			running = append(running, e)
		}
	}
	m.mu.Unlock()

	for _, e := range running {
		select {
		case <-e.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
