package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/progbudget/import-recon-backend/internal/application/importer"
	"github.com/progbudget/import-recon-backend/internal/domain/rowparse"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

// JobStatus is the lifecycle state of an async import job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// ImportJob tracks one background import or replace operation. Session
// counters carry the row-level progress; the job carries the
// operation-level outcome.
type ImportJob struct {
	ID          string     `json:"id"`
	ProgramID   string     `json:"program_id"`
	SessionID   string     `json:"session_id"`
	Replace     bool       `json:"replace"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	cancel context.CancelFunc
}

// ImportService runs imports asynchronously. Imports against the same
// program are serialized behind a per-program lock: two concurrent
// imports could otherwise bind the same ledger entry twice or classify
// duplicates against a stale snapshot.
type ImportService struct {
	pipeline *importer.Pipeline
	logger   *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*ImportJob

	lockMu       sync.Mutex
	programLocks map[string]*sync.Mutex
}

// NewImportService creates the async import coordinator
func NewImportService(pipeline *importer.Pipeline, logger *slog.Logger) *ImportService {
	return &ImportService{
		pipeline:     pipeline,
		logger:       logger,
		jobs:         make(map[string]*ImportJob),
		programLocks: make(map[string]*sync.Mutex),
	}
}

// StartImport launches a background import of rows into an existing
// pending session. Returns immediately with a job to poll.
func (s *ImportService) StartImport(programID, sessionID string, rows []rowparse.Row) *ImportJob {
	ctx, cancel := context.WithCancel(context.Background())
	job := s.newJob(programID, sessionID, false, cancel)

	go s.run(ctx, job, func(ctx context.Context) error {
		_, err := s.pipeline.ProcessFile(ctx, sessionID, rows)
		return err
	})

	return s.snapshot(job.ID)
}

// StartReplace launches a background session replacement
func (s *ImportService) StartReplace(programID, oldSessionID, filename string, mapping rowparse.ColumnMapping, rows []rowparse.Row, opts importer.ReplaceOptions) *ImportJob {
	ctx, cancel := context.WithCancel(context.Background())
	job := s.newJob(programID, oldSessionID, true, cancel)

	go s.run(ctx, job, func(ctx context.Context) error {
		newSess, err := s.pipeline.ReplaceSession(ctx, oldSessionID, filename, mapping, rows, opts)
		if newSess != nil {
			s.mu.Lock()
			job.SessionID = newSess.ID
			s.mu.Unlock()
		}
		return err
	})

	return s.snapshot(job.ID)
}

// newJob publishes a fully initialized job. The cancel func must be
// set before the job lands in the map, where other goroutines copy it.
func (s *ImportService) newJob(programID, sessionID string, replace bool, cancel context.CancelFunc) *ImportJob {
	job := &ImportJob{
		ID:        uuid.NewString(),
		ProgramID: programID,
		SessionID: sessionID,
		Replace:   replace,
		Status:    JobPending,
		StartedAt: time.Now().UTC(),
		cancel:    cancel,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job
}

// run executes the job body under the program's import lock
func (s *ImportService) run(ctx context.Context, job *ImportJob, body func(context.Context) error) {
	lock := s.programLock(job.ProgramID)
	lock.Lock()
	defer lock.Unlock()

	s.setStatus(job, JobRunning, "")

	err := body(ctx)
	switch {
	case err == nil:
		s.setStatus(job, JobCompleted, "")
	case ctx.Err() != nil:
		s.setStatus(job, JobCancelled, err.Error())
	default:
		s.logger.Error("import job failed",
			"job_id", job.ID,
			"session_id", job.SessionID,
			"error", err)
		s.setStatus(job, JobFailed, err.Error())
	}
}

func (s *ImportService) programLock(programID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.programLocks[programID]
	if !ok {
		lock = &sync.Mutex{}
		s.programLocks[programID] = lock
	}
	return lock
}

func (s *ImportService) setStatus(job *ImportJob, status JobStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.Status = status
	job.Error = errMsg
	if status == JobCompleted || status == JobFailed || status == JobCancelled {
		now := time.Now().UTC()
		job.CompletedAt = &now
	}
}

// GetJob returns a copy of the job, or nil if unknown
func (s *ImportService) GetJob(id string) *ImportJob {
	return s.snapshot(id)
}

// ListJobs returns copies of all tracked jobs, newest first
func (s *ImportService) ListJobs() []*ImportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]*ImportJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		copied := *job
		copied.cancel = nil
		jobs = append(jobs, &copied)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.After(jobs[j].StartedAt) })
	return jobs
}

// CancelJob requests cancellation of a running job and marks the
// underlying session cancelled. Finished jobs cannot be cancelled.
func (s *ImportService) CancelJob(id string) error {
	s.mu.RLock()
	job, ok := s.jobs[id]
	var status JobStatus
	var cancel context.CancelFunc
	if ok {
		status = job.Status
		cancel = job.cancel
	}
	s.mu.RUnlock()

	if !ok {
		return storage.ErrNotFound
	}
	if status != JobPending && status != JobRunning {
		return fmt.Errorf("job %s is already %s", id, status)
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

// SweepStaleJobs drops finished jobs older than maxAge from the map
func (s *ImportService) SweepStaleJobs(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs SweepStaleJobs periodically until ctx is done
func (s *ImportService) StartSweeper(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.SweepStaleJobs(maxAge); n > 0 {
					s.logger.Debug("swept stale import jobs", "removed", n)
				}
			}
		}
	}()
}

func (s *ImportService) snapshot(id string) *ImportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	copied := *job
	copied.cancel = nil
	return &copied
}
