package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pricehound/pricehound/pkg/models"
)

// legalTransitions encodes the lifecycle state machine:
// uploaded -> processing -> completed | failed. Terminal states are absorbing.
var legalTransitions = map[string]map[string]bool{
	models.JobStatusUploaded: {
		models.JobStatusProcessing: true,
	},
	models.JobStatusProcessing: {
		models.JobStatusCompleted: true,
		models.JobStatusFailed:    true,
	},
}

// MemoryStore implements JobStore with an in-process map. Job records are
// volatile: they live for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.Job
}

// NewMemoryStore creates an empty in-memory job registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[uuid.UUID]*models.Job)}
}

func (s *MemoryStore) Create(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return ErrDuplicateJob
	}

	cp := cloneJob(job)
	s.jobs[job.ID] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, status string, opts ...UpdateOption) error {
	var params updateParams
	for _, opt := range opts {
		opt(&params)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		slog.Warn("status update for unknown job ignored", "job_id", id, "status", status)
		return nil
	}

	if !legalTransitions[job.Status][status] {
		return ErrInvalidState
	}

	job.Status = status
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) SetResults(_ context.Context, id uuid.UUID, results []models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		slog.Warn("results for unknown job ignored", "job_id", id, "count", len(results))
		return nil
	}

	job.Results = append([]models.Result(nil), results...)
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// cloneJob copies a record so callers never share slices with the registry.
func cloneJob(j *models.Job) *models.Job {
	cp := *j
	cp.Stores = append([]models.Store(nil), j.Stores...)
	cp.Products = append([]models.Product(nil), j.Products...)
	if j.Results != nil {
		cp.Results = append([]models.Result(nil), j.Results...)
	}
	return &cp
}

// Compile-time check that MemoryStore implements JobStore.
var _ JobStore = (*MemoryStore)(nil)
