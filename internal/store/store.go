package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pricehound/pricehound/pkg/models"
)

var (
	ErrNotFound     = errors.New("job not found")
	ErrDuplicateJob = errors.New("duplicate job id")
	ErrInvalidState = errors.New("invalid job state transition")
)

// JobStore is the registry of job records, the single source of truth for job
// lifecycle state. Implementations must be safe for concurrent use; each job's
// keyspace is disjoint, so no cross-job coordination is required of callers.
type JobStore interface {
	// Create inserts a new record. Fails with ErrDuplicateJob if the ID exists.
	Create(ctx context.Context, job *models.Job) error

	// Get returns a copy of the record, or ErrNotFound. Never panics for a
	// missing job; callers decide the response.
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)

	// UpdateStatus mutates Status (and optionally the error message) in place.
	// Transitions are validated atomically: a non-monotonic transition fails
	// with ErrInvalidState and leaves the record unchanged. A missing job is a
	// logged no-op, never an error — status updates must not crash the
	// orchestrator mid-run.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, opts ...UpdateOption) error

	// SetResults attaches the final result list. Called once per job, at
	// completion (or with partials on the failure path).
	SetResults(ctx context.Context, id uuid.UUID, results []models.Result) error
}

type updateParams struct {
	ErrorMessage *string
}

type UpdateOption func(*updateParams)

func WithErrorMessage(msg string) UpdateOption {
	return func(p *updateParams) {
		p.ErrorMessage = &msg
	}
}
