package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pricehound/pricehound/internal/api/response"
	"github.com/pricehound/pricehound/internal/scrape"
	"github.com/pricehound/pricehound/internal/store"
	"github.com/pricehound/pricehound/pkg/models"
)

// JobStarter launches processing of an uploaded job.
type JobStarter interface {
	Start(ctx context.Context, jobID uuid.UUID) error
}

// NewStartJobHandler returns the handler for POST /api/v1/jobs/{jobID}/start.
func NewStartJobHandler(starter JobStarter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		if err := starter.Start(r.Context(), jobID); err != nil {
			switch {
			case errors.Is(err, scrape.ErrJobNotFound):
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND",
					"No job with this ID", nil)
			case errors.Is(err, scrape.ErrInvalidJobState):
				response.Error(w, http.StatusConflict, "INVALID_JOB_STATE",
					"Job is already processing or finished", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to start job", nil)
			}
			return
		}

		response.Accepted(w, map[string]any{
			"job_id": jobID.String(),
			"status": models.JobStatusProcessing,
		})
	}
}

// NewJobStatusHandler returns the handler for GET /api/v1/jobs/{jobID}.
func NewJobStatusHandler(jobs store.JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := fetchJob(w, r, jobs)
		if !ok {
			return
		}
		response.JSON(w, job.Snapshot())
	}
}

// NewJobResultsHandler returns the handler for GET /api/v1/jobs/{jobID}/results.
// Completed jobs return the frozen result list; failed jobs return the error
// together with whatever partial results survived; anything earlier is a 409.
func NewJobResultsHandler(jobs store.JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := fetchJob(w, r, jobs)
		if !ok {
			return
		}

		switch job.Status {
		case models.JobStatusCompleted:
			response.JSON(w, map[string]any{
				"job_id":  job.ID.String(),
				"status":  job.Status,
				"results": job.Results,
			})
		case models.JobStatusFailed:
			response.JSON(w, map[string]any{
				"job_id":  job.ID.String(),
				"status":  job.Status,
				"error":   job.ErrorMessage,
				"results": job.Results,
			})
		default:
			response.Error(w, http.StatusConflict, "JOB_NOT_FINISHED",
				"Results are available once the job reaches a terminal state", nil)
		}
	}
}

// jobIDParam parses the {jobID} route parameter, writing a 400 on failure.
func jobIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			"jobID must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func fetchJob(w http.ResponseWriter, r *http.Request, jobs store.JobStore) (*models.Job, bool) {
	jobID, ok := jobIDParam(w, r)
	if !ok {
		return nil, false
	}

	job, err := jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND",
				"No job with this ID", nil)
		} else {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load job", nil)
		}
		return nil, false
	}
	return job, true
}
