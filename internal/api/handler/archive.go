package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/pricehound/pricehound/internal/api/response"
	"github.com/pricehound/pricehound/internal/archive"
	"github.com/pricehound/pricehound/pkg/models"
)

const defaultArchiveLimit = 20

// NewListArchiveHandler returns the handler for GET /api/v1/archive/jobs.
func NewListArchiveHandler(arc archive.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultArchiveLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be a positive integer", nil)
				return
			}
			limit = n
		}

		jobs, err := arc.ListJobs(r.Context(), limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list archived jobs", nil)
			return
		}
		if jobs == nil {
			jobs = []*models.ArchivedJob{}
		}

		response.Collection(w, jobs, response.ListMeta{Limit: limit, Count: len(jobs)})
	}
}

// NewGetArchiveHandler returns the handler for GET /api/v1/archive/jobs/{jobID}.
func NewGetArchiveHandler(arc archive.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		job, results, err := arc.GetJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, archive.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND",
					"No archived job with this ID", nil)
			} else {
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to load archived job", nil)
			}
			return
		}

		response.JSON(w, map[string]any{
			"job":     job,
			"results": results,
		})
	}
}
