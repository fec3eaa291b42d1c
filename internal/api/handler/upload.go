package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pricehound/pricehound/internal/api/response"
	"github.com/pricehound/pricehound/internal/ingest"
	"github.com/pricehound/pricehound/internal/store"
	"github.com/pricehound/pricehound/pkg/models"
)

const maxUploadBytes = 10 << 20 // both CSVs together

// NewUploadHandler returns the handler for POST /api/v1/jobs. It expects a
// multipart form with a "stores" CSV and a "products" CSV, validates both,
// and registers a new job in the uploaded state.
func NewUploadHandler(jobs store.JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Request must be a multipart form with stores and products files", nil)
			return
		}

		stores, err := parseUploadPart(r, "stores", ingest.ParseStores)
		if err != nil {
			response.Error(w, http.StatusUnprocessableEntity, "INVALID_CSV", err.Error(), nil)
			return
		}

		products, err := parseUploadPart(r, "products", ingest.ParseProducts)
		if err != nil {
			response.Error(w, http.StatusUnprocessableEntity, "INVALID_CSV", err.Error(), nil)
			return
		}

		now := time.Now().UTC()
		job := &models.Job{
			ID:        uuid.New(),
			Stores:    stores,
			Products:  products,
			Status:    models.JobStatusUploaded,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := jobs.Create(r.Context(), job); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to register job", nil)
			return
		}

		response.Created(w, job.Snapshot())
	}
}

// parseUploadPart pulls one named file out of the form and runs the parser.
func parseUploadPart[T any](r *http.Request, field string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("missing %q file", field)
	}
	defer file.Close()

	rows, err := parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return rows, nil
}
