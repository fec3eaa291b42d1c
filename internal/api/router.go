package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/pricehound/pricehound/internal/api/middleware"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	UploadHandler     http.HandlerFunc
	StartJobHandler   http.HandlerFunc
	JobStatusHandler  http.HandlerFunc
	JobResultsHandler http.HandlerFunc
	JobEventsHandler  http.HandlerFunc

	ListArchiveHandler http.HandlerFunc
	GetArchiveHandler  http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", deps.HealthHandler)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/jobs", deps.UploadHandler)
		r.Post("/api/v1/jobs/{jobID}/start", deps.StartJobHandler)
		r.Get("/api/v1/jobs/{jobID}", deps.JobStatusHandler)
		r.Get("/api/v1/jobs/{jobID}/results", deps.JobResultsHandler)
		r.Get("/api/v1/jobs/{jobID}/events", deps.JobEventsHandler)

		r.Get("/api/v1/archive/jobs", deps.ListArchiveHandler)
		r.Get("/api/v1/archive/jobs/{jobID}", deps.GetArchiveHandler)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/api/v1/admin/keys", deps.CreateKeyHandler)
			r.Get("/api/v1/admin/keys", deps.ListKeysHandler)
			r.Delete("/api/v1/admin/keys/{keyID}", deps.RevokeKeyHandler)
		})
	})

	return r
}
