package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pricehound/pricehound/internal/progress"
	"github.com/pricehound/pricehound/internal/store"
	"github.com/pricehound/pricehound/pkg/models"
)

// NewEventsHandler returns the handler for GET /api/v1/jobs/{jobID}/events.
// It streams ProgressEvents as server-sent events and closes the stream once
// a terminal event has been written.
func NewEventsHandler(jobs store.JobStore, pub *progress.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		job, ok := fetchJob(w, r, jobs)
		if !ok {
			return
		}

		// Subscribe before the terminal check so no event is lost in between.
		events, cancel := pub.Subscribe(job.ID)
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		// A job that already finished gets a single synthesized terminal
		// event; there is nothing further to stream.
		job, err := jobs.Get(r.Context(), job.ID)
		if err == nil && models.TerminalStatus(job.Status) {
			writeEvent(w, terminalEvent(job))
			flusher.Flush()
			return
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, open := <-events:
				if !open {
					return
				}
				writeEvent(w, ev)
				flusher.Flush()
				if models.TerminalStatus(ev.Status) {
					return
				}
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, ev models.ProgressEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

// terminalEvent reconstructs the final progress view of a finished job.
func terminalEvent(job *models.Job) models.ProgressEvent {
	ev := models.ProgressEvent{
		JobID:   job.ID,
		Status:  job.Status,
		Percent: 100,
		Message: "survey finished",
	}
	if job.Status == models.JobStatusCompleted {
		ev.Results = job.Results
		return ev
	}

	if job.ErrorMessage != nil {
		ev.Error = *job.ErrorMessage
	}
	total := len(job.Stores) * len(job.Products)
	if total > 0 {
		ev.Percent = 100 * len(job.Results) / total
	}
	return ev
}
