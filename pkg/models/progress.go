package models

import "github.com/google/uuid"

// ProgressEvent is a transient live-view update emitted by the orchestrator.
// Delivery is best-effort; durable state lives in the job store.
type ProgressEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	Status       string    `json:"status"`
	Percent      int       `json:"percent"`
	Message      string    `json:"message"`
	CurrentStore string    `json:"current_store,omitempty"`
	CurrentItem  string    `json:"current_item,omitempty"`
	Results      []Result  `json:"results,omitempty"`
	Error        string    `json:"error,omitempty"`
}
