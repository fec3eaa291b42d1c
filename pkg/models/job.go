package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusUploaded   = "uploaded"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// TerminalStatus reports whether a job status admits no further transitions.
func TerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// Job is one price-survey run over a fixed store set and product set.
// The registry keeps exactly one record per ID; the orchestrator is the only
// writer of Status, ErrorMessage and Results after creation.
type Job struct {
	ID           uuid.UUID `json:"id"`
	Stores       []Store   `json:"stores"`
	Products     []Product `json:"products"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	Results      []Result  `json:"results,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot is the poll-friendly view returned by the job control boundary.
type Snapshot struct {
	ID           uuid.UUID `json:"id"`
	Status       string    `json:"status"`
	StoreCount   int       `json:"store_count"`
	ProductCount int       `json:"product_count"`
	ResultCount  int       `json:"result_count"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Snapshot derives the control-boundary view from a job record.
func (j *Job) Snapshot() Snapshot {
	return Snapshot{
		ID:           j.ID,
		Status:       j.Status,
		StoreCount:   len(j.Stores),
		ProductCount: len(j.Products),
		ResultCount:  len(j.Results),
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    j.CreatedAt,
	}
}
