package models

import (
	"time"

	"github.com/google/uuid"
)

// ArchivedJob is the durable export of a finished job. The live registry is
// volatile; completed and failed jobs are copied here for later retrieval.
type ArchivedJob struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	Status       string    `db:"status"        json:"status"`
	StoreCount   int       `db:"store_count"   json:"store_count"`
	ProductCount int       `db:"product_count" json:"product_count"`
	ResultCount  int       `db:"result_count"  json:"result_count"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	ArchivedAt   time.Time `db:"archived_at"   json:"archived_at"`
}
