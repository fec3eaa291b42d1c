package models

// Store is one retail site targeted by a survey. Immutable once attached to a job.
type Store struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Product is one catalogue entry to look up at every store. ID is unique within
// a job's product set. Immutable once attached to a job.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
}
