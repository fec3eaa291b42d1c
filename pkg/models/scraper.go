package models

import "context"

// ScrapeProvider is the interface all price-lookup backends implement.
// Implementations live in internal/scraper/*.
type ScrapeProvider interface {
	// Name returns the provider identifier (e.g. "browser", "synthetic").
	Name() string

	// NewSession acquires per-job resources (e.g. a browser allocator) and
	// returns a session scoped to one orchestrator run. A failure here is fatal
	// to the job: no tasks have run yet.
	NewSession(ctx context.Context) (ScrapeSession, error)
}

// ScrapeSession performs lookups for a single job run. Sessions are used by one
// goroutine at a time and must be closed when the run finishes, on every exit
// path.
type ScrapeSession interface {
	// Lookup performs a single price/availability attempt for one pair.
	// Any error is treated as transient by the caller and retried.
	Lookup(ctx context.Context, store Store, product Product) (*Result, error)

	Close() error
}
