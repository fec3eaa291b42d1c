package scrape

import "errors"

var (
	// ErrJobNotFound is returned when the requested job ID is unknown.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidJobState is returned when a job is already processing or has
	// reached a terminal state. This precondition is the system's sole
	// mutual-exclusion guard against double-processing one job.
	ErrInvalidJobState = errors.New("job is not in a startable state")
)
