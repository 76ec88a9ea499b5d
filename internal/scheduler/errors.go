package scheduler

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found by name
	ErrJobNotFound = errors.New("job not found")
)
