package scheduler

import "errors"

var (
	// ErrJobAlreadyRunning is returned when a run of the same job is still in progress
	ErrJobAlreadyRunning = errors.New("job is already running")

	// ErrJobPanicked is returned when a job function panics
	ErrJobPanicked = errors.New("job panicked")

	// ErrInvalidConfig is returned when trigger configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
