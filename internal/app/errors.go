package service

import "errors"

var (
	// ErrNotStarted is returned by operations that need a running service.
	ErrNotStarted = errors.New("service not started")
	// ErrInvalidJob is returned for ranking jobs that cannot be queued.
	ErrInvalidJob = errors.New("invalid ranking job")
	// ErrBackpressure is returned when the task queue cannot take a job.
	ErrBackpressure = errors.New("queue is full, retry later")
)
