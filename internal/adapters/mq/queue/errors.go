package queue

import "errors"

var (
	// ErrFull is returned when the queue cannot take more tasks.
	ErrFull = errors.New("queue full")
	// ErrClosed is returned when enqueueing after Close.
	ErrClosed = errors.New("queue closed")
)
