package scoring

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrInvalidInput marks an event that cannot be scored at all (no name).
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidConfig = errors.New("invalid scoring config")
)
