package repository

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrNotFound     = errors.New("ranking not found")
	ErrInvalidLimit = errors.New("invalid ranking limit")
	ErrInvalidEntry = errors.New("invalid ranking entry")
)
