package catalog

import "errors"

var (
	// ErrUnavailable is returned while the catalog breaker is open.
	ErrUnavailable = errors.New("catalog unavailable")
	// ErrInvalidArtist is returned for artists without a usable name.
	ErrInvalidArtist = errors.New("invalid artist")
)
