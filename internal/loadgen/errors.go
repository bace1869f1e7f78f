package loadgen

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid loadgen config")
	ErrNotFound      = errors.New("not found")
	ErrStatus        = errors.New("unexpected status")
	ErrTimeout       = errors.New("events not ranked before timeout")
	ErrVerification  = errors.New("ranking verification failed")
)
