package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrIdempotencyKeyRequired rejects writes missing their idempotency key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key required")
)
