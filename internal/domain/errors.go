package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrNotConfigured  = errors.New("not configured")
	ErrInvalidBooking = errors.New("invalid booking")

	// ErrIdempotencyConflict is returned when an idempotency key is reused
	// for a different booking.
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different booking")
)
