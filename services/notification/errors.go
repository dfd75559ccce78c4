package notification

import "errors"

var (
	// ErrUnauthenticated is returned when a create call carries no actor. Nothing is written.
	ErrUnauthenticated = errors.New("unauthenticated: notification creation requires an actor")

	ErrInvalidCategory      = errors.New("invalid notification category")
	ErrInvalidRequest       = errors.New("invalid notification request")
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrIdempotencyConflict means the actor reused an idempotency key for a different recipient.
	ErrIdempotencyConflict = errors.New("idempotency key already used for another recipient")
)
