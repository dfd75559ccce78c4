package offline

import "errors"

var (
	// ErrQueuePersist means the local queue could not store a request. The caller must warn
	// the user: the action may be lost.
	ErrQueuePersist = errors.New("offline queue unavailable")

	ErrUnauthenticated = errors.New("unauthenticated: notification creation requires an actor")
	ErrItemNotFound    = errors.New("queue item not found")
)
