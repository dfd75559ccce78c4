package models

import "time"

type QueueState string

const (
	QueuePending  QueueState = "pending"
	QueueInFlight QueueState = "inflight"
)

// QueueItem is a creation request persisted on the producing client until the engine confirms it.
// ID doubles as the idempotency key sent to the engine.
type QueueItem struct {
	ID            string        `json:"id"`
	Request       CreateRequest `json:"request"`
	State         QueueState    `json:"state"`
	Attempts      int           `json:"attempts"`
	CreatedAt     time.Time     `json:"created_at"`
	NextAttemptAt time.Time     `json:"next_attempt_at"`
	LastError     string        `json:"last_error,omitempty"`
}
