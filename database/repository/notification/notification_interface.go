package notificationRepo

import (
	"context"
	"errors"
	"time"

	"beacon/models"
)

var (
	ErrNotFound          = errors.New("notification not found")
	ErrDuplicateClientID = errors.New("notification with this client id already exists for the actor")
)

// NotificationRepository defines methods for notification record access.
type NotificationRepository interface {
	// Create inserts a new notification. Returns ErrDuplicateClientID when the actor already used the client id.
	Create(ctx context.Context, n *models.Notification) error
	// GetByID retrieves a notification by its ID.
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	// GetByClientID retrieves the notification an actor created under an idempotency key.
	GetByClientID(ctx context.Context, createdBy, clientID string) (*models.Notification, error)
	// ListByUser returns a user's notifications, newest first.
	ListByUser(ctx context.Context, userID string, filter models.ListFilter) ([]models.Notification, error)
	// CountUnread counts a user's unread notifications.
	CountUnread(ctx context.Context, userID string) (int64, error)
	// RecordDeliveryStatus merges one channel's result into the stored delivery status.
	RecordDeliveryStatus(ctx context.Context, id string, result models.ChannelResult) error
	// MarkRead flips read for one notification; reports whether anything changed.
	MarkRead(ctx context.Context, userID, id string, at time.Time) (bool, error)
	// MarkAllRead flips read for every unread notification of a user.
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	// Delete removes a notification owned by the user.
	Delete(ctx context.Context, userID, id string) error
}
