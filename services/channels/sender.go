// Package channels delivers a recorded notification over one transport each.
package channels

import (
	"context"
	"errors"
	"time"

	"beacon/models"
)

var (
	// ErrSubscriptionGone means the push service no longer knows the endpoint.
	ErrSubscriptionGone = errors.New("push subscription gone")

	ErrNoActiveSubscriptions = errors.New("no_active_subscriptions")
)

// Sender delivers a notification over one channel. Implementations capture their own
// failures in the result instead of returning them.
type Sender interface {
	Channel() models.Channel
	Send(ctx context.Context, n *models.Notification) models.ChannelResult
}

func failed(ch models.Channel, err error) models.ChannelResult {
	return models.ChannelResult{Channel: ch, Attempted: true, Err: err}
}

func delivered(ch models.Channel, at time.Time) models.ChannelResult {
	return models.ChannelResult{Channel: ch, Attempted: true, Delivered: true, SentAt: at}
}
