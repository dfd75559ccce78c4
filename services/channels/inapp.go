package channels

import (
	"context"
	"fmt"
	"time"

	notificationRepo "beacon/database/repository/notification"
	"beacon/models"
	"beacon/services/views"

	"go.uber.org/zap"
)

// Publisher pushes live events to a user's open views.
type Publisher interface {
	Publish(userID string, e views.Event) int
}

// InApp records the notification and, when the user has a window open, shows it live.
// The durable write is the delivery; the live publish is best-effort.
type InApp struct {
	Store  notificationRepo.NotificationRepository
	Views  Publisher
	Logger *zap.Logger
	Now    func() time.Time
}

func NewInApp(store notificationRepo.NotificationRepository, pub Publisher, logger *zap.Logger) *InApp {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InApp{Store: store, Views: pub, Logger: logger, Now: time.Now}
}

func (s *InApp) Channel() models.Channel { return models.ChannelInApp }

// Send inserts n with its in-app status already marked delivered. On failure n's in-app
// status is reset so the caller sees what was actually stored.
func (s *InApp) Send(ctx context.Context, n *models.Notification) models.ChannelResult {
	at := s.Now().UTC()
	res := delivered(models.ChannelInApp, at)
	n.DeliveryStatus.Merge(res)

	if err := s.Store.Create(ctx, n); err != nil {
		n.DeliveryStatus.InApp = models.ChannelStatus{Attempted: true, Error: err.Error()}
		return failed(models.ChannelInApp, fmt.Errorf("in-app write: %w", err))
	}

	if s.Views != nil {
		if sent := s.Views.Publish(n.UserID, views.Event{Type: views.EventNotification, Data: n}); sent > 0 {
			s.Logger.Debug("In-app notification published live",
				zap.String("notificationID", n.ID), zap.Int("views", sent))
		}
	}
	return res
}
