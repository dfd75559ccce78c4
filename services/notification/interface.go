package notification

import (
	"context"
	"time"

	notificationRepo "beacon/database/repository/notification"
	"beacon/models"
	"beacon/services/channels"
	"beacon/services/preference"
	"beacon/services/router"
	"beacon/services/views"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationService is the engine: creation, routing, delivery and the read-state machine.
type NotificationService interface {
	CreateNotification(ctx context.Context, req models.CreateRequest) (*models.Notification, error)
	GetNotification(ctx context.Context, userID, id string) (*models.Notification, error)
	ListNotifications(ctx context.Context, userID string, filter models.ListFilter) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, userID, id string) error
	HandleClick(ctx context.Context, userID, id string) (models.ClickOutcome, error)
}

// ViewNotifier reaches a user's open windows.
type ViewNotifier interface {
	Publish(userID string, e views.Event) int
	Focus(userID, url string) bool
}

// DefaultNotificationService is the production implementation.
type DefaultNotificationService struct {
	Store    notificationRepo.NotificationRepository
	Prefs    preference.Resolver
	Router   *router.Router
	InApp    channels.Sender
	Outbound map[models.Channel]channels.Sender
	Views    ViewNotifier
	Logger   *zap.Logger
	Now      func() time.Time
	NewID    func() string
}

// NewDefaultNotificationService wires the engine. Outbound senders are keyed by their channel.
func NewDefaultNotificationService(
	store notificationRepo.NotificationRepository,
	prefs preference.Resolver,
	rt *router.Router,
	inApp channels.Sender,
	outbound []channels.Sender,
	viewNotifier ViewNotifier,
	logger *zap.Logger,
) *DefaultNotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	senders := make(map[models.Channel]channels.Sender, len(outbound))
	for _, s := range outbound {
		senders[s.Channel()] = s
	}
	return &DefaultNotificationService{
		Store:    store,
		Prefs:    prefs,
		Router:   rt,
		InApp:    inApp,
		Outbound: senders,
		Views:    viewNotifier,
		Logger:   logger,
		Now:      time.Now,
		NewID:    uuid.NewString,
	}
}
