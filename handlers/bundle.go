package handlers

import (
	"beacon/config"
	"beacon/services/notification"
	"beacon/services/preference"
	"beacon/services/subscription"
	"beacon/services/views"

	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Notification endpoints
	CreateNotificationHandler gin.HandlerFunc
	ListNotificationsHandler  gin.HandlerFunc
	UnreadCountHandler        gin.HandlerFunc
	GetNotificationHandler    gin.HandlerFunc
	MarkReadHandler           gin.HandlerFunc
	MarkAllReadHandler        gin.HandlerFunc
	DeleteNotificationHandler gin.HandlerFunc
	ClickNotificationHandler  gin.HandlerFunc

	// Preference endpoints
	GetPreferenceHandler    gin.HandlerFunc
	UpdatePreferenceHandler gin.HandlerFunc

	// Push subscription endpoints
	VAPIDPublicKeyHandler gin.HandlerFunc
	SubscribeHandler      gin.HandlerFunc
	UnsubscribeHandler    gin.HandlerFunc

	// Live views
	ViewSocketHandler gin.HandlerFunc
}

// NewHandlerBundle wires every handler to its service.
func NewHandlerBundle(
	notifications notification.NotificationService,
	prefs preference.Resolver,
	subs subscription.SubscriptionService,
	registry *views.Registry,
) *HandlerBundle {
	nh := NewNotificationHandler(notifications)
	ph := NewPreferenceHandler(prefs)
	sh := NewSubscriptionHandler(subs)
	vh := NewViewsHandler(registry, config.AppConfig.Origins())

	return &HandlerBundle{
		CreateNotificationHandler: nh.CreateNotificationHandler,
		ListNotificationsHandler:  nh.ListNotificationsHandler,
		UnreadCountHandler:        nh.UnreadCountHandler,
		GetNotificationHandler:    nh.GetNotificationHandler,
		MarkReadHandler:           nh.MarkReadHandler,
		MarkAllReadHandler:        nh.MarkAllReadHandler,
		DeleteNotificationHandler: nh.DeleteNotificationHandler,
		ClickNotificationHandler:  nh.ClickNotificationHandler,

		GetPreferenceHandler:    ph.GetPreferenceHandler,
		UpdatePreferenceHandler: ph.UpdatePreferenceHandler,

		VAPIDPublicKeyHandler: sh.VAPIDPublicKeyHandler,
		SubscribeHandler:      sh.SubscribeHandler,
		UnsubscribeHandler:    sh.UnsubscribeHandler,

		ViewSocketHandler: vh.ViewSocketHandler,
	}
}
