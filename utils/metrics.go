package utils

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beacon",
		Name:      "notifications_created_total",
		Help:      "Notifications recorded, by category and priority.",
	}, []string{"category", "priority"})

	PolicyBlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beacon",
		Name:      "policy_blocked_total",
		Help:      "Notifications whose outbound channels were suppressed by user policy.",
	}, []string{"reason"})

	ChannelDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beacon",
		Name:      "channel_deliveries_total",
		Help:      "Channel send outcomes.",
	}, []string{"channel", "outcome"})

	SubscriptionsDeactivated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beacon",
		Name:      "push_subscriptions_deactivated_total",
		Help:      "Push subscriptions soft-deleted, by reason.",
	}, []string{"reason"})

	HandlerPanics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "beacon",
		Name:      "http_handler_panics_total",
		Help:      "Handler panics recovered by ErrorHandler.",
	})
)

// MetricsHandler returns an http.Handler for Prometheus scraping
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Outcome maps a channel result to a metric label.
func Outcome(attempted, delivered bool) string {
	switch {
	case delivered:
		return "delivered"
	case attempted:
		return "failed"
	default:
		return "skipped"
	}
}
