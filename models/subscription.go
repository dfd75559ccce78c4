package models

import "time"

type SubscriptionKind string

const (
	// SubscriptionWebPush is a browser endpoint spoken to over RFC 8030 with VAPID.
	SubscriptionWebPush SubscriptionKind = "webpush"
	// SubscriptionFCM is a Firebase registration token; Endpoint holds the token.
	SubscriptionFCM SubscriptionKind = "fcm"
)

type SubscriptionKeys struct {
	P256dh string `bson:"p256dh" json:"p256dh"`
	Auth   string `bson:"auth" json:"auth"`
}

// Subscription is one push endpoint registered by a device or browser.
type Subscription struct {
	ID                 string           `bson:"id" json:"id"`
	UserID             string           `bson:"user_id" json:"user_id"`
	Kind               SubscriptionKind `bson:"kind" json:"kind"`
	Endpoint           string           `bson:"endpoint" json:"endpoint"`
	Keys               SubscriptionKeys `bson:"keys" json:"keys"`
	UserAgent          string           `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	IsActive           bool             `bson:"is_active" json:"is_active"`
	CreatedAt          time.Time        `bson:"created_at" json:"created_at"`
	LastUsedAt         *time.Time       `bson:"last_used_at,omitempty" json:"last_used_at,omitempty"`
	DeactivatedAt      *time.Time       `bson:"deactivated_at,omitempty" json:"deactivated_at,omitempty"`
	DeactivationReason string           `bson:"deactivation_reason,omitempty" json:"deactivation_reason,omitempty"`
}

// Deactivation reasons recorded on soft-deleted subscriptions.
const (
	ReasonUserOptOut = "user_opt_out"
	ReasonGone       = "gone"
)

// SubscribeInput is what a client sends after the user grants push permission.
type SubscribeInput struct {
	Kind      SubscriptionKind `json:"kind" validate:"omitempty,oneof=webpush fcm"`
	Endpoint  string           `json:"endpoint" validate:"required"`
	Keys      SubscriptionKeys `json:"keys"`
	UserAgent string           `json:"user_agent,omitempty"`
}
