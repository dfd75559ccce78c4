package models

import (
	"net/url"
	"slices"
	"time"
)

// Category is the closed set of notification kinds producers may emit.
type Category string

const (
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
	CategoryMessage Category = "message"
	CategoryMention Category = "mention"
)

var AllCategories = []Category{
	CategoryInfo, CategorySuccess, CategoryWarning, CategoryError, CategoryMessage, CategoryMention,
}

func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Priority drives channel selection and quiet-hours bypass.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

var AllPriorities = []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}

func (p Priority) Valid() bool {
	for _, known := range AllPriorities {
		if p == known {
			return true
		}
	}
	return false
}

// Normalize maps an unknown or empty priority to normal.
func (p Priority) Normalize() Priority {
	if p.Valid() {
		return p
	}
	return PriorityNormal
}

// Channel is one delivery transport.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

var AllChannels = []Channel{ChannelInApp, ChannelPush, ChannelEmail}

func (c Channel) Valid() bool {
	return slices.Contains(AllChannels, c)
}

// ChannelStatus is the per-channel delivery record attached to a notification.
type ChannelStatus struct {
	Attempted bool       `bson:"attempted" json:"attempted"`
	Delivered bool       `bson:"delivered" json:"delivered"`
	SentAt    *time.Time `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
	Error     string     `bson:"error,omitempty" json:"error,omitempty"`
}

type DeliveryStatus struct {
	InApp ChannelStatus `bson:"in_app" json:"in_app"`
	Push  ChannelStatus `bson:"push" json:"push"`
	Email ChannelStatus `bson:"email" json:"email"`
}

// Get returns the status for one channel.
func (d DeliveryStatus) Get(ch Channel) ChannelStatus {
	switch ch {
	case ChannelInApp:
		return d.InApp
	case ChannelPush:
		return d.Push
	case ChannelEmail:
		return d.Email
	}
	return ChannelStatus{}
}

// Merge folds a channel result into the status. Flags only ever move from false to true.
func (d *DeliveryStatus) Merge(r ChannelResult) {
	var st *ChannelStatus
	switch r.Channel {
	case ChannelInApp:
		st = &d.InApp
	case ChannelPush:
		st = &d.Push
	case ChannelEmail:
		st = &d.Email
	default:
		return
	}
	if r.Attempted || r.Delivered {
		st.Attempted = true
	}
	if r.Delivered && !st.Delivered {
		st.Delivered = true
		sentAt := r.SentAt
		st.SentAt = &sentAt
		st.Error = ""
	}
	if !st.Delivered && r.Err != nil {
		st.Error = r.Err.Error()
	}
}

// ChannelResult is what a sender reports for one notification.
type ChannelResult struct {
	Channel   Channel
	Attempted bool
	Delivered bool
	SentAt    time.Time
	Err       error
}

type Notification struct {
	ID             string         `bson:"id" json:"id"`
	ClientID       string         `bson:"client_id,omitempty" json:"client_id,omitempty"`
	UserID         string         `bson:"user_id" json:"user_id"`
	Title          string         `bson:"title" json:"title"`
	Message        string         `bson:"message" json:"message"`
	Category       Category       `bson:"category" json:"category"`
	Priority       Priority       `bson:"priority" json:"priority"`
	EntityType     string         `bson:"entity_type,omitempty" json:"entity_type,omitempty"`
	EntityID       string         `bson:"entity_id,omitempty" json:"entity_id,omitempty"`
	CreatedBy      string         `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt      time.Time      `bson:"created_at" json:"created_at"`
	Read           bool           `bson:"read" json:"read"`
	ReadAt         *time.Time     `bson:"read_at,omitempty" json:"read_at,omitempty"`
	DeliveryStatus DeliveryStatus `bson:"delivery_status" json:"delivery_status"`
}

// CreateRequest is the producer-facing creation call; it is also what the offline queue persists.
type CreateRequest struct {
	UserID     string   `json:"user_id"`
	Title      string   `json:"title,omitempty"`
	Message    string   `json:"message"`
	Category   Category `json:"category"`
	Priority   Priority `json:"priority,omitempty"`
	EntityType string   `json:"entity_type,omitempty"`
	EntityID   string   `json:"entity_id,omitempty"`
	ClientID   string   `json:"client_id,omitempty"`
	CreatedBy  string   `json:"created_by,omitempty"`
}

// ListFilter pages through one user's notifications.
type ListFilter struct {
	Limit      int64
	Offset     int64
	UnreadOnly bool
}

// clickTargets maps an entity type to the in-app route that shows it.
var clickTargets = map[string]string{
	"chat":        "/chat/",
	"patient":     "/patients/",
	"appointment": "/appointments/",
	"invoice":     "/invoices/",
}

// TargetURL is where a click on the notification should land.
func (n *Notification) TargetURL() string {
	if prefix, ok := clickTargets[n.EntityType]; ok && n.EntityID != "" {
		return prefix + url.PathEscape(n.EntityID)
	}
	return "/notifications"
}

// ClickOutcome tells the client what happened after a notification click.
type ClickOutcome struct {
	// Action is "focused" when an open view was told to navigate, "open" when the client
	// should open URL itself.
	Action string `json:"action"`
	URL    string `json:"url"`
}

const (
	ClickFocused = "focused"
	ClickOpen    = "open"
)
