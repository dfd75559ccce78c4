package channels

import (
	"strings"

	"beacon/models"
)

// PushAssets are the static images shown with every push.
type PushAssets struct {
	Icon  string
	Badge string
}

// PushPayload is the JSON document the client's push handler receives. Tag equals the
// notification id so a re-delivered push replaces rather than duplicates.
type PushPayload struct {
	Title          string          `json:"title"`
	Message        string          `json:"message"`
	Icon           string          `json:"icon,omitempty"`
	Badge          string          `json:"badge,omitempty"`
	Tag            string          `json:"tag"`
	URL            string          `json:"url"`
	EntityType     string          `json:"entity_type,omitempty"`
	EntityID       string          `json:"entity_id,omitempty"`
	NotificationID string          `json:"notification_id"`
	Priority       models.Priority `json:"priority"`
	Timestamp      int64           `json:"timestamp"`
}

func BuildPushPayload(n *models.Notification, assets PushAssets) PushPayload {
	return PushPayload{
		Title:          n.Title,
		Message:        n.Message,
		Icon:           assets.Icon,
		Badge:          assets.Badge,
		Tag:            n.ID,
		URL:            n.TargetURL(),
		EntityType:     n.EntityType,
		EntityID:       n.EntityID,
		NotificationID: n.ID,
		Priority:       n.Priority,
		Timestamp:      n.CreatedAt.UnixMilli(),
	}
}

// Data flattens the payload into the string map FCM carries.
func (p PushPayload) Data() map[string]string {
	data := map[string]string{
		"title":           p.Title,
		"message":         p.Message,
		"tag":             p.Tag,
		"url":             p.URL,
		"notification_id": p.NotificationID,
		"priority":        string(p.Priority),
	}
	if p.EntityType != "" {
		data["entity_type"] = p.EntityType
		data["entity_id"] = p.EntityID
	}
	return data
}

// topic is the tag squeezed into the 32 URL-safe characters a Web Push Topic header allows.
func topic(tag string) string {
	t := strings.ReplaceAll(tag, "-", "")
	if len(t) > 32 {
		t = t[:32]
	}
	return t
}

// urgent reports whether the priority should wake the device.
func urgent(p models.Priority) bool {
	return p == models.PriorityCritical || p == models.PriorityHigh
}
