package models

// EmailPayload is the body handed to the mail gateway for one notification.
type EmailPayload struct {
	NotificationID string   `json:"notification_id"`
	UserID         string   `json:"user_id"`
	Title          string   `json:"title"`
	Message        string   `json:"message"`
	EntityType     string   `json:"entity_type,omitempty"`
	EntityID       string   `json:"entity_id,omitempty"`
	Priority       Priority `json:"priority"`
}

// EmailPayloadFor builds the gateway payload from a stored notification.
func EmailPayloadFor(n *Notification) EmailPayload {
	return EmailPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Title:          n.Title,
		Message:        n.Message,
		EntityType:     n.EntityType,
		EntityID:       n.EntityID,
		Priority:       n.Priority,
	}
}
