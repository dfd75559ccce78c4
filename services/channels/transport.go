package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"beacon/models"

	"firebase.google.com/go/v4/messaging"
	webpush "github.com/SherClockHolmes/webpush-go"
)

// PushTransport sends one payload to one subscription. A permanently invalid
// endpoint is reported as ErrSubscriptionGone.
type PushTransport interface {
	Send(ctx context.Context, sub models.Subscription, p PushPayload) error
}

// WebPushTransport speaks RFC 8030 Web Push signed with the server's VAPID key pair.
type WebPushTransport struct {
	PublicKey  string
	PrivateKey string
	Subject    string
	TTL        int
	Client     webpush.HTTPClient
}

func (t *WebPushTransport) Send(ctx context.Context, sub models.Subscription, p PushPayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("webpush payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
	}, &webpush.Options{
		HTTPClient:      t.Client,
		Subscriber:      t.Subject,
		VAPIDPublicKey:  t.PublicKey,
		VAPIDPrivateKey: t.PrivateKey,
		TTL:             t.TTL,
		Urgency:         webPushUrgency(p.Priority),
		Topic:           topic(p.Tag),
	})
	if err != nil {
		return fmt.Errorf("webpush send: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webpush: push service returned %d: %s", resp.StatusCode, msg)
	}
	return nil
}

func webPushUrgency(p models.Priority) webpush.Urgency {
	switch p {
	case models.PriorityCritical, models.PriorityHigh:
		return webpush.UrgencyHigh
	case models.PriorityLow:
		return webpush.UrgencyLow
	default:
		return webpush.UrgencyNormal
	}
}

// FCMClient is the part of *messaging.Client the transport uses.
type FCMClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMTransport delivers to Firebase registration tokens; the subscription endpoint holds the token.
type FCMTransport struct {
	Client FCMClient
}

func (t *FCMTransport) Send(ctx context.Context, sub models.Subscription, p PushPayload) error {
	if _, err := t.Client.Send(ctx, fcmMessage(sub.Endpoint, p)); err != nil {
		if messaging.IsUnregistered(err) || messaging.IsSenderIDMismatch(err) {
			return ErrSubscriptionGone
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

func fcmMessage(token string, p PushPayload) *messaging.Message {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Message,
		},
		Data: p.Data(),
		Webpush: &messaging.WebpushConfig{
			Headers: map[string]string{"Urgency": string(webPushUrgency(p.Priority))},
			Notification: &messaging.WebpushNotification{
				Title: p.Title,
				Body:  p.Message,
				Icon:  p.Icon,
				Badge: p.Badge,
				Tag:   p.Tag,
			},
			FCMOptions: &messaging.WebpushFCMOptions{Link: p.URL},
		},
	}

	if urgent(p.Priority) {
		msg.Android = &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "high_priority",
				Sound:     "default",
				Tag:       p.Tag,
			},
		}
		msg.APNS = &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default", ThreadID: p.Tag},
			},
		}
	}
	return msg
}
