package channels

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"beacon/models"

	"firebase.google.com/go/v4/messaging"
	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// browserKeys generates a subscription key pair the way a browser would.
func browserKeys(t *testing.T) models.SubscriptionKeys {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return models.SubscriptionKeys{
		P256dh: base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		Auth:   base64.RawURLEncoding.EncodeToString(auth),
	}
}

func webPushTransport(t *testing.T) *WebPushTransport {
	t.Helper()
	private, public, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return &WebPushTransport{
		PublicKey:  public,
		PrivateKey: private,
		Subject:    "mailto:ops@example.com",
		TTL:        3600,
	}
}

func TestWebPushTransportDelivers(t *testing.T) {
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sub := models.Subscription{ID: "s1", Kind: models.SubscriptionWebPush, Endpoint: srv.URL + "/push/abc", Keys: browserKeys(t)}
	err := webPushTransport(t).Send(context.Background(), sub, BuildPushPayload(sampleNotification(), PushAssets{}))
	require.NoError(t, err)

	assert.Equal(t, "high", headers.Get("Urgency"))
	assert.Equal(t, "6f1c2e1a7d3b4c1e9a550b2f4e6d8c10", headers.Get("Topic"))
	assert.Equal(t, "3600", headers.Get("TTL"))
	assert.Equal(t, "aes128gcm", headers.Get("Content-Encoding"))
}

func TestWebPushTransportClassifiesStatus(t *testing.T) {
	cases := []struct {
		status int
		gone   bool
	}{
		{http.StatusGone, true},
		{http.StatusNotFound, true},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		sub := models.Subscription{Endpoint: srv.URL, Keys: browserKeys(t)}
		err := webPushTransport(t).Send(context.Background(), sub, BuildPushPayload(sampleNotification(), PushAssets{}))
		srv.Close()

		require.Error(t, err, tc.status)
		assert.Equal(t, tc.gone, errors.Is(err, ErrSubscriptionGone), tc.status)
	}
}

type fakeFCM struct {
	sent []*messaging.Message
	err  error
}

func (f *fakeFCM) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.sent = append(f.sent, m)
	if f.err != nil {
		return "", f.err
	}
	return "projects/beacon/messages/1", nil
}

func TestFCMTransportBuildsMessage(t *testing.T) {
	client := &fakeFCM{}
	tr := &FCMTransport{Client: client}
	payload := BuildPushPayload(sampleNotification(), PushAssets{Icon: "/i.png"})

	require.NoError(t, tr.Send(context.Background(), models.Subscription{Endpoint: "tok-1"}, payload))
	require.Len(t, client.sent, 1)

	msg := client.sent[0]
	assert.Equal(t, "tok-1", msg.Token)
	assert.Equal(t, "New mention", msg.Notification.Title)
	assert.Equal(t, payload.Tag, msg.Webpush.Notification.Tag)
	assert.Equal(t, "/chat/42", msg.Webpush.FCMOptions.Link)
	assert.Equal(t, "chat", msg.Data["entity_type"])
	require.NotNil(t, msg.Android, "high priority wakes the device")
	assert.Equal(t, "high", msg.Android.Priority)
}

func TestFCMTransportLowPriorityStaysQuiet(t *testing.T) {
	client := &fakeFCM{}
	n := sampleNotification()
	n.Priority = models.PriorityLow

	require.NoError(t, (&FCMTransport{Client: client}).Send(context.Background(), models.Subscription{Endpoint: "tok"}, BuildPushPayload(n, PushAssets{})))
	assert.Nil(t, client.sent[0].Android)
	assert.Equal(t, "low", client.sent[0].Webpush.Headers["Urgency"])
}

func TestFCMTransportWrapsTransientErrors(t *testing.T) {
	tr := &FCMTransport{Client: &fakeFCM{err: errors.New("deadline exceeded")}}
	err := tr.Send(context.Background(), models.Subscription{Endpoint: "tok"}, PushPayload{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSubscriptionGone))
}
