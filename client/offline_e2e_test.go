package client

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"beacon/models"
	"beacon/offline"
	"beacon/testutil"
	"beacon/testutil/harness"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An offline producer queues a mention; once connectivity returns the drain delivers it
// exactly once through every channel the default policy selects.
func TestOfflineMentionIsDeliveredAfterReconnect(t *testing.T) {
	e := harness.New(t, testutil.At(12, 0))
	_, err := e.Subscriptions.Subscribe(context.Background(), "u1", models.SubscribeInput{
		Endpoint: "https://push.example/u1-laptop",
		Keys:     models.SubscriptionKeys{P256dh: "BPk", Auth: "au7h"},
	})
	require.NoError(t, err)

	live := httptest.NewServer(e.Router)
	defer live.Close()
	down := httptest.NewServer(nil)
	downURL := down.URL
	down.Close()

	store, err := offline.Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	defer store.Close()

	engine := NewEngineClient(downURL, e.Token(t, "dana"), nil)
	producer := offline.NewProducer(store, engine, offline.DefaultRetryPolicy(), nil)
	worker := offline.NewSyncWorker(store, engine, offline.DefaultRetryPolicy(), nil)
	dispatcher := offline.NewDispatcher(nil)
	worker.Attach(dispatcher)

	ctx := context.Background()
	res, err := producer.Create(ctx, models.CreateRequest{
		UserID:     "u1",
		Message:    "Dana mentioned you in #ward-3",
		Category:   models.CategoryMention,
		Priority:   models.PriorityHigh,
		EntityType: "chat",
		EntityID:   "42",
		CreatedBy:  "dana",
	})
	require.NoError(t, err)
	require.True(t, res.Queued)
	assert.Zero(t, e.Store.Len())

	engine.BaseURL = live.URL
	require.NoError(t, dispatcher.Dispatch(ctx, offline.Event{Type: offline.EventOnline}))
	report := worker.Drain(ctx)
	assert.Equal(t, 1, report.Delivered)
	assert.Zero(t, report.Remaining)

	again := worker.Drain(ctx)
	assert.Zero(t, again.Delivered)

	require.Equal(t, 1, e.Store.Len())
	list, err := e.Notifications.ListNotifications(ctx, "u1", models.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	n := list[0]
	assert.Equal(t, res.ItemID, n.ClientID)
	assert.False(t, n.Read)
	assert.True(t, n.DeliveryStatus.InApp.Delivered)
	assert.True(t, n.DeliveryStatus.Push.Delivered)
	assert.True(t, n.DeliveryStatus.Email.Attempted)
	assert.False(t, n.DeliveryStatus.Email.Delivered)
	assert.Equal(t, 1, e.Push.Count())
	assert.Equal(t, 1, e.Email.Count())
}

// Quiet hours at 23:30 keep a normal mention in-app only.
func TestQuietHoursMentionStaysInApp(t *testing.T) {
	e := harness.New(t, testutil.At(23, 30))
	p := models.DefaultPreference("u1")
	p.QuietHours = models.QuietHours{Enabled: true, Start: "22:00", End: "08:00"}
	e.Prefs.Put(p)

	live := httptest.NewServer(e.Router)
	defer live.Close()
	engine := NewEngineClient(live.URL, e.Token(t, "dana"), nil)

	n, err := engine.CreateNotification(context.Background(), models.CreateRequest{
		UserID: "u1", Message: "Dana mentioned you", Category: models.CategoryMention,
	}, "")
	require.NoError(t, err)
	assert.True(t, n.DeliveryStatus.InApp.Delivered)
	assert.False(t, n.DeliveryStatus.Push.Attempted)
	assert.False(t, n.DeliveryStatus.Email.Attempted)
	assert.Zero(t, e.Push.Count())
}
