package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"beacon/client"
	"beacon/models"
	"beacon/offline"
	"beacon/testutil"
	"beacon/testutil/harness"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAgentEvents(t *testing.T, engineURL, token string) (*agentEvents, *offline.Dispatcher, *bytes.Buffer) {
	t.Helper()
	store, err := offline.Open(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	engine := client.NewEngineClient(engineURL, token, nil)
	var out bytes.Buffer
	events := &agentEvents{
		store:  store,
		engine: engine,
		worker: offline.NewSyncWorker(store, engine, offline.DefaultRetryPolicy(), zap.NewNop()),
		logger: zap.NewNop(),
		out:    &out,
	}
	d := offline.NewDispatcher(nil)
	events.register(d)
	return events, d, &out
}

func TestAgentClickMarksNotificationRead(t *testing.T) {
	e := harness.New(t, testutil.At(12, 0))
	srv := httptest.NewServer(e.Router)
	defer srv.Close()
	ctx := context.Background()

	n, err := e.Notifications.CreateNotification(ctx, models.CreateRequest{
		UserID: "u1", Message: "Dana mentioned you", Category: models.CategoryMention,
		EntityType: "chat", EntityID: "42", CreatedBy: "dana",
	})
	require.NoError(t, err)

	_, d, out := newAgentEvents(t, srv.URL, e.Token(t, "u1"))
	require.NoError(t, d.Dispatch(ctx, offline.Event{Type: offline.EventNotificationClick, NotificationID: n.ID}))

	stored, err := e.Store.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, stored.Read)
	assert.Equal(t, models.ClickOpen+" "+n.TargetURL()+"\n", out.String())

	err = d.Dispatch(ctx, offline.Event{Type: offline.EventNotificationClick})
	assert.Error(t, err)
}

func TestAgentInstallRecoversInFlightItems(t *testing.T) {
	events, d, _ := newAgentEvents(t, "http://127.0.0.1:0", "")
	ctx := context.Background()

	require.NoError(t, events.store.Enqueue(ctx, models.QueueItem{
		ID: "q-1", State: models.QueueInFlight, CreatedAt: testutil.At(12, 0),
		Request: models.CreateRequest{UserID: "u1", Message: "hi", CreatedBy: "dana"},
	}))
	require.NoError(t, d.Dispatch(ctx, offline.Event{Type: offline.EventInstall}))

	item, err := events.store.Get(ctx, "q-1")
	require.NoError(t, err)
	assert.Equal(t, models.QueuePending, item.State)
}

func TestAgentPushAndMessageEvents(t *testing.T) {
	_, d, out := newAgentEvents(t, "http://127.0.0.1:0", "")
	ctx := context.Background()

	push := offline.Event{
		Type:    offline.EventPush,
		Payload: []byte(`{"title":"You were mentioned","message":"Dana mentioned you","url":"/chat/42","priority":"high","tag":"n-1","notification_id":"n-1"}`),
	}
	require.NoError(t, d.Dispatch(ctx, push))
	require.NoError(t, d.Dispatch(ctx, offline.Event{Type: offline.EventMessage, Payload: []byte(`{"action":"status"}`)}))
	require.NoError(t, d.Dispatch(ctx, offline.Event{Type: offline.EventMessage, Payload: []byte(`{"action":"sync"}`)}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{"[high] You were mentioned: Dana mentioned you (/chat/42)", "0 queued"}, lines)

	err := d.Dispatch(ctx, offline.Event{Type: offline.EventMessage, Payload: []byte(`{"action":"reboot"}`)})
	assert.ErrorContains(t, err, "reboot")
}

func TestReadEventsDispatchesEachLine(t *testing.T) {
	_, d, out := newAgentEvents(t, "http://127.0.0.1:0", "")
	in := strings.NewReader(`{"type":"message","payload":{"action":"status"}}
{"type":"activate"}
`)
	require.NoError(t, readEvents(context.Background(), in, d, zap.NewNop()))
	assert.Equal(t, "0 queued\n", out.String())
}
