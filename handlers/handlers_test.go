package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"beacon/config"
	"beacon/models"
	"beacon/services/views"
	"beacon/testutil"
	"beacon/testutil/harness"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, e *harness.Engine, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func mentionBody(userID string) map[string]string {
	return map[string]string{
		"user_id":     userID,
		"message":     "Dana mentioned you in #ward-3",
		"category":    "mention",
		"priority":    "high",
		"entity_type": "chat",
		"entity_id":   "42",
	}
}

func TestRoutesRequireBearerToken(t *testing.T) {
	e := harness.New(t, testutil.At(12, 0))

	w := call(t, e, http.MethodGet, "/api/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(t, e, http.MethodPost, "/api/notifications", "not-a-jwt", mentionBody("u1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, e.Store.Len())

	w = call(t, e, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateNotificationUsesTokenAsActor(t *testing.T) {
	e := harness.New(t, testutil.At(12, 0))
	token := e.Token(t, "scheduler")

	w := call(t, e, http.MethodPost, "/api/notifications", token, mentionBody("u1"), "Idempotency-Key", "q-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	n := decode[models.Notification](t, w)
	assert.Equal(t, "scheduler", n.CreatedBy)
	assert.Equal(t, "q-1", n.ClientID)
	assert.Equal(t, "You were mentioned", n.Title)
	assert.True(t, n.DeliveryStatus.InApp.Delivered)
	assert.True(t, n.DeliveryStatus.Email.Attempted)

	again := call(t, e, http.MethodPost, "/api/notifications", token, mentionBody("u1"), "Idempotency-Key", "q-1")
	require.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, n.ID, decode[models.Notification](t, again).ID)
	assert.Equal(t, 1, e.Store.Len())
	assert.Equal(t, 1, e.Email.Count())
}

func TestIdempotencyKeyBelongsToTheCaller(t *testing.T) {
	e := harness.New(t, testutil.At(12, 0))
	dana := e.Token(t, "dana")
	eve := e.Token(t, "eve")

	w := call(t, e, http.MethodPost, "/api/notifications", dana, mentionBody("u1"), "Idempotency-Key", "k1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[models.Notification](t, w)

	w = call(t, e, http.MethodPost, "/api/notifications", eve, mentionBody("u2"), "Idempotency-Key", "k1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	second := decode[models.Notification](t, w)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "u2", second.UserID)
	assert.Equal(t, "eve", second.CreatedBy)
	assert.Equal(t, 2, e.Store.Len())

	w = call(t, e, http.MethodPost, "/api/notifications", dana, mentionBody("u3"), "Idempotency-Key", "k1")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 2, e.Store.Len())
}

func TestCreateNotificationRejectsBadInput(t *testing.T) {
	e := harness.New(t, testutil.At(12, 0))
	token := e.Token(t, "scheduler")

	body := mentionBody("u1")
	body["category"] = "promo"
	w := call(t, e, http.MethodPost, "/api/notifications", token, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, e, http.MethodPost, "/api/notifications", token, mentionBody(""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, e.Store.Len())
}

func TestReadStateEndpoints(t *testing.T) {
	e := harness.New(t, testutil.At(12, 0))
	producer := e.Token(t, "scheduler")
	owner := e.Token(t, "u1")
	stranger := e.Token(t, "u2")

	var ids []string
	for i := 0; i < 3; i++ {
		w := call(t, e, http.MethodPost, "/api/notifications", producer, mentionBody("u1"))
		require.Equal(t, http.StatusCreated, w.Code)
		ids = append(ids, decode[models.Notification](t, w).ID)
	}

	count := decode[map[string]int64](t, call(t, e, http.MethodGet, "/api/notifications/unread-count", owner, nil))
	assert.Equal(t, int64(3), count["unread"])

	assert.Equal(t, http.StatusNotFound, call(t, e, http.MethodPatch, "/api/notifications/"+ids[0]+"/read", stranger, nil).Code)
	assert.Equal(t, http.StatusNotFound, call(t, e, http.MethodGet, "/api/notifications/"+ids[0], stranger, nil).Code)

	for i := 0; i < 2; i++ {
		w := call(t, e, http.MethodPatch, "/api/notifications/"+ids[0]+"/read", owner, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	list := decode[map[string][]models.Notification](t, call(t, e, http.MethodGet, "/api/notifications?unread=true", owner, nil))
	assert.Len(t, list["notifications"], 2)

	updated := decode[map[string]int64](t, call(t, e, http.MethodPatch, "/api/notifications/read-all", owner, nil))
	assert.Equal(t, int64(2), updated["updated"])

	assert.Equal(t, http.StatusBadRequest, call(t, e, http.MethodGet, "/api/notifications?limit=ten", owner, nil).Code)

	assert.Equal(t, http.StatusOK, call(t, e, http.MethodDelete, "/api/notifications/"+ids[1], owner, nil).Code)
	assert.Equal(t, http.StatusNotFound, call(t, e, http.MethodDelete, "/api/notifications/"+ids[1], owner, nil).Code)
	assert.Equal(t, 2, e.Store.Len())
}

func TestClickWithoutOpenViewAsksClientToOpen(t *testing.T) {
	e := harness.New(t, testutil.At(12, 0))
	w := call(t, e, http.MethodPost, "/api/notifications", e.Token(t, "scheduler"), mentionBody("u1"))
	n := decode[models.Notification](t, w)

	w = call(t, e, http.MethodPost, "/api/notifications/"+n.ID+"/click", e.Token(t, "u1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[models.ClickOutcome](t, w)
	assert.Equal(t, models.ClickOutcome{Action: models.ClickOpen, URL: "/chat/42"}, out)

	stored, err := e.Store.GetByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.True(t, stored.Read)
}

func TestPreferenceEndpoints(t *testing.T) {
	e := harness.New(t, testutil.At(12, 0))
	token := e.Token(t, "u1")

	w := call(t, e, http.MethodGet, "/api/preferences", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	p := decode[models.Preference](t, w)
	assert.False(t, p.QuietHours.Enabled)
	assert.Equal(t, []models.Channel{models.ChannelPush, models.ChannelEmail}, p.DeliveryMethods[models.PriorityCritical])

	p.QuietHours = models.QuietHours{Enabled: true, Start: "22:00", End: "08:00"}
	w = call(t, e, http.MethodPut, "/api/preferences", token, p)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[models.Preference](t, w).QuietHours.Enabled)

	p.QuietHours.Start = "25:99"
	w = call(t, e, http.MethodPut, "/api/preferences", token, p)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreferenceTimezoneFromClientHeader(t *testing.T) {
	e := harness.New(t, testutil.At(12, 0))
	token := e.Token(t, "u1")
	p := models.DefaultPreference("u1")
	p.QuietHours = models.QuietHours{Enabled: true, Start: "22:00", End: "08:00"}

	w := call(t, e, http.MethodPut, "/api/preferences", token, p, "X-Timezone", "Africa/Nairobi")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Africa/Nairobi", decode[models.Preference](t, w).QuietHours.Timezone)

	p.QuietHours.Timezone = "Europe/Berlin"
	w = call(t, e, http.MethodPut, "/api/preferences", token, p, "X-Timezone", "Africa/Nairobi")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Europe/Berlin", decode[models.Preference](t, w).QuietHours.Timezone, "an explicit zone wins")

	p.QuietHours.Timezone = ""
	w = call(t, e, http.MethodPut, "/api/preferences", token, p, "X-Timezone", "Mars/Olympus")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[models.Preference](t, w).QuietHours.Timezone)
}

func TestPushSubscriptionEndpoints(t *testing.T) {
	e := harness.New(t, testutil.At(12, 0))
	token := e.Token(t, "u1")

	key := decode[map[string]string](t, call(t, e, http.MethodGet, "/api/push/vapid-public-key", "", nil))
	assert.Equal(t, "BHarnessVapidKey", key["public_key"])

	in := models.SubscribeInput{
		Endpoint: "https://push.example/u1",
		Keys:     models.SubscriptionKeys{P256dh: "BPk", Auth: "au7h"},
	}
	w := call(t, e, http.MethodPost, "/api/push/subscriptions", token, in)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, decode[models.Subscription](t, w).IsActive)

	w = call(t, e, http.MethodPost, "/api/push/subscriptions", token, models.SubscribeInput{Endpoint: "https://push.example/bare"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, e, http.MethodDelete, "/api/push/subscriptions", e.Token(t, "u2"), map[string]string{"endpoint": in.Endpoint})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(t, e, http.MethodDelete, "/api/push/subscriptions", token, map[string]string{"endpoint": in.Endpoint})
	assert.Equal(t, http.StatusOK, w.Code)
	sub, err := e.Subs.GetByEndpoint(context.Background(), in.Endpoint)
	require.NoError(t, err)
	assert.False(t, sub.IsActive)
	assert.Equal(t, models.ReasonUserOptOut, sub.DeactivationReason)
}

func TestViewSocketReceivesLiveEventsAndFocus(t *testing.T) {
	e := harness.New(t, testutil.At(12, 0))
	srv := httptest.NewServer(e.Router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/views/ws?access_token=" + e.Token(t, "u1")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return e.Views.HasOpenView("u1") }, 2*time.Second, 10*time.Millisecond)

	n, err := e.Notifications.CreateNotification(context.Background(), models.CreateRequest{
		UserID: "u1", Message: "Shift swap approved", Category: models.CategorySuccess, CreatedBy: "rota",
	})
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var live views.Event
	require.NoError(t, conn.ReadJSON(&live))
	assert.Equal(t, views.EventNotification, live.Type)

	out, err := e.Notifications.HandleClick(context.Background(), "u1", n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClickFocused, out.Action)

	// MarkRead publishes a read event before the navigate post.
	var read, nav views.Event
	require.NoError(t, conn.ReadJSON(&read))
	require.NoError(t, conn.ReadJSON(&nav))
	assert.Equal(t, views.EventRead, read.Type)
	assert.Equal(t, views.EventNavigate, nav.Type)
	assert.Equal(t, "/notifications", nav.URL)
}

func TestViewSocketRejectsUnlistedOrigin(t *testing.T) {
	prev := config.AppConfig.AllowedOrigins
	config.AppConfig.AllowedOrigins = "https://ward.example.com"
	t.Cleanup(func() { config.AppConfig.AllowedOrigins = prev })

	e := harness.New(t, testutil.At(12, 0))
	srv := httptest.NewServer(e.Router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/views/ws?access_token=" + e.Token(t, "u1")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, e.Views.HasOpenView("u1"))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://ward.example.com"}})
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return e.Views.HasOpenView("u1") }, 2*time.Second, 10*time.Millisecond)
}
