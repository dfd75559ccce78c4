// Package harness assembles a complete in-memory engine behind the real gin routes.
package harness

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"beacon/config"
	"beacon/handlers"
	"beacon/models"
	"beacon/routes"
	"beacon/services/channels"
	"beacon/services/notification"
	"beacon/services/preference"
	"beacon/services/router"
	"beacon/services/subscription"
	"beacon/services/views"
	"beacon/testutil"
	"beacon/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "harness-secret"

// PushRecorder accepts every push and remembers the endpoints it was handed.
type PushRecorder struct {
	mu        sync.Mutex
	Endpoints []string
	Err       error
}

func (p *PushRecorder) Send(_ context.Context, sub models.Subscription, _ channels.PushPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Endpoints = append(p.Endpoints, sub.Endpoint)
	return p.Err
}

func (p *PushRecorder) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Endpoints)
}

// EmailRecorder stands in for the asynq dispatcher.
type EmailRecorder struct {
	mu       sync.Mutex
	Payloads []models.EmailPayload
}

func (e *EmailRecorder) Dispatch(_ context.Context, payload models.EmailPayload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Payloads = append(e.Payloads, payload)
	return nil
}

func (e *EmailRecorder) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Payloads)
}

// Engine is a wired engine plus handles on everything tests want to inspect.
type Engine struct {
	Router        *gin.Engine
	Notifications *notification.DefaultNotificationService
	Subscriptions *subscription.DefaultSubscriptionService
	Resolver      *preference.DefaultResolver
	Views         *views.Registry
	Store         *testutil.NotificationStore
	Prefs         *testutil.PreferenceStore
	Subs          *testutil.SubscriptionStore
	Push          *PushRecorder
	Email         *EmailRecorder
}

// New builds an engine whose clocks are pinned to now.
func New(t *testing.T, now time.Time) *Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.AppConfig.JWTSecret = jwtSecret

	e := &Engine{
		Store: testutil.NewNotificationStore(),
		Prefs: testutil.NewPreferenceStore(),
		Subs:  testutil.NewSubscriptionStore(),
		Views: views.NewRegistry(nil),
		Push:  &PushRecorder{},
		Email: &EmailRecorder{},
	}
	e.Resolver = preference.NewDefaultResolver(e.Prefs, nil, nil)
	e.Resolver.Now = testutil.FixedClock(now)
	e.Subscriptions = subscription.NewDefaultSubscriptionService(e.Subs, "BHarnessVapidKey", nil)
	e.Subscriptions.Now = testutil.FixedClock(now)

	inApp := channels.NewInApp(e.Store, e.Views, nil)
	inApp.Now = testutil.FixedClock(now)
	push := channels.NewPush(e.Subscriptions, map[models.SubscriptionKind]channels.PushTransport{
		models.SubscriptionWebPush: e.Push,
		models.SubscriptionFCM:     e.Push,
	}, channels.PushAssets{}, nil)
	push.Now = testutil.FixedClock(now)

	e.Notifications = notification.NewDefaultNotificationService(
		e.Store,
		e.Resolver,
		router.New([]string{"in_app", "push", "email"}),
		inApp,
		[]channels.Sender{push, channels.NewEmail(e.Email, nil)},
		e.Views,
		nil,
	)
	e.Notifications.Now = testutil.FixedClock(now)
	seq := 0
	var seqMu sync.Mutex
	e.Notifications.NewID = func() string {
		seqMu.Lock()
		defer seqMu.Unlock()
		seq++
		return fmt.Sprintf("n-%d", seq)
	}

	e.Router = gin.New()
	e.Router.Use(utils.ErrorHandler())
	routes.RegisterRoutes(e.Router, handlers.NewHandlerBundle(e.Notifications, e.Resolver, e.Subscriptions, e.Views))
	return e
}

// Token signs a bearer token for userID.
func (e *Engine) Token(t *testing.T, userID string) string {
	t.Helper()
	token, err := utils.GenerateToken(userID, time.Hour)
	require.NoError(t, err)
	return token
}
