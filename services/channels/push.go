package channels

import (
	"context"
	"errors"
	"fmt"
	"time"

	"beacon/models"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Registry is what the push sender needs from the subscription registry.
type Registry interface {
	ListActive(ctx context.Context, userID string) ([]models.Subscription, error)
	Deactivate(ctx context.Context, id, reason string) error
	Touch(ctx context.Context, id string, at time.Time) error
}

// Push fans a notification out to every active subscription of the recipient.
// One endpoint failing never affects the others.
type Push struct {
	Registry    Registry
	Transports  map[models.SubscriptionKind]PushTransport
	Assets      PushAssets
	MaxParallel int
	Logger      *zap.Logger
	Now         func() time.Time
}

func NewPush(registry Registry, transports map[models.SubscriptionKind]PushTransport, assets PushAssets, logger *zap.Logger) *Push {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Push{
		Registry:    registry,
		Transports:  transports,
		Assets:      assets,
		MaxParallel: 8,
		Logger:      logger,
		Now:         time.Now,
	}
}

func (s *Push) Channel() models.Channel { return models.ChannelPush }

func (s *Push) Send(ctx context.Context, n *models.Notification) models.ChannelResult {
	subs, err := s.Registry.ListActive(ctx, n.UserID)
	if err != nil {
		return failed(models.ChannelPush, fmt.Errorf("list subscriptions: %w", err))
	}
	if len(subs) == 0 {
		return failed(models.ChannelPush, ErrNoActiveSubscriptions)
	}

	payload := BuildPushPayload(n, s.Assets)
	errs := make([]error, len(subs))

	p := pool.New().WithMaxGoroutines(s.parallelism())
	for i := range subs {
		i := i
		p.Go(func() {
			errs[i] = s.sendOne(ctx, subs[i], payload)
		})
	}
	p.Wait()

	var firstErr error
	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failures == len(subs) {
		return failed(models.ChannelPush, fmt.Errorf("push failed for all %d subscriptions: %w", failures, firstErr))
	}
	if failures > 0 {
		s.Logger.Warn("Push partially delivered",
			zap.String("notificationID", n.ID),
			zap.Int("failed", failures),
			zap.Int("total", len(subs)))
	}
	return delivered(models.ChannelPush, s.Now().UTC())
}

func (s *Push) sendOne(ctx context.Context, sub models.Subscription, payload PushPayload) error {
	transport, ok := s.Transports[sub.Kind]
	if !ok {
		return fmt.Errorf("no transport for subscription kind %q", sub.Kind)
	}

	err := transport.Send(ctx, sub, payload)
	switch {
	case errors.Is(err, ErrSubscriptionGone):
		if derr := s.Registry.Deactivate(ctx, sub.ID, models.ReasonGone); derr != nil {
			s.Logger.Error("Failed to deactivate gone subscription", zap.String("subscriptionID", sub.ID), zap.Error(derr))
		}
		return err
	case err != nil:
		s.Logger.Warn("Push transport failed",
			zap.String("subscriptionID", sub.ID),
			zap.String("kind", string(sub.Kind)),
			zap.Error(err))
		return err
	}

	if terr := s.Registry.Touch(ctx, sub.ID, s.Now().UTC()); terr != nil {
		s.Logger.Warn("Failed to touch subscription", zap.String("subscriptionID", sub.ID), zap.Error(terr))
	}
	return nil
}

func (s *Push) parallelism() int {
	if s.MaxParallel < 1 {
		return 1
	}
	return s.MaxParallel
}
