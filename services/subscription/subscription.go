package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	subscriptionRepo "beacon/database/repository/subscription"
	"beacon/models"
	"beacon/utils"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	ErrSubscriptionNotFound = errors.New("push subscription not found")
	ErrInvalidSubscription  = errors.New("invalid push subscription")
)

// SubscriptionService manages the push subscription registry.
type SubscriptionService interface {
	Subscribe(ctx context.Context, userID string, in models.SubscribeInput) (*models.Subscription, error)
	Unsubscribe(ctx context.Context, userID, endpoint string) error
	ListActive(ctx context.Context, userID string) ([]models.Subscription, error)
	Deactivate(ctx context.Context, id, reason string) error
	Touch(ctx context.Context, id string, at time.Time) error
	VAPIDPublicKey() string
}

// DefaultSubscriptionService is the production implementation.
type DefaultSubscriptionService struct {
	Repo      subscriptionRepo.SubscriptionRepository
	PublicKey string
	Logger    *zap.Logger
	Now       func() time.Time
	validate  *validator.Validate
}

func NewDefaultSubscriptionService(repo subscriptionRepo.SubscriptionRepository, vapidPublicKey string, logger *zap.Logger) *DefaultSubscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultSubscriptionService{
		Repo:      repo,
		PublicKey: vapidPublicKey,
		Logger:    logger,
		Now:       time.Now,
		validate:  validator.New(),
	}
}

func (s *DefaultSubscriptionService) Subscribe(ctx context.Context, userID string, in models.SubscribeInput) (*models.Subscription, error) {
	if in.Kind == "" {
		in.Kind = models.SubscriptionWebPush
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubscription, err)
	}
	if in.Kind == models.SubscriptionWebPush && (in.Keys.P256dh == "" || in.Keys.Auth == "") {
		return nil, fmt.Errorf("%w: webpush subscriptions need p256dh and auth keys", ErrInvalidSubscription)
	}

	sub, err := s.Repo.Upsert(ctx, &models.Subscription{
		UserID:    userID,
		Kind:      in.Kind,
		Endpoint:  in.Endpoint,
		Keys:      in.Keys,
		UserAgent: in.UserAgent,
		CreatedAt: s.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", userID, err)
	}
	s.Logger.Info("Push subscription registered",
		zap.String("userID", userID),
		zap.String("subscriptionID", sub.ID),
		zap.String("kind", string(sub.Kind)))
	return sub, nil
}

func (s *DefaultSubscriptionService) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	sub, err := s.Repo.GetByEndpoint(ctx, endpoint)
	if errors.Is(err, subscriptionRepo.ErrNotFound) {
		return ErrSubscriptionNotFound
	}
	if err != nil {
		return fmt.Errorf("unsubscribe %s: %w", userID, err)
	}
	if sub.UserID != userID {
		return ErrSubscriptionNotFound
	}
	if !sub.IsActive {
		return nil
	}
	return s.Deactivate(ctx, sub.ID, models.ReasonUserOptOut)
}

func (s *DefaultSubscriptionService) ListActive(ctx context.Context, userID string) ([]models.Subscription, error) {
	subs, err := s.Repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for %s: %w", userID, err)
	}
	return subs, nil
}

func (s *DefaultSubscriptionService) Deactivate(ctx context.Context, id, reason string) error {
	err := s.Repo.Deactivate(ctx, id, reason, s.Now().UTC())
	if errors.Is(err, subscriptionRepo.ErrNotFound) {
		return ErrSubscriptionNotFound
	}
	if err != nil {
		return fmt.Errorf("deactivate subscription %s: %w", id, err)
	}
	utils.SubscriptionsDeactivated.WithLabelValues(reason).Inc()
	s.Logger.Info("Push subscription deactivated", zap.String("subscriptionID", id), zap.String("reason", reason))
	return nil
}

func (s *DefaultSubscriptionService) Touch(ctx context.Context, id string, at time.Time) error {
	if err := s.Repo.Touch(ctx, id, at); err != nil {
		return fmt.Errorf("touch subscription %s: %w", id, err)
	}
	return nil
}

func (s *DefaultSubscriptionService) VAPIDPublicKey() string {
	return s.PublicKey
}
