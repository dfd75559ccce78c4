package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	notificationRepo "beacon/database/repository/notification"
	"beacon/models"
	"beacon/services/router"
	"beacon/utils"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// CreateNotification records a notification for req.UserID and delivers it over every channel
// the recipient's policy allows. Only a failed in-app write is returned as an error; outbound
// channel failures are recorded on the notification and logged.
func (s *DefaultNotificationService) CreateNotification(ctx context.Context, req models.CreateRequest) (*models.Notification, error) {
	if strings.TrimSpace(req.CreatedBy) == "" {
		s.Logger.Warn("Rejected notification without actor",
			zap.String("userID", req.UserID),
			zap.String("category", string(req.Category)))
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: user_id and message are required", ErrInvalidRequest)
	}
	if !req.Category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, req.Category)
	}
	req.Priority = req.Priority.Normalize()
	if req.Title == "" {
		req.Title = DefaultTitle(req.Category)
	}

	if req.ClientID != "" {
		existing, err := s.Store.GetByClientID(ctx, req.CreatedBy, req.ClientID)
		if err == nil {
			return s.replay(req, existing)
		}
		if !errors.Is(err, notificationRepo.ErrNotFound) {
			return nil, fmt.Errorf("lookup client id %s: %w", req.ClientID, err)
		}
	}

	now := s.Now().UTC()
	plan := s.route(ctx, req, now)

	n := &models.Notification{
		ID:         s.NewID(),
		ClientID:   req.ClientID,
		UserID:     req.UserID,
		Title:      req.Title,
		Message:    req.Message,
		Category:   req.Category,
		Priority:   req.Priority,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		CreatedBy:  req.CreatedBy,
		CreatedAt:  now,
	}

	res := s.InApp.Send(ctx, n)
	utils.ChannelDeliveries.WithLabelValues(string(models.ChannelInApp), utils.Outcome(res.Attempted, res.Delivered)).Inc()
	if res.Err != nil {
		if errors.Is(res.Err, notificationRepo.ErrDuplicateClientID) {
			existing, err := s.Store.GetByClientID(ctx, req.CreatedBy, req.ClientID)
			if err != nil {
				return nil, fmt.Errorf("lookup client id %s: %w", req.ClientID, err)
			}
			return s.replay(req, existing)
		}
		s.Logger.Error("Failed to record notification", zap.String("userID", req.UserID), zap.Error(res.Err))
		return nil, fmt.Errorf("record notification: %w", res.Err)
	}
	utils.NotificationsCreated.WithLabelValues(string(n.Category), string(n.Priority)).Inc()

	if plan.Blocked != router.NotBlocked {
		utils.PolicyBlocked.WithLabelValues(string(plan.Blocked)).Inc()
		s.Logger.Debug("Outbound delivery suppressed by policy",
			zap.String("notificationID", n.ID),
			zap.String("reason", string(plan.Blocked)))
	}

	for _, r := range s.deliver(ctx, n, plan) {
		n.DeliveryStatus.Merge(r)
		utils.ChannelDeliveries.WithLabelValues(string(r.Channel), utils.Outcome(r.Attempted, r.Delivered)).Inc()
		if r.Err != nil {
			s.Logger.Warn("Channel delivery failed",
				zap.String("notificationID", n.ID),
				zap.String("channel", string(r.Channel)),
				zap.Error(r.Err))
		}
		if err := s.Store.RecordDeliveryStatus(ctx, n.ID, r); err != nil {
			s.Logger.Error("Failed to record delivery status",
				zap.String("notificationID", n.ID),
				zap.String("channel", string(r.Channel)),
				zap.Error(err))
		}
	}

	s.Logger.Info("Notification created",
		zap.String("notificationID", n.ID),
		zap.String("userID", n.UserID),
		zap.String("category", string(n.Category)),
		zap.String("priority", string(n.Priority)),
		zap.Int("outbound", len(plan.Outbound)))
	return n, nil
}

// replay answers a repeated create with the stored record. A key reused for another
// recipient is a conflict, not a replay.
func (s *DefaultNotificationService) replay(req models.CreateRequest, existing *models.Notification) (*models.Notification, error) {
	if existing.UserID != req.UserID {
		s.Logger.Warn("Idempotency key reused for another recipient",
			zap.String("clientID", req.ClientID),
			zap.String("actor", req.CreatedBy),
			zap.String("userID", req.UserID))
		return nil, fmt.Errorf("%w: %s", ErrIdempotencyConflict, req.ClientID)
	}
	s.Logger.Info("Replayed notification create", zap.String("clientID", req.ClientID), zap.String("notificationID", existing.ID))
	return existing, nil
}

// route resolves the recipient's policy. If the policy cannot be read the default one is
// used so the notification still lands.
func (s *DefaultNotificationService) route(ctx context.Context, req models.CreateRequest, now time.Time) router.ChannelPlan {
	pref, err := s.Prefs.Resolve(ctx, req.UserID)
	if err != nil {
		s.Logger.Warn("Preference resolution failed, using defaults", zap.String("userID", req.UserID), zap.Error(err))
		pref = models.DefaultPreference(req.UserID)
	}
	return s.Router.Route(pref, req.Priority, req.Category, now)
}

// deliver runs the planned outbound senders in parallel and collects one result per channel.
func (s *DefaultNotificationService) deliver(ctx context.Context, n *models.Notification, plan router.ChannelPlan) []models.ChannelResult {
	results := make([]models.ChannelResult, len(plan.Outbound))

	var wg conc.WaitGroup
	for i, ch := range plan.Outbound {
		sender, ok := s.Outbound[ch]
		if !ok {
			s.Logger.Warn("No sender configured for channel", zap.String("channel", string(ch)))
			continue
		}
		i := i
		wg.Go(func() {
			results[i] = sender.Send(ctx, n)
		})
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		s.Logger.Error("Channel sender panicked", zap.String("notificationID", n.ID), zap.String("panic", recovered.String()))
	}

	out := make([]models.ChannelResult, 0, len(results))
	for i, r := range results {
		if r.Channel == "" {
			if _, ok := s.Outbound[plan.Outbound[i]]; !ok {
				continue
			}
			r = models.ChannelResult{Channel: plan.Outbound[i], Attempted: true, Err: errors.New("sender panicked")}
		}
		out = append(out, r)
	}
	return out
}
