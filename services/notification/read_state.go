package notification

import (
	"context"
	"errors"
	"fmt"

	notificationRepo "beacon/database/repository/notification"
	"beacon/models"
	"beacon/services/views"

	"go.uber.org/zap"
)

func (s *DefaultNotificationService) GetNotification(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := s.Store.GetByID(ctx, id)
	if errors.Is(err, notificationRepo.ErrNotFound) || (err == nil && n.UserID != userID) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification %s: %w", id, err)
	}
	return n, nil
}

func (s *DefaultNotificationService) ListNotifications(ctx context.Context, userID string, filter models.ListFilter) ([]models.Notification, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	list, err := s.Store.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list notifications for %s: %w", userID, err)
	}
	return list, nil
}

func (s *DefaultNotificationService) CountUnread(ctx context.Context, userID string) (int64, error) {
	count, err := s.Store.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread for %s: %w", userID, err)
	}
	return count, nil
}

// MarkRead is idempotent: reading an already-read notification changes nothing.
func (s *DefaultNotificationService) MarkRead(ctx context.Context, userID, id string) error {
	changed, err := s.Store.MarkRead(ctx, userID, id, s.Now().UTC())
	if errors.Is(err, notificationRepo.ErrNotFound) {
		return ErrNotificationNotFound
	}
	if err != nil {
		return fmt.Errorf("mark read %s: %w", id, err)
	}
	if changed {
		s.publish(userID, views.Event{Type: views.EventRead, Data: map[string]string{"id": id}})
	}
	return nil
}

func (s *DefaultNotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	changed, err := s.Store.MarkAllRead(ctx, userID, s.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark all read for %s: %w", userID, err)
	}
	if changed > 0 {
		s.publish(userID, views.Event{Type: views.EventRead, Data: map[string]string{"id": "*"}})
	}
	s.Logger.Debug("Marked all read", zap.String("userID", userID), zap.Int64("changed", changed))
	return changed, nil
}

func (s *DefaultNotificationService) DeleteNotification(ctx context.Context, userID, id string) error {
	err := s.Store.Delete(ctx, userID, id)
	if errors.Is(err, notificationRepo.ErrNotFound) {
		return ErrNotificationNotFound
	}
	if err != nil {
		return fmt.Errorf("delete notification %s: %w", id, err)
	}
	s.Logger.Info("Notification deleted", zap.String("userID", userID), zap.String("notificationID", id))
	return nil
}

// HandleClick marks the notification read and sends the user to what it refers to, reusing
// an open view when there is one.
func (s *DefaultNotificationService) HandleClick(ctx context.Context, userID, id string) (models.ClickOutcome, error) {
	n, err := s.GetNotification(ctx, userID, id)
	if err != nil {
		return models.ClickOutcome{}, err
	}
	if err := s.MarkRead(ctx, userID, id); err != nil {
		return models.ClickOutcome{}, err
	}

	out := models.ClickOutcome{Action: models.ClickOpen, URL: n.TargetURL()}
	if s.Views != nil && s.Views.Focus(userID, out.URL) {
		out.Action = models.ClickFocused
	}
	return out, nil
}

func (s *DefaultNotificationService) publish(userID string, e views.Event) {
	if s.Views != nil {
		s.Views.Publish(userID, e)
	}
}
