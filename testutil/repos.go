// Package testutil provides in-memory stores and fixed clocks for package tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	notificationRepo "beacon/database/repository/notification"
	preferenceRepo "beacon/database/repository/preference"
	subscriptionRepo "beacon/database/repository/subscription"
	"beacon/models"

	"github.com/google/uuid"
)

// NotificationStore is an in-memory NotificationRepository.
// Set CreateErr to simulate an unavailable store.
type NotificationStore struct {
	mu        sync.Mutex
	order     []string
	byID      map[string]*models.Notification
	CreateErr error
	// StatusWrites counts RecordDeliveryStatus and read-flag mutations.
	StatusWrites int
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{byID: map[string]*models.Notification{}}
}

func (s *NotificationStore) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	if n.ClientID != "" {
		for _, existing := range s.byID {
			if existing.ClientID == n.ClientID && existing.CreatedBy == n.CreatedBy {
				return notificationRepo.ErrDuplicateClientID
			}
		}
	}
	cp := *n
	s.byID[n.ID] = &cp
	s.order = append(s.order, n.ID)
	return nil
}

func (s *NotificationStore) GetByID(_ context.Context, id string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return nil, notificationRepo.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *NotificationStore) GetByClientID(_ context.Context, createdBy, clientID string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.byID {
		if n.ClientID == clientID && n.CreatedBy == createdBy {
			cp := *n
			return &cp, nil
		}
	}
	return nil, notificationRepo.ErrNotFound
}

func (s *NotificationStore) ListByUser(_ context.Context, userID string, filter models.ListFilter) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Notification{}
	for i := len(s.order) - 1; i >= 0; i-- {
		n, ok := s.byID[s.order[i]]
		if !ok || n.UserID != userID || (filter.UnreadOnly && n.Read) {
			continue
		}
		out = append(out, *n)
	}
	if filter.Offset > 0 {
		if filter.Offset >= int64(len(out)) {
			return []models.Notification{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *NotificationStore) CountUnread(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.byID {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *NotificationStore) RecordDeliveryStatus(_ context.Context, id string, result models.ChannelResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return notificationRepo.ErrNotFound
	}
	n.DeliveryStatus.Merge(result)
	s.StatusWrites++
	return nil
}

func (s *NotificationStore) markRead(n *models.Notification, at time.Time) {
	n.Read = true
	readAt := at
	n.ReadAt = &readAt
	n.DeliveryStatus.InApp.Attempted = true
	n.DeliveryStatus.InApp.Delivered = true
	s.StatusWrites++
}

func (s *NotificationStore) MarkRead(_ context.Context, userID, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok || n.UserID != userID {
		return false, notificationRepo.ErrNotFound
	}
	if n.Read {
		return false, nil
	}
	s.markRead(n, at)
	return true, nil
}

func (s *NotificationStore) MarkAllRead(_ context.Context, userID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for _, n := range s.byID {
		if n.UserID == userID && !n.Read {
			s.markRead(n, at)
			changed++
		}
	}
	return changed, nil
}

func (s *NotificationStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok || n.UserID != userID {
		return notificationRepo.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// Len reports how many notifications are stored.
func (s *NotificationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// PreferenceStore is an in-memory PreferenceRepository.
type PreferenceStore struct {
	mu      sync.Mutex
	byUser  map[string]models.Preference
	Inserts int
}

func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{byUser: map[string]models.Preference{}}
}

// Put stores a preference directly.
func (s *PreferenceStore) Put(p *models.Preference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.Normalize()
	s.byUser[p.UserID] = cp
}

func (s *PreferenceStore) GetByUserID(_ context.Context, userID string) (*models.Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byUser[userID]
	if !ok {
		return nil, preferenceRepo.ErrNotFound
	}
	return &p, nil
}

func (s *PreferenceStore) InsertIfAbsent(_ context.Context, p *models.Preference) (*models.Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byUser[p.UserID]; ok {
		return &existing, nil
	}
	s.byUser[p.UserID] = *p
	s.Inserts++
	cp := *p
	return &cp, nil
}

func (s *PreferenceStore) Upsert(_ context.Context, p *models.Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[p.UserID] = *p
	return nil
}

// SubscriptionStore is an in-memory SubscriptionRepository.
type SubscriptionStore struct {
	mu   sync.Mutex
	subs []*models.Subscription
}

func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{}
}

func (s *SubscriptionStore) Upsert(_ context.Context, sub *models.Subscription) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.subs {
		if existing.Endpoint == sub.Endpoint {
			existing.UserID = sub.UserID
			existing.Kind = sub.Kind
			existing.Keys = sub.Keys
			existing.UserAgent = sub.UserAgent
			existing.IsActive = true
			existing.DeactivatedAt = nil
			existing.DeactivationReason = ""
			cp := *existing
			return &cp, nil
		}
	}
	cp := *sub
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.IsActive = true
	s.subs = append(s.subs, &cp)
	out := cp
	return &out, nil
}

func (s *SubscriptionStore) GetByEndpoint(_ context.Context, endpoint string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.Endpoint == endpoint {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, subscriptionRepo.ErrNotFound
}

func (s *SubscriptionStore) list(userID string, activeOnly bool) []models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Subscription{}
	for _, sub := range s.subs {
		if sub.UserID == userID && (!activeOnly || sub.IsActive) {
			out = append(out, *sub)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *SubscriptionStore) ListActiveByUser(_ context.Context, userID string) ([]models.Subscription, error) {
	return s.list(userID, true), nil
}

// All returns every subscription of the user, inactive ones included.
func (s *SubscriptionStore) All(userID string) []models.Subscription {
	return s.list(userID, false)
}

func (s *SubscriptionStore) Deactivate(_ context.Context, id, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.ID == id {
			sub.IsActive = false
			deactivatedAt := at
			sub.DeactivatedAt = &deactivatedAt
			sub.DeactivationReason = reason
			return nil
		}
	}
	return subscriptionRepo.ErrNotFound
}

func (s *SubscriptionStore) Touch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.ID == id {
			usedAt := at
			sub.LastUsedAt = &usedAt
			return nil
		}
	}
	return subscriptionRepo.ErrNotFound
}

// FixedClock returns a clock function pinned to t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// At builds a UTC time on 2026-10-17 at hh:mm.
func At(hh, mm int) time.Time {
	return time.Date(2026, 10, 17, hh, mm, 0, 0, time.UTC)
}

var (
	_ notificationRepo.NotificationRepository = (*NotificationStore)(nil)
	_ preferenceRepo.PreferenceRepository     = (*PreferenceStore)(nil)
	_ subscriptionRepo.SubscriptionRepository = (*SubscriptionStore)(nil)
)
