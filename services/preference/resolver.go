package preference

import (
	"context"
	"errors"
	"fmt"
	"time"

	preferenceRepo "beacon/database/repository/preference"
	"beacon/models"

	"go.uber.org/zap"
)

// Resolver yields the delivery policy for a user.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (*models.Preference, error)
	Update(ctx context.Context, userID string, p *models.Preference) (*models.Preference, error)
}

// DefaultResolver reads through an optional cache to the preference store and persists the
// default policy the first time a user is resolved.
type DefaultResolver struct {
	Repo   preferenceRepo.PreferenceRepository
	Cache  Cache
	Logger *zap.Logger
	Now    func() time.Time
}

func NewDefaultResolver(repo preferenceRepo.PreferenceRepository, cache Cache, logger *zap.Logger) *DefaultResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultResolver{Repo: repo, Cache: cache, Logger: logger, Now: time.Now}
}

func (r *DefaultResolver) Resolve(ctx context.Context, userID string) (*models.Preference, error) {
	if r.Cache != nil {
		p, ok, err := r.Cache.Get(ctx, userID)
		if err != nil {
			r.Logger.Warn("preference cache read failed", zap.String("userID", userID), zap.Error(err))
		} else if ok {
			return p, nil
		}
	}

	p, err := r.Repo.GetByUserID(ctx, userID)
	if errors.Is(err, preferenceRepo.ErrNotFound) {
		def := models.DefaultPreference(userID)
		def.UpdatedAt = r.Now().UTC()
		p, err = r.Repo.InsertIfAbsent(ctx, def)
		if err == nil {
			r.Logger.Debug("persisted default preference", zap.String("userID", userID))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve preference for %s: %w", userID, err)
	}

	r.remember(ctx, p)
	return p, nil
}

func (r *DefaultResolver) Update(ctx context.Context, userID string, p *models.Preference) (*models.Preference, error) {
	p.UserID = userID
	p.Normalize()
	if err := Validate(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = r.Now().UTC()

	if err := r.Repo.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("update preference for %s: %w", userID, err)
	}
	if r.Cache != nil {
		if err := r.Cache.Invalidate(ctx, userID); err != nil {
			r.Logger.Warn("preference cache invalidate failed", zap.String("userID", userID), zap.Error(err))
		}
	}
	return p, nil
}

func (r *DefaultResolver) remember(ctx context.Context, p *models.Preference) {
	if r.Cache == nil {
		return
	}
	if err := r.Cache.Set(ctx, p); err != nil {
		r.Logger.Warn("preference cache write failed", zap.String("userID", p.UserID), zap.Error(err))
	}
}
