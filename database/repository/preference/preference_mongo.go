package preferenceRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"beacon/database"
	"beacon/models"
	"beacon/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("preference not found")

// PreferenceRepository defines methods for per-user delivery policy access.
type PreferenceRepository interface {
	// GetByUserID retrieves a user's stored preference.
	GetByUserID(ctx context.Context, userID string) (*models.Preference, error)
	// InsertIfAbsent stores p unless the user already has a preference, and returns whichever is stored.
	InsertIfAbsent(ctx context.Context, p *models.Preference) (*models.Preference, error)
	// Upsert replaces the user's preference.
	Upsert(ctx context.Context, p *models.Preference) error
}

// MongoPreferenceRepo implements PreferenceRepository using MongoDB.
type MongoPreferenceRepo struct {
	coll *mongo.Collection
}

func NewMongoPreferenceRepo() PreferenceRepository {
	repo := &MongoPreferenceRepo{coll: database.Collection("notification_preferences")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := repo.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		utils.GetLogger().Warn("notification_preferences: failed to create indexes", zap.Error(err))
	}
	return repo
}

func (r *MongoPreferenceRepo) GetByUserID(ctx context.Context, userID string) (*models.Preference, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var p models.Preference
	if err := r.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch preference for %s: %w", userID, err)
	}
	p.Normalize()
	return &p, nil
}

func (r *MongoPreferenceRepo) InsertIfAbsent(ctx context.Context, p *models.Preference) (*models.Preference, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored models.Preference
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"user_id": p.UserID}, bson.M{"$setOnInsert": p}, opts).Decode(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to persist default preference for %s: %w", p.UserID, err)
	}
	stored.Normalize()
	return &stored, nil
}

func (r *MongoPreferenceRepo) Upsert(ctx context.Context, p *models.Preference) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"user_id": p.UserID}, p, opts); err != nil {
		return fmt.Errorf("failed to save preference for %s: %w", p.UserID, err)
	}
	return nil
}
