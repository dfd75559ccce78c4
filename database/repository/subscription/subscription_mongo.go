package subscriptionRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"beacon/database"
	"beacon/models"
	"beacon/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("subscription not found")

// SubscriptionRepository defines methods for push endpoint access.
// Subscriptions are never hard-deleted.
type SubscriptionRepository interface {
	// Upsert registers an endpoint, re-activating and re-owning it if it already exists.
	Upsert(ctx context.Context, s *models.Subscription) (*models.Subscription, error)
	GetByEndpoint(ctx context.Context, endpoint string) (*models.Subscription, error)
	ListActiveByUser(ctx context.Context, userID string) ([]models.Subscription, error)
	// Deactivate soft-deletes a subscription.
	Deactivate(ctx context.Context, id, reason string, at time.Time) error
	// Touch records a successful delivery.
	Touch(ctx context.Context, id string, at time.Time) error
}

// MongoSubscriptionRepo implements SubscriptionRepository using MongoDB.
type MongoSubscriptionRepo struct {
	coll *mongo.Collection
}

func NewMongoSubscriptionRepo() SubscriptionRepository {
	repo := &MongoSubscriptionRepo{coll: database.Collection("push_subscriptions")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "endpoint", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_active", Value: 1}}},
	}
	if _, err := repo.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		utils.GetLogger().Warn("push_subscriptions: failed to create indexes", zap.Error(err))
	}
	return repo
}

func (r *MongoSubscriptionRepo) Upsert(ctx context.Context, s *models.Subscription) (*models.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	update := bson.M{
		"$set": bson.M{
			"user_id":    s.UserID,
			"kind":       s.Kind,
			"keys":       s.Keys,
			"user_agent": s.UserAgent,
			"is_active":  true,
		},
		"$unset":       bson.M{"deactivated_at": "", "deactivation_reason": ""},
		"$setOnInsert": bson.M{"id": uuid.NewString(), "created_at": createdAt},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored models.Subscription
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"endpoint": s.Endpoint}, update, opts).Decode(&stored); err != nil {
		return nil, fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return &stored, nil
}

func (r *MongoSubscriptionRepo) GetByEndpoint(ctx context.Context, endpoint string) (*models.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var s models.Subscription
	if err := r.coll.FindOne(ctx, bson.M{"endpoint": endpoint}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	return &s, nil
}

func (r *MongoSubscriptionRepo) list(ctx context.Context, filter bson.M) ([]models.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer cursor.Close(ctx)

	subs := []models.Subscription{}
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, fmt.Errorf("failed to decode subscriptions: %w", err)
	}
	return subs, nil
}

func (r *MongoSubscriptionRepo) ListActiveByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	return r.list(ctx, bson.M{"user_id": userID, "is_active": true})
}

func (r *MongoSubscriptionRepo) Deactivate(ctx context.Context, id, reason string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"is_active":           false,
		"deactivated_at":      at,
		"deactivation_reason": reason,
	}}
	result, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to deactivate subscription %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoSubscriptionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{"last_used_at": at}}); err != nil {
		return fmt.Errorf("failed to touch subscription %s: %w", id, err)
	}
	return nil
}
