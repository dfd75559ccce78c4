package notificationRepo

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

// MongoNotificationRepo implements NotificationRepository using MongoDB.
type MongoNotificationRepo struct {
	coll *mongo.Collection
}

// NewMongoNotificationRepo creates a new instance of NotificationRepository using MongoDB.
func NewMongoNotificationRepo() NotificationRepository {
	repo := &MongoNotificationRepo{coll: database.Collection("notifications")}

	if err := repo.ensureIndexes(); err != nil {
		utils.GetLogger().Warn("notifications: failed to create indexes", zap.Error(err))
	}
	return repo
}

// newContext derives a context bounded by the given timeout.
func newContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}

// ensureIndexes creates indexes for fields frequently used in queries.
func (r *MongoNotificationRepo) ensureIndexes() error {
	ctx, cancel := newContext(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			// Idempotency keys are scoped to the producer that sent them.
			Keys: bson.D{{Key: "created_by", Value: 1}, {Key: "client_id", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"client_id": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "read", Value: 1}}},
	}

	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, n); err != nil {
		if mongo.IsDuplicateKeyError(err) && n.ClientID != "" {
			return ErrDuplicateClientID
		}
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *MongoNotificationRepo) findOne(ctx context.Context, filter bson.M) (*models.Notification, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var n models.Notification
	if err := r.coll.FindOne(ctx, filter).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch notification: %w", err)
	}
	return &n, nil
}

func (r *MongoNotificationRepo) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

func (r *MongoNotificationRepo) GetByClientID(ctx context.Context, createdBy, clientID string) (*models.Notification, error) {
	return r.findOne(ctx, bson.M{"created_by": createdBy, "client_id": clientID})
}

func (r *MongoNotificationRepo) ListByUser(ctx context.Context, userID string, filter models.ListFilter) ([]models.Notification, error) {
	ctx, cancel := newContext(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{"user_id": userID}
	if filter.UnreadOnly {
		query["read"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	if filter.Offset > 0 {
		opts.SetSkip(filter.Offset)
	}

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for user %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

func (r *MongoNotificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	count, err := r.coll.CountDocuments(ctx, bson.M{"user_id": userID, "read": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// RecordDeliveryStatus touches only the keys under delivery_status.<channel>, so concurrent
// writers for different channels never overwrite each other.
func (r *MongoNotificationRepo) RecordDeliveryStatus(ctx context.Context, id string, result models.ChannelResult) error {
	if !result.Channel.Valid() {
		return fmt.Errorf("unknown channel %q", result.Channel)
	}
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	prefix := "delivery_status." + string(result.Channel)

	if result.Delivered {
		// Only the first delivery stamps sent_at.
		filter := bson.M{"id": id, prefix + ".delivered": bson.M{"$ne": true}}
		update := bson.M{
			"$set": bson.M{
				prefix + ".attempted": true,
				prefix + ".delivered": true,
				prefix + ".sent_at":   result.SentAt,
			},
			"$unset": bson.M{prefix + ".error": ""},
		}
		if _, err := r.coll.UpdateOne(ctx, filter, update); err != nil {
			return fmt.Errorf("failed to record %s delivery for %s: %w", result.Channel, id, err)
		}
		return nil
	}

	if !result.Attempted {
		return nil
	}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{prefix + ".attempted": true}}); err != nil {
		return fmt.Errorf("failed to record %s attempt for %s: %w", result.Channel, id, err)
	}
	if result.Err != nil {
		filter := bson.M{"id": id, prefix + ".delivered": bson.M{"$ne": true}}
		update := bson.M{"$set": bson.M{prefix + ".error": result.Err.Error()}}
		if _, err := r.coll.UpdateOne(ctx, filter, update); err != nil {
			return fmt.Errorf("failed to record %s error for %s: %w", result.Channel, id, err)
		}
	}
	return nil
}

// readUpdate marks a notification read; reading implies the in-app copy was delivered.
func readUpdate(at time.Time) bson.M {
	return bson.M{"$set": bson.M{
		"read":                             true,
		"read_at":                          at,
		"delivery_status.in_app.attempted": true,
		"delivery_status.in_app.delivered": true,
	}}
}

func (r *MongoNotificationRepo) MarkRead(ctx context.Context, userID, id string, at time.Time) (bool, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	result, err := r.coll.UpdateOne(ctx, bson.M{"id": id, "user_id": userID, "read": false}, readUpdate(at))
	if err != nil {
		return false, fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	if result.MatchedCount > 0 {
		return true, nil
	}

	// Nothing unread matched: either already read (no-op) or not this user's notification.
	exists, err := r.coll.CountDocuments(ctx, bson.M{"id": id, "user_id": userID})
	if err != nil {
		return false, fmt.Errorf("failed to look up notification %s: %w", id, err)
	}
	if exists == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func (r *MongoNotificationRepo) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	ctx, cancel := newContext(ctx, 10*time.Second)
	defer cancel()

	result, err := r.coll.UpdateMany(ctx, bson.M{"user_id": userID, "read": false}, readUpdate(at))
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications read for %s: %w", userID, err)
	}
	return result.ModifiedCount, nil
}

func (r *MongoNotificationRepo) Delete(ctx context.Context, userID, id string) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	result, err := r.coll.DeleteOne(ctx, bson.M{"id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete notification %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
