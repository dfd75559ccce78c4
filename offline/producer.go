package offline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"beacon/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProduceResult is what a producer learns from one create call.
type ProduceResult struct {
	// Notification is set when the engine confirmed the create right away.
	Notification *models.Notification
	// Queued is set when the request is waiting in the local queue for a later drain.
	Queued bool
	ItemID string
}

// Producer is the client-side entry point for creating notifications. Every request is
// written to the local queue before the network is touched.
type Producer struct {
	Store     *Store
	Deliverer Deliverer
	Policy    RetryPolicy
	Logger    *zap.Logger
	Now       func() time.Time
	NewID     func() string
}

func NewProducer(store *Store, deliverer Deliverer, policy RetryPolicy, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		Store:     store,
		Deliverer: deliverer,
		Policy:    policy,
		Logger:    logger,
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
}

// Create queues req and tries to deliver it immediately. Only an unauthenticated request,
// a queue write failure or an engine rejection is returned as an error; a network failure
// leaves the request queued.
func (p *Producer) Create(ctx context.Context, req models.CreateRequest) (ProduceResult, error) {
	if strings.TrimSpace(req.CreatedBy) == "" {
		p.Logger.Warn("Rejected notification without actor", zap.String("userID", req.UserID))
		return ProduceResult{}, ErrUnauthenticated
	}

	now := p.Now().UTC()
	item := models.QueueItem{
		ID:            p.NewID(),
		State:         models.QueuePending,
		CreatedAt:     now,
		NextAttemptAt: now,
	}
	req.ClientID = item.ID
	item.Request = req

	if err := p.Store.Enqueue(ctx, item); err != nil {
		p.Logger.Error("Failed to persist notification request", zap.String("userID", req.UserID), zap.Error(err))
		return ProduceResult{}, fmt.Errorf("%w: %v", ErrQueuePersist, err)
	}
	result := ProduceResult{ItemID: item.ID, Queued: true}

	claimed, err := p.Store.Claim(ctx, item.ID, p.Policy.LeaseUntil(now))
	if err != nil || !claimed {
		// A drain picked it up first; it will be delivered from there.
		return result, nil
	}

	n, err := p.Deliverer.Deliver(ctx, item)
	switch {
	case err == nil:
		if rerr := p.Store.Remove(ctx, item.ID); rerr != nil {
			p.Logger.Error("Delivered item could not be removed", zap.String("itemID", item.ID), zap.Error(rerr))
		}
		return ProduceResult{Notification: n, ItemID: item.ID}, nil
	case isPermanent(err):
		if rerr := p.Store.Remove(ctx, item.ID); rerr != nil {
			p.Logger.Error("Rejected item could not be removed", zap.String("itemID", item.ID), zap.Error(rerr))
		}
		return ProduceResult{ItemID: item.ID}, err
	}

	next := p.Now().Add(p.Policy.NextDelay(1))
	if rerr := p.Store.Requeue(context.WithoutCancel(ctx), item.ID, err.Error(), next); rerr != nil {
		p.Logger.Error("Failed to requeue item", zap.String("itemID", item.ID), zap.Error(rerr))
	}
	p.Logger.Info("Notification queued for later delivery", zap.String("itemID", item.ID), zap.Error(err))
	return result, nil
}
