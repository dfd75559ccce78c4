package offline

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"beacon/models"

	"go.uber.org/zap"
)

// Deliverer sends one queued create to the engine.
type Deliverer interface {
	Deliver(ctx context.Context, item models.QueueItem) (*models.Notification, error)
}

// Eviction reasons passed to OnEvict.
const (
	EvictExhausted = "retries_exhausted"
	EvictRejected  = "rejected"
)

// DrainReport summarizes one pass over the queue.
type DrainReport struct {
	Delivered int
	Failed    int
	Evicted   int
	Remaining int
	// Coalesced is set when the call joined a drain already in progress.
	Coalesced bool
}

// SyncWorker replays queued creates whenever connectivity may have returned.
type SyncWorker struct {
	Store     *Store
	Deliverer Deliverer
	Policy    RetryPolicy
	Interval  time.Duration
	BatchSize int
	Logger    *zap.Logger
	Now       func() time.Time
	// OnEvict is told about every item dropped without confirmation so the UI can warn.
	OnEvict func(item models.QueueItem, reason string)

	draining sync.Mutex
	again    atomic.Bool
	expedite atomic.Bool
	trigger  chan struct{}
	// beforeUnlock runs between the last pass and releasing the drain lock. Tests only.
	beforeUnlock func()
}

func NewSyncWorker(store *Store, deliverer Deliverer, policy RetryPolicy, logger *zap.Logger) *SyncWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncWorker{
		Store:     store,
		Deliverer: deliverer,
		Policy:    policy,
		Interval:  time.Minute,
		BatchSize: 100,
		Logger:    logger,
		Now:       time.Now,
		trigger:   make(chan struct{}, 1),
	}
}

// Trigger asks the running worker to drain soon. It never blocks.
func (w *SyncWorker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Expedite makes the next drain try every pending item regardless of its backoff. It is for
// moments when connectivity is known to be back.
func (w *SyncWorker) Expedite() {
	w.expedite.Store(true)
	w.Trigger()
}

// Run drains on every trigger and on the periodic interval until ctx is done.
func (w *SyncWorker) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.Logger.Info("Sync worker started", zap.Duration("interval", interval))
	w.Drain(ctx)
	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("Sync worker stopped")
			return ctx.Err()
		case <-ticker.C:
		case <-w.trigger:
		}
		w.Drain(ctx)
	}
}

// Drain attempts every due item once, oldest first. A failure on one item never stops the
// rest. Calls made while a drain is running return at once and cause one more pass.
func (w *SyncWorker) Drain(ctx context.Context) DrainReport {
	if !w.draining.TryLock() {
		w.again.Store(true)
		return DrainReport{Coalesced: true}
	}

	var report DrainReport
	for {
		w.again.Store(false)
		w.drainOnce(ctx, &report)
		if w.again.Load() && ctx.Err() == nil {
			continue
		}
		if w.beforeUnlock != nil {
			w.beforeUnlock()
		}
		w.draining.Unlock()
		// A caller that found the lock held after the last pass only left the flag behind.
		if !w.again.Load() || ctx.Err() != nil || !w.draining.TryLock() {
			break
		}
	}

	remaining, err := w.Store.Count(ctx)
	if err != nil {
		w.Logger.Warn("Failed to count queue", zap.Error(err))
	}
	report.Remaining = remaining
	if report.Delivered+report.Failed+report.Evicted > 0 {
		w.Logger.Info("Queue drained",
			zap.Int("delivered", report.Delivered),
			zap.Int("failed", report.Failed),
			zap.Int("evicted", report.Evicted),
			zap.Int("remaining", report.Remaining))
	}
	return report
}

func (w *SyncWorker) drainOnce(ctx context.Context, report *DrainReport) {
	now := w.Now()

	evicted, err := w.Store.Evict(ctx, w.Policy, now)
	if err != nil {
		w.Logger.Error("Failed to evict exhausted items", zap.Error(err))
	}
	for _, item := range evicted {
		w.evicted(item, EvictExhausted)
		report.Evicted++
	}

	// Claims whose settle never landed (a failed Remove or Requeue, a killed producer) go
	// back to pending once their lease runs out.
	if released, err := w.Store.ReleaseExpired(ctx, now); err != nil {
		w.Logger.Error("Failed to release expired claims", zap.Error(err))
	} else if released > 0 {
		w.Logger.Warn("Released expired claims", zap.Int64("count", released))
	}

	due := now
	if w.expedite.Swap(false) {
		due = time.Unix(0, math.MaxInt64)
	}
	items, err := w.Store.Pending(ctx, due, w.BatchSize)
	if err != nil {
		w.Logger.Error("Failed to load pending items", zap.Error(err))
		return
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return
		}
		claimed, err := w.Store.Claim(ctx, item.ID, w.Policy.LeaseUntil(now))
		if err != nil {
			w.Logger.Error("Failed to claim item", zap.String("itemID", item.ID), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}

		switch outcome := w.attempt(ctx, item); outcome {
		case outcomeDelivered:
			report.Delivered++
		case outcomeDropped:
			report.Evicted++
		default:
			report.Failed++
		}
	}
}

type attemptOutcome int

const (
	outcomeDelivered attemptOutcome = iota
	outcomeRetry
	outcomeDropped
)

// attempt delivers a claimed item and settles it. Delivered, rejected and exhausted items
// are removed; anything else goes back to pending with backoff.
func (w *SyncWorker) attempt(ctx context.Context, item models.QueueItem) attemptOutcome {
	_, err := w.Deliverer.Deliver(ctx, item)
	if err == nil {
		if rerr := w.Store.Remove(ctx, item.ID); rerr != nil {
			w.Logger.Error("Delivered item could not be removed", zap.String("itemID", item.ID), zap.Error(rerr))
		}
		return outcomeDelivered
	}

	item.Attempts++
	item.LastError = err.Error()
	reason := ""
	switch {
	case isPermanent(err):
		reason = EvictRejected
	case w.Policy.Exhausted(item, w.Now()):
		reason = EvictExhausted
	}
	if reason != "" {
		if rerr := w.Store.Remove(context.WithoutCancel(ctx), item.ID); rerr != nil {
			w.Logger.Error("Dropped item could not be removed", zap.String("itemID", item.ID), zap.Error(rerr))
		}
		w.evicted(item, reason)
		return outcomeDropped
	}

	next := w.Now().Add(w.Policy.NextDelay(item.Attempts))
	// The requeue must land even if ctx was cancelled mid-delivery, or the item stays inflight.
	if rerr := w.Store.Requeue(context.WithoutCancel(ctx), item.ID, err.Error(), next); rerr != nil {
		w.Logger.Error("Failed to requeue item", zap.String("itemID", item.ID), zap.Error(rerr))
	}
	w.Logger.Warn("Queued notification delivery failed",
		zap.String("itemID", item.ID),
		zap.Int("attempts", item.Attempts),
		zap.Time("nextAttemptAt", next),
		zap.Error(err))
	return outcomeRetry
}

func (w *SyncWorker) evicted(item models.QueueItem, reason string) {
	w.Logger.Warn("Queued notification dropped",
		zap.String("itemID", item.ID),
		zap.String("reason", reason),
		zap.Int("attempts", item.Attempts),
		zap.String("lastError", item.LastError))
	if w.OnEvict != nil {
		w.OnEvict(item, reason)
	}
}
