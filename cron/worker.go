package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"beacon/config"
	"beacon/models"
	"beacon/services/tasks"
	"beacon/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// DeliveryRecorder stores a channel outcome on a notification.
type DeliveryRecorder interface {
	RecordDeliveryStatus(ctx context.Context, id string, result models.ChannelResult) error
}

// EmailSender is the outbound mail transport.
type EmailSender interface {
	Send(ctx context.Context, payload models.EmailPayload) error
}

// EmailWorker consumes email:send tasks.
type EmailWorker struct {
	Sender   EmailSender
	Recorder DeliveryRecorder
	Logger   *zap.Logger
	Now      func() time.Time
}

func NewEmailWorker(sender EmailSender, recorder DeliveryRecorder, logger *zap.Logger) *EmailWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailWorker{Sender: sender, Recorder: recorder, Logger: logger, Now: time.Now}
}

// HandleEmailTask sends one email and marks the notification's email channel delivered.
func (w *EmailWorker) HandleEmailTask(ctx context.Context, task *asynq.Task) error {
	var p models.EmailPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		w.Logger.Error("Invalid email task payload", zap.Error(err))
		return fmt.Errorf("decode email payload: %w", asynq.SkipRetry)
	}

	if err := w.Sender.Send(ctx, p); err != nil {
		w.Logger.Warn("Email send failed",
			zap.String("notificationID", p.NotificationID),
			zap.String("userID", p.UserID),
			zap.Error(err))
		utils.ChannelDeliveries.WithLabelValues(string(models.ChannelEmail), "failed").Inc()
		return err
	}
	utils.ChannelDeliveries.WithLabelValues(string(models.ChannelEmail), "delivered").Inc()

	if p.NotificationID == "" {
		return nil
	}
	result := models.ChannelResult{
		Channel:   models.ChannelEmail,
		Attempted: true,
		Delivered: true,
		SentAt:    w.Now().UTC(),
	}
	if err := w.Recorder.RecordDeliveryStatus(ctx, p.NotificationID, result); err != nil {
		// The email went out; retrying would send it twice.
		w.Logger.Error("Failed to record email delivery", zap.String("notificationID", p.NotificationID), zap.Error(err))
	}
	w.Logger.Info("Email delivered", zap.String("notificationID", p.NotificationID), zap.String("userID", p.UserID))
	return nil
}

// Mux routes task types to their handlers.
func (w *EmailWorker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendEmail, w.HandleEmailTask)
	return mux
}

func queueRedisOpt() asynq.RedisClientOpt {
	opt := utils.QueueRedisOpt()
	return asynq.RedisClientOpt{Addr: opt.Addr, Password: opt.Password, DB: opt.DB}
}

// NewQueueClient returns the asynq client used to enqueue email tasks.
func NewQueueClient() *asynq.Client {
	return asynq.NewClient(queueRedisOpt())
}

// RunEmailWorker runs the asynq server until ctx is cancelled.
func RunEmailWorker(ctx context.Context, worker *EmailWorker) error {
	concurrency := config.AppConfig.EmailConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(
		queueRedisOpt(),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
			Logger: worker.Logger.Sugar(),
		},
	)

	go monitorRedisConnection(ctx, worker.Logger)

	const maxAttempts = 5
	var err error
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = srv.Start(worker.Mux()); err == nil {
			break
		}
		worker.Logger.Warn("Email worker failed to start", zap.Int("attempt", attempts), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempts*2) * time.Second):
		}
	}
	if err != nil {
		return fmt.Errorf("start email worker: %w", err)
	}
	worker.Logger.Info("Email worker started", zap.Int("concurrency", concurrency))

	<-ctx.Done()
	srv.Shutdown()
	worker.Logger.Info("Email worker stopped")
	return nil
}

// monitorRedisConnection pings the queue database periodically to surface broker outages.
func monitorRedisConnection(ctx context.Context, logger *zap.Logger) {
	client := utils.NewQueueRedisClient()
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(ctx).Err(); err != nil && ctx.Err() == nil {
				logger.Warn("Queue redis connection lost", zap.Error(err))
			}
		}
	}
}
