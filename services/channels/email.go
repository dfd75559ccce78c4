package channels

import (
	"context"
	"errors"
	"fmt"

	"beacon/models"
	"beacon/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// EmailDispatcher hands an email off for asynchronous delivery.
type EmailDispatcher interface {
	Dispatch(ctx context.Context, payload models.EmailPayload) error
}

// Email is fire-and-forget: the channel counts as attempted once the message is
// queued, and the worker marks it delivered after the gateway accepts it.
type Email struct {
	Dispatcher EmailDispatcher
	Logger     *zap.Logger
}

func NewEmail(d EmailDispatcher, logger *zap.Logger) *Email {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Email{Dispatcher: d, Logger: logger}
}

func (s *Email) Channel() models.Channel { return models.ChannelEmail }

func (s *Email) Send(ctx context.Context, n *models.Notification) models.ChannelResult {
	if err := s.Dispatcher.Dispatch(ctx, models.EmailPayloadFor(n)); err != nil {
		s.Logger.Error("Failed to dispatch email", zap.String("notificationID", n.ID), zap.Error(err))
		return failed(models.ChannelEmail, fmt.Errorf("email dispatch: %w", err))
	}
	return models.ChannelResult{Channel: models.ChannelEmail, Attempted: true}
}

// Enqueuer is the part of *asynq.Client used to queue tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqDispatcher queues email:send tasks on redis for the worker.
type AsynqDispatcher struct {
	Client Enqueuer
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, payload models.EmailPayload) error {
	task, opts, err := tasks.NewEmailTask(payload)
	if err != nil {
		return err
	}
	_, err = d.Client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return nil
}
