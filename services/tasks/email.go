package tasks

import (
	"beacon/models"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TypeSendEmail = "email:send"

// NewEmailTask builds the email:send task for one notification. The task id is derived from
// the notification id so a repeated dispatch does not queue a second email.
func NewEmailTask(payload models.EmailPayload) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSendEmail, b)
	opts := []asynq.Option{
		asynq.MaxRetry(8),
		asynq.Timeout(30 * time.Second),
	}
	if payload.NotificationID != "" {
		opts = append(opts, asynq.TaskID("email:"+payload.NotificationID))
	}

	return task, opts, nil
}
