package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"voicebook/models"

	"github.com/hibiken/asynq"
)

const (
	TypeSendReminder = "reminder:send"
	ReminderQueue    = "default"
)

// ReminderTaskID is stable per commitment so a cancellation can find it and a
// retried confirmation cannot schedule it twice.
func ReminderTaskID(commitmentID string) string {
	return "reminder:" + commitmentID
}

func NewReminderTask(payload models.ReminderPayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSendReminder, b)
	opts := []asynq.Option{
		asynq.ProcessAt(fireAt),
		asynq.TaskID(ReminderTaskID(payload.CommitmentID)),
		asynq.Queue(ReminderQueue),
		asynq.MaxRetry(3),
	}

	return task, opts, nil
}

func ParseReminderPayload(task *asynq.Task) (models.ReminderPayload, error) {
	var p models.ReminderPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid reminder payload: %w", err)
	}
	if p.CommitmentID == "" {
		return p, fmt.Errorf("invalid reminder payload: missing commitment id")
	}
	return p, nil
}
