package notification

import (
	"context"

	"voicebook/models"

	"firebase.google.com/go/v4/messaging"
	"github.com/hibiken/asynq"
)

// NotificationService tells the business about bookings and reminds it of
// upcoming ones.
type NotificationService interface {
	SendConfirmation(ctx context.Context, result models.BookingResult, req models.BookingRequest) error
	SendReminder(ctx context.Context, p models.ReminderPayload) error
	CommitmentCancelled(ctx context.Context, c models.Commitment, reason string) error
}

// PushSender is satisfied by *messaging.Client.
type PushSender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskCanceller is satisfied by *asynq.Inspector.
type TaskCanceller interface {
	DeleteTask(queue, id string) error
}
