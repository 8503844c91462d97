package cron

import (
	"context"
	"time"

	"voicebook/config"
	"voicebook/models"
	"voicebook/services/tasks"
	"voicebook/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ReminderSender is the part of the notification service the worker needs.
type ReminderSender interface {
	SendReminder(ctx context.Context, p models.ReminderPayload) error
}

// RedisOpt is the queue connection shared by the worker, the enqueuer and the inspector.
func RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// InitReminderWorker runs the async worker in background. The returned server
// is shut down by the caller.
func InitReminderWorker(sender ReminderSender) *asynq.Server {
	logger := utils.GetLogger().With(zap.String("component", "reminder-worker"))

	srv := asynq.NewServer(
		RedisOpt(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				tasks.ReminderQueue: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Warn("Reminder task failed", zap.String("type", task.Type()), zap.Error(err))
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendReminder, HandleReminderTask(sender, logger))

	go func() {
		logger.Info("Starting async worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := srv.Run(mux)
			if err == nil {
				return
			}
			logger.Error("Failed to start worker", zap.Int("attempt", attempts), zap.Error(err))
			if attempts == maxAttempts {
				logger.Error("Max retry attempts reached; reminders are disabled")
				return
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}()
	return srv
}

func HandleReminderTask(sender ReminderSender, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		p, err := tasks.ParseReminderPayload(task)
		if err != nil {
			logger.Error("Dropping reminder with invalid payload", zap.Error(err))
			return asynq.SkipRetry
		}

		logger.Info("Triggering reminder", zap.String("commitmentId", p.CommitmentID), zap.String("title", p.Title))
		if err := sender.SendReminder(ctx, p); err != nil {
			logger.Warn("Failed to send reminder", zap.String("commitmentId", p.CommitmentID), zap.Error(err))
			return err
		}
		return nil
	}
}
