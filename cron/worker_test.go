package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"voicebook/models"
	"voicebook/services/tasks"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type senderFunc func(ctx context.Context, p models.ReminderPayload) error

func (f senderFunc) SendReminder(ctx context.Context, p models.ReminderPayload) error { return f(ctx, p) }

func TestHandleReminderTask(t *testing.T) {
	var got models.ReminderPayload
	h := HandleReminderTask(senderFunc(func(_ context.Context, p models.ReminderPayload) error {
		got = p
		return nil
	}), zap.NewNop())

	task, _, err := tasks.NewReminderTask(models.ReminderPayload{CommitmentID: "c-1", Title: "t"}, timeZero)
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))
	assert.Equal(t, "c-1", got.CommitmentID)
}

func TestHandleReminderTaskErrors(t *testing.T) {
	failing := HandleReminderTask(senderFunc(func(context.Context, models.ReminderPayload) error {
		return errors.New("fcm down")
	}), zap.NewNop())

	bad := asynq.NewTask(tasks.TypeSendReminder, []byte("{"))
	assert.ErrorIs(t, failing.ProcessTask(context.Background(), bad), asynq.SkipRetry)

	task, _, err := tasks.NewReminderTask(models.ReminderPayload{CommitmentID: "c-1"}, timeZero)
	require.NoError(t, err)
	assert.EqualError(t, failing.ProcessTask(context.Background(), task), "fcm down")
}
var timeZero = time.Date(2025, 6, 11, 14, 0, 0, 0, time.UTC)
