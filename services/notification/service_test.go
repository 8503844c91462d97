package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voicebook/models"
	"voicebook/services/tasks"

	"firebase.google.com/go/v4/messaging"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePush struct {
	mu   sync.Mutex
	msgs []*messaging.Message
	err  error
}

func (f *fakePush) Send(_ context.Context, msg *messaging.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.msgs = append(f.msgs, msg)
	return "projects/x/messages/1", nil
}

type enqueued struct {
	task *asynq.Task
	opts []asynq.Option
}

type fakeQueue struct {
	got []enqueued
	err error
}

func (f *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.got = append(f.got, enqueued{task, opts})
	return &asynq.TaskInfo{ID: "reminder:c-1", Queue: tasks.ReminderQueue}, nil
}

type fakeInspector struct {
	deleted []string
	err     error
}

func (f *fakeInspector) DeleteTask(queue, id string) error {
	f.deleted = append(f.deleted, queue+"/"+id)
	return f.err
}

var paris, _ = time.LoadLocation("Europe/Paris")

func confirmed() (models.BookingResult, models.BookingRequest) {
	start := time.Date(2025, 6, 12, 14, 0, 0, 0, paris)
	slot := models.Slot{Date: "2025-06-12", Start: start, End: start.Add(30 * time.Minute)}
	req := models.BookingRequest{
		ID: "r-1", ServiceType: "consultation", Date: "2025-06-12", Time: "14:00",
		Name: "Marie Curie", Phone: "0612345678", Email: "marie@example.com", Language: models.LanguageFrench,
	}
	return models.Confirmed("c-1", slot), req
}

// newService only sets the collaborators it is given, so a nil fake stays a
// nil interface rather than a typed nil.
func newService(push *fakePush, q *fakeQueue, in *fakeInspector) *DefaultNotificationService {
	svc := &DefaultNotificationService{
		Topic:    "bookings",
		LeadTime: 24 * time.Hour,
		Logger:   zap.NewNop(),
		Now:      func() time.Time { return time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC) },
	}
	if push != nil {
		svc.Push = push
	}
	if q != nil {
		svc.Queue = q
	}
	if in != nil {
		svc.Inspector = in
	}
	return svc
}

func optionValue(opts []asynq.Option, typ asynq.OptionType) interface{} {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value()
		}
	}
	return nil
}

func TestSendConfirmationPushesAndSchedulesReminder(t *testing.T) {
	push, q := &fakePush{}, &fakeQueue{}
	svc := newService(push, q, nil)
	result, req := confirmed()

	require.NoError(t, svc.SendConfirmation(context.Background(), result, req))

	require.Len(t, push.msgs, 1)
	msg := push.msgs[0]
	assert.Equal(t, "bookings", msg.Topic)
	assert.Equal(t, "Nouveau rendez-vous", msg.Notification.Title)
	assert.Equal(t, "consultation pour Marie Curie le jeudi 12 juin à 14:00", msg.Notification.Body)
	assert.Equal(t, "c-1", msg.Data["commitmentId"])

	require.Len(t, q.got, 1)
	assert.Equal(t, tasks.TypeSendReminder, q.got[0].task.Type())
	assert.Equal(t, "reminder:c-1", optionValue(q.got[0].opts, asynq.TaskIDOpt))
	fireAt, ok := optionValue(q.got[0].opts, asynq.ProcessAtOpt).(time.Time)
	require.True(t, ok)
	assert.True(t, fireAt.Equal(time.Date(2025, 6, 11, 14, 0, 0, 0, paris)))

	p, err := tasks.ParseReminderPayload(q.got[0].task)
	require.NoError(t, err)
	assert.Equal(t, "c-1", p.CommitmentID)
	assert.Equal(t, "Rappel de rendez-vous", p.Title)
}

func TestReminderSkippedWhenTooLate(t *testing.T) {
	q := &fakeQueue{}
	svc := newService(nil, q, nil)
	svc.LeadTime = 72 * time.Hour
	result, req := confirmed()

	require.NoError(t, svc.SendConfirmation(context.Background(), result, req))
	assert.Empty(t, q.got)
}

func TestSendConfirmationReportsPushFailureButStillSchedules(t *testing.T) {
	push, q := &fakePush{err: errors.New("fcm down")}, &fakeQueue{}
	svc := newService(push, q, nil)
	result, req := confirmed()

	err := svc.SendConfirmation(context.Background(), result, req)
	assert.ErrorContains(t, err, "fcm down")
	assert.Len(t, q.got, 1)
}

func TestDuplicateReminderIsNotAnError(t *testing.T) {
	svc := newService(nil, &fakeQueue{err: asynq.ErrTaskIDConflict}, nil)
	result, req := confirmed()
	assert.NoError(t, svc.SendConfirmation(context.Background(), result, req))
}

func TestSendConfirmationRejectsNonConfirmed(t *testing.T) {
	svc := newService(&fakePush{}, &fakeQueue{}, nil)
	_, req := confirmed()
	assert.Error(t, svc.SendConfirmation(context.Background(), models.Conflict("taken"), req))
}

func TestSendReminderUsesPayloadTopic(t *testing.T) {
	push := &fakePush{}
	svc := newService(push, nil, nil)

	err := svc.SendReminder(context.Background(), models.ReminderPayload{
		CommitmentID: "c-1", Title: "Appointment reminder", Body: "tomorrow", Topic: "desk",
	})
	require.NoError(t, err)
	require.Len(t, push.msgs, 1)
	assert.Equal(t, "desk", push.msgs[0].Topic)
	assert.Equal(t, "booking_reminder", push.msgs[0].Data["type"])
}

func TestCommitmentCancelledDropsReminder(t *testing.T) {
	in := &fakeInspector{}
	svc := newService(nil, nil, in)

	require.NoError(t, svc.CommitmentCancelled(context.Background(), models.Commitment{ID: "c-1"}, ""))
	assert.Equal(t, []string{"default/reminder:c-1"}, in.deleted)

	in.err = asynq.ErrTaskNotFound
	assert.NoError(t, svc.CommitmentCancelled(context.Background(), models.Commitment{ID: "c-2"}, ""))

	in.err = errors.New("redis down")
	assert.Error(t, svc.CommitmentCancelled(context.Background(), models.Commitment{ID: "c-3"}, ""))
}

func cancelledCommitment(lang models.Language) models.Commitment {
	start := time.Date(2025, 6, 12, 12, 0, 0, 0, time.UTC)
	return models.Commitment{
		ID: "c-1", Date: "2025-06-12", Start: start, End: start.Add(30 * time.Minute),
		Status: models.CommitmentCancelled,
		Metadata: models.CommitmentMetadata{
			ServiceType: "consultation", CustomerName: "Marie Curie",
			Language: string(lang), Timezone: "Europe/Paris",
		},
	}
}

func TestCommitmentCancelledPushesLocalizedNotice(t *testing.T) {
	push, in := &fakePush{}, &fakeInspector{}
	svc := newService(push, nil, in)

	require.NoError(t, svc.CommitmentCancelled(context.Background(), cancelledCommitment(models.LanguageFrench), "patiente malade"))
	require.Len(t, push.msgs, 1)
	msg := push.msgs[0]
	assert.Equal(t, "bookings", msg.Topic)
	assert.Equal(t, "Rendez-vous annulé", msg.Notification.Title)
	assert.Equal(t, "consultation pour Marie Curie le jeudi 12 juin à 14:00 (motif : patiente malade)", msg.Notification.Body)
	assert.Equal(t, "booking_cancelled", msg.Data["type"])
	assert.Equal(t, "patiente malade", msg.Data["reason"])
	assert.Equal(t, "14:00", msg.Data["time"])
	assert.Equal(t, []string{"default/reminder:c-1"}, in.deleted)

	require.NoError(t, svc.CommitmentCancelled(context.Background(), cancelledCommitment(models.LanguageEnglish), ""))
	require.Len(t, push.msgs, 2)
	assert.Equal(t, "Appointment cancelled", push.msgs[1].Notification.Title)
	assert.NotContains(t, push.msgs[1].Notification.Body, "reason")
}

func TestCommitmentCancelledReportsPushFailure(t *testing.T) {
	in := &fakeInspector{}
	svc := newService(&fakePush{err: errors.New("fcm down")}, nil, in)

	err := svc.CommitmentCancelled(context.Background(), cancelledCommitment(models.LanguageFrench), "")
	assert.ErrorContains(t, err, "fcm down")
	assert.Equal(t, []string{"default/reminder:c-1"}, in.deleted)
}

func TestMissingCollaboratorsAreSkipped(t *testing.T) {
	svc := newService(nil, nil, nil)
	result, req := confirmed()

	assert.Nil(t, svc.Push)
	assert.Nil(t, svc.Queue)
	assert.Nil(t, svc.Inspector)
	assert.NoError(t, svc.SendConfirmation(context.Background(), result, req))
	assert.NoError(t, svc.SendReminder(context.Background(), models.ReminderPayload{CommitmentID: "c-1"}))
	assert.NoError(t, svc.CommitmentCancelled(context.Background(), models.Commitment{ID: "c-1"}, "x"))
}
