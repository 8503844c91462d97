package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voicebook/models"
	"voicebook/services/dialogue"
	"voicebook/services/tasks"
	"voicebook/utils"

	"firebase.google.com/go/v4/messaging"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// DefaultNotificationService pushes to an FCM topic the business devices
// subscribe to and schedules reminders on the asynq queue. Any collaborator
// left nil is skipped.
type DefaultNotificationService struct {
	Push      PushSender
	Queue     TaskEnqueuer
	Inspector TaskCanceller
	Topic     string
	LeadTime  time.Duration
	Logger    *zap.Logger
	Now       func() time.Time
}

type messageText struct {
	confirmedTitle string
	confirmedBody  string
	reminderTitle  string
	reminderBody   string
	cancelledTitle string
	cancelledBody  string
	cancelReason   string
}

var texts = map[models.Language]messageText{
	models.LanguageFrench: {
		confirmedTitle: "Nouveau rendez-vous",
		confirmedBody:  "%s pour %s le %s à %s",
		reminderTitle:  "Rappel de rendez-vous",
		reminderBody:   "%s pour %s le %s à %s",
		cancelledTitle: "Rendez-vous annulé",
		cancelledBody:  "%s pour %s le %s à %s",
		cancelReason:   " (motif : %s)",
	},
	models.LanguageEnglish: {
		confirmedTitle: "New appointment",
		confirmedBody:  "%s for %s on %s at %s",
		reminderTitle:  "Appointment reminder",
		reminderBody:   "%s for %s on %s at %s",
		cancelledTitle: "Appointment cancelled",
		cancelledBody:  "%s for %s on %s at %s",
		cancelReason:   " (reason: %s)",
	},
}

func textFor(lang models.Language) messageText {
	if t, ok := texts[lang]; ok {
		return t
	}
	return texts[models.LanguageFrench]
}

// SendConfirmation pushes the new booking and schedules its reminder.
func (s *DefaultNotificationService) SendConfirmation(ctx context.Context, result models.BookingResult, req models.BookingRequest) error {
	if result.Outcome != models.OutcomeConfirmed || result.Slot == nil {
		return fmt.Errorf("SendConfirmation: result %s is not a confirmed booking", result.Outcome)
	}
	slot := *result.Slot
	t := textFor(req.Language)
	body := fmt.Sprintf(t.confirmedBody, req.ServiceType, req.Name, dialogue.SpokenDate(slot.Date, req.Language), slot.StartLabel())

	var errs []error
	if err := s.push(ctx, t.confirmedTitle, body, map[string]string{
		"type":         "booking_confirmed",
		"commitmentId": result.CommitmentID,
		"date":         slot.Date,
		"time":         slot.StartLabel(),
	}); err != nil {
		errs = append(errs, err)
	}

	reminder := models.ReminderPayload{
		CommitmentID: result.CommitmentID,
		ReminderID:   tasks.ReminderTaskID(result.CommitmentID),
		Title:        t.reminderTitle,
		Body:         fmt.Sprintf(t.reminderBody, req.ServiceType, req.Name, dialogue.SpokenDate(slot.Date, req.Language), slot.StartLabel()),
		Language:     req.Language,
		Topic:        s.Topic,
	}
	if err := s.scheduleReminder(ctx, reminder, slot.Start); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *DefaultNotificationService) scheduleReminder(ctx context.Context, p models.ReminderPayload, start time.Time) error {
	if s.Queue == nil {
		return nil
	}
	fireAt := start.Add(-s.LeadTime)
	if !fireAt.After(s.now()) {
		s.logger().Info("Reminder time already passed; not scheduling",
			zap.String("commitmentId", p.CommitmentID), zap.Time("fireAt", fireAt))
		return nil
	}
	p.FireDate = fireAt.Format(time.RFC3339)

	task, opts, err := tasks.NewReminderTask(p, fireAt)
	if err != nil {
		return fmt.Errorf("scheduleReminder: %w", err)
	}
	info, err := s.Queue.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("scheduleReminder: failed to enqueue: %w", err)
	}
	s.logger().Info("Reminder scheduled", zap.String("taskId", info.ID), zap.Time("fireAt", fireAt))
	return nil
}

// SendReminder is invoked by the reminder worker when a task fires.
func (s *DefaultNotificationService) SendReminder(ctx context.Context, p models.ReminderPayload) error {
	topic := p.Topic
	if topic == "" {
		topic = s.Topic
	}
	return s.pushTo(ctx, topic, p.Title, p.Body, map[string]string{
		"type":         "booking_reminder",
		"commitmentId": p.CommitmentID,
		"reminderId":   p.ReminderID,
		"fireDate":     p.FireDate,
	})
}

// CommitmentCancelled pushes a cancellation notice and drops the pending
// reminder of the cancelled booking.
func (s *DefaultNotificationService) CommitmentCancelled(ctx context.Context, c models.Commitment, reason string) error {
	lang, ok := models.ParseLanguage(c.Metadata.Language)
	if !ok {
		lang = models.LanguageFrench
	}
	t := textFor(lang)
	start := localStart(c)
	body := fmt.Sprintf(t.cancelledBody, c.Metadata.ServiceType, c.Metadata.CustomerName, dialogue.SpokenDate(c.Date, lang), start)
	if reason != "" {
		body += fmt.Sprintf(t.cancelReason, reason)
	}

	var errs []error
	if err := s.push(ctx, t.cancelledTitle, body, map[string]string{
		"type":         "booking_cancelled",
		"commitmentId": c.ID,
		"date":         c.Date,
		"time":         start,
		"reason":       reason,
	}); err != nil {
		errs = append(errs, err)
	}
	if err := s.dropReminder(c.ID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *DefaultNotificationService) dropReminder(id string) error {
	if s.Inspector == nil {
		return nil
	}
	err := s.Inspector.DeleteTask(tasks.ReminderQueue, tasks.ReminderTaskID(id))
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return fmt.Errorf("CommitmentCancelled: failed to drop reminder for %s: %w", id, err)
}

// localStart renders the start time in the business time zone stored with the
// commitment.
func localStart(c models.Commitment) string {
	start := c.Start
	if loc, err := time.LoadLocation(c.Metadata.Timezone); err == nil && c.Metadata.Timezone != "" {
		start = start.In(loc)
	}
	return start.Format("15:04")
}

func (s *DefaultNotificationService) push(ctx context.Context, title, body string, data map[string]string) error {
	return s.pushTo(ctx, s.Topic, title, body, data)
}

func (s *DefaultNotificationService) pushTo(ctx context.Context, topic, title, body string, data map[string]string) error {
	if s.Push == nil || topic == "" {
		return nil
	}
	msg := &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "high_priority",
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
	id, err := s.Push.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send FCM message: %w", err)
	}
	s.logger().Debug("Push sent", zap.String("messageId", id), zap.String("type", data["type"]))
	return nil
}

func (s *DefaultNotificationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *DefaultNotificationService) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return utils.GetLogger()
}
