package models

// ReminderPayload is the body of a reminder:send task.
type ReminderPayload struct {
	CommitmentID string   `json:"commitmentId"`
	ReminderID   string   `json:"reminderId"`
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	FireDate     string   `json:"fireDate"`
	Language     Language `json:"language"`
	Topic        string   `json:"topic"` // FCM topic the reminder is pushed to
}
