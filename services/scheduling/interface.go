package scheduling

import (
	"context"
	"time"

	"voicebook/models"
)

// CalendarStore is the shared calendar. CreateCommitment must detect overlap
// itself and report it with models.ErrCommitmentOverlap.
type CalendarStore interface {
	ListCommitments(ctx context.Context, date string) ([]models.Commitment, error)
	CreateCommitment(ctx context.Context, interval models.Interval, meta models.CommitmentMetadata) (models.Commitment, error)
	GetCommitment(ctx context.Context, id string) (models.Commitment, error)
	CancelCommitment(ctx context.Context, id string) error
}

// ConfirmationSender is told about every confirmed booking. It runs detached
// from the caller; its error never changes the booking result.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, result models.BookingResult, req models.BookingRequest) error
}

// CancellationListener is told about cancelled commitments, e.g. to drop
// reminders. reason may be empty.
type CancellationListener interface {
	CommitmentCancelled(ctx context.Context, c models.Commitment, reason string) error
}

// CommitLock serializes commits for the same slot across processes.
// Acquire returns ErrLockHeld when another holder has the key.
type CommitLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// AvailabilityService is what the dialogue and the HTTP layer need.
type AvailabilityService interface {
	CheckAvailability(ctx context.Context, date, hhmm string) (Availability, error)
	ListAvailableSlots(ctx context.Context, date string) ([]models.Slot, error)
	Commit(ctx context.Context, req models.BookingRequest) models.BookingResult
}

// Availability answers "is this slot free".
type Availability struct {
	Available bool               `json:"available"`
	Slot      models.Slot        `json:"slot"`
	Conflict  *models.Commitment `json:"conflict,omitempty"`
}
