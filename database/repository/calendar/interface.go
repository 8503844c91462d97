package calendarRepo

import (
	"context"
	"time"

	"voicebook/models"
)

// CalendarRepository is the shared calendar of commitments. CreateCommitment
// rejects an interval that overlaps a confirmed commitment with
// models.ErrCommitmentOverlap.
type CalendarRepository interface {
	ListCommitments(ctx context.Context, date string) ([]models.Commitment, error)
	CreateCommitment(ctx context.Context, interval models.Interval, meta models.CommitmentMetadata) (models.Commitment, error)
	GetCommitment(ctx context.Context, id string) (models.Commitment, error)
	CancelCommitment(ctx context.Context, id string) error
	// Stats takes now in the business location so Today matches its calendar date.
	Stats(ctx context.Context, now time.Time) (models.CalendarStats, error)
}
