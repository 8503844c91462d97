package calendarRepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"voicebook/models"

	"github.com/google/uuid"
)

// MemoryCalendarRepo keeps commitments in process. Every method holds the same
// mutex, so a create is checked and applied atomically.
type MemoryCalendarRepo struct {
	mu          sync.Mutex
	commitments map[string]models.Commitment
	now         func() time.Time
}

func NewMemoryCalendarRepo() *MemoryCalendarRepo {
	return &MemoryCalendarRepo{
		commitments: make(map[string]models.Commitment),
		now:         time.Now,
	}
}

func (r *MemoryCalendarRepo) ListCommitments(_ context.Context, date string) ([]models.Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Commitment
	for _, c := range r.commitments {
		if c.Date == date && c.Status == models.CommitmentConfirmed {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (r *MemoryCalendarRepo) CreateCommitment(_ context.Context, interval models.Interval, meta models.CommitmentMetadata) (models.Commitment, error) {
	if !interval.Start.Before(interval.End) {
		return models.Commitment{}, fmt.Errorf("empty interval %s-%s", interval.Start, interval.End)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.commitments {
		if c.Status != models.CommitmentConfirmed {
			continue
		}
		if c.Start.Before(interval.End) && interval.Start.Before(c.End) {
			return models.Commitment{}, models.ErrCommitmentOverlap
		}
	}

	c := models.Commitment{
		ID:        uuid.NewString(),
		Date:      interval.Date,
		Start:     interval.Start,
		End:       interval.End,
		Status:    models.CommitmentConfirmed,
		Metadata:  meta,
		CreatedAt: r.now().UTC(),
	}
	r.commitments[c.ID] = c
	return c, nil
}

func (r *MemoryCalendarRepo) GetCommitment(_ context.Context, id string) (models.Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.commitments[id]
	if !ok {
		return models.Commitment{}, models.ErrCommitmentNotFound
	}
	return c, nil
}

func (r *MemoryCalendarRepo) CancelCommitment(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.commitments[id]
	if !ok || c.Status == models.CommitmentCancelled {
		return models.ErrCommitmentNotFound
	}
	c.Status = models.CommitmentCancelled
	r.commitments[id] = c
	return nil
}

func (r *MemoryCalendarRepo) Stats(_ context.Context, now time.Time) (models.CalendarStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	today := now.Format(models.DateLayout)
	var s models.CalendarStats
	for _, c := range r.commitments {
		switch c.Status {
		case models.CommitmentConfirmed:
			s.Confirmed++
			if c.Date == today {
				s.Today++
			}
			if c.Start.After(now) {
				s.Upcoming++
			}
		case models.CommitmentCancelled:
			s.Cancelled++
		}
	}
	return s, nil
}
