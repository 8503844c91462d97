package calendarRepo

import (
	"context"
	"sync"
	"testing"
	"time"

	"voicebook/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interval(date string, h, m int, d time.Duration) models.Interval {
	start := time.Date(2025, 6, 12, h, m, 0, 0, time.UTC)
	return models.Interval{Date: date, Start: start, End: start.Add(d)}
}

func TestMemoryCreateRejectsOverlap(t *testing.T) {
	repo := NewMemoryCalendarRepo()
	ctx := context.Background()

	_, err := repo.CreateCommitment(ctx, interval("2025-06-12", 14, 0, 30*time.Minute), models.CommitmentMetadata{})
	require.NoError(t, err)

	_, err = repo.CreateCommitment(ctx, interval("2025-06-12", 14, 15, 30*time.Minute), models.CommitmentMetadata{})
	assert.ErrorIs(t, err, models.ErrCommitmentOverlap)

	// touching endpoints are fine
	_, err = repo.CreateCommitment(ctx, interval("2025-06-12", 14, 30, 30*time.Minute), models.CommitmentMetadata{})
	assert.NoError(t, err)

	list, err := repo.ListCommitments(ctx, "2025-06-12")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Start.Before(list[1].Start))
}

func TestMemoryCancelFreesInterval(t *testing.T) {
	repo := NewMemoryCalendarRepo()
	ctx := context.Background()

	c, err := repo.CreateCommitment(ctx, interval("2025-06-12", 9, 0, time.Hour), models.CommitmentMetadata{Summary: "x"})
	require.NoError(t, err)

	require.NoError(t, repo.CancelCommitment(ctx, c.ID))
	assert.ErrorIs(t, repo.CancelCommitment(ctx, c.ID), models.ErrCommitmentNotFound)
	assert.ErrorIs(t, repo.CancelCommitment(ctx, "nope"), models.ErrCommitmentNotFound)

	list, err := repo.ListCommitments(ctx, "2025-06-12")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = repo.CreateCommitment(ctx, interval("2025-06-12", 9, 0, time.Hour), models.CommitmentMetadata{})
	assert.NoError(t, err)

	got, err := repo.GetCommitment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommitmentCancelled, got.Status)

	stats, err := repo.Stats(ctx, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, models.CalendarStats{Confirmed: 1, Cancelled: 1, Upcoming: 1}, stats)
}

func TestMemoryConcurrentCreatesSameInterval(t *testing.T) {
	repo := NewMemoryCalendarRepo()
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateCommitment(ctx, interval("2025-06-12", 10, 0, 30*time.Minute), models.CommitmentMetadata{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
		} else {
			assert.ErrorIs(t, err, models.ErrCommitmentOverlap)
		}
	}
	assert.Equal(t, 1, created)
}
