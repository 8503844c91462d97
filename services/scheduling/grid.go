package scheduling

import (
	"fmt"
	"time"

	"voicebook/models"
)

// Generate lays slots back-to-back from opening to closing time. A slot that
// would run past closing is left out. Closed weekdays yield an empty grid.
func Generate(date string, cal models.BusinessCalendarConfig) ([]models.Slot, error) {
	if cal.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration %s must be positive", ErrInvalidConfig, cal.Duration)
	}
	if cal.OpenMinute >= cal.CloseMinute {
		return nil, fmt.Errorf("%w: opening minute %d is not before closing minute %d", ErrInvalidConfig, cal.OpenMinute, cal.CloseMinute)
	}

	day, err := time.ParseInLocation(models.DateLayout, date, cal.Loc())
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if !cal.IsOpenOn(day.Weekday()) {
		return []models.Slot{}, nil
	}

	closing := wallClock(day, cal.CloseMinute)
	var slots []models.Slot
	for start := wallClock(day, cal.OpenMinute); ; {
		end := start.Add(cal.Duration)
		if end.After(closing) {
			break
		}
		slots = append(slots, models.Slot{Date: date, Start: start, End: end})
		start = end
	}
	if slots == nil {
		slots = []models.Slot{}
	}
	return slots, nil
}

// wallClock builds the time-of-day on day, so DST days keep their office hours.
func wallClock(day time.Time, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, day.Location())
}

// findSlot returns the grid slot starting at hhmm.
func findSlot(slots []models.Slot, hhmm string) (models.Slot, bool) {
	for _, s := range slots {
		if s.StartLabel() == hhmm {
			return s, true
		}
	}
	return models.Slot{}, false
}
