package models

import (
	"errors"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	// ErrCommitmentOverlap is returned by calendar stores when a new commitment
	// would overlap an existing one.
	ErrCommitmentOverlap  = errors.New("commitment overlaps an existing entry")
	ErrCommitmentNotFound = errors.New("commitment not found")
)

// BusinessCalendarConfig is loaded once at startup and never mutated.
type BusinessCalendarConfig struct {
	Name         string
	OpenMinute   int // minutes after midnight
	CloseMinute  int
	Duration     time.Duration
	Location     *time.Location
	OpenDays     map[time.Weekday]bool
	ServiceTypes []ServiceType
	Languages    []Language
}

// IsOpenOn reports whether the business takes appointments on the given weekday.
// An empty OpenDays set means every day is open.
func (c BusinessCalendarConfig) IsOpenOn(day time.Weekday) bool {
	if len(c.OpenDays) == 0 {
		return true
	}
	return c.OpenDays[day]
}

// Loc never returns nil.
func (c BusinessCalendarConfig) Loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// ServiceType is one bookable service, with the spoken aliases that name it.
type ServiceType struct {
	ID      string   `json:"id"`
	Aliases []string `json:"aliases,omitempty"`
}

// Slot is a fixed-duration bookable interval. Two slots are equal iff date and start match.
type Slot struct {
	Date  string    `json:"date"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s Slot) Equal(o Slot) bool {
	return s.Date == o.Date && s.Start.Equal(o.Start)
}

// StartLabel returns the start time-of-day as HH:MM.
func (s Slot) StartLabel() string {
	return s.Start.Format(TimeLayout)
}

// Overlaps uses open intervals: touching endpoints do not overlap.
func (s Slot) Overlaps(start, end time.Time) bool {
	return s.Start.Before(end) && start.Before(s.End)
}

// CommitmentMetadata is stored alongside a calendar entry.
type CommitmentMetadata struct {
	Summary      string `bson:"summary" json:"summary"`
	Description  string `bson:"description" json:"description"`
	ServiceType  string `bson:"serviceType" json:"serviceType"`
	CustomerName string `bson:"customerName" json:"customerName"`
	Phone        string `bson:"phone" json:"phone"`
	Email        string `bson:"email" json:"email"`
	Notes        string `bson:"notes,omitempty" json:"notes,omitempty"`
	Language     string `bson:"language,omitempty" json:"language,omitempty"`
	Timezone     string `bson:"timezone" json:"timezone"`
}

// Commitment is an existing calendar entry occupying part of a day.
type Commitment struct {
	ID        string             `bson:"_id" json:"id"`
	Date      string             `bson:"date" json:"date"`
	Start     time.Time          `bson:"start" json:"start"`
	End       time.Time          `bson:"end" json:"end"`
	Status    string             `bson:"status" json:"status"`
	Metadata  CommitmentMetadata `bson:"metadata" json:"metadata"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

const (
	CommitmentConfirmed = "confirmed"
	CommitmentCancelled = "cancelled"
)

// Interval is the half-open time range a new commitment will occupy.
type Interval struct {
	Date  string
	Start time.Time
	End   time.Time
}

// CalendarStats summarizes the stored commitments. Today counts confirmed
// commitments on the calendar date of the reference time.
type CalendarStats struct {
	Today     int64 `json:"today"`
	Confirmed int64 `json:"confirmed"`
	Cancelled int64 `json:"cancelled"`
	Upcoming  int64 `json:"upcoming"`
}
