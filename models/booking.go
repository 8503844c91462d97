package models

// Field names one piece of a booking request.
type Field string

const (
	FieldServiceType Field = "service_type"
	FieldDate        Field = "date"
	FieldTime        Field = "time"
	FieldName        Field = "name"
	FieldPhone       Field = "phone"
	FieldEmail       Field = "email"
)

// FieldOrder is the canonical collection order.
var FieldOrder = []Field{FieldServiceType, FieldDate, FieldTime, FieldName, FieldPhone, FieldEmail}

// BookingRequest holds the fields collected during a call. An empty string means unset.
type BookingRequest struct {
	ID          string   `json:"id"`
	ServiceType string   `json:"serviceType,omitempty"`
	Date        string   `json:"date,omitempty"`
	Time        string   `json:"time,omitempty"`
	Name        string   `json:"name,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Email       string   `json:"email,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Language    Language `json:"language,omitempty"`
}

func (r *BookingRequest) Get(f Field) string {
	switch f {
	case FieldServiceType:
		return r.ServiceType
	case FieldDate:
		return r.Date
	case FieldTime:
		return r.Time
	case FieldName:
		return r.Name
	case FieldPhone:
		return r.Phone
	case FieldEmail:
		return r.Email
	}
	return ""
}

func (r *BookingRequest) Set(f Field, v string) {
	switch f {
	case FieldServiceType:
		r.ServiceType = v
	case FieldDate:
		r.Date = v
	case FieldTime:
		r.Time = v
	case FieldName:
		r.Name = v
	case FieldPhone:
		r.Phone = v
	case FieldEmail:
		r.Email = v
	}
}

// NextMissing returns the first unset field in canonical order.
func (r *BookingRequest) NextMissing() (Field, bool) {
	for _, f := range FieldOrder {
		if r.Get(f) == "" {
			return f, true
		}
	}
	return "", false
}

// Known returns the set fields keyed by name.
func (r *BookingRequest) Known() map[Field]string {
	out := make(map[Field]string, len(FieldOrder))
	for _, f := range FieldOrder {
		if v := r.Get(f); v != "" {
			out[f] = v
		}
	}
	return out
}

type BookingOutcome string

const (
	OutcomeConfirmed BookingOutcome = "confirmed"
	OutcomeConflict  BookingOutcome = "conflict"
	OutcomeInvalid   BookingOutcome = "invalid"
	OutcomeFailed    BookingOutcome = "failed"
)

// BookingResult is produced once per commit attempt.
type BookingResult struct {
	Outcome      BookingOutcome `json:"outcome"`
	CommitmentID string         `json:"commitmentId,omitempty"`
	Slot         *Slot          `json:"slot,omitempty"`
	Field        Field          `json:"field,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Cause        error          `json:"-"`
}

func Confirmed(id string, slot Slot) BookingResult {
	return BookingResult{Outcome: OutcomeConfirmed, CommitmentID: id, Slot: &slot}
}

func Conflict(reason string) BookingResult {
	return BookingResult{Outcome: OutcomeConflict, Reason: reason}
}

func Invalid(field Field, reason string) BookingResult {
	return BookingResult{Outcome: OutcomeInvalid, Field: field, Reason: reason}
}

func Failed(cause error) BookingResult {
	r := BookingResult{Outcome: OutcomeFailed, Cause: cause}
	if cause != nil {
		r.Reason = cause.Error()
	}
	return r
}
