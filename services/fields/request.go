package fields

import (
	"time"

	"voicebook/models"
)

// Parser extracts one field from free text for a given business calendar.
type Parser struct {
	Catalogue []models.ServiceType
	Now       func() time.Time
	Location  *time.Location
}

func (p Parser) now() time.Time {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}
	if p.Location != nil {
		now = now.In(p.Location)
	}
	return now
}

// Extract parses the answer for field f.
func (p Parser) Extract(f models.Field, text string) (string, error) {
	switch f {
	case models.FieldServiceType:
		return ServiceType(text, p.Catalogue)
	case models.FieldDate:
		return Date(text, p.now())
	case models.FieldTime:
		return Time(text)
	case models.FieldName:
		return Name(text)
	case models.FieldPhone:
		return Phone(text)
	case models.FieldEmail:
		return Email(text)
	}
	return "", invalid(f, "unknown field")
}

// Validate re-checks a complete request, in canonical order, and returns the
// normalized copy or the first failing field.
func (p Parser) Validate(req models.BookingRequest) (models.BookingRequest, error) {
	out := req
	for _, f := range models.FieldOrder {
		raw := req.Get(f)
		if raw == "" {
			return req, invalid(f, "missing")
		}
		v, err := p.Extract(f, raw)
		if err != nil {
			return req, err
		}
		out.Set(f, v)
	}
	return out, nil
}
