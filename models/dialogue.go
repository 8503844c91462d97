package models

import "time"

type Language string

const (
	LanguageFrench  Language = "fr"
	LanguageEnglish Language = "en"
)

// ParseLanguage accepts "fr", "en" and BCP-47 style tags such as "fr-FR".
func ParseLanguage(s string) (Language, bool) {
	if len(s) < 2 {
		return "", false
	}
	switch Language(lower2(s)) {
	case LanguageFrench:
		return LanguageFrench, true
	case LanguageEnglish:
		return LanguageEnglish, true
	}
	return "", false
}

func lower2(s string) string {
	b := []byte(s[:2])
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

type DialogueState string

const (
	StateGreeting              DialogueState = "greeting"
	StateCollectingServiceType DialogueState = "collecting_service_type"
	StateCollectingDate        DialogueState = "collecting_date"
	StateCollectingTime        DialogueState = "collecting_time"
	StateCollectingName        DialogueState = "collecting_name"
	StateCollectingPhone       DialogueState = "collecting_phone"
	StateCollectingEmail       DialogueState = "collecting_email"
	StateConfirmingSlot        DialogueState = "confirming_slot"
	StateCommitting            DialogueState = "committing"
	StateCompleted             DialogueState = "completed"
	StateAborted               DialogueState = "aborted"
)

// Terminal reports whether no further input is accepted.
func (s DialogueState) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

var collectingStates = map[Field]DialogueState{
	FieldServiceType: StateCollectingServiceType,
	FieldDate:        StateCollectingDate,
	FieldTime:        StateCollectingTime,
	FieldName:        StateCollectingName,
	FieldPhone:       StateCollectingPhone,
	FieldEmail:       StateCollectingEmail,
}

// CollectingState maps a field to the state that asks for it.
func CollectingState(f Field) DialogueState {
	return collectingStates[f]
}

// FieldFor is the inverse of CollectingState.
func FieldFor(s DialogueState) (Field, bool) {
	for f, st := range collectingStates {
		if st == s {
			return f, true
		}
	}
	return "", false
}

// DialogueSnapshot is the externally visible state of one call's dialogue.
type DialogueSnapshot struct {
	CallID    string         `json:"callId"`
	State     DialogueState  `json:"state"`
	Language  Language       `json:"language"`
	Request   BookingRequest `json:"request"`
	Retries   map[Field]int  `json:"retries,omitempty"`
	Result    *BookingResult `json:"result,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Redacted drops the caller's contact details. Service, date and time stay.
func (s DialogueSnapshot) Redacted() DialogueSnapshot {
	s.Request.Name = ""
	s.Request.Phone = ""
	s.Request.Email = ""
	s.Request.Notes = ""
	if s.Result != nil {
		r := *s.Result
		switch r.Field {
		case FieldName, FieldPhone, FieldEmail:
			r.Reason = ""
		}
		s.Result = &r
	}
	return s
}
