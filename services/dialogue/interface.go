package dialogue

import (
	"context"

	"voicebook/models"
)

// TurnGate reports who has the floor. The machine refuses input while the
// agent is speaking.
type TurnGate interface {
	Current() models.TurnState
}

// PromptGenerator renders the next thing the agent says.
type PromptGenerator interface {
	GeneratePrompt(ctx context.Context, req PromptRequest) (string, error)
}

// Utterance is one transcribed user turn.
type Utterance struct {
	Text         string          `json:"text"`
	LanguageHint models.Language `json:"languageHint,omitempty"`
}

// Reply is what the machine wants said after a turn.
type Reply struct {
	CallID   string                `json:"callId"`
	State    models.DialogueState  `json:"state"`
	Language models.Language       `json:"language"`
	Kind     PromptKind            `json:"kind"`
	Prompt   string                `json:"prompt"`
	Result   *models.BookingResult `json:"result,omitempty"`
}
