package dialogue

import (
	"errors"

	"voicebook/services/fields"
)

var (
	ErrTransportDisconnected = errors.New("call transport disconnected")
	ErrNotAccepting          = errors.New("dialogue is not accepting input")
	ErrAgentSpeaking         = errors.New("agent is speaking")
	ErrTurnInProgress        = errors.New("previous turn is still being processed")
)

// ValidationError is returned by field extraction.
type ValidationError = fields.ValidationError
