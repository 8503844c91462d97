package models

// TurnState says who currently has the floor.
type TurnState string

const (
	TurnIdle          TurnState = "idle"
	TurnUserSpeaking  TurnState = "user_speaking"
	TurnAgentSpeaking TurnState = "agent_speaking"
)

// ParticipantRole is assigned when a call is set up, never inferred from names.
type ParticipantRole string

const (
	RoleUser  ParticipantRole = "user"
	RoleAgent ParticipantRole = "agent"
	RoleOther ParticipantRole = "other"
)
