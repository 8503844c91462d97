package scheduling

import (
	"errors"

	"voicebook/config"
)

var (
	ErrInvalidConfig           = config.ErrInvalidConfig
	ErrInvalidDate             = errors.New("invalid date")
	ErrSlotNotAligned          = errors.New("time is not on the slot grid")
	ErrDayClosed               = errors.New("no appointments on this day")
	ErrCollaboratorUnavailable = errors.New("calendar unavailable")
	ErrCommitInFlight          = errors.New("a commit for this request is already in flight")
	ErrLockHeld                = errors.New("slot is being booked by another caller")
)
