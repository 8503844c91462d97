package call

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"voicebook/models"
	"voicebook/services/dialogue"
	"voicebook/services/turn"
)

var ErrUnknownSignal = errors.New("unknown signal type")

// Session is one live call: its dialogue, its turn arbiter and the raw
// transport signals the arbiter samples.
type Session struct {
	ID        string
	StartedAt time.Time

	machine *dialogue.Machine
	arbiter *turn.Arbiter
	signals *turn.SignalLatch
	stop    func()

	mu        sync.Mutex
	listeners []chan dialogue.Reply
	ended     bool
}

// Replies returns a channel receiving every reply produced after the call,
// and a function that removes it. The channel is closed when the call ends or
// the listener is removed. A reader that falls behind loses replies.
func (s *Session) Replies() (<-chan dialogue.Reply, func()) {
	ch := make(chan dialogue.Reply, 8)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		close(ch)
		return ch, func() {}
	}
	s.listeners = append(s.listeners, ch)
	return ch, func() { s.removeListener(ch) }
}

func (s *Session) removeListener(ch chan dialogue.Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l == ch {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

func (s *Session) publish(r dialogue.Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.listeners {
		select {
		case ch <- r:
		default:
		}
	}
}

func (s *Session) closeReplies() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	for _, ch := range s.listeners {
		close(ch)
	}
	s.listeners = nil
}

func (s *Session) Machine() *dialogue.Machine { return s.machine }

func (s *Session) Arbiter() *turn.Arbiter { return s.arbiter }

func (s *Session) Turn() models.TurnState { return s.arbiter.Current() }

// Signal is one event from the client transport.
type Signal struct {
	Type          string                 `json:"type"`
	Mic           *turn.MicSample        `json:"mic,omitempty"`
	Playing       bool                   `json:"playing,omitempty"`
	Speakers      []string               `json:"speakers,omitempty"`
	ParticipantID string                 `json:"participantId,omitempty"`
	Role          models.ParticipantRole `json:"role,omitempty"`
}

const (
	SignalMic           = "mic"
	SignalPlayback      = "playback"
	SignalProgress      = "playback_progress"
	SignalPlaybackError = "playback_error"
	SignalSpeakers      = "active_speakers"
	SignalRole          = "role"
)

// ApplySignal feeds a transport event to the arbiter.
func (s *Session) ApplySignal(sig Signal) error {
	switch sig.Type {
	case SignalMic:
		if sig.Mic == nil {
			return fmt.Errorf("%w: mic signal without a sample", ErrUnknownSignal)
		}
		s.signals.SetMic(*sig.Mic)
	case SignalPlayback:
		s.signals.SetPlaying(sig.Playing)
	case SignalProgress:
		s.signals.Progress()
	case SignalPlaybackError:
		s.signals.FailPlayback()
	case SignalSpeakers:
		s.arbiter.SetActiveSpeakers(sig.Speakers)
		return nil
	case SignalRole:
		if sig.ParticipantID == "" || sig.Role == "" {
			return fmt.Errorf("%w: role signal needs participantId and role", ErrUnknownSignal)
		}
		s.arbiter.AssignRole(sig.ParticipantID, sig.Role)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSignal, sig.Type)
	}
	s.arbiter.Refresh()
	return nil
}
