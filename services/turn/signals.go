package turn

import (
	"sync"
	"time"
)

// MicSample is one reading of the local microphone.
type MicSample struct {
	Active  bool `json:"active"`
	Enabled bool `json:"enabled"`
	Muted   bool `json:"muted"`
}

// Speaking is true only for an enabled, unmuted, active microphone.
func (s MicSample) Speaking() bool {
	return s.Active && s.Enabled && !s.Muted
}

// PlaybackSample is one reading of the agent's synthesized-speech track.
type PlaybackSample struct {
	Playing      bool      `json:"playing"`
	Failed       bool      `json:"failed"`
	LastProgress time.Time `json:"lastProgress"`
}

// Rendering reports whether the track counts as playing at now. A failed
// track, or one without progress for longer than stall, is stopped.
func (s PlaybackSample) Rendering(now time.Time, stall time.Duration) bool {
	if !s.Playing || s.Failed {
		return false
	}
	if stall > 0 && !s.LastProgress.IsZero() && now.Sub(s.LastProgress) > stall {
		return false
	}
	return true
}

type MicSampler interface {
	SampleMic() MicSample
}

type PlaybackSampler interface {
	SamplePlayback() PlaybackSample
}

// SignalLatch holds the latest raw values pushed by a client so the arbiter can
// sample them on its tick.
type SignalLatch struct {
	mu       sync.Mutex
	mic      MicSample
	playback PlaybackSample
	now      func() time.Time
}

func NewSignalLatch() *SignalLatch {
	return &SignalLatch{mic: MicSample{Enabled: true}, now: time.Now}
}

func (l *SignalLatch) SetMic(s MicSample) {
	l.mu.Lock()
	l.mic = s
	l.mu.Unlock()
}

// SetPlaying records a start or stop of the synthesized-speech track. A start
// clears any earlier failure.
func (l *SignalLatch) SetPlaying(playing bool) {
	l.mu.Lock()
	l.playback.Playing = playing
	if playing {
		l.playback.Failed = false
		l.playback.LastProgress = l.now()
	}
	l.mu.Unlock()
}

// Progress marks that the track is still rendering.
func (l *SignalLatch) Progress() {
	l.mu.Lock()
	l.playback.LastProgress = l.now()
	l.mu.Unlock()
}

func (l *SignalLatch) FailPlayback() {
	l.mu.Lock()
	l.playback.Failed = true
	l.playback.Playing = false
	l.mu.Unlock()
}

func (l *SignalLatch) SampleMic() MicSample {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mic
}

func (l *SignalLatch) SamplePlayback() PlaybackSample {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.playback
}
