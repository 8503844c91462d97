package turn

import (
	"context"
	"sync"
	"time"

	"voicebook/models"
	"voicebook/utils"

	"go.uber.org/zap"
)

const (
	DefaultSampleInterval = 100 * time.Millisecond
	DefaultStallTimeout   = 3 * time.Second
	eventBuffer           = 64
)

// Inputs is the merged view of every raw signal at one instant.
type Inputs struct {
	Mic            MicSample
	AgentPlaying   bool
	ActiveSpeakers []string
}

// Derive folds the inputs into one turn state. Agent output wins over the
// microphone: playback, or the agent named as an active speaker, is AgentSpeaking.
func Derive(in Inputs, roles map[string]models.ParticipantRole) models.TurnState {
	if in.AgentPlaying {
		return models.TurnAgentSpeaking
	}
	for _, id := range in.ActiveSpeakers {
		if roles[id] == models.RoleAgent {
			return models.TurnAgentSpeaking
		}
	}
	if in.Mic.Speaking() {
		return models.TurnUserSpeaking
	}
	return models.TurnIdle
}

// Config wires one Arbiter. Samplers are optional; without them the arbiter
// only reacts to pushed events. A configured sampler is the source of truth for
// its signal and is read on every event and every tick.
type Config struct {
	CallID         string
	Roles          map[string]models.ParticipantRole
	Mic            MicSampler
	Playback       PlaybackSampler
	SampleInterval time.Duration
	StallTimeout   time.Duration
	OnChange       func(models.TurnState)
	Logger         *zap.Logger
	Now            func() time.Time
}

type eventKind string

const (
	eventMic      eventKind = "mic"
	eventPlayback eventKind = "playback"
	eventFailed   eventKind = "playback_error"
	eventSpeakers eventKind = "active_speakers"
	eventRole     eventKind = "role"
	eventRefresh  eventKind = "refresh"
	eventTick     eventKind = "tick"
)

type event struct {
	kind     eventKind
	mic      MicSample
	playing  bool
	speakers []string
	id       string
	role     models.ParticipantRole
}

// Arbiter owns the turn state of one call. All inputs go through a single
// queue drained by Run, so the merged state is recomputed after every input.
type Arbiter struct {
	callID   string
	mic      MicSampler
	playback PlaybackSampler
	interval time.Duration
	stall    time.Duration
	onChange func(models.TurnState)
	logger   *zap.Logger
	now      func() time.Time

	events chan event
	done   chan struct{}
	once   sync.Once

	// owned by Run
	roles  map[string]models.ParticipantRole
	inputs Inputs
	track  PlaybackSample

	mu          sync.RWMutex
	current     models.TurnState
	subscribers []chan models.TurnState
}

func NewArbiter(cfg Config) *Arbiter {
	interval := cfg.SampleInterval
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	stall := cfg.StallTimeout
	if stall <= 0 {
		stall = DefaultStallTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = utils.GetLogger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	roles := make(map[string]models.ParticipantRole, len(cfg.Roles))
	for id, r := range cfg.Roles {
		roles[id] = r
	}
	return &Arbiter{
		callID:   cfg.CallID,
		mic:      cfg.Mic,
		playback: cfg.Playback,
		interval: interval,
		stall:    stall,
		onChange: cfg.OnChange,
		logger:   logger.With(zap.String("callID", cfg.CallID)),
		now:      now,
		events:   make(chan event, eventBuffer),
		done:     make(chan struct{}),
		roles:    roles,
		current:  models.TurnIdle,
	}
}

// Run drains the event queue and samples the sources on a bounded ticker until
// ctx is done or Stop is called.
func (a *Arbiter) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	defer a.closeSubscribers()

	for {
		select {
		case <-ctx.Done():
			a.Stop()
			return
		case <-a.done:
			return
		case <-ticker.C:
			a.apply(event{kind: eventTick})
		case ev := <-a.events:
			a.apply(ev)
		}
	}
}

// Stop ends Run. Pushes after Stop are dropped.
func (a *Arbiter) Stop() {
	a.once.Do(func() { close(a.done) })
}

// Current is safe to call from any goroutine.
func (a *Arbiter) Current() models.TurnState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Subscribe returns a channel that receives every published change, and a
// function that removes and closes it. A slow reader only ever misses
// intermediate states, never the latest one.
func (a *Arbiter) Subscribe() (<-chan models.TurnState, func()) {
	ch := make(chan models.TurnState, 1)
	a.mu.Lock()
	a.subscribers = append(a.subscribers, ch)
	a.mu.Unlock()
	return ch, func() { a.unsubscribe(ch) }
}

func (a *Arbiter) unsubscribe(ch chan models.TurnState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, sub := range a.subscribers {
		if sub == ch {
			a.subscribers = append(a.subscribers[:i], a.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (a *Arbiter) SetMic(s MicSample) { a.push(event{kind: eventMic, mic: s}) }

func (a *Arbiter) SetPlayback(playing bool) { a.push(event{kind: eventPlayback, playing: playing}) }

// PlaybackFailed treats the agent track as stopped.
func (a *Arbiter) PlaybackFailed() { a.push(event{kind: eventFailed}) }

func (a *Arbiter) SetActiveSpeakers(ids []string) {
	cp := append([]string(nil), ids...)
	a.push(event{kind: eventSpeakers, speakers: cp})
}

// Refresh asks for a recompute after a sampled source changed.
func (a *Arbiter) Refresh() { a.push(event{kind: eventRefresh}) }

// AssignRole tags a participant that joined after setup.
func (a *Arbiter) AssignRole(id string, role models.ParticipantRole) {
	a.push(event{kind: eventRole, id: id, role: role})
}

func (a *Arbiter) push(ev event) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

func (a *Arbiter) apply(ev event) {
	metricEvents.WithLabelValues(string(ev.kind)).Inc()
	now := a.now()

	switch ev.kind {
	case eventMic:
		a.inputs.Mic = ev.mic
	case eventPlayback:
		// a pushed playing=true doubles as a progress heartbeat
		a.track = PlaybackSample{Playing: ev.playing, LastProgress: now}
	case eventFailed:
		a.track = PlaybackSample{Failed: true}
	case eventSpeakers:
		a.inputs.ActiveSpeakers = ev.speakers
	case eventRole:
		a.roles[ev.id] = ev.role
	}
	if a.mic != nil {
		a.inputs.Mic = a.mic.SampleMic()
	}
	if a.playback != nil {
		a.track = a.playback.SamplePlayback()
	}
	a.inputs.AgentPlaying = a.track.Rendering(now, a.stall)

	a.publish(Derive(a.inputs, a.roles))
}

func (a *Arbiter) publish(next models.TurnState) {
	a.mu.Lock()
	if next == a.current {
		a.mu.Unlock()
		return
	}
	prev := a.current
	a.current = next
	// sends stay under the lock so unsubscribe never closes a channel mid-send
	for _, ch := range a.subscribers {
		select {
		case ch <- next:
		default:
			// replace the unread value with the newest one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- next:
			default:
			}
		}
	}
	a.mu.Unlock()

	metricTransitions.WithLabelValues(string(next)).Inc()
	a.logger.Debug("turn state changed", zap.String("from", string(prev)), zap.String("to", string(next)))

	if a.onChange != nil {
		a.onChange(next)
	}
}

func (a *Arbiter) closeSubscribers() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range a.subscribers {
		close(ch)
	}
	a.subscribers = nil
}
