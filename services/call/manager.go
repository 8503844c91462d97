package call

import (
	"context"
	"errors"
	"sync"
	"time"

	"voicebook/models"
	"voicebook/services/dialogue"
	"voicebook/services/fields"
	"voicebook/services/scheduling"
	"voicebook/services/turn"
	"voicebook/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrCallNotFound = errors.New("call not found")

// SnapshotStore persists the latest dialogue snapshot of each call. It only
// ever receives redacted snapshots.
type SnapshotStore interface {
	Get(ctx context.Context, callID string) (models.DialogueSnapshot, error)
	Save(ctx context.Context, snap models.DialogueSnapshot) error
}

type Config struct {
	Calendar        models.BusinessCalendarConfig
	Resolver        scheduling.AvailabilityService
	Parser          fields.Parser
	Prompts         dialogue.PromptGenerator
	Snapshots       SnapshotStore
	DefaultLanguage models.Language
	MaxRetries      int
	SampleInterval  time.Duration
	Logger          *zap.Logger
}

// StartOptions describe a new call. Roles tag the transport participants.
type StartOptions struct {
	Language models.Language                   `json:"language,omitempty"`
	Roles    map[string]models.ParticipantRole `json:"roles,omitempty"`
}

// Manager owns every live call session.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = utils.GetLogger()
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = models.LanguageFrench
	}
	return &Manager{cfg: cfg, logger: logger, sessions: make(map[string]*Session)}
}

// Start opens a call and returns the greeting.
func (m *Manager) Start(ctx context.Context, opts StartOptions) (*Session, dialogue.Reply, error) {
	id := uuid.New().String()
	lang := opts.Language
	if lang == "" {
		lang = m.cfg.DefaultLanguage
	}

	signals := turn.NewSignalLatch()
	arbiter := turn.NewArbiter(turn.Config{
		CallID:         id,
		Roles:          opts.Roles,
		Mic:            signals,
		Playback:       signals,
		SampleInterval: m.cfg.SampleInterval,
		Logger:         m.logger,
	})
	runCtx, cancel := context.WithCancel(context.Background())
	go arbiter.Run(runCtx)

	machine := dialogue.NewMachine(dialogue.Options{
		CallID:     id,
		Language:   lang,
		Calendar:   m.cfg.Calendar,
		Resolver:   m.cfg.Resolver,
		Parser:     m.cfg.Parser,
		Gate:       arbiter,
		Prompts:    m.cfg.Prompts,
		MaxRetries: m.cfg.MaxRetries,
		Logger:     m.logger,
	})

	s := &Session{
		ID:        id,
		StartedAt: time.Now(),
		machine:   machine,
		arbiter:   arbiter,
		signals:   signals,
	}
	s.stop = func() {
		arbiter.Stop()
		cancel()
		s.closeReplies()
	}

	reply, err := machine.Start(ctx)
	if err != nil {
		s.stop()
		return nil, dialogue.Reply{}, err
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	metricActiveCalls.Inc()

	m.save(ctx, s)
	m.logger.Info("Call started", zap.String("callID", id), zap.String("language", string(lang)))
	return s, reply, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrCallNotFound
	}
	return s, nil
}

// Turn handles one user utterance and persists the resulting snapshot.
func (m *Manager) Turn(ctx context.Context, id string, u dialogue.Utterance) (dialogue.Reply, error) {
	s, err := m.Get(id)
	if err != nil {
		return dialogue.Reply{}, err
	}
	reply, err := s.machine.HandleUtterance(ctx, u)
	if err != nil {
		return dialogue.Reply{}, err
	}
	m.save(ctx, s)
	s.publish(reply)
	return reply, nil
}

// Snapshot prefers the live session and falls back to the stored copy of an
// ended call.
func (m *Manager) Snapshot(ctx context.Context, id string) (models.DialogueSnapshot, error) {
	if s, err := m.Get(id); err == nil {
		return s.machine.Snapshot(), nil
	}
	if m.cfg.Snapshots == nil {
		return models.DialogueSnapshot{}, ErrCallNotFound
	}
	snap, err := m.cfg.Snapshots.Get(ctx, id)
	if err != nil {
		return models.DialogueSnapshot{}, ErrCallNotFound
	}
	return snap, nil
}

// End disconnects the call. An unfinished dialogue ends Aborted. Only the
// redacted snapshot remains afterwards.
func (m *Manager) End(ctx context.Context, id string) (models.DialogueSnapshot, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return models.DialogueSnapshot{}, ErrCallNotFound
	}
	metricActiveCalls.Dec()

	s.machine.Disconnect()
	s.stop()
	snap := m.save(ctx, s)
	m.logger.Info("Call ended", zap.String("callID", id), zap.String("state", string(snap.State)))
	return snap, nil
}

// Active is the number of live calls.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown ends every live call.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		_, _ = m.End(ctx, id)
	}
}

func (m *Manager) save(ctx context.Context, s *Session) models.DialogueSnapshot {
	snap := s.machine.Snapshot()
	if m.cfg.Snapshots == nil {
		return snap
	}
	if err := m.cfg.Snapshots.Save(ctx, snap.Redacted()); err != nil {
		m.logger.Warn("Failed to save dialogue snapshot", zap.String("callID", s.ID), zap.Error(err))
	}
	return snap
}
