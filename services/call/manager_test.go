package call

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	calendarRepo "voicebook/database/repository/calendar"
	"voicebook/models"
	"voicebook/services/dialogue"
	"voicebook/services/fields"
	"voicebook/services/scheduling"
	"voicebook/services/turn"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memorySnapshots struct {
	mu    sync.Mutex
	snaps map[string]models.DialogueSnapshot
}

func (s *memorySnapshots) Get(_ context.Context, id string) (models.DialogueSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[id]
	if !ok {
		return snap, errors.New("missing")
	}
	return snap, nil
}

func (s *memorySnapshots) Save(_ context.Context, snap models.DialogueSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.CallID] = snap
	return nil
}

func newManager(t *testing.T) (*Manager, *memorySnapshots) {
	t.Helper()
	catalogue := []models.ServiceType{{ID: "consultation"}}
	cal := models.BusinessCalendarConfig{
		Name: "Cabinet", OpenMinute: 9 * 60, CloseMinute: 17 * 60,
		Duration: 30 * time.Minute, Location: time.UTC, ServiceTypes: catalogue,
	}
	parser := fields.Parser{Catalogue: catalogue, Now: func() time.Time { return time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC) }}
	snaps := &memorySnapshots{snaps: map[string]models.DialogueSnapshot{}}
	m := NewManager(Config{
		Calendar: cal,
		Resolver: &scheduling.DefaultResolver{
			Calendar: cal, Store: calendarRepo.NewMemoryCalendarRepo(), Parser: parser, Logger: zap.NewNop(),
		},
		Parser:         parser,
		Snapshots:      snaps,
		SampleInterval: 5 * time.Millisecond,
		Logger:         zap.NewNop(),
	})
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return m, snaps
}

func TestCallBooksEndToEnd(t *testing.T) {
	m, snaps := newManager(t)
	ctx := context.Background()

	s, greeting, err := m.Start(ctx, StartOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StateCollectingServiceType, greeting.State)
	assert.Equal(t, 1, m.Active())

	var last dialogue.Reply
	for _, text := range []string{"une consultation", "jeudi", "14h", "Marie Curie", "06 12 34 56 78", "marie@example.com"} {
		last, err = m.Turn(ctx, s.ID, dialogue.Utterance{Text: text})
		require.NoError(t, err, text)
	}
	assert.Equal(t, models.StateCompleted, last.State)
	require.NotNil(t, last.Result)
	assert.Equal(t, models.OutcomeConfirmed, last.Result.Outcome)

	stored, err := snaps.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, stored.State)
	assert.Equal(t, "consultation", stored.Request.ServiceType)
	assert.Empty(t, stored.Request.Name)
	assert.Empty(t, stored.Request.Phone)
	assert.Empty(t, stored.Request.Email)
}

func TestStoredSnapshotsNeverHoldContactDetails(t *testing.T) {
	m, snaps := newManager(t)
	ctx := context.Background()
	s, _, err := m.Start(ctx, StartOptions{})
	require.NoError(t, err)

	for _, text := range []string{"une consultation", "jeudi", "14h", "Marie Curie", "06 12 34 56 78"} {
		_, err = m.Turn(ctx, s.ID, dialogue.Utterance{Text: text})
		require.NoError(t, err, text)
		stored, err := snaps.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.Request.Name, text)
		assert.Empty(t, stored.Request.Phone, text)
	}

	live, err := m.Snapshot(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Marie Curie", live.Request.Name)

	_, err = m.End(ctx, s.ID)
	require.NoError(t, err)

	after, err := m.Snapshot(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateAborted, after.State)
	assert.Equal(t, "2025-06-12", after.Request.Date)
	assert.Empty(t, after.Request.Name)
	assert.Empty(t, after.Request.Phone)
	assert.Empty(t, after.Request.Email)
}

func TestTurnRejectedWhileAgentSpeaks(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	s, _, err := m.Start(ctx, StartOptions{})
	require.NoError(t, err)

	require.NoError(t, s.ApplySignal(Signal{Type: SignalPlayback, Playing: true}))
	require.Eventually(t, func() bool { return s.Turn() == models.TurnAgentSpeaking }, time.Second, 2*time.Millisecond)

	_, err = m.Turn(ctx, s.ID, dialogue.Utterance{Text: "une consultation"})
	assert.ErrorIs(t, err, dialogue.ErrAgentSpeaking)

	require.NoError(t, s.ApplySignal(Signal{Type: SignalPlayback, Playing: false}))
	require.NoError(t, s.ApplySignal(Signal{Type: SignalMic, Mic: &turn.MicSample{Active: true, Enabled: true}}))
	require.Eventually(t, func() bool { return s.Turn() == models.TurnUserSpeaking }, time.Second, 2*time.Millisecond)

	_, err = m.Turn(ctx, s.ID, dialogue.Utterance{Text: "une consultation"})
	assert.NoError(t, err)
}

func TestAgentRoleFromStartOptions(t *testing.T) {
	m, _ := newManager(t)
	s, _, err := m.Start(context.Background(), StartOptions{Roles: map[string]models.ParticipantRole{"tts-1": models.RoleAgent}})
	require.NoError(t, err)

	require.NoError(t, s.ApplySignal(Signal{Type: SignalSpeakers, Speakers: []string{"tts-1"}}))
	require.Eventually(t, func() bool { return s.Turn() == models.TurnAgentSpeaking }, time.Second, 2*time.Millisecond)

	assert.ErrorIs(t, s.ApplySignal(Signal{Type: "volume"}), ErrUnknownSignal)
	assert.ErrorIs(t, s.ApplySignal(Signal{Type: SignalMic}), ErrUnknownSignal)
}

func TestEndAbortsAndKeepsSnapshot(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	s, _, err := m.Start(ctx, StartOptions{Language: models.LanguageEnglish})
	require.NoError(t, err)
	_, err = m.Turn(ctx, s.ID, dialogue.Utterance{Text: "a consultation please"})
	require.NoError(t, err)

	snap, err := m.End(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateAborted, snap.State)
	assert.Equal(t, 0, m.Active())

	_, err = m.Turn(ctx, s.ID, dialogue.Utterance{Text: "Thursday"})
	assert.ErrorIs(t, err, ErrCallNotFound)
	_, err = m.End(ctx, s.ID)
	assert.ErrorIs(t, err, ErrCallNotFound)

	stored, err := m.Snapshot(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateAborted, stored.State)
	assert.Equal(t, models.LanguageEnglish, stored.Language)

	_, err = m.Snapshot(ctx, "nope")
	assert.ErrorIs(t, err, ErrCallNotFound)
}

func TestRemovedReplyListenerIsClosed(t *testing.T) {
	m, _ := newManager(t)
	s, _, err := m.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	kept, _ := s.Replies()
	dropped, remove := s.Replies()
	remove()
	remove()
	_, ok := <-dropped
	assert.False(t, ok)

	s.mu.Lock()
	assert.Len(t, s.listeners, 1)
	s.mu.Unlock()

	_, err = m.Turn(context.Background(), s.ID, dialogue.Utterance{Text: "une consultation"})
	require.NoError(t, err)
	reply := <-kept
	assert.Equal(t, models.StateCollectingDate, reply.State)
}
