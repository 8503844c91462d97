package dialogue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	calendarRepo "voicebook/database/repository/calendar"
	"voicebook/models"
	"voicebook/services/fields"
	"voicebook/services/scheduling"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Tuesday
var now = time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

func testCalendar() models.BusinessCalendarConfig {
	return models.BusinessCalendarConfig{
		Name:         "Cabinet du Dr Martin",
		OpenMinute:   9 * 60,
		CloseMinute:  17 * 60,
		Duration:     30 * time.Minute,
		Location:     time.UTC,
		ServiceTypes: []models.ServiceType{{ID: "consultation", Aliases: []string{"consult"}}, {ID: "follow-up", Aliases: []string{"suivi"}}},
	}
}

func testParser() fields.Parser {
	return fields.Parser{Catalogue: testCalendar().ServiceTypes, Now: func() time.Time { return now }}
}

type staticGate struct {
	mu    sync.Mutex
	state models.TurnState
}

func (g *staticGate) Current() models.TurnState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *staticGate) set(s models.TurnState) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

// fakeResolver lets a test script each collaborator answer.
type fakeResolver struct {
	check  func(date, hhmm string) (scheduling.Availability, error)
	list   func(date string) ([]models.Slot, error)
	commit func(ctx context.Context, req models.BookingRequest) models.BookingResult
}

func (f *fakeResolver) CheckAvailability(_ context.Context, date, hhmm string) (scheduling.Availability, error) {
	if f.check == nil {
		return scheduling.Availability{Available: true}, nil
	}
	return f.check(date, hhmm)
}

func (f *fakeResolver) ListAvailableSlots(_ context.Context, date string) ([]models.Slot, error) {
	if f.list == nil {
		return nil, nil
	}
	return f.list(date)
}

func (f *fakeResolver) Commit(ctx context.Context, req models.BookingRequest) models.BookingResult {
	if f.commit == nil {
		return models.Confirmed("c-1", models.Slot{Date: req.Date})
	}
	return f.commit(ctx, req)
}

func newTestMachine(t *testing.T, resolver scheduling.AvailabilityService, gate TurnGate) *Machine {
	t.Helper()
	m := NewMachine(Options{
		CallID:   "call-1",
		Language: models.LanguageFrench,
		Calendar: testCalendar(),
		Resolver: resolver,
		Parser:   testParser(),
		Gate:     gate,
		Logger:   zap.NewNop(),
		Now:      func() time.Time { return now },
	})
	_, err := m.Start(context.Background())
	require.NoError(t, err)
	return m
}

func realResolver(store scheduling.CalendarStore) *scheduling.DefaultResolver {
	return &scheduling.DefaultResolver{
		Calendar: testCalendar(),
		Store:    store,
		Parser:   testParser(),
		Logger:   zap.NewNop(),
	}
}

func say(t *testing.T, m *Machine, text string) Reply {
	t.Helper()
	r, err := m.HandleUtterance(context.Background(), Utterance{Text: text})
	require.NoError(t, err, text)
	return r
}

var frenchAnswers = []string{
	"une consultation s'il vous plaît",
	"jeudi",
	"à 14h",
	"je m'appelle Marie Curie",
	"06 12 34 56 78",
	"marie@example.com",
}

func TestStartGreetsAndAsksForService(t *testing.T) {
	m := NewMachine(Options{CallID: "call-1", Calendar: testCalendar(), Resolver: &fakeResolver{}, Parser: testParser(), Logger: zap.NewNop()})

	_, err := m.HandleUtterance(context.Background(), Utterance{Text: "bonjour"})
	assert.ErrorIs(t, err, ErrNotAccepting)

	r, err := m.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StateCollectingServiceType, r.State)
	assert.Equal(t, PromptGreeting, r.Kind)
	assert.Contains(t, r.Prompt, "Cabinet du Dr Martin")
	assert.Contains(t, r.Prompt, "consultation, follow-up")

	_, err = m.Start(context.Background())
	assert.ErrorIs(t, err, ErrNotAccepting)
}

func TestFullBookingFollowsFieldOrder(t *testing.T) {
	store := calendarRepo.NewMemoryCalendarRepo()
	m := newTestMachine(t, realResolver(store), nil)

	wantStates := []models.DialogueState{
		models.StateCollectingDate,
		models.StateCollectingTime,
		models.StateCollectingName,
		models.StateCollectingPhone,
		models.StateCollectingEmail,
		models.StateCompleted,
	}
	var last Reply
	for i, answer := range frenchAnswers {
		last = say(t, m, answer)
		assert.Equal(t, wantStates[i], last.State, answer)
	}

	require.NotNil(t, last.Result)
	assert.Equal(t, models.OutcomeConfirmed, last.Result.Outcome)
	assert.Contains(t, last.Prompt, "jeudi 12 juin")
	assert.Contains(t, last.Prompt, "14:00")

	snap := m.Snapshot()
	assert.Equal(t, "consultation", snap.Request.ServiceType)
	assert.Equal(t, "2025-06-12", snap.Request.Date)
	assert.Equal(t, "Marie Curie", snap.Request.Name)

	list, err := store.ListCommitments(context.Background(), "2025-06-12")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = m.HandleUtterance(context.Background(), Utterance{Text: "merci"})
	assert.ErrorIs(t, err, ErrNotAccepting)
}

func TestLanguageSwitchKeepsCollectedFields(t *testing.T) {
	m := newTestMachine(t, &fakeResolver{}, nil)

	say(t, m, "bonjour, je voudrais une consultation")
	assert.Equal(t, models.LanguageFrench, m.Language())

	r := say(t, m, "I would like Thursday please")
	assert.Equal(t, models.LanguageEnglish, r.Language)
	assert.Equal(t, models.StateCollectingTime, r.State)
	assert.Equal(t, "What time on Thursday, June 12 suits you?", r.Prompt)

	snap := m.Snapshot()
	assert.Equal(t, "consultation", snap.Request.ServiceType)
	assert.Equal(t, "2025-06-12", snap.Request.Date)
	assert.Equal(t, models.LanguageEnglish, snap.Request.Language)
}

func TestLanguageHintAloneCanSwitch(t *testing.T) {
	m := newTestMachine(t, &fakeResolver{}, nil)

	r, err := m.HandleUtterance(context.Background(), Utterance{Text: "consultation", LanguageHint: models.LanguageEnglish})
	require.NoError(t, err)
	assert.Equal(t, models.LanguageEnglish, r.Language)
	assert.Equal(t, "Which day would you like to come in?", r.Prompt)
}

func TestThreeBadPhoneAnswersAbort(t *testing.T) {
	m := newTestMachine(t, &fakeResolver{}, nil)
	for _, a := range frenchAnswers[:4] {
		say(t, m, a)
	}
	require.Equal(t, models.StateCollectingPhone, m.State())

	r := say(t, m, "euh je ne sais pas")
	assert.Equal(t, PromptRetry, r.Kind)
	assert.Equal(t, models.StateCollectingPhone, r.State)

	r = say(t, m, "attendez")
	assert.Equal(t, PromptRetry, r.Kind)
	assert.Equal(t, 2, m.Snapshot().Retries[models.FieldPhone])

	r = say(t, m, "je ne trouve pas")
	assert.Equal(t, models.StateAborted, r.State)
	assert.Equal(t, PromptAborted, r.Kind)

	snap := m.Snapshot()
	assert.Empty(t, snap.Request.Name)
	_, err := m.HandleUtterance(context.Background(), Utterance{Text: "06 12 34 56 78"})
	assert.ErrorIs(t, err, ErrNotAccepting)
}

func TestRetryCounterResetsOnSuccess(t *testing.T) {
	m := newTestMachine(t, &fakeResolver{}, nil)
	say(t, m, "une consultation")

	say(t, m, "je ne sais pas")
	say(t, m, "hmm")
	say(t, m, "jeudi")
	assert.Equal(t, models.StateCollectingTime, m.State())
	assert.Zero(t, m.Snapshot().Retries[models.FieldDate])
}

func TestUnavailableReturnsToDateWithAlternatives(t *testing.T) {
	store := calendarRepo.NewMemoryCalendarRepo()
	start := time.Date(2025, 6, 12, 14, 0, 0, 0, time.UTC)
	_, err := store.CreateCommitment(context.Background(),
		models.Interval{Date: "2025-06-12", Start: start, End: start.Add(30 * time.Minute)},
		models.CommitmentMetadata{Summary: "taken"})
	require.NoError(t, err)

	m := newTestMachine(t, realResolver(store), nil)
	var r Reply
	for _, a := range frenchAnswers {
		r = say(t, m, a)
	}

	assert.Equal(t, models.StateCollectingDate, r.State)
	assert.Equal(t, PromptUnavailable, r.Kind)
	assert.Contains(t, r.Prompt, "le jeudi 12 juin à 09:00 ou 09:30 ou 10:00")

	snap := m.Snapshot()
	assert.Empty(t, snap.Request.Date)
	assert.Empty(t, snap.Request.Time)
	assert.Equal(t, "Marie Curie", snap.Request.Name)
	assert.Equal(t, "marie@example.com", snap.Request.Email)

	r = say(t, m, "jeudi")
	assert.Equal(t, models.StateCollectingTime, r.State)
	r = say(t, m, "15h")
	assert.Equal(t, models.StateCompleted, r.State)
}

func TestConflictReturnsToDate(t *testing.T) {
	commits := 0
	resolver := &fakeResolver{
		commit: func(_ context.Context, req models.BookingRequest) models.BookingResult {
			commits++
			if commits == 1 {
				return models.Conflict("taken")
			}
			return models.Confirmed("c-2", models.Slot{Date: req.Date})
		},
	}
	m := newTestMachine(t, resolver, nil)
	var r Reply
	for _, a := range frenchAnswers {
		r = say(t, m, a)
	}
	assert.Equal(t, PromptConflict, r.Kind)
	assert.Equal(t, models.StateCollectingDate, r.State)
	assert.Empty(t, m.Snapshot().Request.Time)

	say(t, m, "vendredi")
	r = say(t, m, "à 10h")
	assert.Equal(t, models.StateCompleted, r.State)
	assert.Equal(t, "c-2", r.Result.CommitmentID)
}

func TestCalendarOutageApologisesThenAborts(t *testing.T) {
	resolver := &fakeResolver{
		check: func(string, string) (scheduling.Availability, error) {
			return scheduling.Availability{}, scheduling.ErrCollaboratorUnavailable
		},
	}
	m := newTestMachine(t, resolver, nil)
	var r Reply
	for _, a := range frenchAnswers {
		r = say(t, m, a)
	}
	assert.Equal(t, PromptApology, r.Kind)
	assert.Equal(t, models.StateConfirmingSlot, r.State)

	r = say(t, m, "oui")
	assert.Equal(t, PromptApology, r.Kind)

	r = say(t, m, "oui")
	assert.Equal(t, models.StateAborted, r.State)
	assert.Equal(t, PromptAborted, r.Kind)
}

func TestMisalignedTimeRepromptsTime(t *testing.T) {
	m := newTestMachine(t, realResolver(calendarRepo.NewMemoryCalendarRepo()), nil)
	answers := append([]string{}, frenchAnswers...)
	answers[2] = "à 14h10"
	var r Reply
	for _, a := range answers {
		r = say(t, m, a)
	}
	assert.Equal(t, models.StateCollectingTime, r.State)
	assert.Equal(t, PromptRetry, r.Kind)
	assert.Equal(t, 1, m.Snapshot().Retries[models.FieldTime])

	r = say(t, m, "14h30")
	assert.Equal(t, models.StateCompleted, r.State)
}

func TestInputGatedWhileAgentSpeaks(t *testing.T) {
	gate := &staticGate{state: models.TurnAgentSpeaking}
	m := newTestMachine(t, &fakeResolver{}, gate)

	_, err := m.HandleUtterance(context.Background(), Utterance{Text: "une consultation"})
	assert.ErrorIs(t, err, ErrAgentSpeaking)
	assert.Equal(t, models.StateCollectingServiceType, m.State())

	gate.set(models.TurnUserSpeaking)
	r := say(t, m, "une consultation")
	assert.Equal(t, models.StateCollectingDate, r.State)
}

func TestDisconnectDuringCommitDiscardsResult(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	resolver := &fakeResolver{
		commit: func(_ context.Context, req models.BookingRequest) models.BookingResult {
			close(entered)
			<-release
			return models.Confirmed("late", models.Slot{Date: req.Date})
		},
	}
	m := newTestMachine(t, resolver, nil)
	for _, a := range frenchAnswers[:5] {
		say(t, m, a)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := m.HandleUtterance(context.Background(), Utterance{Text: frenchAnswers[5]})
		errc <- err
	}()
	<-entered
	assert.Equal(t, models.StateCommitting, m.State())

	_, err := m.HandleUtterance(context.Background(), Utterance{Text: "allô ?"})
	assert.ErrorIs(t, err, ErrTurnInProgress)

	m.Disconnect()
	assert.Equal(t, models.StateAborted, m.State())
	close(release)

	assert.ErrorIs(t, <-errc, ErrTransportDisconnected)
	snap := m.Snapshot()
	assert.Equal(t, models.StateAborted, snap.State)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.Request.Email)
}

type failingPrompts struct{}

func (failingPrompts) GeneratePrompt(context.Context, PromptRequest) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestPromptGeneratorFailureFallsBackToCatalogue(t *testing.T) {
	m := NewMachine(Options{
		CallID:   "call-1",
		Calendar: testCalendar(),
		Resolver: &fakeResolver{},
		Parser:   testParser(),
		Prompts:  failingPrompts{},
		Logger:   zap.NewNop(),
	})
	r, err := m.Start(context.Background())
	require.NoError(t, err)
	assert.Contains(t, r.Prompt, "Bienvenue chez Cabinet du Dr Martin")
}
