package dialogue

import (
	"context"
	"errors"
	"sync"
	"time"

	"voicebook/models"
	"voicebook/services/fields"
	"voicebook/services/scheduling"
	"voicebook/utils"

	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 3
	maxAlternatives   = 3
)

// Options wires one Machine. Resolver and Parser are required.
type Options struct {
	CallID     string
	Language   models.Language
	Calendar   models.BusinessCalendarConfig
	Resolver   scheduling.AvailabilityService
	Parser     fields.Parser
	Gate       TurnGate
	Prompts    PromptGenerator
	MaxRetries int
	Logger     *zap.Logger
	Now        func() time.Time
}

// Machine drives the booking conversation of a single call. Turns are handled
// one at a time; Disconnect and Snapshot never wait for a turn to finish.
type Machine struct {
	callID     string
	business   string
	services   []string
	resolver   scheduling.AvailabilityService
	parser     fields.Parser
	gate       TurnGate
	prompts    PromptGenerator
	maxRetries int
	logger     *zap.Logger
	now        func() time.Time

	mu           sync.Mutex
	state        models.DialogueState
	lang         models.Language
	req          models.BookingRequest
	retries      map[models.Field]int
	outages      int
	result       *models.BookingResult
	started      bool
	busy         bool
	disconnected bool
	updatedAt    time.Time
}

func NewMachine(opts Options) *Machine {
	lang := opts.Language
	if lang == "" {
		lang = models.LanguageFrench
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.GetLogger()
	}
	prompts := opts.Prompts
	if prompts == nil {
		prompts = StaticPrompts{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Machine{
		callID:     opts.CallID,
		business:   opts.Calendar.Name,
		services:   fields.ServiceNames(opts.Calendar.ServiceTypes),
		resolver:   opts.Resolver,
		parser:     opts.Parser,
		gate:       opts.Gate,
		prompts:    prompts,
		maxRetries: maxRetries,
		logger:     logger.With(zap.String("callID", opts.CallID)),
		now:        now,
		state:      models.StateGreeting,
		lang:       lang,
		req:        models.BookingRequest{ID: opts.CallID, Language: lang},
		retries:    make(map[models.Field]int),
	}
}

// Start emits the greeting and moves to collecting the service type.
func (m *Machine) Start(ctx context.Context) (Reply, error) {
	m.mu.Lock()
	if m.disconnected {
		m.mu.Unlock()
		return Reply{}, ErrTransportDisconnected
	}
	if m.started {
		m.mu.Unlock()
		return Reply{}, ErrNotAccepting
	}
	m.started = true
	pr := m.promptLocked(PromptGreeting, models.FieldServiceType)
	m.state = models.StateCollectingServiceType
	m.touchLocked()
	m.mu.Unlock()

	m.logger.Info("dialogue started", zap.String("language", string(pr.Language)))
	return m.reply(ctx, pr), nil
}

// HandleUtterance consumes one user turn. It is rejected with ErrAgentSpeaking
// while the gate reports the agent has the floor.
func (m *Machine) HandleUtterance(ctx context.Context, u Utterance) (Reply, error) {
	m.mu.Lock()
	if err := m.acceptingLocked(); err != nil {
		m.mu.Unlock()
		metricTurns.WithLabelValues("rejected").Inc()
		return Reply{}, err
	}
	m.busy = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.busy = false
		m.mu.Unlock()
	}()

	pr, err := m.step(ctx, u)
	if err != nil {
		metricTurns.WithLabelValues("discarded").Inc()
		return Reply{}, err
	}
	metricTurns.WithLabelValues(string(pr.Kind)).Inc()
	return m.reply(ctx, pr), nil
}

// Disconnect aborts the call. A commit already running is left to finish but
// its result is dropped.
func (m *Machine) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disconnected {
		return
	}
	m.disconnected = true
	if !m.state.Terminal() {
		m.abortLocked("disconnected")
	}
}

// Snapshot returns a copy of the dialogue state.
func (m *Machine) Snapshot() models.DialogueSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	retries := make(map[models.Field]int, len(m.retries))
	for f, n := range m.retries {
		retries[f] = n
	}
	var result *models.BookingResult
	if m.result != nil {
		r := *m.result
		result = &r
	}
	return models.DialogueSnapshot{
		CallID:    m.callID,
		State:     m.state,
		Language:  m.lang,
		Request:   m.req,
		Retries:   retries,
		Result:    result,
		UpdatedAt: m.updatedAt,
	}
}

func (m *Machine) State() models.DialogueState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Language() models.Language {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lang
}

func (m *Machine) acceptingLocked() error {
	switch {
	case m.disconnected:
		return ErrTransportDisconnected
	case !m.started, m.state.Terminal():
		return ErrNotAccepting
	case m.busy:
		return ErrTurnInProgress
	case m.gate != nil && m.gate.Current() == models.TurnAgentSpeaking:
		return ErrAgentSpeaking
	}
	return nil
}

func (m *Machine) step(ctx context.Context, u Utterance) (PromptRequest, error) {
	m.mu.Lock()
	if lang := DetectLanguage(u.Text, u.LanguageHint, m.lang); lang != m.lang {
		m.logger.Info("language switched", zap.String("from", string(m.lang)), zap.String("to", string(lang)))
		metricLanguageSwitches.WithLabelValues(string(lang)).Inc()
		m.lang = lang
		m.req.Language = lang
	}
	m.touchLocked()

	if m.state == models.StateConfirmingSlot {
		m.mu.Unlock()
		return m.resolve(ctx)
	}

	field, ok := models.FieldFor(m.state)
	if !ok {
		m.mu.Unlock()
		return PromptRequest{}, ErrNotAccepting
	}
	value, err := m.parser.Extract(field, u.Text)
	if err != nil {
		pr := m.failFieldLocked(field, err)
		m.mu.Unlock()
		return pr, nil
	}

	m.req.Set(field, value)
	delete(m.retries, field)
	if next, missing := m.req.NextMissing(); missing {
		m.state = models.CollectingState(next)
		pr := m.promptLocked(PromptAsk, next)
		m.mu.Unlock()
		return pr, nil
	}
	m.state = models.StateConfirmingSlot
	m.mu.Unlock()
	return m.resolve(ctx)
}

// resolve runs the availability check and the commit with the lock released.
// After each call the machine re-checks for a disconnect before applying anything.
func (m *Machine) resolve(ctx context.Context) (PromptRequest, error) {
	m.mu.Lock()
	req := m.req
	m.mu.Unlock()

	avail, err := m.resolver.CheckAvailability(ctx, req.Date, req.Time)
	var alternatives []models.Slot
	if err == nil && !avail.Available {
		if alternatives, err = m.resolver.ListAvailableSlots(ctx, req.Date); err != nil {
			m.logger.Warn("could not list alternatives", zap.Error(err))
			alternatives, err = nil, nil
		}
	}

	m.mu.Lock()
	if m.disconnected {
		m.mu.Unlock()
		return PromptRequest{}, ErrTransportDisconnected
	}
	switch {
	case errors.Is(err, scheduling.ErrSlotNotAligned):
		m.req.Time = ""
		pr := m.failFieldLocked(models.FieldTime, err)
		m.mu.Unlock()
		return pr, nil
	case errors.Is(err, scheduling.ErrDayClosed), errors.Is(err, scheduling.ErrInvalidDate):
		m.req.Date, m.req.Time = "", ""
		pr := m.failFieldLocked(models.FieldDate, err)
		m.mu.Unlock()
		return pr, nil
	case err != nil:
		pr := m.outageLocked(err)
		m.mu.Unlock()
		return pr, nil
	case !avail.Available:
		m.req.Date, m.req.Time = "", ""
		m.state = models.StateCollectingDate
		pr := m.promptLocked(PromptUnavailable, models.FieldDate)
		pr.RejectedDate = req.Date
		for i := 0; i < len(alternatives) && i < maxAlternatives; i++ {
			pr.Alternatives = append(pr.Alternatives, alternatives[i].StartLabel())
		}
		m.mu.Unlock()
		return pr, nil
	}
	m.state = models.StateCommitting
	m.touchLocked()
	m.mu.Unlock()

	result := m.resolver.Commit(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disconnected {
		m.logger.Warn("discarding commit result after disconnect",
			zap.String("outcome", string(result.Outcome)),
			zap.String("commitmentID", result.CommitmentID))
		return PromptRequest{}, ErrTransportDisconnected
	}
	m.result = &result
	switch result.Outcome {
	case models.OutcomeConfirmed:
		m.state = models.StateCompleted
		m.touchLocked()
		metricOutcomes.WithLabelValues(string(models.StateCompleted), "confirmed").Inc()
		m.logger.Info("dialogue completed", zap.String("commitmentID", result.CommitmentID))
		return m.promptLocked(PromptConfirmed, ""), nil
	case models.OutcomeConflict:
		m.req.Date, m.req.Time = "", ""
		m.state = models.StateCollectingDate
		return m.promptLocked(PromptConflict, models.FieldDate), nil
	case models.OutcomeInvalid:
		field := result.Field
		if field == "" {
			field = models.FieldTime
		}
		m.req.Set(field, "")
		if field == models.FieldDate {
			m.req.Time = ""
		}
		return m.failFieldLocked(field, errors.New(result.Reason)), nil
	}
	return m.outageLocked(result.Cause), nil
}

func (m *Machine) failFieldLocked(field models.Field, err error) PromptRequest {
	m.retries[field]++
	m.logger.Debug("field not understood",
		zap.String("field", string(field)),
		zap.Int("attempt", m.retries[field]),
		zap.Error(err))
	if m.retries[field] >= m.maxRetries {
		return m.abortLocked("retries_exhausted")
	}
	m.state = models.CollectingState(field)
	m.touchLocked()
	return m.promptLocked(PromptRetry, field)
}

// outageLocked parks the machine in ConfirmingSlot; the next utterance retries.
func (m *Machine) outageLocked(err error) PromptRequest {
	m.outages++
	m.logger.Warn("calendar unavailable", zap.Int("attempt", m.outages), zap.Error(err))
	if m.outages >= m.maxRetries {
		return m.abortLocked("collaborator_unavailable")
	}
	m.state = models.StateConfirmingSlot
	m.touchLocked()
	return m.promptLocked(PromptApology, "")
}

func (m *Machine) abortLocked(reason string) PromptRequest {
	m.state = models.StateAborted
	m.req = models.BookingRequest{ID: m.callID, Language: m.lang}
	m.touchLocked()
	metricOutcomes.WithLabelValues(string(models.StateAborted), reason).Inc()
	m.logger.Info("dialogue aborted", zap.String("reason", reason))
	return m.promptLocked(PromptAborted, "")
}

func (m *Machine) promptLocked(kind PromptKind, field models.Field) PromptRequest {
	return PromptRequest{
		Kind:     kind,
		State:    m.state,
		Field:    field,
		Language: m.lang,
		Known:    m.req.Known(),
		Business: m.business,
		Services: m.services,
	}
}

func (m *Machine) touchLocked() {
	m.updatedAt = m.now().UTC()
}

func (m *Machine) reply(ctx context.Context, pr PromptRequest) Reply {
	m.mu.Lock()
	pr.State = m.state
	r := Reply{CallID: m.callID, State: m.state, Language: pr.Language, Kind: pr.Kind}
	if m.result != nil && pr.Kind == PromptConfirmed {
		res := *m.result
		r.Result = &res
	}
	m.mu.Unlock()

	text, err := m.prompts.GeneratePrompt(ctx, pr)
	if err != nil || text == "" {
		if err != nil {
			m.logger.Warn("prompt generation failed, using catalogue", zap.Error(err))
		}
		metricPromptFallbacks.Inc()
		text = RenderPrompt(pr)
	}
	r.Prompt = text
	return r
}
