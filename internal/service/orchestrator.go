package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/returnflow/internal/domain"
	"github.com/spec-kit/returnflow/internal/events"
	"github.com/spec-kit/returnflow/internal/observability"
	"github.com/spec-kit/returnflow/internal/repository"
	"github.com/spec-kit/returnflow/internal/session"
	"github.com/spec-kit/returnflow/internal/specialist"
)

// ErrSessionNotFound is returned, together with a populated TurnResult,
// when a turn targets an unknown or evicted session.
var ErrSessionNotFound = errors.New("session not found")

const (
	sessionNotFoundMessage = "I couldn't find your conversation. It may have expired. Please start a new session."
	apologyMessage         = "I'm sorry, something went wrong on my end. Could you please repeat that?"
	// maxHops bounds how many handlers one utterance may pass through.
	maxHops = 2
)

// TurnResult is the reply to one utterance.
type TurnResult struct {
	SessionID             string         `json:"session_id"`
	Success               bool           `json:"success"`
	Message               string         `json:"message"`
	Data                  map[string]any `json:"data,omitempty"`
	State                 domain.State   `json:"state"`
	RequiresClarification bool           `json:"requires_clarification"`
}

// Identity names the caller by phone or customer id.
type Identity struct {
	Phone  string
	UserID string
}

// OrchestratorConfig bounds session lifetime and history.
type OrchestratorConfig struct {
	MaxHistory    int
	IdleTimeout   time.Duration
	TerminalGrace time.Duration
	SweepInterval time.Duration
}

// Dependencies wires the orchestrator.
type Dependencies struct {
	Store       session.Store
	Provider    repository.Provider
	Specialists *specialist.Set
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Clock       func() time.Time
	Config      OrchestratorConfig
}

// Orchestrator runs conversations: it owns session lifecycle and drives
// each turn through the handler of the session's current state.
type Orchestrator struct {
	store       session.Store
	provider    repository.Provider
	specialists *specialist.Set
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	cfg         OrchestratorConfig
	locks       *keyedMutex
}

// NewOrchestrator creates the service.
func NewOrchestrator(deps Dependencies) *Orchestrator {
	o := &Orchestrator{
		store:       deps.Store,
		provider:    deps.Provider,
		specialists: deps.Specialists,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		now:         deps.Clock,
		cfg:         deps.Config,
		locks:       newKeyedMutex(),
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.specialists == nil {
		o.specialists = specialist.New(specialist.Dependencies{Provider: deps.Provider, Clock: o.now, Logger: o.logger})
	}
	if o.cfg.SweepInterval <= 0 {
		o.cfg.SweepInterval = time.Minute
	}
	return o
}

// StartSession opens a conversation. userID may be empty when the caller
// is identified later.
func (o *Orchestrator) StartSession(ctx context.Context, userID string) (string, error) {
	s := &domain.Session{
		ID:    uuid.NewString(),
		State: domain.StateIntentRouter,
	}
	if userID != "" {
		user, err := o.provider.GetUser(ctx, userID)
		if err != nil {
			return "", err
		}
		s.UserID = user.ID
		s.Context.UserName = user.Name
	}
	if err := o.store.Create(ctx, s); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	o.metrics.RecordSession("started")
	o.logger.Info("session started", zap.String("session_id", s.ID), zap.String("user_id", s.UserID))
	o.publish(ctx, o.sessionEvent(events.EventSessionStarted, s))
	return s.ID, nil
}

// IdentifyUser attaches a customer to the session. It reports false when
// no customer matches the identity.
func (o *Orchestrator) IdentifyUser(ctx context.Context, sessionID string, id Identity) (bool, error) {
	unlock := o.locks.Lock(sessionID)
	defer unlock()

	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if s == nil {
		return false, ErrSessionNotFound
	}

	var user *domain.User
	switch {
	case id.UserID != "":
		user, err = o.provider.GetUser(ctx, id.UserID)
	case id.Phone != "":
		user, err = o.provider.GetUserByPhone(ctx, id.Phone)
	default:
		return false, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.UserID = user.ID
	s.Context.UserName = user.Name
	if err := o.store.Update(ctx, s); err != nil {
		return false, o.storeErr(err)
	}
	o.logger.Info("user identified", zap.String("session_id", sessionID), zap.String("user_id", user.ID))
	return true, nil
}

// ProcessInput runs one utterance through the session's current handler.
// An unknown session yields a non-success result and ErrSessionNotFound.
// Events are published once the session lock is released.
func (o *Orchestrator) ProcessInput(ctx context.Context, sessionID, text string) (TurnResult, error) {
	result, emitted, err := o.runTurn(ctx, sessionID, text)
	for _, ev := range emitted {
		o.publish(ctx, ev)
	}
	return result, err
}

func (o *Orchestrator) runTurn(ctx context.Context, sessionID, text string) (TurnResult, []events.Event, error) {
	unlock := o.locks.Lock(sessionID)
	defer unlock()

	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return TurnResult{SessionID: sessionID, Message: apologyMessage}, nil, err
	}
	if s == nil {
		return TurnResult{SessionID: sessionID, Message: sessionNotFoundMessage}, nil, ErrSessionNotFound
	}

	start := o.now()
	s.AppendTurn(domain.Turn{Role: domain.TurnRoleUser, Content: text, State: s.State, Timestamp: start}, o.cfg.MaxHistory)

	result, emitted := o.dispatch(ctx, s, text)
	result.SessionID = sessionID
	result.State = s.State

	s.AppendTurn(domain.Turn{Role: domain.TurnRoleAgent, Content: result.Message, State: s.State, Timestamp: o.now()}, o.cfg.MaxHistory)
	if err := o.store.Update(ctx, s); err != nil {
		return TurnResult{SessionID: sessionID, Message: apologyMessage}, nil, o.storeErr(err)
	}
	return result, emitted, nil
}

// dispatch runs the handler chain for one utterance and applies the state
// transitions. A handler error leaves the session as it was before the
// turn.
func (o *Orchestrator) dispatch(ctx context.Context, s *domain.Session, text string) (TurnResult, []events.Event) {
	before := s.Clone()
	var (
		out      TurnResult
		messages []string
		emitted  []events.Event
	)

	for hop := 0; hop < maxHops; hop++ {
		from := s.State
		handler := o.specialists.For(from)
		started := o.now()

		res, err := handler.Handle(ctx, text, s)
		o.metrics.RecordTurn(handler.Name(), err == nil && res.Success, o.now().Sub(started))
		if err != nil {
			o.logger.Error("handler failed",
				zap.String("session_id", s.ID),
				zap.String("handler", handler.Name()),
				zap.String("state", string(from)),
				zap.Error(err))
			restoreTurnState(s, before)
			return TurnResult{Message: apologyMessage}, nil
		}

		if res.Next != "" {
			s.State = o.nextState(s.ID, from, res.Next)
		} else if !from.Valid() {
			s.State = domain.StateIntentRouter
		}
		o.logger.Debug("turn handled",
			zap.String("session_id", s.ID),
			zap.String("handler", handler.Name()),
			zap.String("state", string(from)),
			zap.String("next_state", string(s.State)),
			zap.Bool("success", res.Success))

		if res.Message != "" {
			messages = append(messages, res.Message)
		}
		out.Data = mergeData(out.Data, res.Data)
		out.Success = res.Success
		out.RequiresClarification = res.RequiresClarification
		emitted = append(emitted, res.Events...)

		if !res.Continue || s.State == from {
			break
		}
	}

	out.Message = strings.Join(messages, " ")
	return out, emitted
}

// nextState validates a requested hand-off against the transition table.
// Refused transitions restart at the intent router.
func (o *Orchestrator) nextState(sessionID string, from, to domain.State) domain.State {
	if !from.Valid() {
		from = domain.StateIntentRouter
	}
	if domain.CanTransition(from, to) {
		return to
	}
	o.logger.Warn("transition refused",
		zap.String("session_id", sessionID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return domain.StateIntentRouter
}

// restoreTurnState rolls back handler effects but keeps the history that
// was appended for this turn.
func restoreTurnState(s, before *domain.Session) {
	history := s.History
	*s = *before.Clone()
	s.History = history
}

func mergeData(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// EndSession closes the conversation and discards its session.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) error {
	s, err := o.deleteSession(ctx, sessionID)
	if err != nil {
		return err
	}

	o.metrics.RecordSession("ended")
	o.logger.Info("session ended", zap.String("session_id", sessionID), zap.Int("turns", len(s.History)))
	o.publish(ctx, o.sessionEvent(events.EventSessionEnded, s))
	return nil
}

func (o *Orchestrator) deleteSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	unlock := o.locks.Lock(sessionID)
	defer unlock()

	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	if err := o.store.Delete(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	return s, nil
}

// Snapshot returns a copy of the session.
func (o *Orchestrator) Snapshot(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// RunJanitor evicts idle sessions every SweepInterval until ctx is done.
func (o *Orchestrator) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Warn("session sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep evicts the sessions that are idle past their timeout once and
// returns how many were removed.
func (o *Orchestrator) Sweep(ctx context.Context) (int, error) {
	ids, err := o.store.EvictIdle(ctx, session.IdlePolicy{
		Now:           o.now(),
		IdleTimeout:   o.cfg.IdleTimeout,
		TerminalGrace: o.cfg.TerminalGrace,
	})
	for _, id := range ids {
		o.metrics.RecordSession("expired")
		ev := events.New(events.EventSessionExpired, events.Actor{Type: events.ActorSystem}, o.now(), nil)
		ev.SessionID = id
		o.publish(ctx, ev)
	}
	if len(ids) > 0 {
		o.logger.Info("idle sessions evicted", zap.Int("count", len(ids)))
	}
	return len(ids), err
}

func (o *Orchestrator) sessionEvent(t events.EventType, s *domain.Session) events.Event {
	actor := events.Actor{Type: events.ActorSystem}
	if s.UserID != "" {
		actor = events.Actor{Type: events.ActorCustomer, ID: s.UserID}
	}
	ev := events.New(t, actor, o.now(), events.SessionPayload{
		UserID: s.UserID,
		State:  s.State,
		Turns:  len(s.History),
	})
	ev.SessionID = s.ID
	return ev
}

func (o *Orchestrator) publish(ctx context.Context, ev events.Event) {
	if o.dispatcher == nil {
		return
	}
	if err := o.dispatcher.Publish(ctx, ev); err != nil {
		o.logger.Warn("event delivery failed",
			zap.String("event_type", string(ev.Type)),
			zap.String("event_id", ev.ID),
			zap.Error(err))
	}
}

func (o *Orchestrator) storeErr(err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return ErrSessionNotFound
	}
	return fmt.Errorf("store session: %w", err)
}
