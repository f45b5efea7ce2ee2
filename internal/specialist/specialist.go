// Package specialist holds the conversation handlers. Each handler runs one
// stage of the return workflow against the shared session context and
// names the state that should handle the next turn.
package specialist

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/returnflow/internal/classifier"
	"github.com/spec-kit/returnflow/internal/domain"
	"github.com/spec-kit/returnflow/internal/events"
	"github.com/spec-kit/returnflow/internal/repository"
	"github.com/spec-kit/returnflow/internal/risk"
)

// Result is the outcome of one handler invocation.
type Result struct {
	Success               bool           `json:"success"`
	Message               string         `json:"message"`
	Data                  map[string]any `json:"data,omitempty"`
	Next                  domain.State   `json:"next_state,omitempty"`
	RequiresClarification bool           `json:"requires_clarification"`
	// Continue asks the orchestrator to run the handler for Next on the same
	// utterance before replying.
	Continue bool `json:"-"`
	// Events are published by the orchestrator once the turn is stored.
	Events []events.Event `json:"-"`
}

// Handler runs one turn of a conversation stage. Handlers may mutate
// s.Context; returned errors are infrastructure failures, never business
// outcomes.
type Handler interface {
	Name() string
	Handle(ctx context.Context, text string, s *domain.Session) (Result, error)
}

// FallbackPolicy decides what a handler does when its taxonomy falls back.
type FallbackPolicy string

const (
	// FallbackClarify re-prompts the caller.
	FallbackClarify FallbackPolicy = "clarify"
	// FallbackAccept treats the fallback category as a real answer.
	FallbackAccept FallbackPolicy = "accept"
)

// Config carries the business policy knobs.
type Config struct {
	ReturnWindowDays int
	RecentOrderLimit int
	TrackingPrefix   string
	DefaultCarrier   string
	LabelBaseURL     string
	IntentFallback   FallbackPolicy
	ReasonFallback   FallbackPolicy
}

// DefaultConfig returns the standard return policy.
func DefaultConfig() Config {
	return Config{
		ReturnWindowDays: 30,
		RecentOrderLimit: 5,
		TrackingPrefix:   "1Z",
		DefaultCarrier:   "ups",
		LabelBaseURL:     "https://returns.example.com",
		IntentFallback:   FallbackClarify,
		ReasonFallback:   FallbackClarify,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReturnWindowDays <= 0 {
		c.ReturnWindowDays = d.ReturnWindowDays
	}
	if c.RecentOrderLimit <= 0 {
		c.RecentOrderLimit = d.RecentOrderLimit
	}
	if c.TrackingPrefix == "" {
		c.TrackingPrefix = d.TrackingPrefix
	}
	if _, ok := carrierLocations[c.DefaultCarrier]; !ok {
		c.DefaultCarrier = d.DefaultCarrier
	}
	if c.LabelBaseURL == "" {
		c.LabelBaseURL = d.LabelBaseURL
	}
	if c.IntentFallback != FallbackAccept {
		c.IntentFallback = FallbackClarify
	}
	if c.ReasonFallback != FallbackAccept {
		c.ReasonFallback = FallbackClarify
	}
	return c
}

// Dependencies wires the handlers.
type Dependencies struct {
	Provider repository.Provider
	Rules    *classifier.Set
	Scorer   *risk.Scorer
	Config   Config
	Clock    func() time.Time
	// Random feeds tracking numbers and delivery estimates.
	Random io.Reader
	Logger *zap.Logger
}

// Set maps each conversation state to its handler.
type Set struct {
	handlers map[domain.State]Handler
	router   Handler
}

// New builds every handler from deps.
func New(deps Dependencies) *Set {
	if deps.Rules == nil {
		deps.Rules = classifier.Default()
	}
	if deps.Scorer == nil {
		deps.Scorer = risk.NewScorer(risk.DefaultThreshold)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Random == nil {
		deps.Random = rand.Reader
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Config = deps.Config.withDefaults()

	router := &IntentRouter{deps: deps}
	orders := &OrderSelection{deps: deps}
	logistics := &Logistics{deps: deps}
	return &Set{
		router: router,
		handlers: map[domain.State]Handler{
			domain.StateIntentRouter:         router,
			domain.StatePurchaseRetrieval:    orders,
			domain.StateAwaitOrderSelection:  orders,
			domain.StateReturnClassification: &ReasonClassification{deps: deps},
			domain.StateReturnProcessing:     &ReturnCreation{deps: deps},
			domain.StateLogistics:            logistics,
			domain.StateAwaitUserResponse:    logistics,
			domain.StateTrackingRefund:       &TrackingRefund{deps: deps},
			domain.StateEscalate:             router,
			domain.StateEnd:                  router,
		},
	}
}

// For returns the handler of state, defaulting to the intent router for
// states it does not know.
func (s *Set) For(state domain.State) Handler {
	if h, ok := s.handlers[state]; ok {
		return h
	}
	return s.router
}

func clarify(message string) Result {
	return Result{Message: message, RequiresClarification: true}
}

func needIdentity() Result {
	return clarify("I need to identify you first. Can you provide your phone number or customer ID?")
}

// restart signals missing context: the conversation starts over at the
// intent router.
func restart() Result {
	return Result{
		Message: "I'm missing some information to process your return. Let's start over. What would you like to do?",
		Next:    domain.StateIntentRouter,
	}
}

// lostOrder routes back to order lookup when a referenced order or item is
// gone.
func lostOrder(s *domain.Session, message string) Result {
	s.Context.ResetSelection()
	return Result{Message: message, Next: domain.StatePurchaseRetrieval}
}

func customer(s *domain.Session) events.Actor {
	return events.Actor{Type: events.ActorCustomer, ID: s.UserID}
}
