package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/returnflow/internal/domain"
	"github.com/spec-kit/returnflow/internal/events"
	"github.com/spec-kit/returnflow/internal/observability"
	"github.com/spec-kit/returnflow/internal/repository"
	"github.com/spec-kit/returnflow/internal/session"
	"github.com/spec-kit/returnflow/internal/specialist"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	orch     *Orchestrator
	store    session.Store
	provider *repository.MemoryProvider
	clock    *fakeClock
	events   *recorder
	metrics  *observability.Metrics
}

type harnessOption func(*Dependencies)

func withConfig(cfg OrchestratorConfig) harnessOption {
	return func(d *Dependencies) { d.Config = cfg }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	provider := repository.NewDemoProvider(repository.WithClock(clock.Now))
	now := clock.Now()

	// One eligible order with a single item.
	provider.PutUser(domain.User{ID: "USER100", Name: "Sam Carter", Phone: "+1-555-0100", ReturnCount: 2, AccountAgeDays: 365})
	provider.PutOrder(domain.Order{
		ID: "ORD100", UserID: "USER100", OrderDate: now.AddDate(0, 0, -5), Status: "delivered",
		Items: []domain.OrderItem{{ID: "ITEM100", ProductName: "Wireless Headphones", UnitPrice: 149.99, Quantity: 1}},
	})
	// One order outside the return window.
	provider.PutUser(domain.User{ID: "USER200", Name: "Lee Park", Phone: "+1-555-0200", AccountAgeDays: 700})
	provider.PutOrder(domain.Order{
		ID: "ORD200", UserID: "USER200", OrderDate: now.AddDate(0, 0, -45), Status: "delivered",
		Items: []domain.OrderItem{{ID: "ITEM200", ProductName: "Floor Lamp", UnitPrice: 59.99, Quantity: 1}},
	})

	store, err := session.NewStore(session.StoreTypeMemory, session.WithClock(clock.Now))
	require.NoError(t, err)

	rec := &recorder{}
	dispatcher := events.NewInMemoryDispatcher()
	events.SubscribeAll(dispatcher, rec.handle)
	metrics := observability.NewMetrics()

	deps := Dependencies{
		Store:       store,
		Provider:    provider,
		Specialists: specialist.New(specialist.Dependencies{Provider: provider, Clock: clock.Now}),
		Dispatcher:  dispatcher,
		Logger:      zap.NewNop(),
		Metrics:     metrics,
		Clock:       clock.Now,
		Config:      OrchestratorConfig{MaxHistory: 200, IdleTimeout: 30 * time.Minute, TerminalGrace: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return &harness{
		orch:     NewOrchestrator(deps),
		store:    store,
		provider: provider,
		clock:    clock,
		events:   rec,
		metrics:  metrics,
	}
}

func (h *harness) start(t *testing.T, userID string) string {
	t.Helper()
	id, err := h.orch.StartSession(context.Background(), userID)
	require.NoError(t, err)
	return id
}

func (h *harness) say(t *testing.T, id, text string) TurnResult {
	t.Helper()
	res, err := h.orch.ProcessInput(context.Background(), id, text)
	require.NoError(t, err)
	return res
}

func (h *harness) session(t *testing.T, id string) *domain.Session {
	t.Helper()
	s, err := h.orch.Snapshot(context.Background(), id)
	require.NoError(t, err)
	return s
}

func TestScenarioReturnThroughLabel(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, "USER100")

	// Start a return for the only order and item.
	res := h.say(t, id, "I want to return my headphones")
	assert.True(t, res.Success)
	assert.Equal(t, domain.StateReturnClassification, res.State)
	assert.Contains(t, res.Message, "I'll help you start a return.")
	assert.Contains(t, res.Message, "Got it, you want to return the Wireless Headphones.")
	assert.Equal(t, "start_return", res.Data["intent"])
	s := h.session(t, id)
	assert.Equal(t, "Wireless Headphones", s.Context.ItemName)
	assert.Equal(t, domain.StateReturnClassification, s.State)

	// Damaged, clean history.
	res = h.say(t, id, "It was broken when it arrived")
	assert.True(t, res.Success)
	assert.Equal(t, "damaged", res.Data["reason"])
	assert.Equal(t, 0.1, res.Data["fraud_risk_score"])
	s = h.session(t, id)
	assert.Equal(t, domain.ReasonDamaged, s.Context.ReturnReason)
	assert.Equal(t, 0.1, s.Context.FraudRiskScore)

	// Confirm and create.
	res = h.say(t, id, "yes")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, domain.StateLogistics, res.State)
	returnID, _ := res.Data["return_id"].(string)
	stored, err := h.provider.GetReturn(context.Background(), returnID)
	require.NoError(t, err)
	assert.Equal(t, 149.99, stored.RefundAmount)
	assert.Equal(t, domain.ReturnStatusLabelGenerated, stored.Status)
	assert.Len(t, stored.TrackingNumber, 18)
	assert.Regexp(t, `^1Z[A-Z0-9]{16}$`, stored.TrackingNumber)

	user, err := h.provider.GetUser(context.Background(), "USER100")
	require.NoError(t, err)
	assert.Equal(t, 3, user.ReturnCount)

	assert.Equal(t, []events.EventType{events.EventSessionStarted, events.EventReturnCreated}, h.events.types())

	s = h.session(t, id)
	assert.Len(t, s.History, 6)
	assert.Equal(t, domain.TurnRoleUser, s.History[0].Role)
	assert.Equal(t, domain.StateIntentRouter, s.History[0].State)
	assert.Equal(t, domain.TurnRoleAgent, s.History[1].Role)
}

func TestScenarioOrderOutsideWindow(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, "USER200")

	res := h.say(t, id, "I want to return my floor lamp")
	assert.False(t, res.Success)
	assert.Equal(t, domain.StateEnd, res.State)
	assert.Contains(t, res.Message, "outside the 30-day return window")

	s := h.session(t, id)
	assert.Empty(t, s.Context.SelectedOrderID)
	assert.Empty(t, s.Context.SelectedItemID)
	assert.Empty(t, s.Context.ItemName)
}

func TestScenarioRefundDispute(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.provider.CreateReturn(context.Background(), &domain.ReturnRequest{
		ID: "RET-ORD100-1", OrderID: "ORD100", UserID: "USER100", ItemID: "ITEM100",
		Reason: domain.ReasonDamaged, Status: domain.ReturnStatusRefundProcessed,
		RefundAmount: 139.99, TrackingNumber: "1ZDISPUTE00000000",
	}))
	id := h.start(t, "USER100")

	res := h.say(t, id, "my refund amount is wrong")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, domain.StateEscalate, res.State)
	assert.Equal(t, true, res.Data["escalated"])
	assert.Equal(t, 10.0, res.Data["discrepancy"])

	stored, err := h.provider.GetReturn(context.Background(), "RET-ORD100-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusDisputed, stored.Status)
	assert.Equal(t, []events.EventType{
		events.EventSessionStarted,
		events.EventReturnStatusChanged,
		events.EventReturnEscalated,
	}, h.events.types())
	assert.True(t, h.session(t, id).Context.Escalated)
}

func TestProcessInputUnknownSession(t *testing.T) {
	h := newHarness(t)

	res, err := h.orch.ProcessInput(context.Background(), "missing", "hello")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, res.Success)
	assert.Equal(t, "missing", res.SessionID)
	assert.NotEmpty(t, res.Message)
}

func TestStartSessionUnknownUser(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.StartSession(context.Background(), "USER404")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestIdentifyUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.start(t, "")

	res := h.say(t, id, "I want to return my headphones")
	assert.True(t, res.RequiresClarification)
	assert.Contains(t, res.Message, "identify you")

	ok, err := h.orch.IdentifyUser(ctx, id, Identity{Phone: "1 (555) 0199"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.orch.IdentifyUser(ctx, id, Identity{Phone: "1 (555) 0100"})
	require.NoError(t, err)
	assert.True(t, ok)
	s := h.session(t, id)
	assert.Equal(t, "USER100", s.UserID)
	assert.Equal(t, "Sam Carter", s.Context.UserName)

	res = h.say(t, id, "the headphones")
	assert.True(t, res.Success)
	assert.Equal(t, domain.StateReturnClassification, res.State)

	_, err = h.orch.IdentifyUser(ctx, "missing", Identity{UserID: "USER100"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

type failingProvider struct {
	*repository.MemoryProvider
}

func (failingProvider) GetUserOrders(context.Context, string, int) ([]domain.Order, error) {
	return nil, errors.New("connection reset")
}

func TestHandlerErrorLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	broken := failingProvider{h.provider}
	h = newHarness(t, func(d *Dependencies) {
		d.Provider = broken
		d.Specialists = specialist.New(specialist.Dependencies{Provider: broken, Clock: d.Clock})
	})
	id := h.start(t, "USER001")

	res := h.say(t, id, "I want to return my headphones")
	assert.False(t, res.Success)
	assert.Equal(t, apologyMessage, res.Message)
	assert.Equal(t, domain.StateIntentRouter, res.State)

	s := h.session(t, id)
	assert.Equal(t, domain.StateIntentRouter, s.State)
	assert.Empty(t, s.Context.Intent)
	assert.Len(t, s.History, 2)
	assert.Equal(t, int64(1), h.metrics.Snapshot().Turns["order_selection|false"])
}

func TestRefusedTransitionRestarts(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, domain.StateIntentRouter, h.orch.nextState("s", domain.StateLogistics, domain.StateReturnClassification))
	assert.Equal(t, domain.StateEnd, h.orch.nextState("s", domain.StateLogistics, domain.StateEnd))
	assert.Equal(t, domain.StatePurchaseRetrieval, h.orch.nextState("s", domain.State("bogus"), domain.StatePurchaseRetrieval))
}

func TestUnknownStateFallsBackToRouter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Create(ctx, &domain.Session{ID: "odd", UserID: "USER001", State: domain.State("bogus")}))

	res := h.say(t, "odd", "hello")
	assert.True(t, res.Success)
	assert.Equal(t, domain.StateIntentRouter, res.State)
}

func TestHistoryIsBounded(t *testing.T) {
	h := newHarness(t, withConfig(OrchestratorConfig{MaxHistory: 4}))
	id := h.start(t, "USER001")

	for i := 0; i < 5; i++ {
		h.say(t, id, fmt.Sprintf("hello %d", i))
	}
	s := h.session(t, id)
	require.Len(t, s.History, 4)
	assert.Equal(t, "hello 3", s.History[0].Content)
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	h := newHarness(t)
	shared := h.start(t, "USER001")
	others := make([]string, 5)
	for i := range others {
		others[i] = h.start(t, "USER002")
	}

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.orch.ProcessInput(context.Background(), shared, "hello")
			errs <- err
		}()
		go func(id string) {
			defer wg.Done()
			_, err := h.orch.ProcessInput(context.Background(), id, "hello")
			errs <- err
		}(others[i%len(others)])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, h.session(t, shared).History, 40)
	assert.Equal(t, 0, h.orch.locks.size())
}

func TestEventsArePublishedOutsideSessionLock(t *testing.T) {
	var orch *Orchestrator
	var mu sync.Mutex
	heldLocks := map[events.EventType]int{}
	h := newHarness(t, func(d *Dependencies) {
		d.Dispatcher.Subscribe(events.EventReturnCreated, func(context.Context, events.Event) error {
			mu.Lock()
			defer mu.Unlock()
			heldLocks[events.EventReturnCreated] = orch.locks.size()
			return nil
		})
		d.Dispatcher.Subscribe(events.EventSessionEnded, func(context.Context, events.Event) error {
			mu.Lock()
			defer mu.Unlock()
			heldLocks[events.EventSessionEnded] = orch.locks.size()
			return nil
		})
	})
	orch = h.orch
	id := h.start(t, "USER100")

	h.say(t, id, "I want to return my headphones")
	h.say(t, id, "It was broken when it arrived")
	res := h.say(t, id, "yes")
	require.True(t, res.Success, res.Message)
	require.NoError(t, h.orch.EndSession(context.Background(), id))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[events.EventType]int{events.EventReturnCreated: 0, events.EventSessionEnded: 0}, heldLocks)
}

func TestEndSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.start(t, "USER001")
	h.say(t, id, "hello")

	require.NoError(t, h.orch.EndSession(ctx, id))
	_, err := h.orch.Snapshot(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, h.orch.EndSession(ctx, id), ErrSessionNotFound)

	types := h.events.types()
	assert.Equal(t, events.EventSessionEnded, types[len(types)-1])
	assert.Equal(t, int64(1), h.metrics.Snapshot().Sessions["ended"])
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	active := h.start(t, "USER001")
	finished := h.start(t, "USER200")
	res := h.say(t, finished, "I want to return my floor lamp")
	require.Equal(t, domain.StateEnd, res.State)

	h.clock.Advance(3 * time.Minute)
	n, err := h.orch.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = h.orch.Snapshot(ctx, finished)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	h.session(t, active)

	h.clock.Advance(30 * time.Minute)
	n, err = h.orch.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err = h.orch.ProcessInput(ctx, active, "hello")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, res.Success)

	var expired int
	for _, typ := range h.events.types() {
		if typ == events.EventSessionExpired {
			expired++
		}
	}
	assert.Equal(t, 2, expired)
}

func TestRunJanitorStopsOnCancel(t *testing.T) {
	h := newHarness(t, withConfig(OrchestratorConfig{IdleTimeout: time.Minute, SweepInterval: 5 * time.Millisecond}))
	id := h.start(t, "USER001")
	h.clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.orch.RunJanitor(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		s, err := h.store.Get(context.Background(), id)
		return err == nil && s == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func fixedTime() time.Time {
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}
