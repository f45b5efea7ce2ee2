package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/returnflow/internal/api/http/handlers"
	"github.com/spec-kit/returnflow/internal/auth"
	"github.com/spec-kit/returnflow/internal/domain"
	"github.com/spec-kit/returnflow/internal/events"
	"github.com/spec-kit/returnflow/internal/observability"
	"github.com/spec-kit/returnflow/internal/persistence"
	"github.com/spec-kit/returnflow/internal/repository"
	"github.com/spec-kit/returnflow/internal/service"
	"github.com/spec-kit/returnflow/internal/session"
)

type testServer struct {
	app      *fiber.App
	provider *repository.MemoryProvider
	tokens   *auth.TokenManager
}

func newTestServer(t *testing.T, limiter *TurnLimiter) *testServer {
	t.Helper()
	logger := zap.NewNop()
	provider := repository.NewDemoProvider()
	store, err := session.NewStore(session.StoreTypeMemory)
	require.NoError(t, err)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	history := service.NewHistoryService(repository.NewMemoryHistoryRepository(), dispatcher, logger)
	history.RegisterHandlers()

	orchestrator := service.NewOrchestrator(service.Dependencies{
		Store:      store,
		Provider:   provider,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
		Config:     service.OrchestratorConfig{MaxHistory: 50, IdleTimeout: time.Hour},
	})
	tokens := auth.NewTokenManager("test-secret", 5)
	if limiter == nil {
		limiter = NewTurnLimiter(0, 0)
	}

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("returnflow", "test", &persistence.Postgres{}, nil),
		Sessions:       handlers.NewSessionsHandler(orchestrator),
		Returns:        handlers.NewReturnsHandler(service.NewReturnService(provider, dispatcher, logger), history),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		TurnLimiter:    limiter,
	})
	return &testServer{app: app, provider: provider, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) token(t *testing.T, role auth.Role) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken("staff-1", role)
	require.NoError(t, err)
	return token
}

func (s *testServer) startSession(t *testing.T, userID string) string {
	t.Helper()
	status, body := s.do(t, fiber.MethodPost, "/sessions", map[string]string{"user_id": userID}, "")
	require.Equal(t, fiber.StatusCreated, status, body)
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestHealthProbes(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body := srv.do(t, fiber.MethodGet, "/health/live", nil, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = srv.do(t, fiber.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
	assert.Empty(t, body["dependencies"])
}

func TestConversationOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	id := srv.startSession(t, "USER001")

	status, body := srv.do(t, fiber.MethodPost, "/sessions/"+id+"/turns", map[string]string{"text": "I want to start a return"}, "")
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, id, body["session_id"])
	assert.Equal(t, string(domain.StateAwaitOrderSelection), body["state"])
	assert.Contains(t, body["message"], "I found 2 recent orders.")

	status, body = srv.do(t, fiber.MethodGet, "/sessions/"+id, nil, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "USER001", body["user_id"])
	history, _ := body["history"].([]any)
	assert.Len(t, history, 2)

	status, _ = srv.do(t, fiber.MethodDelete, "/sessions/"+id, nil, "")
	assert.Equal(t, fiber.StatusNoContent, status)

	status, body = srv.do(t, fiber.MethodGet, "/sessions/"+id, nil, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestStartSessionUnknownUser(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body := srv.do(t, fiber.MethodPost, "/sessions", map[string]string{"user_id": "NOPE"}, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestTurnOnUnknownSessionRendersResult(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body := srv.do(t, fiber.MethodPost, "/sessions/missing/turns", map[string]string{"text": "hello"}, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
	data, _ := body["data"].(map[string]any)
	require.NotNil(t, data)
	assert.Equal(t, false, data["success"])
	assert.Contains(t, data["message"], "couldn't find your conversation")
}

func TestIdentify(t *testing.T) {
	srv := newTestServer(t, nil)
	id := srv.startSession(t, "")

	status, body := srv.do(t, fiber.MethodPost, "/sessions/"+id+"/identify", map[string]string{}, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = srv.do(t, fiber.MethodPost, "/sessions/"+id+"/identify", map[string]string{"phone": "+1-555-9999"}, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["identified"])

	status, body = srv.do(t, fiber.MethodPost, "/sessions/"+id+"/identify", map[string]string{"phone": "+1-555-0002"}, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["identified"])

	_, body = srv.do(t, fiber.MethodGet, "/sessions/"+id, nil, "")
	assert.Equal(t, "USER002", body["user_id"])

	status, _ = srv.do(t, fiber.MethodPost, "/sessions/missing/identify", map[string]string{"user_id": "USER001"}, "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestTurnRateLimit(t *testing.T) {
	srv := newTestServer(t, NewTurnLimiter(0.001, 1))
	id := srv.startSession(t, "USER002")
	other := srv.startSession(t, "USER002")

	status, _ := srv.do(t, fiber.MethodPost, "/sessions/"+id+"/turns", map[string]string{"text": "hi"}, "")
	assert.Equal(t, fiber.StatusOK, status)

	status, body := srv.do(t, fiber.MethodPost, "/sessions/"+id+"/turns", map[string]string{"text": "hi again"}, "")
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "TOO_MANY_REQUESTS", errorCode(body))

	status, _ = srv.do(t, fiber.MethodPost, "/sessions/"+other+"/turns", map[string]string{"text": "hi"}, "")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body := srv.do(t, fiber.MethodGet, "/nowhere", nil, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestAdminReturns(t *testing.T) {
	srv := newTestServer(t, nil)
	require.NoError(t, srv.provider.CreateReturn(context.Background(), &domain.ReturnRequest{
		ID:           "RET-1",
		OrderID:      "ORD003",
		UserID:       "USER002",
		ItemID:       "ITEM004",
		Reason:       domain.ReasonDefective,
		Status:       domain.ReturnStatusLabelGenerated,
		RefundAmount: 79.99,
	}))
	agent := srv.token(t, auth.RoleAgent)
	supervisor := srv.token(t, auth.RoleSupervisor)

	status, body := srv.do(t, fiber.MethodGet, "/admin/returns/RET-1", nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = srv.do(t, fiber.MethodGet, "/admin/returns/RET-1", nil, agent)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "label_generated", body["status"])
	assert.Equal(t, 79.99, body["refund_amount"])

	status, _ = srv.do(t, fiber.MethodGet, "/admin/returns/RET-404", nil, agent)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = srv.do(t, fiber.MethodPost, "/admin/returns/RET-1/status", map[string]string{"status": "lost"}, agent)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, _ = srv.do(t, fiber.MethodPost, "/admin/returns/RET-1/status", map[string]string{"status": "rejected"}, agent)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = srv.do(t, fiber.MethodPost, "/admin/returns/RET-1/status", map[string]string{"status": "in_transit"}, agent)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "in_transit", body["status"])

	status, body = srv.do(t, fiber.MethodPost, "/admin/returns/RET-1/status", map[string]string{"status": "initiated"}, agent)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))

	status, body = srv.do(t, fiber.MethodPost, "/admin/returns/RET-1/status", map[string]string{"status": "rejected", "comment": "opened box"}, supervisor)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "rejected", body["status"])

	status, body = srv.do(t, fiber.MethodGet, "/admin/returns/RET-1/history", nil, agent)
	require.Equal(t, fiber.StatusOK, status)
	entries, _ := body["history"].([]any)
	require.Len(t, entries, 2)
	last, _ := entries[1].(map[string]any)
	assert.Equal(t, "status_change", last["change_type"])
	assert.Equal(t, "staff", last["changed_by_type"])
	assert.Equal(t, map[string]any{"status": "rejected", "comment": "opened box"}, last["new_value"])

	status, _ = srv.do(t, fiber.MethodGet, "/admin/returns/RET-404/history", nil, agent)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestTurnLimiterDisabledAndPrune(t *testing.T) {
	var nilLimiter *TurnLimiter
	assert.True(t, nilLimiter.Allow("a"))

	l := NewTurnLimiter(1, 1)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	now = now.Add(limiterIdleTTL + 2*time.Minute)
	assert.True(t, l.Allow("b"))
	_, kept := l.entries["a"]
	assert.False(t, kept)
}
