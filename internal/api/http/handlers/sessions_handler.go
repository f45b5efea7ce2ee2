package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/returnflow/internal/api/dto"
	"github.com/spec-kit/returnflow/internal/service"
	apperrors "github.com/spec-kit/returnflow/pkg/util/errorutil"
)

// SessionsHandler exposes the conversation endpoints.
type SessionsHandler struct {
	orchestrator *service.Orchestrator
}

// NewSessionsHandler constructs the handler.
func NewSessionsHandler(orchestrator *service.Orchestrator) *SessionsHandler {
	return &SessionsHandler{orchestrator: orchestrator}
}

// Start opens a conversation.
func (h *SessionsHandler) Start(c *fiber.Ctx) error {
	var req dto.StartSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid request body", nil)
		}
	}

	id, err := h.orchestrator.StartSession(c.UserContext(), strings.TrimSpace(req.UserID))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.StartSessionResponse{SessionID: id})
}

// Identify attaches a customer to the session.
func (h *SessionsHandler) Identify(c *fiber.Ctx) error {
	var req dto.IdentifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	req.Phone = strings.TrimSpace(req.Phone)
	req.UserID = strings.TrimSpace(req.UserID)
	if req.Phone == "" && req.UserID == "" {
		return apperrors.NewValidationError("phone or user_id is required", nil)
	}

	ok, err := h.orchestrator.IdentifyUser(c.UserContext(), c.Params("id"), service.Identity{Phone: req.Phone, UserID: req.UserID})
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(dto.IdentifyResponse{Identified: ok})
}

// Turn processes one utterance. An unknown session still renders the
// turn result alongside the error.
func (h *SessionsHandler) Turn(c *fiber.Ctx) error {
	var req dto.TurnRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	result, err := h.orchestrator.ProcessInput(c.UserContext(), c.Params("id"), req.Text)
	if errors.Is(err, service.ErrSessionNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"data": result,
			"error": fiber.Map{
				"code":    "NOT_FOUND",
				"message": "session not found",
			},
		})
	}
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(result)
}

// Get returns the session snapshot.
func (h *SessionsHandler) Get(c *fiber.Ctx) error {
	s, err := h.orchestrator.Snapshot(c.UserContext(), c.Params("id"))
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(dto.NewSessionView(s))
}

// End closes the conversation.
func (h *SessionsHandler) End(c *fiber.Ctx) error {
	if err := h.orchestrator.EndSession(c.UserContext(), c.Params("id")); err != nil {
		return sessionError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func sessionError(c *fiber.Ctx, err error) error {
	if errors.Is(err, service.ErrSessionNotFound) {
		return apperrors.NewNotFound("session", map[string]any{"session_id": c.Params("id")})
	}
	return apperrors.MapError(err)
}
