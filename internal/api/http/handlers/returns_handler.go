package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/returnflow/internal/api/dto"
	"github.com/spec-kit/returnflow/internal/auth"
	"github.com/spec-kit/returnflow/internal/domain"
	"github.com/spec-kit/returnflow/internal/service"
	apperrors "github.com/spec-kit/returnflow/pkg/util/errorutil"
)

// ReturnsHandler exposes return records to staff.
type ReturnsHandler struct {
	returns *service.ReturnService
	history *service.HistoryService
}

// NewReturnsHandler constructs the handler.
func NewReturnsHandler(returns *service.ReturnService, history *service.HistoryService) *ReturnsHandler {
	return &ReturnsHandler{returns: returns, history: history}
}

// Get returns a single return record.
func (h *ReturnsHandler) Get(c *fiber.Ctx) error {
	ret, err := h.returns.GetReturn(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(dto.NewReturnView(ret))
}

// UpdateStatus advances a return along its lifecycle. Only supervisors
// may reject.
func (h *ReturnsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.UpdateReturnStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	req.Status = domain.ReturnStatus(strings.TrimSpace(string(req.Status)))
	if !req.Status.Valid() {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": req.Status})
	}
	if req.Status == domain.ReturnStatusRejected && principal.Role != auth.RoleSupervisor {
		return apperrors.NewForbidden("only supervisors may reject returns")
	}

	ret, err := h.returns.UpdateStatus(c.UserContext(), principal.StaffID, c.Params("id"), req.Status, req.Comment)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(dto.NewReturnView(ret))
}

// History lists the audit trail of a return.
func (h *ReturnsHandler) History(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.returns.GetReturn(c.UserContext(), id); err != nil {
		return apperrors.MapError(err)
	}
	entries, err := h.history.ListByReturn(c.UserContext(), id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if entries == nil {
		entries = []domain.ReturnHistory{}
	}
	return c.JSON(fiber.Map{"return_id": id, "history": entries})
}
