package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/returnflow/internal/domain"
	"github.com/spec-kit/returnflow/internal/events"
	"github.com/spec-kit/returnflow/internal/repository"
)

// ReturnService exposes return records to staff and advances their status
// along the lifecycle.
type ReturnService struct {
	provider   repository.Provider
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewReturnService creates the service.
func NewReturnService(provider repository.Provider, dispatcher events.Dispatcher, logger *zap.Logger) *ReturnService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReturnService{provider: provider, dispatcher: dispatcher, logger: logger, now: time.Now}
}

// GetReturn loads one return.
func (s *ReturnService) GetReturn(ctx context.Context, id string) (*domain.ReturnRequest, error) {
	return s.provider.GetReturn(ctx, id)
}

// ListUserReturns lists a customer's returns, oldest first.
func (s *ReturnService) ListUserReturns(ctx context.Context, userID string) ([]domain.ReturnRequest, error) {
	if _, err := s.provider.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.provider.GetUserReturns(ctx, userID)
}

// UpdateStatus moves a return to status on behalf of a staff member.
// Backward moves fail with repository.ErrInvalidTransition.
func (s *ReturnService) UpdateStatus(ctx context.Context, staffID, id string, status domain.ReturnStatus, comment string) (*domain.ReturnRequest, error) {
	current, err := s.provider.GetReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.provider.UpdateReturnStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.logger.Info("return status changed",
		zap.String("return_id", id),
		zap.String("staff_id", staffID),
		zap.String("old_status", string(current.Status)),
		zap.String("new_status", string(updated.Status)))

	if s.dispatcher != nil {
		ev := events.New(events.EventReturnStatusChanged, events.Actor{Type: events.ActorStaff, ID: staffID}, s.now(), events.ReturnStatusChangedPayload{
			OldStatus: current.Status,
			NewStatus: updated.Status,
			Comment:   comment,
		})
		ev.ReturnID = id
		if err := s.dispatcher.Publish(ctx, ev); err != nil {
			s.logger.Warn("event delivery failed", zap.String("event_id", ev.ID), zap.Error(err))
		}
	}
	return updated, nil
}
