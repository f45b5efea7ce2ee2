package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/returnflow/internal/domain"
	"github.com/spec-kit/returnflow/internal/events"
	"github.com/spec-kit/returnflow/internal/repository"
)

// HistoryService records an audit trail of every return from the event
// stream.
type HistoryService struct {
	repo       repository.ReturnHistoryRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewHistoryService creates the service.
func NewHistoryService(repo repository.ReturnHistoryRepository, dispatcher events.Dispatcher, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{repo: repo, dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to return events.
func (h *HistoryService) RegisterHandlers() {
	if h.dispatcher == nil {
		return
	}
	h.dispatcher.Subscribe(events.EventReturnCreated, h.record)
	h.dispatcher.Subscribe(events.EventReturnStatusChanged, h.record)
	h.dispatcher.Subscribe(events.EventReturnEscalated, h.record)
}

// ListByReturn returns the audit trail of a return, oldest first.
func (h *HistoryService) ListByReturn(ctx context.Context, returnID string) ([]domain.ReturnHistory, error) {
	return h.repo.ListByReturn(ctx, returnID)
}

func (h *HistoryService) record(ctx context.Context, event events.Event) error {
	if event.ReturnID == "" {
		return nil
	}
	entry := &domain.ReturnHistory{
		ReturnID:      event.ReturnID,
		ChangedByType: string(event.Actor.Type),
		ChangedByID:   event.Actor.ID,
		CreatedAt:     event.Timestamp,
	}

	switch p := event.Payload.(type) {
	case events.ReturnCreatedPayload:
		entry.ChangeType = domain.ChangeTypeCreated
		entry.NewValue = map[string]any{
			"status":           p.Status,
			"reason":           p.Reason,
			"refund_amount":    p.RefundAmount,
			"tracking_number":  p.TrackingNumber,
			"fraud_risk_score": p.FraudRiskScore,
		}
	case events.ReturnStatusChangedPayload:
		entry.ChangeType = domain.ChangeTypeStatus
		entry.OldValue = map[string]any{"status": p.OldStatus}
		entry.NewValue = map[string]any{"status": p.NewStatus}
		if p.Comment != "" {
			entry.NewValue["comment"] = p.Comment
		}
	case events.ReturnEscalatedPayload:
		entry.ChangeType = domain.ChangeTypeEscalated
		entry.NewValue = map[string]any{
			"expected_refund": p.ExpectedRefund,
			"issued_refund":   p.IssuedRefund,
			"discrepancy":     p.Discrepancy,
			"reason":          p.Reason,
		}
	default:
		return nil
	}

	if err := h.repo.Create(ctx, entry); err != nil {
		h.logger.Warn("return history not recorded",
			zap.String("return_id", event.ReturnID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	return nil
}
