package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/returnflow/internal/config"
	"github.com/spec-kit/returnflow/internal/events"
)

// NotificationService turns domain events into customer and staff
// notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventReturnCreated, n.handleReturnCreated)
	n.dispatcher.Subscribe(events.EventReturnStatusChanged, n.handleReturnStatusChanged)
	n.dispatcher.Subscribe(events.EventReturnEscalated, n.handleReturnEscalated)
}

func (n *NotificationService) handleReturnCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("ReturnCreated", zap.String("return_id", event.ReturnID), zap.Any("payload", event.Payload))
	if p, ok := event.Payload.(events.ReturnCreatedPayload); ok && p.HighRisk {
		n.logger.Warn("high risk return created",
			zap.String("return_id", event.ReturnID),
			zap.Float64("fraud_risk_score", p.FraudRiskScore))
		n.sendWebhookNotificationStub(ctx, event)
	}
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleReturnStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("ReturnStatusChanged", zap.String("return_id", event.ReturnID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleReturnEscalated(ctx context.Context, event events.Event) error {
	n.logger.Info("ReturnEscalated", zap.String("return_id", event.ReturnID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("return_id", event.ReturnID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("return_id", event.ReturnID),
		zap.String("event_type", string(event.Type)))
}
