package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/returnflow/internal/config"
	"github.com/spec-kit/returnflow/internal/events"
	"github.com/spec-kit/returnflow/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartEventSink subscribes a Kafka sink to every event when brokers are
// configured. The returned sink must be closed on shutdown; it is nil when
// Kafka is disabled.
func StartEventSink(dispatcher events.Dispatcher, cfg config.KafkaConfig, logger *zap.Logger) *events.KafkaSink {
	if dispatcher == nil || !cfg.Enabled() {
		return nil
	}
	sink := events.NewKafkaSink(cfg.Brokers, cfg.Topic, logger)
	sink.Register(dispatcher)
	logger.Info("kafka event sink enabled",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))
	return sink
}
