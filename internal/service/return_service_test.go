package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/returnflow/internal/config"
	"github.com/spec-kit/returnflow/internal/domain"
	"github.com/spec-kit/returnflow/internal/events"
	"github.com/spec-kit/returnflow/internal/repository"
)

func seededReturn(t *testing.T, p *repository.MemoryProvider) {
	t.Helper()
	require.NoError(t, p.CreateReturn(context.Background(), &domain.ReturnRequest{
		ID: "RET-ORD002-1", OrderID: "ORD002", UserID: "USER001", ItemID: "ITEM003",
		Reason: domain.ReasonSizeIssue, Status: domain.ReturnStatusLabelGenerated,
		RefundAmount: 89.99, TrackingNumber: "1ZSIZE00000000000",
	}))
}

func TestReturnServiceUpdateStatus(t *testing.T) {
	ctx := context.Background()
	p := repository.NewDemoProvider()
	seededReturn(t, p)
	rec := &recorder{}
	d := events.NewInMemoryDispatcher()
	events.SubscribeAll(d, rec.handle)
	svc := NewReturnService(p, d, zap.NewNop())

	updated, err := svc.UpdateStatus(ctx, "staff-1", "RET-ORD002-1", domain.ReturnStatusReceived, "scanned at dock")
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusReceived, updated.Status)

	require.Len(t, rec.events, 1)
	ev := rec.events[0]
	assert.Equal(t, events.EventReturnStatusChanged, ev.Type)
	assert.Equal(t, events.Actor{Type: events.ActorStaff, ID: "staff-1"}, ev.Actor)
	assert.Equal(t, events.ReturnStatusChangedPayload{
		OldStatus: domain.ReturnStatusLabelGenerated,
		NewStatus: domain.ReturnStatusReceived,
		Comment:   "scanned at dock",
	}, ev.Payload)

	_, err = svc.UpdateStatus(ctx, "staff-1", "RET-ORD002-1", domain.ReturnStatusInTransit, "")
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
	_, err = svc.UpdateStatus(ctx, "staff-1", "RET-404", domain.ReturnStatusReceived, "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Len(t, rec.events, 1)
}

func TestReturnServiceListUserReturns(t *testing.T) {
	ctx := context.Background()
	p := repository.NewDemoProvider()
	seededReturn(t, p)
	svc := NewReturnService(p, nil, nil)

	returns, err := svc.ListUserReturns(ctx, "USER001")
	require.NoError(t, err)
	require.Len(t, returns, 1)
	assert.Equal(t, "RET-ORD002-1", returns[0].ID)

	returns, err = svc.ListUserReturns(ctx, "USER002")
	require.NoError(t, err)
	assert.Empty(t, returns)

	_, err = svc.ListUserReturns(ctx, "USER404")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNotificationServiceFlagsHighRiskReturns(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	d := events.NewInMemoryDispatcher()
	n := NewNotificationService(d, zap.New(core), config.NotificationConfig{EmailFrom: "returns@example.com", WebhookURL: "https://hooks.example.com/returns"})
	n.RegisterHandlers()

	ev := events.New(events.EventReturnCreated, events.Actor{Type: events.ActorCustomer, ID: "USER001"}, fixedTime(), events.ReturnCreatedPayload{
		FraudRiskScore: 0.8,
		HighRisk:       true,
	})
	ev.ReturnID = "RET-1"
	require.NoError(t, d.Publish(context.Background(), ev))

	assert.Equal(t, 1, logs.FilterMessage("high risk return created").Len())
	assert.Equal(t, 1, logs.FilterMessage("sendWebhookNotificationStub").Len())
	assert.Equal(t, 1, logs.FilterMessage("sendEmailNotificationStub").Len())

	esc := events.New(events.EventReturnEscalated, events.Actor{Type: events.ActorCustomer}, fixedTime(), events.ReturnEscalatedPayload{Discrepancy: 10})
	require.NoError(t, d.Publish(context.Background(), esc))
	assert.Equal(t, 2, logs.FilterMessage("sendWebhookNotificationStub").Len())
}
