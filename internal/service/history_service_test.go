package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/returnflow/internal/domain"
	"github.com/spec-kit/returnflow/internal/events"
	"github.com/spec-kit/returnflow/internal/repository"
)

type failingHistoryRepo struct {
	repository.ReturnHistoryRepository
}

func (failingHistoryRepo) Create(context.Context, *domain.ReturnHistory) error {
	return errors.New("disk full")
}

func TestHistoryServiceRecordsReturnEvents(t *testing.T) {
	ctx := context.Background()
	d := events.NewInMemoryDispatcher()
	repo := repository.NewMemoryHistoryRepository()
	h := NewHistoryService(repo, d, zap.NewNop())
	h.RegisterHandlers()

	created := events.New(events.EventReturnCreated, events.Actor{Type: events.ActorCustomer, ID: "USER001"}, fixedTime(), events.ReturnCreatedPayload{
		Reason:       domain.ReasonDamaged,
		Status:       domain.ReturnStatusLabelGenerated,
		RefundAmount: 149.99,
	})
	created.ReturnID = "RET-1"
	require.NoError(t, d.Publish(ctx, created))

	changed := events.New(events.EventReturnStatusChanged, events.Actor{Type: events.ActorStaff, ID: "staff-1"}, fixedTime(), events.ReturnStatusChangedPayload{
		OldStatus: domain.ReturnStatusLabelGenerated,
		NewStatus: domain.ReturnStatusInTransit,
	})
	changed.ReturnID = "RET-1"
	require.NoError(t, d.Publish(ctx, changed))

	escalated := events.New(events.EventReturnEscalated, events.Actor{Type: events.ActorCustomer, ID: "USER001"}, fixedTime(), events.ReturnEscalatedPayload{
		ExpectedRefund: 149.99, IssuedRefund: 139.99, Discrepancy: 10, Reason: "refund dispute",
	})
	escalated.ReturnID = "RET-1"
	require.NoError(t, d.Publish(ctx, escalated))

	started := events.New(events.EventSessionStarted, events.Actor{Type: events.ActorSystem}, fixedTime(), events.SessionPayload{})
	require.NoError(t, d.Publish(ctx, started))

	entries, err := h.ListByReturn(ctx, "RET-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, domain.ChangeTypeCreated, entries[0].ChangeType)
	assert.Equal(t, domain.ReturnStatusLabelGenerated, entries[0].NewValue["status"])
	assert.Equal(t, "customer", entries[0].ChangedByType)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, fixedTime(), entries[0].CreatedAt)

	assert.Equal(t, domain.ChangeTypeStatus, entries[1].ChangeType)
	assert.Equal(t, map[string]any{"status": domain.ReturnStatusLabelGenerated}, entries[1].OldValue)
	assert.Equal(t, "staff-1", entries[1].ChangedByID)

	assert.Equal(t, domain.ChangeTypeEscalated, entries[2].ChangeType)
	assert.Equal(t, 10.0, entries[2].NewValue["discrepancy"])

	none, err := h.ListByReturn(ctx, "RET-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHistoryServiceSurfacesStoreErrors(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	NewHistoryService(failingHistoryRepo{}, d, nil).RegisterHandlers()

	ev := events.New(events.EventReturnStatusChanged, events.Actor{Type: events.ActorStaff}, fixedTime(), events.ReturnStatusChangedPayload{})
	ev.ReturnID = "RET-1"
	assert.Error(t, d.Publish(context.Background(), ev))
}
