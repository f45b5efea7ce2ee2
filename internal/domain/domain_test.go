package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTableIsComplete(t *testing.T) {
	require.NoError(t, validateTransitions())
	for _, s := range States {
		assert.True(t, s.Valid(), s)
		assert.True(t, CanTransition(s, StateIntentRouter), "every state may restart: %s", s)
	}
	assert.False(t, State("checkout").Valid())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateIntentRouter, StatePurchaseRetrieval))
	assert.True(t, CanTransition(StateReturnClassification, StateReturnProcessing))
	assert.False(t, CanTransition(StateIntentRouter, StateReturnProcessing))
	assert.False(t, CanTransition(StateReturnProcessing, StateReturnClassification))
}

func TestCanTransitionReturn(t *testing.T) {
	cases := []struct {
		from, to ReturnStatus
		want     bool
	}{
		{ReturnStatusInitiated, ReturnStatusLabelGenerated, true},
		{ReturnStatusLabelGenerated, ReturnStatusInTransit, true},
		{ReturnStatusReceived, ReturnStatusRefundProcessed, true},
		{ReturnStatusInTransit, ReturnStatusLabelGenerated, false},
		{ReturnStatusRefundProcessed, ReturnStatusRefundPending, false},
		{ReturnStatusLabelGenerated, ReturnStatusLabelGenerated, false},
		{ReturnStatusLabelGenerated, ReturnStatusDisputed, true},
		{ReturnStatusRefundProcessed, ReturnStatusDisputed, true},
		{ReturnStatusReceived, ReturnStatusRejected, true},
		{ReturnStatusRefundProcessed, ReturnStatusRejected, false},
		{ReturnStatusDisputed, ReturnStatusRefundProcessed, false},
		{ReturnStatusRejected, ReturnStatusDisputed, false},
		{ReturnStatusInitiated, ReturnStatus("lost"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransitionReturn(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestOrderReturnWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	order := Order{OrderDate: now.AddDate(0, 0, -45)}
	assert.Equal(t, 45, order.AgeDays(now))
	assert.False(t, order.IsReturnable(now, 30))

	order.OrderDate = now.AddDate(0, 0, -30)
	assert.True(t, order.IsReturnable(now, 30))
}

func TestOrderItems(t *testing.T) {
	order := Order{Items: []OrderItem{
		{ID: "ITEM001", ProductName: "Wireless Headphones", UnitPrice: 149.99, Quantity: 1},
		{ID: "ITEM002", ProductName: "Phone Case", UnitPrice: 19.99, Quantity: 2},
	}}
	item, ok := order.ItemByID("ITEM002")
	require.True(t, ok)
	assert.InDelta(t, 39.98, item.TotalPrice(), 1e-9)
	assert.Equal(t, 189.97, order.ComputeTotal())

	_, ok = order.ItemByID("ITEM999")
	assert.False(t, ok)
}

func TestSessionHistoryLimit(t *testing.T) {
	s := &Session{}
	for i := 0; i < 5; i++ {
		s.AppendTurn(Turn{Role: TurnRoleUser, Content: string(rune('a' + i))}, 3)
	}
	require.Len(t, s.History, 3)
	assert.Equal(t, "c", s.History[0].Content)

	cp := s.Clone()
	cp.History[0].Content = "changed"
	assert.Equal(t, "c", s.History[0].Content)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Wrong Item", ReasonWrongItem.Label())
	assert.Equal(t, "Out For Delivery", ShipmentOutForDelivery.Label())
	assert.Equal(t, "$149.99", FormatMoney(149.99))
}
