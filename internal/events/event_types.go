package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/returnflow/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionStarted      EventType = "session_started"
	EventSessionEnded        EventType = "session_ended"
	EventSessionExpired      EventType = "session_expired"
	EventReturnCreated       EventType = "return_created"
	EventReturnStatusChanged EventType = "return_status_changed"
	EventReturnEscalated     EventType = "return_escalated"
)

// AllEventTypes lists every event type, for subscribers that want all of them.
var AllEventTypes = []EventType{
	EventSessionStarted,
	EventSessionEnded,
	EventSessionExpired,
	EventReturnCreated,
	EventReturnStatusChanged,
	EventReturnEscalated,
}

// ActorType tells who caused an event.
type ActorType string

const (
	ActorCustomer ActorType = "customer"
	ActorStaff    ActorType = "staff"
	ActorSystem   ActorType = "system"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type ActorType `json:"type"`
	ID   string    `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	ReturnID  string      `json:"return_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New stamps an event with a fresh id.
func New(eventType EventType, actor Actor, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Actor:     actor,
		Timestamp: at,
		Payload:   payload,
	}
}

// Key is the partitioning key of the event: the return id when present,
// otherwise the session id.
func (e Event) Key() string {
	if e.ReturnID != "" {
		return e.ReturnID
	}
	return e.SessionID
}

// SessionPayload describes session lifecycle events.
type SessionPayload struct {
	UserID string       `json:"user_id,omitempty"`
	State  domain.State `json:"state"`
	Turns  int          `json:"turns"`
}

// ReturnCreatedPayload payload.
type ReturnCreatedPayload struct {
	OrderID        string              `json:"order_id"`
	ItemID         string              `json:"item_id"`
	UserID         string              `json:"user_id"`
	Reason         domain.ReturnReason `json:"reason"`
	Status         domain.ReturnStatus `json:"status"`
	RefundAmount   float64             `json:"refund_amount"`
	TrackingNumber string              `json:"tracking_number"`
	FraudRiskScore float64             `json:"fraud_risk_score"`
	HighRisk       bool                `json:"high_risk"`
}

// ReturnStatusChangedPayload payload.
type ReturnStatusChangedPayload struct {
	OldStatus domain.ReturnStatus `json:"old_status"`
	NewStatus domain.ReturnStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// ReturnEscalatedPayload payload.
type ReturnEscalatedPayload struct {
	ExpectedRefund float64 `json:"expected_refund"`
	IssuedRefund   float64 `json:"issued_refund"`
	Discrepancy    float64 `json:"discrepancy"`
	Reason         string  `json:"reason"`
}
