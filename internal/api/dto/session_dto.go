package dto

import (
	"time"

	"github.com/spec-kit/returnflow/internal/domain"
)

// StartSessionRequest payload. UserID is optional; callers can identify
// later.
type StartSessionRequest struct {
	UserID string `json:"user_id"`
}

// StartSessionResponse returns the new session id.
type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

// IdentifyRequest names the caller by phone or customer id.
type IdentifyRequest struct {
	Phone  string `json:"phone"`
	UserID string `json:"user_id"`
}

// IdentifyResponse reports whether a customer matched.
type IdentifyResponse struct {
	Identified bool `json:"identified"`
}

// TurnRequest carries one utterance.
type TurnRequest struct {
	Text string `json:"text"`
}

// TurnView is one history entry.
type TurnView struct {
	Role      domain.TurnRole `json:"role"`
	Content   string          `json:"content"`
	State     domain.State    `json:"state"`
	Timestamp time.Time       `json:"timestamp"`
}

// SessionView is the inspection payload of a session.
type SessionView struct {
	SessionID string                `json:"session_id"`
	UserID    string                `json:"user_id,omitempty"`
	State     domain.State          `json:"state"`
	Context   domain.SessionContext `json:"context"`
	History   []TurnView            `json:"history"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// NewSessionView maps a session for output.
func NewSessionView(s *domain.Session) SessionView {
	history := make([]TurnView, 0, len(s.History))
	for _, t := range s.History {
		history = append(history, TurnView{Role: t.Role, Content: t.Content, State: t.State, Timestamp: t.Timestamp})
	}
	return SessionView{
		SessionID: s.ID,
		UserID:    s.UserID,
		State:     s.State,
		Context:   s.Context,
		History:   history,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
