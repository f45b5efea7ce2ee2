package domain

import "time"

// TurnRole tells who produced a turn.
type TurnRole string

const (
	TurnRoleUser  TurnRole = "user"
	TurnRoleAgent TurnRole = "agent"
)

// Turn is one entry of the conversation history.
type Turn struct {
	Role      TurnRole  `json:"role"`
	Content   string    `json:"content"`
	State     State     `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionContext is the working memory shared by the handlers of one
// session. Each field documents the handlers that write it.
type SessionContext struct {
	// Written by IdentifyUser.
	UserName string `json:"user_name,omitempty"`

	// Written by the intent router.
	Intent Intent `json:"intent,omitempty"`

	// Written by order selection.
	AvailableOrderIDs      []string `json:"available_order_ids,omitempty"`
	AwaitingOrderSelection bool     `json:"awaiting_order_selection,omitempty"`
	SelectedOrderID        string   `json:"selected_order_id,omitempty"`
	SelectedItemID         string   `json:"selected_item_id,omitempty"`
	ItemName               string   `json:"item_name,omitempty"`
	ItemPrice              float64  `json:"item_price,omitempty"`

	// Written by reason classification.
	ReturnReason   ReturnReason `json:"return_reason,omitempty"`
	FraudRiskScore float64      `json:"fraud_risk_score,omitempty"`

	// Written by return creation.
	ReturnID       string `json:"return_id,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`

	// Written by tracking/refund/dispute.
	EscalationOffered bool `json:"escalation_offered,omitempty"`
	Escalated         bool `json:"escalated,omitempty"`
}

// ResetSelection clears the order and item choice so selection starts over.
func (c *SessionContext) ResetSelection() {
	c.AvailableOrderIDs = nil
	c.AwaitingOrderSelection = false
	c.SelectedOrderID = ""
	c.SelectedItemID = ""
	c.ItemName = ""
	c.ItemPrice = 0
	c.ReturnReason = ""
	c.FraudRiskScore = 0
}

// Session is one caller's conversation.
type Session struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	State     State          `json:"state"`
	Context   SessionContext `json:"context"`
	History   []Turn         `json:"history"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.History = append([]Turn(nil), s.History...)
	cp.Context.AvailableOrderIDs = append([]string(nil), s.Context.AvailableOrderIDs...)
	return &cp
}

// AppendTurn records a turn, keeping at most limit entries when limit > 0.
func (s *Session) AppendTurn(turn Turn, limit int) {
	s.History = append(s.History, turn)
	if limit > 0 && len(s.History) > limit {
		s.History = append([]Turn(nil), s.History[len(s.History)-limit:]...)
	}
}
