package domain

import "time"

// ReturnChangeType captures what changed in a history entry.
type ReturnChangeType string

const (
	ChangeTypeCreated   ReturnChangeType = "created"
	ChangeTypeStatus    ReturnChangeType = "status_change"
	ChangeTypeEscalated ReturnChangeType = "escalated"
)

// ReturnHistory is an immutable audit trail entry of a return.
type ReturnHistory struct {
	ID            string           `json:"id"`
	ReturnID      string           `json:"return_id"`
	ChangedByType string           `json:"changed_by_type"`
	ChangedByID   string           `json:"changed_by_id,omitempty"`
	ChangeType    ReturnChangeType `json:"change_type"`
	OldValue      map[string]any   `json:"old_value,omitempty"`
	NewValue      map[string]any   `json:"new_value,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}
