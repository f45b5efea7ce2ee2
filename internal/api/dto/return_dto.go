package dto

import (
	"time"

	"github.com/spec-kit/returnflow/internal/domain"
)

// UpdateReturnStatusRequest payload for staff status changes.
type UpdateReturnStatusRequest struct {
	Status  domain.ReturnStatus `json:"status"`
	Comment string              `json:"comment"`
}

// ReturnView is the staff view of a return.
type ReturnView struct {
	ReturnID       string              `json:"return_id"`
	OrderID        string              `json:"order_id"`
	UserID         string              `json:"user_id"`
	ItemID         string              `json:"item_id"`
	Reason         domain.ReturnReason `json:"reason"`
	Status         domain.ReturnStatus `json:"status"`
	RefundAmount   float64             `json:"refund_amount"`
	TrackingNumber string              `json:"tracking_number,omitempty"`
	LabelURL       string              `json:"label_url,omitempty"`
	QRCodeURL      string              `json:"qr_code_url,omitempty"`
	FraudRiskScore float64             `json:"fraud_risk_score"`
	Notes          string              `json:"notes,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// NewReturnView maps a return for output.
func NewReturnView(r *domain.ReturnRequest) ReturnView {
	return ReturnView{
		ReturnID:       r.ID,
		OrderID:        r.OrderID,
		UserID:         r.UserID,
		ItemID:         r.ItemID,
		Reason:         r.Reason,
		Status:         r.Status,
		RefundAmount:   r.RefundAmount,
		TrackingNumber: r.TrackingNumber,
		LabelURL:       r.LabelURL,
		QRCodeURL:      r.QRCodeURL,
		FraudRiskScore: r.FraudRiskScore,
		Notes:          r.Notes,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
