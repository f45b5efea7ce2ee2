package domain

import "time"

// ReturnReason classifies why an item is being returned.
type ReturnReason string

const (
	ReasonDamaged        ReturnReason = "damaged"
	ReasonWrongItem      ReturnReason = "wrong_item"
	ReasonSizeIssue      ReturnReason = "size_issue"
	ReasonBuyerRemorse   ReturnReason = "buyer_remorse"
	ReasonNotAsDescribed ReturnReason = "not_as_described"
	ReasonDefective      ReturnReason = "defective"
	ReasonOther          ReturnReason = "other"
)

// ReturnReasons lists reasons in classification priority order.
var ReturnReasons = []ReturnReason{
	ReasonDamaged,
	ReasonWrongItem,
	ReasonSizeIssue,
	ReasonBuyerRemorse,
	ReasonNotAsDescribed,
	ReasonDefective,
	ReasonOther,
}

// Valid reports whether r is a known reason.
func (r ReturnReason) Valid() bool {
	for _, candidate := range ReturnReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// Label renders the reason for people, e.g. "Wrong Item".
func (r ReturnReason) Label() string {
	return titleize(string(r))
}

// ReturnStatus is the lifecycle state of a return request.
type ReturnStatus string

const (
	ReturnStatusInitiated       ReturnStatus = "initiated"
	ReturnStatusLabelGenerated  ReturnStatus = "label_generated"
	ReturnStatusInTransit       ReturnStatus = "in_transit"
	ReturnStatusReceived        ReturnStatus = "received"
	ReturnStatusRefundPending   ReturnStatus = "refund_pending"
	ReturnStatusRefundProcessed ReturnStatus = "refund_processed"
	ReturnStatusRejected        ReturnStatus = "rejected"
	ReturnStatusDisputed        ReturnStatus = "disputed"
)

// ReturnLifecycle is the forward path a return travels.
var ReturnLifecycle = []ReturnStatus{
	ReturnStatusInitiated,
	ReturnStatusLabelGenerated,
	ReturnStatusInTransit,
	ReturnStatusReceived,
	ReturnStatusRefundPending,
	ReturnStatusRefundProcessed,
}

// ReturnStatuses lists every status, terminal branches last.
var ReturnStatuses = append(append([]ReturnStatus{}, ReturnLifecycle...), ReturnStatusRejected, ReturnStatusDisputed)

// Valid reports whether s is a known status.
func (s ReturnStatus) Valid() bool {
	for _, candidate := range ReturnStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s ReturnStatus) Terminal() bool {
	return s == ReturnStatusRejected || s == ReturnStatusDisputed
}

func lifecycleRank(s ReturnStatus) int {
	for i, candidate := range ReturnLifecycle {
		if candidate == s {
			return i
		}
	}
	return -1
}

// CanTransitionReturn reports whether a return may move from one status to
// another. Statuses only move forward along ReturnLifecycle; rejected is
// reachable until the refund is processed, disputed from any non-terminal
// status.
func CanTransitionReturn(from, to ReturnStatus) bool {
	if from.Terminal() || !to.Valid() || from == to {
		return false
	}
	switch to {
	case ReturnStatusDisputed:
		return from.Valid()
	case ReturnStatusRejected:
		rank := lifecycleRank(from)
		return rank >= 0 && rank < lifecycleRank(ReturnStatusRefundProcessed)
	}
	fromRank, toRank := lifecycleRank(from), lifecycleRank(to)
	return fromRank >= 0 && toRank > fromRank
}

// ReturnRequest is an accepted return. ID and TrackingNumber never change
// after creation.
type ReturnRequest struct {
	ID             string       `json:"return_id"`
	OrderID        string       `json:"order_id"`
	UserID         string       `json:"user_id"`
	ItemID         string       `json:"item_id"`
	Reason         ReturnReason `json:"reason"`
	Status         ReturnStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	RefundAmount   float64      `json:"refund_amount"`
	Notes          string       `json:"notes,omitempty"`
	LabelURL       string       `json:"label_url,omitempty"`
	QRCodeURL      string       `json:"qr_code_url,omitempty"`
	TrackingNumber string       `json:"tracking_number,omitempty"`
	FraudRiskScore float64      `json:"fraud_risk_score"`
}

// IsHighRisk reports whether the fraud score reaches threshold.
func (r *ReturnRequest) IsHighRisk(threshold float64) bool {
	return r.FraudRiskScore >= threshold
}

// Active reports whether the return still blocks a new return of the same item.
func (r *ReturnRequest) Active() bool {
	return r.Status != ReturnStatusRejected
}
