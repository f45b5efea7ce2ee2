package specialist

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spec-kit/returnflow/internal/classifier"
	"github.com/spec-kit/returnflow/internal/domain"
	"github.com/spec-kit/returnflow/internal/events"
	"github.com/spec-kit/returnflow/internal/repository"
)

var (
	disputeWords = words("dispute", "wrong", "less", "incorrect")
	refundWords  = words("refund", "refunded", "money", "payment")
)

// discrepancyTolerance is the largest refund difference that is not a
// dispute.
const discrepancyTolerance = 0.01

// TrackingRefund reports shipment and refund status and handles refund
// disputes for the caller's return.
//
// Reads: UserID, ReturnID, EscalationOffered.
// Writes: EscalationOffered, Escalated.
type TrackingRefund struct {
	deps Dependencies
}

func (h *TrackingRefund) Name() string { return "tracking_refund" }

func (h *TrackingRefund) Handle(ctx context.Context, text string, s *domain.Session) (Result, error) {
	if s.UserID == "" {
		return needIdentity(), nil
	}
	norm := classifier.Normalize(text)

	if s.Context.EscalationOffered {
		s.Context.EscalationOffered = false
		switch {
		case declines(norm):
			return Result{
				Success: true,
				Message: "Okay, I won't escalate it. Is there anything else I can help you with?",
				Next:    domain.StateEnd,
			}, nil
		case affirmative.In(norm):
			return h.escalateOnRequest(ctx, s)
		}
	}

	switch {
	case disputeWords.In(norm), h.deps.Rules.Intents.Classify(norm) == domain.IntentDisputeRefund:
		return h.dispute(ctx, s)
	case refundWords.In(norm):
		return h.refundStatus(ctx, s)
	default:
		return h.trackingStatus(ctx, s)
	}
}

// targetReturn resolves the return the caller is asking about: the one in
// context, else the most recent one.
func (h *TrackingRefund) targetReturn(ctx context.Context, s *domain.Session) (*domain.ReturnRequest, *Result, error) {
	if id := s.Context.ReturnID; id != "" {
		ret, err := h.deps.Provider.GetReturn(ctx, id)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			s.Context.ReturnID = ""
			res := clarify("I couldn't find that return. Can you provide your return ID?")
			return nil, &res, nil
		case err != nil:
			return nil, nil, err
		}
		return ret, nil, nil
	}

	returns, err := h.deps.Provider.GetUserReturns(ctx, s.UserID)
	if err != nil {
		return nil, nil, err
	}
	if len(returns) == 0 {
		res := Result{Message: "I couldn't find any returns for your account.", Next: domain.StateEnd}
		return nil, &res, nil
	}
	ret := returns[len(returns)-1]
	return &ret, nil, nil
}

func (h *TrackingRefund) trackingStatus(ctx context.Context, s *domain.Session) (Result, error) {
	ret, res, err := h.targetReturn(ctx, s)
	if err != nil || res != nil {
		return deref(res), err
	}
	info, err := h.trackingFor(ctx, ret)
	if err != nil {
		return Result{}, err
	}

	now := h.deps.Clock()
	var b strings.Builder
	fmt.Fprintf(&b, "Let me check your return status for %s.\n", ret.ID)
	b.WriteString(info.StatusMessage() + "\n")
	fmt.Fprintf(&b, "Tracking number: %s\n", ret.TrackingNumber)
	fmt.Fprintf(&b, "Carrier: %s\n", strings.ToUpper(info.Carrier))
	fmt.Fprintf(&b, "Current status: %s\n", info.Status.Label())
	if info.CurrentLocation != "" {
		fmt.Fprintf(&b, "Current location: %s\n", info.CurrentLocation)
	}
	data := map[string]any{
		"return_id":       ret.ID,
		"tracking_number": ret.TrackingNumber,
		"carrier":         info.Carrier,
		"status":          string(info.Status),
		"refund_amount":   ret.RefundAmount,
	}
	if info.EstimatedDelivery != nil && info.Status != domain.ShipmentDelivered {
		days := daysUntil(now, *info.EstimatedDelivery)
		fmt.Fprintf(&b, "Expected at our facility in %d days\n", days)
		data["estimated_delivery"] = info.EstimatedDelivery.Format(time.RFC3339)
		data["days_until_delivery"] = days
	}
	if info.Status == domain.ShipmentDelivered {
		b.WriteString("\nYour refund will be processed within 3-5 business days after delivery.")
	} else {
		b.WriteString("\nYour refund will be processed once we receive the item.")
	}

	return Result{Success: true, Message: b.String(), Data: data, Next: domain.StateEnd}, nil
}

// trackingFor returns the stored tracking record, creating one from the
// return status the first time it is asked for.
func (h *TrackingRefund) trackingFor(ctx context.Context, ret *domain.ReturnRequest) (*domain.TrackingInfo, error) {
	info, err := h.deps.Provider.GetTracking(ctx, ret.TrackingNumber)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	extra, err := randIntn(h.deps.Random, 5)
	if err != nil {
		return nil, fmt.Errorf("delivery estimate: %w", err)
	}
	now := h.deps.Clock()
	eta := now.AddDate(0, 0, 3+extra)
	status := domain.ShipmentStatusFor(ret.Status)
	info = &domain.TrackingInfo{
		TrackingNumber:    ret.TrackingNumber,
		Carrier:           h.deps.Config.DefaultCarrier,
		Status:            status,
		LastUpdate:        now,
		EstimatedDelivery: &eta,
	}
	if status == domain.ShipmentInTransit {
		info.CurrentLocation = "In Transit"
	}

	err = h.deps.Provider.CreateTracking(ctx, info)
	if errors.Is(err, repository.ErrConflict) {
		return h.deps.Provider.GetTracking(ctx, ret.TrackingNumber)
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (h *TrackingRefund) refundStatus(ctx context.Context, s *domain.Session) (Result, error) {
	ret, res, err := h.targetReturn(ctx, s)
	if err != nil || res != nil {
		return deref(res), err
	}
	return Result{
		Success: true,
		Message: refundMessage(ret),
		Data: map[string]any{
			"return_id":     ret.ID,
			"refund_amount": ret.RefundAmount,
			"status":        string(ret.Status),
		},
		Next: domain.StateEnd,
	}, nil
}

func refundMessage(ret *domain.ReturnRequest) string {
	amount := domain.FormatMoney(ret.RefundAmount)
	switch ret.Status {
	case domain.ReturnStatusInitiated:
		return fmt.Sprintf("Your refund of %s will be processed once we receive your return.", amount)
	case domain.ReturnStatusLabelGenerated:
		return fmt.Sprintf("Your refund of %s will be processed once we receive your return. "+
			"Please ship the item back using the label provided.", amount)
	case domain.ReturnStatusInTransit:
		return fmt.Sprintf("Your return is on its way to us. Your refund of %s will be processed "+
			"within 3-5 business days after we receive it.", amount)
	case domain.ReturnStatusReceived, domain.ReturnStatusRefundPending:
		return fmt.Sprintf("We've received your return! Your refund of %s is being processed and "+
			"should appear in your account within 3-5 business days.", amount)
	case domain.ReturnStatusRefundProcessed:
		return fmt.Sprintf("Good news! Your refund of %s has been processed. It should appear in your "+
			"original payment method within 3-5 business days.", amount)
	case domain.ReturnStatusDisputed:
		return fmt.Sprintf("Your refund of %s is under review by a specialist. You should hear back within 24 hours.", amount)
	default:
		return fmt.Sprintf("Your refund status is %s. The refund amount is %s.", ret.Status, amount)
	}
}

func (h *TrackingRefund) dispute(ctx context.Context, s *domain.Session) (Result, error) {
	ret, res, err := h.targetReturn(ctx, s)
	if err != nil || res != nil {
		return deref(res), err
	}

	order, err := h.deps.Provider.GetOrder(ctx, ret.OrderID)
	if errors.Is(err, repository.ErrNotFound) {
		s.Context.Escalated = true
		return Result{
			Success: false,
			Message: "I'm having trouble finding your order information. Let me escalate this to a specialist.",
			Data:    map[string]any{"escalated": true, "return_id": ret.ID},
			Next:    domain.StateEscalate,
		}, nil
	}
	if err != nil {
		return Result{}, err
	}

	expected := ret.RefundAmount
	if item, ok := order.ItemByID(ret.ItemID); ok {
		expected = domain.RoundCents(item.UnitPrice)
	}
	discrepancy := domain.RoundCents(math.Abs(expected - ret.RefundAmount))

	var b strings.Builder
	fmt.Fprintf(&b, "Let me review your refund for return %s.\n", ret.ID)
	fmt.Fprintf(&b, "Original item price: %s\n", domain.FormatMoney(expected))
	fmt.Fprintf(&b, "Refund issued: %s\n", domain.FormatMoney(ret.RefundAmount))
	fmt.Fprintf(&b, "Return reason: %s\n", ret.Reason.Label())

	if discrepancy <= discrepancyTolerance {
		s.Context.EscalationOffered = true
		b.WriteString("\nYour refund amount appears to be correct. If you believe there's still an issue, " +
			"I can escalate this to a specialist. Would you like me to do that?")
		return Result{
			Success:               true,
			Message:               b.String(),
			Data:                  map[string]any{"return_id": ret.ID, "discrepancy": discrepancy, "escalated": false},
			RequiresClarification: true,
		}, nil
	}

	fmt.Fprintf(&b, "\nI see there's a difference of %s. ", domain.FormatMoney(discrepancy))
	b.WriteString("This might be due to a restocking fee or the item's condition. Let me escalate this to a " +
		"specialist who can review your case and help resolve this. You should hear back within 24 hours.")

	evs, err := h.markDisputed(ctx, s, ret, events.ReturnEscalatedPayload{
		ExpectedRefund: expected,
		IssuedRefund:   ret.RefundAmount,
		Discrepancy:    discrepancy,
		Reason:         "refund discrepancy",
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Message: b.String(),
		Data: map[string]any{
			"escalated":       true,
			"return_id":       ret.ID,
			"expected_refund": expected,
			"refund_amount":   ret.RefundAmount,
			"discrepancy":     discrepancy,
		},
		Next:   domain.StateEscalate,
		Events: evs,
	}, nil
}

func (h *TrackingRefund) escalateOnRequest(ctx context.Context, s *domain.Session) (Result, error) {
	ret, res, err := h.targetReturn(ctx, s)
	if err != nil || res != nil {
		return deref(res), err
	}
	evs, err := h.markDisputed(ctx, s, ret, events.ReturnEscalatedPayload{
		ExpectedRefund: ret.RefundAmount,
		IssuedRefund:   ret.RefundAmount,
		Reason:         "customer request",
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("I've escalated return %s to a specialist. You should hear back within 24 hours.", ret.ID),
		Data:    map[string]any{"escalated": true, "return_id": ret.ID},
		Next:    domain.StateEscalate,
		Events:  evs,
	}, nil
}

// markDisputed moves the return to disputed unless it already is, and
// records the escalation.
func (h *TrackingRefund) markDisputed(ctx context.Context, s *domain.Session, ret *domain.ReturnRequest, payload events.ReturnEscalatedPayload) ([]events.Event, error) {
	now := h.deps.Clock()
	var evs []events.Event

	if ret.Status != domain.ReturnStatusDisputed {
		updated, err := h.deps.Provider.UpdateReturnStatus(ctx, ret.ID, domain.ReturnStatusDisputed)
		if err != nil && !errors.Is(err, repository.ErrInvalidTransition) {
			return nil, err
		}
		if err == nil {
			changed := events.New(events.EventReturnStatusChanged, customer(s), now, events.ReturnStatusChangedPayload{
				OldStatus: ret.Status,
				NewStatus: updated.Status,
				Comment:   payload.Reason,
			})
			changed.ReturnID = ret.ID
			changed.SessionID = s.ID
			evs = append(evs, changed)
		}
	}

	escalated := events.New(events.EventReturnEscalated, customer(s), now, payload)
	escalated.ReturnID = ret.ID
	escalated.SessionID = s.ID
	evs = append(evs, escalated)

	s.Context.Escalated = true
	s.Context.EscalationOffered = false
	return evs, nil
}

func daysUntil(now, t time.Time) int {
	d := int(math.Ceil(t.Sub(now).Hours() / 24))
	if d < 0 {
		return 0
	}
	return d
}

func deref(r *Result) Result {
	if r == nil {
		return Result{}
	}
	return *r
}
