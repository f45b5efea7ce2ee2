package specialist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spec-kit/returnflow/internal/classifier"
	"github.com/spec-kit/returnflow/internal/domain"
	"github.com/spec-kit/returnflow/internal/events"
	"github.com/spec-kit/returnflow/internal/repository"
)

const (
	trackingAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	trackingLength   = 16
)

// ReturnCreation persists the return request and issues its label.
//
// Reads: UserID, SelectedOrderID, SelectedItemID, ReturnReason,
// FraudRiskScore.
// Writes: ReturnID, TrackingNumber.
type ReturnCreation struct {
	deps Dependencies
}

func (h *ReturnCreation) Name() string { return "return_creation" }

func (h *ReturnCreation) Handle(ctx context.Context, text string, s *domain.Session) (Result, error) {
	c := &s.Context
	if s.UserID == "" || c.SelectedOrderID == "" || c.SelectedItemID == "" {
		return restart(), nil
	}
	if declines(classifier.Normalize(text)) {
		c.ResetSelection()
		return Result{
			Success: true,
			Message: "No problem, I won't create the return. Is there anything else I can help you with?",
			Next:    domain.StateEnd,
		}, nil
	}

	order, err := h.deps.Provider.GetOrder(ctx, c.SelectedOrderID)
	if errors.Is(err, repository.ErrNotFound) {
		return lostOrder(s, "I couldn't find that order. Please try again."), nil
	}
	if err != nil {
		return Result{}, err
	}
	item, ok := order.ItemByID(c.SelectedItemID)
	if !ok {
		return lostOrder(s, "I couldn't find that item in your order."), nil
	}

	reason := c.ReturnReason
	if !reason.Valid() {
		reason = domain.ReasonOther
	}
	tracking, err := newTrackingNumber(h.deps.Random, h.deps.Config.TrackingPrefix)
	if err != nil {
		return Result{}, fmt.Errorf("tracking number: %w", err)
	}

	now := h.deps.Clock()
	returnID := fmt.Sprintf("RET-%s-%d", order.ID, now.UnixMilli())
	base := strings.TrimSuffix(h.deps.Config.LabelBaseURL, "/")
	highRisk := h.deps.Scorer.HighRisk(c.FraudRiskScore)
	req := &domain.ReturnRequest{
		ID:             returnID,
		OrderID:        order.ID,
		UserID:         s.UserID,
		ItemID:         item.ID,
		Reason:         reason,
		Status:         domain.ReturnStatusLabelGenerated,
		CreatedAt:      now,
		RefundAmount:   domain.RoundCents(item.UnitPrice),
		LabelURL:       fmt.Sprintf("%s/label/%s.pdf", base, returnID),
		QRCodeURL:      fmt.Sprintf("%s/qr/%s.png", base, returnID),
		TrackingNumber: tracking,
		FraudRiskScore: c.FraudRiskScore,
	}
	if highRisk {
		req.Notes = fmt.Sprintf("flagged for review: fraud risk score %.2f", c.FraudRiskScore)
	}

	err = h.deps.Provider.CreateReturn(ctx, req)
	var dup *repository.DuplicateReturnError
	switch {
	case errors.As(err, &dup):
		c.ReturnID = dup.ReturnID
		return Result{
			Message: fmt.Sprintf("You already have an open return (%s) for the %s. "+
				"Would you like help with packaging instructions or finding a drop-off location?", dup.ReturnID, item.ProductName),
			Data: map[string]any{"return_id": dup.ReturnID},
			Next: domain.StateLogistics,
		}, nil
	case errors.Is(err, repository.ErrNotFound):
		return lostOrder(s, "I couldn't find that order. Please try again."), nil
	case err != nil:
		return Result{}, err
	}

	c.ReturnID = req.ID
	c.TrackingNumber = req.TrackingNumber

	created := events.New(events.EventReturnCreated, customer(s), now, events.ReturnCreatedPayload{
		OrderID:        req.OrderID,
		ItemID:         req.ItemID,
		UserID:         req.UserID,
		Reason:         req.Reason,
		Status:         req.Status,
		RefundAmount:   req.RefundAmount,
		TrackingNumber: req.TrackingNumber,
		FraudRiskScore: req.FraudRiskScore,
		HighRisk:       highRisk,
	})
	created.ReturnID = req.ID
	created.SessionID = s.ID

	carrier := strings.ToUpper(h.deps.Config.DefaultCarrier)
	message := fmt.Sprintf("Perfect! I've created your return for the %s.\n"+
		"Your return ID is %s.\n"+
		"Your refund amount will be %s.\n"+
		"I've generated a prepaid shipping label. You can either:\n"+
		"1. Print the label from this link: %s\n"+
		"2. Use this QR code at a %s drop-off location: %s\n"+
		"Would you like help with packaging instructions or finding a drop-off location?",
		item.ProductName, req.ID, domain.FormatMoney(req.RefundAmount), req.LabelURL, carrier, req.QRCodeURL)

	return Result{
		Success: true,
		Message: message,
		Data: map[string]any{
			"return_id":       req.ID,
			"tracking_number": req.TrackingNumber,
			"label_url":       req.LabelURL,
			"qr_code_url":     req.QRCodeURL,
			"refund_amount":   req.RefundAmount,
			"status":          string(req.Status),
			"high_risk":       highRisk,
		},
		Next:   domain.StateLogistics,
		Events: []events.Event{created},
	}, nil
}

// newTrackingNumber returns prefix followed by 16 uniformly drawn
// characters from [A-Z0-9].
func newTrackingNumber(r io.Reader, prefix string) (string, error) {
	var b strings.Builder
	b.Grow(len(prefix) + trackingLength)
	b.WriteString(prefix)
	for i := 0; i < trackingLength; i++ {
		n, err := randIntn(r, len(trackingAlphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(trackingAlphabet[n])
	}
	return b.String(), nil
}

// randIntn draws a uniform integer in [0, n) for n <= 256 by rejection
// sampling single bytes.
func randIntn(r io.Reader, n int) (int, error) {
	limit := 256 - 256%n
	var buf [1]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		if int(buf[0]) < limit {
			return int(buf[0]) % n, nil
		}
	}
}
