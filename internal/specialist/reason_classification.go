package specialist

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/returnflow/internal/domain"
	"github.com/spec-kit/returnflow/internal/repository"
)

var reasonMessages = map[domain.ReturnReason]string{
	domain.ReasonDamaged:        "I'm sorry to hear the item arrived damaged. We'll process a full refund for you.",
	domain.ReasonWrongItem:      "I apologize for sending the wrong item. We'll get this sorted out with a full refund.",
	domain.ReasonSizeIssue:      "No problem! We'll process your return for the sizing issue.",
	domain.ReasonBuyerRemorse:   "That's perfectly fine. We'll process your return.",
	domain.ReasonNotAsDescribed: "I understand. We'll process your return since the item didn't match the description.",
	domain.ReasonDefective:      "I'm sorry the item isn't working properly. We'll process a full refund for you.",
	domain.ReasonOther:          "I've noted your reason. We'll process your return.",
}

const confirmPrompt = " Shall I create the return and your prepaid shipping label now?"

// ReasonClassification resolves why the item is being returned and scores
// the fraud risk of the request.
//
// Reads: UserID, SelectedOrderID, SelectedItemID.
// Writes: ReturnReason, FraudRiskScore.
type ReasonClassification struct {
	deps Dependencies
}

func (h *ReasonClassification) Name() string { return "reason_classification" }

func (h *ReasonClassification) Handle(ctx context.Context, text string, s *domain.Session) (Result, error) {
	c := &s.Context
	if s.UserID == "" || c.SelectedOrderID == "" || c.SelectedItemID == "" {
		return restart(), nil
	}

	match := h.deps.Rules.Reasons.ClassifyDetailed(text)
	if !match.Matched && h.deps.Config.ReasonFallback == FallbackClarify {
		return clarify(fmt.Sprintf("I didn't quite catch that. Can you tell me more about why you're returning the %s? "+
			"Is it damaged, the wrong item, a size issue, or something else?", itemLabel(c.ItemName))), nil
	}
	reason := match.Category
	h.deps.Logger.Debug("return reason classified",
		zap.String("session_id", s.ID),
		zap.String("reason", string(reason)),
		zap.String("pattern", match.Pattern))

	order, err := h.deps.Provider.GetOrder(ctx, c.SelectedOrderID)
	if errors.Is(err, repository.ErrNotFound) {
		return lostOrder(s, "I couldn't find that order anymore. Let me look up your orders again."), nil
	}
	if err != nil {
		return Result{}, err
	}
	item, ok := order.ItemByID(c.SelectedItemID)
	if !ok {
		return lostOrder(s, "I couldn't find that item in your order. Let me look up your orders again."), nil
	}
	if !order.IsReturnable(h.deps.Clock(), h.deps.Config.ReturnWindowDays) {
		return Result{
			Message: "I'm sorry, but this item is outside the return window and cannot be returned.",
			Data:    map[string]any{"order_id": order.ID},
			Next:    domain.StateEnd,
		}, nil
	}

	user, err := h.deps.Provider.GetUser(ctx, s.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Result{}, err
	}
	score := h.deps.Scorer.Score(reason, user)
	highRisk := h.deps.Scorer.HighRisk(score)

	c.ReturnReason = reason
	c.FraudRiskScore = score

	return Result{
		Success: true,
		Message: reasonMessages[reason] + confirmPrompt,
		Data: map[string]any{
			"reason":           string(reason),
			"refund_amount":    domain.RoundCents(item.UnitPrice),
			"fraud_risk_score": domain.RoundCents(score),
			"high_risk":        highRisk,
		},
		Next: domain.StateReturnProcessing,
	}, nil
}

func itemLabel(name string) string {
	if name == "" {
		return "item"
	}
	return name
}
