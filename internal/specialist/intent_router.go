package specialist

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/returnflow/internal/domain"
)

type route struct {
	next    domain.State
	message string
}

var intentRoutes = map[domain.Intent]route{
	domain.IntentStartReturn:   {domain.StatePurchaseRetrieval, "I'll help you start a return. Let me look up your recent orders."},
	domain.IntentTrackReturn:   {domain.StateTrackingRefund, "I'll help you track your return. Let me check the status."},
	domain.IntentPackagingHelp: {domain.StateLogistics, "I'll help you with packaging and drop-off instructions."},
	domain.IntentRefundStatus:  {domain.StateTrackingRefund, "I'll check your refund status for you."},
	domain.IntentDisputeRefund: {domain.StateTrackingRefund, "I'll help you with your refund issue. Let me review your return."},
}

const menuMessage = "I can help you start a return, track a return, get packaging or drop-off help, " +
	"check your refund status, or look into a refund amount. What would you like to do?"

// IntentRouter classifies what the caller wants and hands the same
// utterance to the matching stage.
type IntentRouter struct {
	deps Dependencies
}

func (h *IntentRouter) Name() string { return "intent_router" }

func (h *IntentRouter) Handle(_ context.Context, text string, s *domain.Session) (Result, error) {
	match := h.deps.Rules.Intents.ClassifyDetailed(text)
	intent := match.Category
	if !match.Matched && h.deps.Config.IntentFallback == FallbackAccept {
		intent = domain.IntentGeneralInquiry
	}
	h.deps.Logger.Debug("intent classified",
		zap.String("session_id", s.ID),
		zap.String("intent", string(intent)),
		zap.String("pattern", match.Pattern))

	s.Context.Intent = intent
	data := map[string]any{"intent": string(intent)}

	switch intent {
	case domain.IntentUnknown:
		return Result{
			Message: "I'm not sure what you'd like to do. You can start a return, track a return, " +
				"get packaging help, or check your refund status. How can I help you?",
			Data:                  data,
			RequiresClarification: true,
		}, nil
	case domain.IntentGeneralInquiry:
		return Result{Success: true, Message: menuMessage, Data: data}, nil
	}

	r, ok := intentRoutes[intent]
	if !ok {
		return Result{Success: true, Message: menuMessage, Data: data}, nil
	}
	switch r.next {
	case domain.StatePurchaseRetrieval:
		s.Context.ResetSelection()
		s.Context.ReturnID = ""
		s.Context.TrackingNumber = ""
	case domain.StateTrackingRefund:
		s.Context.EscalationOffered = false
	}
	return Result{
		Success:  true,
		Message:  r.message,
		Data:     data,
		Next:     r.next,
		Continue: true,
	}, nil
}
