package specialist

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/returnflow/internal/classifier"
	"github.com/spec-kit/returnflow/internal/domain"
)

var carrierLocations = map[string][]string{
	"ups": {
		"UPS Store - 123 Main St, San Francisco, CA 94102 (0.5 miles)",
		"UPS Access Point - Walgreens, 456 Market St, San Francisco, CA 94103 (0.8 miles)",
		"UPS Store - 789 Mission St, San Francisco, CA 94105 (1.2 miles)",
	},
	"usps": {
		"USPS Post Office - 100 1st St, San Francisco, CA 94102 (0.3 miles)",
		"USPS Post Office - 200 Pine St, San Francisco, CA 94104 (0.9 miles)",
	},
	"fedex": {
		"FedEx Office - 300 California St, San Francisco, CA 94111 (0.6 miles)",
		"FedEx Drop Box - 400 Montgomery St, San Francisco, CA 94104 (1.0 miles)",
	},
}

var (
	packagingWords = words("pack", "package", "packaging", "packing", "box", "wrap", "how to")
	locationWords  = words("where", "location", "locations", "drop off", "drop-off", "nearest", "store", "ups", "usps", "fedex", "post office")
	uspsWords      = words("usps", "post office", "postal")
	fedexWords     = words("fedex")
	upsWords       = words("ups")
)

// Logistics answers packaging and drop-off questions once a label exists.
// It keeps no state beyond the current turn.
//
// Reads: ItemName.
type Logistics struct {
	deps Dependencies
}

func (h *Logistics) Name() string { return "logistics" }

func (h *Logistics) Handle(_ context.Context, text string, s *domain.Session) (Result, error) {
	norm := classifier.Normalize(text)

	switch h.deps.Rules.Intents.Classify(norm) {
	case domain.IntentTrackReturn, domain.IntentRefundStatus, domain.IntentDisputeRefund:
		s.Context.EscalationOffered = false
		return Result{Success: true, Next: domain.StateTrackingRefund, Continue: true}, nil
	}

	switch {
	case packagingWords.In(norm):
		return packagingInstructions(itemLabel(s.Context.ItemName)), nil
	case locationWords.In(norm):
		return h.dropOffLocations(norm), nil
	case helpWords.In(norm):
		return Result{
			Success: true,
			Message: "I can help you with:\n" +
				"1. Packaging instructions - how to safely pack your item\n" +
				"2. Drop-off locations - find the nearest UPS, USPS, or FedEx location\n" +
				"3. Shipping label - you already have your label and QR code\n" +
				"What would you like to know more about?",
			RequiresClarification: true,
		}, nil
	case closing.In(norm):
		return Result{
			Success: true,
			Message: "Great! Your return is all set. You can track your return status anytime by asking me. " +
				"Is there anything else I can help you with?",
			Next: domain.StateEnd,
		}, nil
	}
	return Result{
		Success:               true,
		Message:               "I can help you with packaging instructions or finding a drop-off location. What would you like to know?",
		RequiresClarification: true,
	}, nil
}

func packagingInstructions(itemName string) Result {
	message := fmt.Sprintf("Here's how to pack your %s:\n"+
		"1. Place the item in its original packaging if you have it\n"+
		"2. If not, use a sturdy box that's slightly larger than the item\n"+
		"3. Wrap the item in bubble wrap or packing paper\n"+
		"4. Fill empty space with packing material to prevent movement\n"+
		"5. Seal the box securely with packing tape\n"+
		"6. Attach your shipping label to the outside of the box\n"+
		"Make sure not to include any personal items or accessories you want to keep!\n"+
		"Would you like help finding a drop-off location?", itemName)
	return Result{Success: true, Message: message, Next: domain.StateAwaitUserResponse}
}

func (h *Logistics) dropOffLocations(norm string) Result {
	carrier := h.deps.Config.DefaultCarrier
	switch {
	case uspsWords.In(norm):
		carrier = "usps"
	case fedexWords.In(norm):
		carrier = "fedex"
	case upsWords.In(norm):
		carrier = "ups"
	}
	locations := carrierLocations[carrier]

	var b strings.Builder
	fmt.Fprintf(&b, "Here are the nearest %s locations:\n\n", strings.ToUpper(carrier))
	for i, loc := range locations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, loc)
	}
	b.WriteString("\nRemember to bring your package with the label attached, or show the QR code at the counter.")

	return Result{
		Success: true,
		Message: b.String(),
		Data:    map[string]any{"carrier": carrier, "locations": append([]string(nil), locations...)},
		Next:    domain.StateEnd,
	}
}
