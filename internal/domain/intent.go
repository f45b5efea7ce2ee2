package domain

// Intent is what the caller wants to accomplish in the conversation.
type Intent string

const (
	IntentStartReturn    Intent = "start_return"
	IntentTrackReturn    Intent = "track_return"
	IntentPackagingHelp  Intent = "packaging_help"
	IntentRefundStatus   Intent = "refund_status"
	IntentDisputeRefund  Intent = "dispute_refund"
	IntentGeneralInquiry Intent = "general_inquiry"
	IntentUnknown        Intent = "unknown"
)

// Intents lists intents in classification priority order.
var Intents = []Intent{
	IntentStartReturn,
	IntentTrackReturn,
	IntentPackagingHelp,
	IntentRefundStatus,
	IntentDisputeRefund,
	IntentGeneralInquiry,
	IntentUnknown,
}

// Valid reports whether i is a known intent.
func (i Intent) Valid() bool {
	for _, candidate := range Intents {
		if candidate == i {
			return true
		}
	}
	return false
}
