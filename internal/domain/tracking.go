package domain

import "time"

// ShipmentStatus is the carrier-side state of a return parcel.
type ShipmentStatus string

const (
	ShipmentLabelCreated   ShipmentStatus = "label_created"
	ShipmentPickedUp       ShipmentStatus = "picked_up"
	ShipmentInTransit      ShipmentStatus = "in_transit"
	ShipmentOutForDelivery ShipmentStatus = "out_for_delivery"
	ShipmentDelivered      ShipmentStatus = "delivered"
	ShipmentException      ShipmentStatus = "exception"
)

// Label renders the status for people, e.g. "Label Created".
func (s ShipmentStatus) Label() string {
	return titleize(string(s))
}

// TrackingInfo is keyed 1:1 by tracking number.
type TrackingInfo struct {
	TrackingNumber    string         `json:"tracking_number"`
	Carrier           string         `json:"carrier"`
	Status            ShipmentStatus `json:"status"`
	LastUpdate        time.Time      `json:"last_update"`
	EstimatedDelivery *time.Time     `json:"estimated_delivery,omitempty"`
	CurrentLocation   string         `json:"current_location,omitempty"`
}

var shipmentMessages = map[ShipmentStatus]string{
	ShipmentLabelCreated:   "Your return label has been created. Please drop off your package.",
	ShipmentPickedUp:       "Your return package has been picked up by the carrier.",
	ShipmentInTransit:      "Your return is in transit to our facility.",
	ShipmentOutForDelivery: "Your return is out for delivery to our warehouse.",
	ShipmentDelivered:      "Your return has been delivered. Refund processing will begin shortly.",
	ShipmentException:      "There's an issue with your return shipment. Please contact support.",
}

// StatusMessage is the customer-facing sentence for the current status.
func (t *TrackingInfo) StatusMessage() string {
	if msg, ok := shipmentMessages[t.Status]; ok {
		return msg
	}
	return "Status unknown"
}

// ShipmentStatusFor maps a return status onto a plausible carrier status.
func ShipmentStatusFor(status ReturnStatus) ShipmentStatus {
	switch status {
	case ReturnStatusInTransit:
		return ShipmentInTransit
	case ReturnStatusReceived, ReturnStatusRefundPending, ReturnStatusRefundProcessed:
		return ShipmentDelivered
	default:
		return ShipmentLabelCreated
	}
}
