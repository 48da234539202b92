package paymentsheet

import "time"

// PaymentEventType is the kind of confirmation lifecycle event.
type PaymentEventType string

const (
	PaymentEventAttempt        PaymentEventType = "attempt"
	PaymentEventRequiresAction PaymentEventType = "requires_action"
	PaymentEventSuccess        PaymentEventType = "success"
	PaymentEventFailure        PaymentEventType = "failure"
	PaymentEventCanceled       PaymentEventType = "canceled"
)

// PaymentEvent describes one step of a confirmation.
type PaymentEvent struct {
	Type      PaymentEventType
	Timestamp time.Time

	// IntentKind is payment or setup; empty for external payment methods.
	IntentKind        IntentKind
	Deferred          bool
	PaymentMethodType PaymentMethodType

	// ExternalPaymentMethodType is set for external payment methods.
	ExternalPaymentMethodType string

	// IntentID is set once the intent is known.
	IntentID string
	Status   IntentStatus

	Error    error
	Duration time.Duration
}

// PaymentCallback receives confirmation lifecycle events.
type PaymentCallback func(event PaymentEvent)
