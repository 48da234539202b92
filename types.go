package paymentsheet

import "strings"

// SetupFutureUsage indicates whether and how a payment method should be saved
// for reuse. The zero value means the field is absent and is never sent.
type SetupFutureUsage string

const (
	// SetupFutureUsageNone explicitly asks the API not to save the payment method.
	SetupFutureUsageNone SetupFutureUsage = "none"

	// SetupFutureUsageOnSession saves the payment method for customer-present reuse.
	SetupFutureUsageOnSession SetupFutureUsage = "on_session"

	// SetupFutureUsageOffSession saves the payment method for merchant-initiated reuse.
	SetupFutureUsageOffSession SetupFutureUsage = "off_session"
)

// IsSet reports whether the value carries an opinion (including "none").
func (s SetupFutureUsage) IsSet() bool {
	return s != ""
}

// Saves reports whether the value asks for the payment method to be saved.
func (s SetupFutureUsage) Saves() bool {
	return s == SetupFutureUsageOnSession || s == SetupFutureUsageOffSession
}

// Valid reports whether s is absent or one of the known values.
func (s SetupFutureUsage) Valid() bool {
	switch s {
	case "", SetupFutureUsageNone, SetupFutureUsageOnSession, SetupFutureUsageOffSession:
		return true
	}
	return false
}

// CaptureMethod controls when the funds of a payment are captured.
type CaptureMethod string

const (
	CaptureMethodAutomatic      CaptureMethod = "automatic"
	CaptureMethodAutomaticAsync CaptureMethod = "automatic_async"
	CaptureMethodManual         CaptureMethod = "manual"
)

// IntentKind distinguishes payment intents from setup intents on the wire.
type IntentKind string

const (
	IntentKindPayment IntentKind = "payment"
	IntentKindSetup   IntentKind = "setup"
)

// IntentKindFromClientSecret derives the intent kind from a client secret of
// the form "pi_..._secret_..." or "seti_..._secret_...".
func IntentKindFromClientSecret(clientSecret string) (IntentKind, error) {
	switch {
	case strings.HasPrefix(clientSecret, "pi_") && strings.Contains(clientSecret, "_secret_"):
		return IntentKindPayment, nil
	case strings.HasPrefix(clientSecret, "seti_") && strings.Contains(clientSecret, "_secret_"):
		return IntentKindSetup, nil
	default:
		return "", ErrInvalidClientSecret
	}
}

// IntentIDFromClientSecret returns the intent id embedded in a client secret.
func IntentIDFromClientSecret(clientSecret string) (string, error) {
	idx := strings.Index(clientSecret, "_secret_")
	if idx <= 0 {
		return "", ErrInvalidClientSecret
	}
	return clientSecret[:idx], nil
}

// IntentStatus is the server-side status of a payment or setup intent.
type IntentStatus string

const (
	IntentStatusRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentStatusRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentStatusRequiresAction        IntentStatus = "requires_action"
	IntentStatusProcessing            IntentStatus = "processing"
	IntentStatusRequiresCapture       IntentStatus = "requires_capture"
	IntentStatusSucceeded             IntentStatus = "succeeded"
	IntentStatusCanceled              IntentStatus = "canceled"
)

// IsSuccessful reports whether the status means the customer is done paying.
// Processing and requires_capture count: funds are on their way or authorized.
func (s IntentStatus) IsSuccessful() bool {
	switch s {
	case IntentStatusSucceeded, IntentStatusProcessing, IntentStatusRequiresCapture:
		return true
	}
	return false
}

// NeedsConfirmation reports whether the intent still has to be confirmed by the client.
func (s IntentStatus) NeedsConfirmation() bool {
	return s == IntentStatusRequiresConfirmation || s == IntentStatusRequiresPaymentMethod
}

// Intent is the server-side object being paid for or set up.
// It is implemented by *PaymentIntent, *SetupIntent and *DeferredIntent only.
type Intent interface {
	isIntent()
}

// PaymentIntent is an already-created payment intent confirmed with its client secret.
type PaymentIntent struct {
	ClientSecret       string
	Amount             int64
	Currency           string
	Status             IntentStatus
	CaptureMethod      CaptureMethod
	PaymentMethodTypes []PaymentMethodType

	// SetupFutureUsage is the value already set on the intent by the server, if any.
	SetupFutureUsage SetupFutureUsage
}

// SetupIntent is an already-created setup intent confirmed with its client secret.
type SetupIntent struct {
	ClientSecret       string
	Status             IntentStatus
	PaymentMethodTypes []PaymentMethodType
}

// DeferredIntent is an intent that does not exist server-side yet. It is
// created (and possibly confirmed) by the merchant's ConfirmHandler.
type DeferredIntent struct {
	Configuration   *IntentConfiguration
	ElementsSession *ElementsSession
}

func (*PaymentIntent) isIntent()  {}
func (*SetupIntent) isIntent()    {}
func (*DeferredIntent) isIntent() {}

// ElementsSession is the snapshot of the session the payment sheet was loaded with.
type ElementsSession struct {
	// ConfigID identifies the session configuration for attribution.
	ConfigID string

	// PaymentMethodTypes lists the types the session offered.
	PaymentMethodTypes []PaymentMethodType

	// AutomaticPaymentMethods is true when the types were chosen by the API
	// rather than listed by the merchant.
	AutomaticPaymentMethods bool

	// AllowsSetAsDefaultPaymentMethod mirrors the customer session feature flag.
	AllowsSetAsDefaultPaymentMethod bool
}

// PaymentMethodReference identifies an existing payment method.
type PaymentMethodReference struct {
	ID   string            `json:"id"`
	Type PaymentMethodType `json:"type"`
}

// BillingDetails are the billing details collected for a payment method.
type BillingDetails struct {
	Name    string   `json:"name,omitempty"`
	Email   string   `json:"email,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	Address *Address `json:"address,omitempty"`
}

// Address is a postal address.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// ShippingDetails are the shipping details declared by the merchant configuration.
type ShippingDetails struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone,omitempty"`
	Address Address `json:"address"`
}

// ClientAttributionMetadata attributes a confirmation to the integration that produced it.
type ClientAttributionMetadata struct {
	ElementsSessionConfigID    string `json:"elements_session_config_id,omitempty"`
	PaymentIntentCreationFlow  string `json:"payment_intent_creation_flow,omitempty"`
	PaymentMethodSelectionFlow string `json:"payment_method_selection_flow,omitempty"`
}
