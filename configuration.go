package paymentsheet

import "context"

// ConfirmHandler is the merchant-supplied callback for deferred intents.
//
// It receives the payment method the customer chose and whether the customer
// asked to save it. It either creates and confirms the intent on the merchant
// server and returns the client secret of the confirmed intent, or creates an
// unconfirmed intent and returns its client secret for client-side
// confirmation. Any error is surfaced unchanged as the terminal failure.
type ConfirmHandler func(ctx context.Context, paymentMethod PaymentMethodReference, shouldSavePaymentMethod bool) (clientSecret string, err error)

// IntentConfiguration describes an intent the merchant has not created yet.
type IntentConfiguration struct {
	// Mode is either *PaymentMode or *SetupMode.
	Mode Mode

	// PaymentMethodTypes optionally restricts the types offered. Unknown
	// identifiers fail validation before any network call.
	PaymentMethodTypes []string

	// OnBehalfOf is an optional connected account id ("acct_...").
	OnBehalfOf string

	// ConfirmHandler creates the intent at confirmation time (required).
	ConfirmHandler ConfirmHandler
}

// Mode is what the deferred intent will do: take a payment or set up a payment method.
type Mode interface {
	isMode()

	// Kind returns the intent kind the merchant handler must create.
	Kind() IntentKind
}

// PaymentMode configures a deferred payment.
type PaymentMode struct {
	// Amount in the currency's smallest unit. Must be positive.
	Amount int64

	// Currency is a three-letter ISO code.
	Currency string

	// SetupFutureUsage is the top-level save policy; empty when absent.
	SetupFutureUsage SetupFutureUsage

	CaptureMethod CaptureMethod

	// PaymentMethodOptions holds per-payment-method-type overrides.
	PaymentMethodOptions *PaymentMethodOptionsConfig
}

// PaymentMethodOptionsConfig holds per-payment-method-type settings of a deferred payment.
type PaymentMethodOptionsConfig struct {
	// SetupFutureUsageValues overrides the top-level save policy per type.
	// A present entry wins even when it is SetupFutureUsageNone.
	SetupFutureUsageValues map[PaymentMethodType]SetupFutureUsage
}

// SetupMode configures a deferred setup of a payment method.
type SetupMode struct {
	// Currency is optional for setup; when set it must be a three-letter ISO code.
	Currency string

	// SetupFutureUsage is mandatory in setup mode.
	SetupFutureUsage SetupFutureUsage
}

func (*PaymentMode) isMode() {}
func (*SetupMode) isMode()   {}

// Kind implements Mode.
func (*PaymentMode) Kind() IntentKind { return IntentKindPayment }

// Kind implements Mode.
func (*SetupMode) Kind() IntentKind { return IntentKindSetup }

// Configuration is the merchant-supplied policy for the payment sheet.
type Configuration struct {
	// MerchantDisplayName is shown to the customer and used in mandate text.
	MerchantDisplayName string

	// ReturnURL is where redirect-based payment methods send the customer back to.
	ReturnURL string

	// Shipping is included in confirmations when set.
	Shipping *ShippingDetails

	// DefaultBillingDetails prefill the billing details passed to external
	// payment method handlers when none were collected.
	DefaultBillingDetails *BillingDetails

	// CustomerID is the customer the payment methods belong to, if any.
	CustomerID string
}
