package paymentsheet

import "context"

// PaymentsAPI is the remote payments API the orchestrator confirms against.
// Implementations must be safe for concurrent use by unrelated orchestrators.
type PaymentsAPI interface {
	// ConfirmIntent confirms the intent identified by clientSecret with params.
	ConfirmIntent(ctx context.Context, kind IntentKind, clientSecret string, params *ConfirmationTokenParams) (*IntentStatusResponse, error)

	// RetrieveIntent fetches the current status of the intent identified by clientSecret.
	RetrieveIntent(ctx context.Context, clientSecret string) (*IntentStatusResponse, error)

	// CreatePaymentMethod creates a payment method from inline details.
	// Deferred intents need a payment method before the merchant handler runs.
	CreatePaymentMethod(ctx context.Context, params *PaymentMethodParams) (*PaymentMethodReference, error)
}

// IntentStatusResponse is the API's view of an intent after a call.
type IntentStatusResponse struct {
	ID           string
	Kind         IntentKind
	ClientSecret string
	Status       IntentStatus

	// Amount and Currency are only set for payment intents.
	Amount   int64
	Currency string

	PaymentMethod *PaymentMethodReference

	// NextAction is set when Status is requires_action.
	NextAction *NextAction

	// LastError is the last confirmation error the API recorded, if any.
	LastError *APIError
}

// NextActionType is the kind of customer action an intent is waiting for.
type NextActionType string

const (
	NextActionRedirectToURL           NextActionType = "redirect_to_url"
	NextActionUseSDK                  NextActionType = "use_stripe_sdk"
	NextActionVerifyWithMicrodeposits NextActionType = "verify_with_microdeposits"
	NextActionDisplayDetails          NextActionType = "display_bank_transfer_instructions"
)

// NextAction describes the additional step the customer must take.
type NextAction struct {
	Type NextActionType

	// RedirectURL is where the customer must go for redirect actions.
	RedirectURL string

	// ReturnURL is where the customer comes back to after the redirect.
	ReturnURL string

	// ChallengeType refines NextActionUseSDK, e.g. "three_d_secure_redirect".
	ChallengeType string

	// HostedVerificationURL is set for microdeposit verification.
	HostedVerificationURL string

	// MicrodepositType is "amounts" or "descriptor_code" for microdeposit verification.
	MicrodepositType string

	// MicrodepositArrivalDate is the Unix time the microdeposits are expected to arrive.
	MicrodepositArrivalDate int64
}
