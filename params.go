package paymentsheet

import "fmt"

// ConfirmationTokenParams is the complete payload of one confirmation attempt.
// Exactly one of PaymentMethod and PaymentMethodData is set.
type ConfirmationTokenParams struct {
	ReturnURL string           `json:"return_url,omitempty"`
	Shipping  *ShippingDetails `json:"shipping,omitempty"`

	// PaymentMethod references an existing payment method by id.
	PaymentMethod string `json:"payment_method,omitempty"`

	// PaymentMethodData carries inline details for a new payment method.
	PaymentMethodData *PaymentMethodParams `json:"payment_method_data,omitempty"`

	PaymentMethodOptions *PaymentMethodOptions `json:"payment_method_options,omitempty"`

	// SetupFutureUsage is omitted when absent; "none" is sent explicitly.
	SetupFutureUsage SetupFutureUsage `json:"setup_future_usage,omitempty"`

	// SetAsDefaultPaymentMethod is either true or omitted, never false.
	SetAsDefaultPaymentMethod *bool `json:"set_as_default_payment_method,omitempty"`

	MandateData               *MandateData               `json:"mandate_data,omitempty"`
	ClientAttributionMetadata *ClientAttributionMetadata `json:"client_attribution_metadata,omitempty"`
	RadarOptions              *RadarOptions              `json:"radar_options,omitempty"`
}

// RadarOptions carries the fraud signals fetched before confirmation.
type RadarOptions struct {
	PassiveCaptchaToken string `json:"hcaptcha_token,omitempty"`
	DeviceAttestation   string `json:"device_attestation,omitempty"`
}

// IsEmpty reports whether no signal was collected.
func (r *RadarOptions) IsEmpty() bool {
	return r == nil || (r.PassiveCaptchaToken == "" && r.DeviceAttestation == "")
}

// Validate checks the reference XOR inline invariant.
func (p *ConfirmationTokenParams) Validate() error {
	hasRef := p.PaymentMethod != ""
	hasData := p.PaymentMethodData != nil
	if hasRef == hasData {
		return fmt.Errorf("%w: exactly one of payment_method and payment_method_data must be set", ErrInvalidParams)
	}
	return nil
}

// BuildRequest is the input of one parameter build.
type BuildRequest struct {
	ConfirmType         ConfirmPaymentMethodType
	IntentConfiguration *IntentConfiguration

	// ElementsSession is the session snapshot, used for client attribution.
	ElementsSession *ElementsSession

	// MandateData is caller-supplied mandate data; it wins over synthesis.
	MandateData *MandateData

	// AllowsSetAsDefaultPaymentMethod gates the set-as-default checkbox.
	AllowsSetAsDefaultPaymentMethod bool

	// Deferred marks confirmations of intents created by the merchant handler.
	Deferred bool

	// RadarOptions are the pre-confirmation tokens, if any were fetched.
	RadarOptions *RadarOptions

	// CreatedPaymentMethod is set when the inline details of a new confirm
	// type were already turned into a payment method. It is referenced
	// instead of sending the details again; SFU still follows the checkbox.
	CreatedPaymentMethod *PaymentMethodReference
}

// ParamsBuilder assembles ConfirmationTokenParams. It has no side effects.
type ParamsBuilder struct {
	Configuration  *Configuration
	MandateContext MandateContextProvider
}

// NewParamsBuilder creates a builder for the given merchant configuration.
func NewParamsBuilder(config *Configuration, mandateContext MandateContextProvider) *ParamsBuilder {
	if config == nil {
		config = &Configuration{}
	}
	if mandateContext == nil {
		mandateContext = DefaultMandateContext
	}
	return &ParamsBuilder{Configuration: config, MandateContext: mandateContext}
}

// Build assembles the params of a single confirmation attempt.
// Validation of the intent configuration happens before this point.
func (b *ParamsBuilder) Build(req BuildRequest) (*ConfirmationTokenParams, error) {
	params := &ConfirmationTokenParams{}

	switch ct := req.ConfirmType.(type) {
	case *SavedConfirmType:
		if ct.PaymentMethod.ID == "" {
			return nil, fmt.Errorf("%w: saved payment method has no id", ErrInvalidParams)
		}
		params.PaymentMethod = ct.PaymentMethod.ID
		params.PaymentMethodOptions = ct.PaymentMethodOptions
		params.ClientAttributionMetadata = ct.ClientAttributionMetadata
	case *NewConfirmType:
		if req.CreatedPaymentMethod != nil && req.CreatedPaymentMethod.ID != "" {
			params.PaymentMethod = req.CreatedPaymentMethod.ID
		} else {
			data := ct.Params
			params.PaymentMethodData = &data
		}
		params.PaymentMethodOptions = ct.PaymentMethodOptions
		if req.AllowsSetAsDefaultPaymentMethod && ct.ShouldSetAsDefaultPaymentMethod != nil && *ct.ShouldSetAsDefaultPaymentMethod {
			setAsDefault := true
			params.SetAsDefaultPaymentMethod = &setAsDefault
		}
	default:
		return nil, fmt.Errorf("%w: unknown confirm type %T", ErrInvalidParams, req.ConfirmType)
	}

	if params.ClientAttributionMetadata == nil && req.ElementsSession != nil {
		params.ClientAttributionMetadata = attributionFor(req.ElementsSession, req.Deferred)
	}

	if b.Configuration.ReturnURL != "" {
		params.ReturnURL = b.Configuration.ReturnURL
	}
	if b.Configuration.Shipping != nil {
		shipping := *b.Configuration.Shipping
		params.Shipping = &shipping
	}

	pmType := req.ConfirmType.PaymentMethodType()
	params.SetupFutureUsage = ResolveEffectiveSFU(req.ConfirmType, pmType, req.IntentConfiguration)
	params.MandateData = RequiresMandate(pmType, params.SetupFutureUsage, req.MandateData, b.MandateContext)

	if !req.RadarOptions.IsEmpty() {
		radar := *req.RadarOptions
		params.RadarOptions = &radar
	}

	return params, nil
}

func attributionFor(session *ElementsSession, deferred bool) *ClientAttributionMetadata {
	cam := &ClientAttributionMetadata{
		ElementsSessionConfigID:    session.ConfigID,
		PaymentIntentCreationFlow:  "standard",
		PaymentMethodSelectionFlow: "merchant_specified",
	}
	if deferred {
		cam.PaymentIntentCreationFlow = "deferred"
	}
	if session.AutomaticPaymentMethods {
		cam.PaymentMethodSelectionFlow = "automatic"
	}
	return cam
}
