package paymentsheet

// PaymentOption is what the customer selected to pay with.
// It is implemented by *SavedOption, *NewOption, *WalletOption and *ExternalOption.
type PaymentOption interface {
	isPaymentOption()
}

// SavedOption selects a payment method already attached to the customer.
type SavedOption struct {
	PaymentMethod             PaymentMethodReference
	PaymentMethodOptions      *PaymentMethodOptions
	ClientAttributionMetadata *ClientAttributionMetadata
}

// NewOption carries payment method details the customer just entered.
type NewOption struct {
	Params               PaymentMethodParams
	PaymentMethodOptions *PaymentMethodOptions

	// ShouldSave is the state of the "save for future payments" checkbox.
	ShouldSave bool

	// ShouldSetAsDefaultPaymentMethod is the state of the "set as default"
	// checkbox, nil when the checkbox was not shown.
	ShouldSetAsDefaultPaymentMethod *bool
}

// WalletType identifies a platform wallet.
type WalletType string

const (
	WalletTypeApplePay  WalletType = "apple_pay"
	WalletTypeGooglePay WalletType = "google_pay"
)

// WalletOption is a payment method produced by a platform wallet sheet.
// The wallet has already tokenized the card into a payment method.
type WalletOption struct {
	Wallet        WalletType
	PaymentMethod PaymentMethodReference
}

// ExternalOption is a payment method processed by the merchant, outside the
// payments API. Confirmation is delegated to the external confirm handler.
type ExternalOption struct {
	// Type is the merchant's identifier, e.g. "external_venmo".
	Type           string
	BillingDetails *BillingDetails
}

func (*SavedOption) isPaymentOption()    {}
func (*NewOption) isPaymentOption()      {}
func (*WalletOption) isPaymentOption()   {}
func (*ExternalOption) isPaymentOption() {}

// ConfirmPaymentMethodType is the payment method part of a confirmation:
// either a reference to an existing payment method or inline params.
// It is implemented by *SavedConfirmType and *NewConfirmType.
type ConfirmPaymentMethodType interface {
	isConfirmType()

	// PaymentMethodType returns the type of the payment method being confirmed.
	PaymentMethodType() PaymentMethodType
}

// SavedConfirmType confirms with an existing payment method.
type SavedConfirmType struct {
	PaymentMethod             PaymentMethodReference
	PaymentMethodOptions      *PaymentMethodOptions
	ClientAttributionMetadata *ClientAttributionMetadata
}

// NewConfirmType confirms with inline payment method params.
type NewConfirmType struct {
	Params               PaymentMethodParams
	PaymentMethodOptions *PaymentMethodOptions

	// ShouldSave reflects an explicit user checkbox action.
	ShouldSave bool

	ShouldSetAsDefaultPaymentMethod *bool
}

func (*SavedConfirmType) isConfirmType() {}
func (*NewConfirmType) isConfirmType()   {}

// PaymentMethodType implements ConfirmPaymentMethodType.
func (c *SavedConfirmType) PaymentMethodType() PaymentMethodType { return c.PaymentMethod.Type }

// PaymentMethodType implements ConfirmPaymentMethodType.
func (c *NewConfirmType) PaymentMethodType() PaymentMethodType { return c.Params.Type }

// ConfirmTypeFor maps a payment option onto the confirm type sent to the API.
// External options are not confirmed through the API and return ErrExternalPaymentMethod.
func ConfirmTypeFor(option PaymentOption) (ConfirmPaymentMethodType, error) {
	switch o := option.(type) {
	case *SavedOption:
		return &SavedConfirmType{
			PaymentMethod:             o.PaymentMethod,
			PaymentMethodOptions:      o.PaymentMethodOptions,
			ClientAttributionMetadata: o.ClientAttributionMetadata,
		}, nil
	case *NewOption:
		return &NewConfirmType{
			Params:                          o.Params,
			PaymentMethodOptions:            o.PaymentMethodOptions,
			ShouldSave:                      o.ShouldSave,
			ShouldSetAsDefaultPaymentMethod: o.ShouldSetAsDefaultPaymentMethod,
		}, nil
	case *WalletOption:
		// Wallet payment methods are never saved from the sheet.
		return &SavedConfirmType{PaymentMethod: o.PaymentMethod}, nil
	case *ExternalOption:
		return nil, ErrExternalPaymentMethod
	default:
		return nil, ErrInvalidPaymentOption
	}
}

// PaymentMethodParams are inline details for creating a payment method.
type PaymentMethodParams struct {
	Type           PaymentMethodType    `json:"type"`
	BillingDetails *BillingDetails      `json:"billing_details,omitempty"`
	Card           *CardParams          `json:"card,omitempty"`
	USBankAccount  *USBankAccountParams `json:"us_bank_account,omitempty"`
	SEPADebit      *SEPADebitParams     `json:"sepa_debit,omitempty"`

	// AllowRedisplay is "always", "limited" or "unspecified".
	AllowRedisplay string            `json:"allow_redisplay,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// CardParams are raw or tokenized card details.
type CardParams struct {
	Number   string `json:"number,omitempty"`
	ExpMonth int    `json:"exp_month,omitempty"`
	ExpYear  int    `json:"exp_year,omitempty"`
	CVC      string `json:"cvc,omitempty"`
	Token    string `json:"token,omitempty"`
}

// USBankAccountParams are US bank account details.
type USBankAccountParams struct {
	AccountHolderType string `json:"account_holder_type,omitempty"`
	AccountNumber     string `json:"account_number,omitempty"`
	RoutingNumber     string `json:"routing_number,omitempty"`

	// LinkedAccount is a financial connections account id, used instead of numbers.
	LinkedAccount string `json:"financial_connections_account,omitempty"`
}

// SEPADebitParams are SEPA debit details.
type SEPADebitParams struct {
	IBAN string `json:"iban"`
}

// PaymentMethodOptions are per-type confirmation options.
type PaymentMethodOptions struct {
	Card          *CardOptions          `json:"card,omitempty"`
	USBankAccount *USBankAccountOptions `json:"us_bank_account,omitempty"`
}

// CardOptions are card-specific confirmation options.
type CardOptions struct {
	// CVCToken is a tokenized CVC recollected for a saved card.
	CVCToken string `json:"cvc_token,omitempty"`
	Network  string `json:"network,omitempty"`
}

// USBankAccountOptions are US-bank-account-specific confirmation options.
type USBankAccountOptions struct {
	// VerificationMethod is "automatic", "instant" or "microdeposits".
	VerificationMethod string `json:"verification_method,omitempty"`
}
