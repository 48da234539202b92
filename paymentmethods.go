package paymentsheet

import "fmt"

// PaymentMethodType is the API identifier of a payment method type (e.g. "card").
type PaymentMethodType string

const (
	PaymentMethodTypeCard            PaymentMethodType = "card"
	PaymentMethodTypeUSBankAccount   PaymentMethodType = "us_bank_account"
	PaymentMethodTypeSEPADebit       PaymentMethodType = "sepa_debit"
	PaymentMethodTypeBACSDebit       PaymentMethodType = "bacs_debit"
	PaymentMethodTypeAUBECSDebit     PaymentMethodType = "au_becs_debit"
	PaymentMethodTypeACSSDebit       PaymentMethodType = "acss_debit"
	PaymentMethodTypePayPal          PaymentMethodType = "paypal"
	PaymentMethodTypeCashApp         PaymentMethodType = "cashapp"
	PaymentMethodTypeRevolutPay      PaymentMethodType = "revolut_pay"
	PaymentMethodTypeAmazonPay       PaymentMethodType = "amazon_pay"
	PaymentMethodTypeKlarna          PaymentMethodType = "klarna"
	PaymentMethodTypeLink            PaymentMethodType = "link"
	PaymentMethodTypeIDEAL           PaymentMethodType = "ideal"
	PaymentMethodTypeBancontact      PaymentMethodType = "bancontact"
	PaymentMethodTypeSofort          PaymentMethodType = "sofort"
	PaymentMethodTypeAffirm          PaymentMethodType = "affirm"
	PaymentMethodTypeAfterpay        PaymentMethodType = "afterpay_clearpay"
	PaymentMethodTypeAlipay          PaymentMethodType = "alipay"
	PaymentMethodTypeCustomerBalance PaymentMethodType = "customer_balance"
)

// PaymentMethodConfig describes how a payment method type behaves during confirmation.
type PaymentMethodConfig struct {
	// Type is the API identifier.
	Type PaymentMethodType

	// SupportsSaving is true when the type can be attached for future use.
	SupportsSaving bool

	// RequiresMandateWhenSaving is true when saving the payment method
	// needs a customer-accepted mandate attached to the confirmation.
	RequiresMandateWhenSaving bool

	// RequiresRedirect is true when confirmation always hands off to a
	// redirect next action.
	RequiresRedirect bool
}

var paymentMethodConfigs = map[PaymentMethodType]PaymentMethodConfig{
	PaymentMethodTypeCard:            {Type: PaymentMethodTypeCard, SupportsSaving: true},
	PaymentMethodTypeUSBankAccount:   {Type: PaymentMethodTypeUSBankAccount, SupportsSaving: true, RequiresMandateWhenSaving: true},
	PaymentMethodTypeSEPADebit:       {Type: PaymentMethodTypeSEPADebit, SupportsSaving: true, RequiresMandateWhenSaving: true},
	PaymentMethodTypeBACSDebit:       {Type: PaymentMethodTypeBACSDebit, SupportsSaving: true, RequiresMandateWhenSaving: true},
	PaymentMethodTypeAUBECSDebit:     {Type: PaymentMethodTypeAUBECSDebit, SupportsSaving: true, RequiresMandateWhenSaving: true},
	PaymentMethodTypeACSSDebit:       {Type: PaymentMethodTypeACSSDebit, SupportsSaving: true, RequiresMandateWhenSaving: true},
	PaymentMethodTypePayPal:          {Type: PaymentMethodTypePayPal, SupportsSaving: true, RequiresMandateWhenSaving: true, RequiresRedirect: true},
	PaymentMethodTypeCashApp:         {Type: PaymentMethodTypeCashApp, SupportsSaving: true, RequiresMandateWhenSaving: true, RequiresRedirect: true},
	PaymentMethodTypeRevolutPay:      {Type: PaymentMethodTypeRevolutPay, SupportsSaving: true, RequiresMandateWhenSaving: true, RequiresRedirect: true},
	PaymentMethodTypeAmazonPay:       {Type: PaymentMethodTypeAmazonPay, SupportsSaving: true, RequiresMandateWhenSaving: true, RequiresRedirect: true},
	PaymentMethodTypeKlarna:          {Type: PaymentMethodTypeKlarna, SupportsSaving: true, RequiresMandateWhenSaving: true, RequiresRedirect: true},
	PaymentMethodTypeLink:            {Type: PaymentMethodTypeLink, SupportsSaving: true, RequiresMandateWhenSaving: true},
	PaymentMethodTypeIDEAL:           {Type: PaymentMethodTypeIDEAL, SupportsSaving: true, RequiresMandateWhenSaving: true, RequiresRedirect: true},
	PaymentMethodTypeBancontact:      {Type: PaymentMethodTypeBancontact, SupportsSaving: true, RequiresMandateWhenSaving: true, RequiresRedirect: true},
	PaymentMethodTypeSofort:          {Type: PaymentMethodTypeSofort, SupportsSaving: true, RequiresMandateWhenSaving: true, RequiresRedirect: true},
	PaymentMethodTypeAffirm:          {Type: PaymentMethodTypeAffirm, RequiresRedirect: true},
	PaymentMethodTypeAfterpay:        {Type: PaymentMethodTypeAfterpay, RequiresRedirect: true},
	PaymentMethodTypeAlipay:          {Type: PaymentMethodTypeAlipay, RequiresRedirect: true},
	PaymentMethodTypeCustomerBalance: {Type: PaymentMethodTypeCustomerBalance},
}

// LookupPaymentMethod returns the configuration for a payment method type.
func LookupPaymentMethod(t PaymentMethodType) (PaymentMethodConfig, bool) {
	cfg, ok := paymentMethodConfigs[t]
	return cfg, ok
}

// ParsePaymentMethodType validates an API identifier and returns the typed value.
// Unknown identifiers are a validation error.
func ParsePaymentMethodType(s string) (PaymentMethodType, error) {
	t := PaymentMethodType(s)
	if _, ok := paymentMethodConfigs[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMethodType, s)
	}
	return t, nil
}
