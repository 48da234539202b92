// Package http implements the merchant backend of a deferred intent: the
// endpoint that creates an intent at confirmation time, and a client that
// turns that endpoint into a paymentsheet.ConfirmHandler.
package http

import (
	"fmt"
	"strings"

	"github.com/mark3labs/paymentsheet-go"
	"github.com/mark3labs/paymentsheet-go/http/internal/helpers"
)

// IntentsPath is the path of the intent creation endpoint.
const IntentsPath = "/payment-sheet/intents"

// Intent modes on the wire.
const (
	ModePayment = "payment"
	ModeSetup   = "setup"
)

// CreateIntentRequest is sent by the client once the customer has chosen a
// payment method.
type CreateIntentRequest struct {
	PaymentMethodID         string `json:"paymentMethodId"`
	PaymentMethodType       string `json:"paymentMethodType,omitempty"`
	ShouldSavePaymentMethod bool   `json:"shouldSavePaymentMethod"`

	// Mode is "payment" or "setup".
	Mode string `json:"mode"`

	// Amount and Currency describe the payment; Currency is optional in setup mode.
	Amount   int64  `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty"`

	SetupFutureUsage   string   `json:"setupFutureUsage,omitempty"`
	CaptureMethod      string   `json:"captureMethod,omitempty"`
	PaymentMethodTypes []string `json:"paymentMethodTypes,omitempty"`
	CustomerID         string   `json:"customerId,omitempty"`
	OnBehalfOf         string   `json:"onBehalfOf,omitempty"`
	ReturnURL          string   `json:"returnUrl,omitempty"`

	// PaymentMethodOptions holds per-payment-method-type settings keyed by
	// type, payment mode only.
	PaymentMethodOptions map[string]PaymentMethodTypeOptions `json:"paymentMethodOptions,omitempty"`
}

// PaymentMethodTypeOptions are the settings of one payment method type.
type PaymentMethodTypeOptions struct {
	SetupFutureUsage string `json:"setupFutureUsage"`
}

// CreateIntentResponse carries the client secret of the created intent.
type CreateIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
	IntentID     string `json:"intentId,omitempty"`

	// Status is the intent status after creation, e.g. "succeeded" when the
	// backend confirmed the intent itself.
	Status string `json:"status,omitempty"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse = helpers.ErrorBody

// NewCreateIntentRequest describes the intent a deferred configuration will create.
func NewCreateIntentRequest(config *paymentsheet.IntentConfiguration, paymentMethod paymentsheet.PaymentMethodReference, shouldSave bool) (*CreateIntentRequest, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: configuration cannot be nil", paymentsheet.ErrInvalidIntentConfiguration)
	}

	req := &CreateIntentRequest{
		PaymentMethodID:         paymentMethod.ID,
		PaymentMethodType:       string(paymentMethod.Type),
		ShouldSavePaymentMethod: shouldSave,
		PaymentMethodTypes:      config.PaymentMethodTypes,
		OnBehalfOf:              config.OnBehalfOf,
	}

	switch mode := config.Mode.(type) {
	case *paymentsheet.PaymentMode:
		req.Mode = ModePayment
		req.Amount = mode.Amount
		req.Currency = mode.Currency
		req.SetupFutureUsage = string(mode.SetupFutureUsage)
		req.CaptureMethod = string(mode.CaptureMethod)
		if mode.PaymentMethodOptions != nil && len(mode.PaymentMethodOptions.SetupFutureUsageValues) > 0 {
			req.PaymentMethodOptions = make(map[string]PaymentMethodTypeOptions, len(mode.PaymentMethodOptions.SetupFutureUsageValues))
			for pmType, sfu := range mode.PaymentMethodOptions.SetupFutureUsageValues {
				req.PaymentMethodOptions[string(pmType)] = PaymentMethodTypeOptions{SetupFutureUsage: string(sfu)}
			}
		}
	case *paymentsheet.SetupMode:
		req.Mode = ModeSetup
		req.Currency = mode.Currency
		req.SetupFutureUsage = string(mode.SetupFutureUsage)
	default:
		return nil, fmt.Errorf("%w: unsupported mode %T", paymentsheet.ErrInvalidIntentConfiguration, config.Mode)
	}

	return req, nil
}

// ToMode converts the request into the mode it asks for.
func (r *CreateIntentRequest) ToMode() (paymentsheet.Mode, error) {
	switch r.Mode {
	case ModePayment:
		mode := &paymentsheet.PaymentMode{
			Amount:           r.Amount,
			Currency:         strings.ToLower(r.Currency),
			SetupFutureUsage: paymentsheet.SetupFutureUsage(r.SetupFutureUsage),
			CaptureMethod:    paymentsheet.CaptureMethod(r.CaptureMethod),
		}
		if len(r.PaymentMethodOptions) > 0 {
			values := make(map[paymentsheet.PaymentMethodType]paymentsheet.SetupFutureUsage, len(r.PaymentMethodOptions))
			for pmType, opts := range r.PaymentMethodOptions {
				values[paymentsheet.PaymentMethodType(pmType)] = paymentsheet.SetupFutureUsage(opts.SetupFutureUsage)
			}
			mode.PaymentMethodOptions = &paymentsheet.PaymentMethodOptionsConfig{SetupFutureUsageValues: values}
		}
		return mode, nil
	case ModeSetup:
		if len(r.PaymentMethodOptions) > 0 {
			return nil, fmt.Errorf("%w: paymentMethodOptions are only supported in payment mode", paymentsheet.ErrInvalidIntentConfiguration)
		}
		return &paymentsheet.SetupMode{
			Currency:         strings.ToLower(r.Currency),
			SetupFutureUsage: paymentsheet.SetupFutureUsage(r.SetupFutureUsage),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", paymentsheet.ErrInvalidIntentConfiguration, r.Mode)
	}
}

// EffectiveSetupFutureUsage resolves the save policy of the intent for the
// request's payment method: the checkbox first, then the per-type override
// (even "none"), then the top-level value. The payment method is always
// referenced by id, so only the checkbox distinguishes a new one.
func (r *CreateIntentRequest) EffectiveSetupFutureUsage(mode paymentsheet.Mode) paymentsheet.SetupFutureUsage {
	return paymentsheet.ResolveEffectiveSFU(
		&paymentsheet.NewConfirmType{ShouldSave: r.ShouldSavePaymentMethod},
		paymentsheet.PaymentMethodType(r.PaymentMethodType),
		&paymentsheet.IntentConfiguration{Mode: mode},
	)
}

// hasTypeOverride reports whether mode carries a per-type save policy for pmType.
func hasTypeOverride(mode paymentsheet.Mode, pmType paymentsheet.PaymentMethodType) bool {
	m, ok := mode.(*paymentsheet.PaymentMode)
	if !ok || m.PaymentMethodOptions == nil {
		return false
	}
	_, ok = m.PaymentMethodOptions.SetupFutureUsageValues[pmType]
	return ok
}
