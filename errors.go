package paymentsheet

import (
	"errors"
	"fmt"
)

// Standard paymentsheet error definitions.
var (
	// ErrAlreadyConfirmedIntent indicates the orchestrator already reached a
	// terminal state; confirming again or updating the configuration is not allowed.
	ErrAlreadyConfirmedIntent = errors.New("paymentsheet: intent already confirmed")

	// ErrConfirmationInProgress indicates a confirmation is already running on this orchestrator.
	ErrConfirmationInProgress = errors.New("paymentsheet: confirmation already in progress")

	// ErrInvalidIntent indicates a nil or unknown Intent variant.
	ErrInvalidIntent = errors.New("paymentsheet: invalid intent")

	// ErrInvalidPaymentOption indicates a nil or unknown PaymentOption variant.
	ErrInvalidPaymentOption = errors.New("paymentsheet: invalid payment option")

	// ErrInvalidIntentConfiguration indicates the deferred intent configuration failed validation.
	ErrInvalidIntentConfiguration = errors.New("paymentsheet: invalid intent configuration")

	// ErrUnknownPaymentMethodType indicates an unrecognized payment method type identifier.
	ErrUnknownPaymentMethodType = errors.New("paymentsheet: unknown payment method type")

	// ErrInvalidClientSecret indicates a malformed client secret.
	ErrInvalidClientSecret = errors.New("paymentsheet: invalid client secret")

	// ErrExternalPaymentMethod indicates an external payment method was passed
	// where an API-confirmable payment method was expected.
	ErrExternalPaymentMethod = errors.New("paymentsheet: external payment method cannot be confirmed through the API")

	// ErrNoExternalPaymentMethodHandler indicates an external payment method
	// was selected but no external confirm handler is configured.
	ErrNoExternalPaymentMethodHandler = errors.New("paymentsheet: no external payment method confirm handler configured")

	// ErrMissingConfirmHandler indicates a deferred intent has no merchant confirm handler.
	ErrMissingConfirmHandler = errors.New("paymentsheet: deferred intent has no confirm handler")

	// ErrIntentConfigurationMismatch indicates the intent returned by the merchant
	// handler does not match the deferred intent configuration.
	ErrIntentConfigurationMismatch = errors.New("paymentsheet: intent does not match intent configuration")

	// ErrNoNextActionHandler indicates no registered handler can perform the required next action.
	ErrNoNextActionHandler = errors.New("paymentsheet: no handler for next action")

	// ErrNextActionFailed indicates the next action handler reported a failure.
	ErrNextActionFailed = errors.New("paymentsheet: next action failed")

	// ErrIntentCanceled indicates the intent was canceled server-side.
	ErrIntentCanceled = errors.New("paymentsheet: intent was canceled")

	// ErrUnexpectedStatus indicates the API reported a status the flow cannot continue from.
	ErrUnexpectedStatus = errors.New("paymentsheet: unexpected intent status")

	// ErrNetworkError indicates a transport failure talking to the payments API.
	ErrNetworkError = errors.New("paymentsheet: network error")

	// ErrInvalidParams indicates confirmation params violate the reference XOR inline rule.
	ErrInvalidParams = errors.New("paymentsheet: invalid confirmation params")

	// ErrInvalidTimeout indicates a non-positive timeout in TimeoutConfig.
	ErrInvalidTimeout = errors.New("paymentsheet: invalid timeout")
)

// ErrorCode classifies a PaymentError so the host can decide what to show.
type ErrorCode string

const (
	ErrCodeValidation             ErrorCode = "validation_error"
	ErrCodeNetworkError           ErrorCode = "network_error"
	ErrCodeAPIError               ErrorCode = "api_error"
	ErrCodeAlreadyConfirmedIntent ErrorCode = "already_confirmed_intent"
	ErrCodeConfirmationInProgress ErrorCode = "confirmation_in_progress"
	ErrCodeMerchantHandler        ErrorCode = "merchant_handler_error"
	ErrCodeNextAction             ErrorCode = "next_action_error"
	ErrCodeUnexpectedStatus       ErrorCode = "unexpected_status"
)

// PaymentError is a structured error with a code, a message and an optional cause.
type PaymentError struct {
	Code    ErrorCode
	Message string
	Err     error
	Details map[string]interface{}
}

// NewPaymentError creates a PaymentError.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// WithDetails attaches a detail and returns the error for chaining.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	e.Details[key] = value
	return e
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// APIError is a structured error response from the payments API.
type APIError struct {
	// Type is the API error type, e.g. "card_error" or "invalid_request_error".
	Type string `json:"type,omitempty"`

	// Code is the machine-readable error code, e.g. "card_declined".
	Code string `json:"code,omitempty"`

	// DeclineCode is set for card declines.
	DeclineCode string `json:"decline_code,omitempty"`

	// Param names the request parameter the error relates to, if any.
	Param string `json:"param,omitempty"`

	Message    string `json:"message,omitempty"`
	HTTPStatus int    `json:"-"`
	RequestID  string `json:"-"`
}

func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("paymentsheet: api error (%s) on %s: %s", e.Code, e.Param, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("paymentsheet: api error (%s): %s", e.Code, e.Message)
	}
	return "paymentsheet: api error: " + e.Message
}

// IsCardError reports whether err is an API error caused by the card itself.
func IsCardError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == "card_error"
}
