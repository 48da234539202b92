// Package helpers provides shared helper functions for the merchant backend
// handlers. They are used by the stdlib, Gin and Chi handlers so that every
// router answers with the same JSON bodies and status codes.
package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v74"

	"github.com/mark3labs/paymentsheet-go"
)

// MaxBodyBytes caps the size of a decoded request body.
const MaxBodyBytes = 64 << 10

// ErrMalformedBody is returned when a request body is not valid JSON.
var ErrMalformedBody = errors.New("malformed request body")

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`

	// DeclineCode is set when the payments API declined the payment method.
	DeclineCode string `json:"declineCode,omitempty"`
}

// DecodeJSON reads a single JSON document from body into v.
// Unknown fields are rejected.
//
// Returns ErrMalformedBody if the body is empty, too large, or invalid JSON.
func DecodeJSON(body io.Reader, v interface{}) error {
	if body == nil {
		return fmt.Errorf("%w: empty body", ErrMalformedBody)
	}
	dec := json.NewDecoder(io.LimitReader(body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return nil
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignore encoding errors - the status is already sent
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse maps err to a status code and error body.
//
//   - malformed bodies and invalid configurations are 400
//   - errors from the payments API keep their 4xx status, card errors are 402
//   - anything else is 502, since the intent could not be created upstream
func ErrorResponse(err error) (int, ErrorBody) {
	if errors.Is(err, ErrMalformedBody) {
		return http.StatusBadRequest, ErrorBody{Error: err.Error(), Code: string(paymentsheet.ErrCodeValidation)}
	}
	if errors.Is(err, paymentsheet.ErrInvalidIntentConfiguration) || errors.Is(err, paymentsheet.ErrUnknownPaymentMethodType) {
		return http.StatusBadRequest, ErrorBody{Error: err.Error(), Code: string(paymentsheet.ErrCodeValidation)}
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		body := ErrorBody{Error: stripeErr.Msg, Code: string(stripeErr.Code), DeclineCode: string(stripeErr.DeclineCode)}
		if stripeErr.Type == stripe.ErrorTypeCard {
			return http.StatusPaymentRequired, body
		}
		if stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 {
			return stripeErr.HTTPStatusCode, body
		}
		return http.StatusBadGateway, body
	}

	return http.StatusBadGateway, ErrorBody{Error: "failed to create intent", Code: string(paymentsheet.ErrCodeAPIError)}
}

// WriteError writes the error response for err.
func WriteError(w http.ResponseWriter, err error) {
	status, body := ErrorResponse(err)
	WriteJSON(w, status, body)
}
