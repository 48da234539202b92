package stripeapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/form"

	"github.com/mark3labs/paymentsheet-go"
)

// MicrodepositVerification is what the customer read off their statement:
// either the two deposit amounts in cents or the descriptor code.
type MicrodepositVerification struct {
	Amounts        []int64
	DescriptorCode string
}

// VerifyMicrodeposits verifies the bank account behind an intent waiting in
// verify_with_microdeposits. It is never retried; every attempt counts
// against the customer's limit.
func (c *Client) VerifyMicrodeposits(ctx context.Context, clientSecret string, v MicrodepositVerification) (*paymentsheet.IntentStatusResponse, error) {
	kind, err := paymentsheet.IntentKindFromClientSecret(clientSecret)
	if err != nil {
		return nil, err
	}
	id, err := paymentsheet.IntentIDFromClientSecret(clientSecret)
	if err != nil {
		return nil, err
	}

	body := &form.Values{}
	body.Add("client_secret", clientSecret)
	switch {
	case v.DescriptorCode != "":
		body.Add("descriptor_code", v.DescriptorCode)
	case len(v.Amounts) > 0:
		for i, amount := range v.Amounts {
			body.Add(fmt.Sprintf("amounts[%d]", i), strconv.FormatInt(amount, 10))
		}
	default:
		return nil, paymentsheet.NewPaymentError(paymentsheet.ErrCodeValidation, "amounts or descriptor code required", paymentsheet.ErrInvalidParams)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.ConfirmTimeout)
	defer cancel()

	if kind == paymentsheet.IntentKindSetup {
		var si stripe.SetupIntent
		if err := c.call(ctx, http.MethodPost, "/v1/setup_intents/"+id+"/verify_microdeposits", body, true, &si); err != nil {
			return nil, err
		}
		return fromSetupIntent(&si), nil
	}

	var pi stripe.PaymentIntent
	if err := c.call(ctx, http.MethodPost, "/v1/payment_intents/"+id+"/verify_microdeposits", body, true, &pi); err != nil {
		return nil, err
	}
	return fromPaymentIntent(&pi), nil
}
