package stripeapi

import (
	"encoding/json"

	"github.com/stripe/stripe-go/v74"

	"github.com/mark3labs/paymentsheet-go"
)

// sdkAction is the part of use_stripe_sdk the typed structs do not expose.
type sdkAction struct {
	NextAction struct {
		UseStripeSDK struct {
			Type string `json:"type"`
		} `json:"use_stripe_sdk"`
	} `json:"next_action"`
}

func challengeType(resource stripe.APIResource) string {
	if resource.LastResponse == nil || len(resource.LastResponse.RawJSON) == 0 {
		return ""
	}
	var a sdkAction
	if err := json.Unmarshal(resource.LastResponse.RawJSON, &a); err != nil {
		return ""
	}
	return a.NextAction.UseStripeSDK.Type
}

func fromPaymentIntent(pi *stripe.PaymentIntent) *paymentsheet.IntentStatusResponse {
	resp := &paymentsheet.IntentStatusResponse{
		ID:           pi.ID,
		Kind:         paymentsheet.IntentKindPayment,
		ClientSecret: pi.ClientSecret,
		Status:       paymentsheet.IntentStatus(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}

	if pi.PaymentMethod != nil {
		resp.PaymentMethod = &paymentsheet.PaymentMethodReference{
			ID:   pi.PaymentMethod.ID,
			Type: paymentsheet.PaymentMethodType(pi.PaymentMethod.Type),
		}
	}

	if na := pi.NextAction; na != nil {
		action := &paymentsheet.NextAction{Type: paymentsheet.NextActionType(na.Type)}
		if na.RedirectToURL != nil {
			action.RedirectURL = na.RedirectToURL.URL
			action.ReturnURL = na.RedirectToURL.ReturnURL
		}
		if na.VerifyWithMicrodeposits != nil {
			action.HostedVerificationURL = na.VerifyWithMicrodeposits.HostedVerificationURL
			action.MicrodepositType = string(na.VerifyWithMicrodeposits.MicrodepositType)
			action.MicrodepositArrivalDate = na.VerifyWithMicrodeposits.ArrivalDate
		}
		if action.Type == paymentsheet.NextActionUseSDK {
			action.ChallengeType = challengeType(pi.APIResource)
		}
		resp.NextAction = action
	}

	resp.LastError = fromStripeError(pi.LastPaymentError)
	return resp
}

func fromSetupIntent(si *stripe.SetupIntent) *paymentsheet.IntentStatusResponse {
	resp := &paymentsheet.IntentStatusResponse{
		ID:           si.ID,
		Kind:         paymentsheet.IntentKindSetup,
		ClientSecret: si.ClientSecret,
		Status:       paymentsheet.IntentStatus(si.Status),
	}

	if si.PaymentMethod != nil {
		resp.PaymentMethod = &paymentsheet.PaymentMethodReference{
			ID:   si.PaymentMethod.ID,
			Type: paymentsheet.PaymentMethodType(si.PaymentMethod.Type),
		}
	}

	if na := si.NextAction; na != nil {
		action := &paymentsheet.NextAction{Type: paymentsheet.NextActionType(na.Type)}
		if na.RedirectToURL != nil {
			action.RedirectURL = na.RedirectToURL.URL
			action.ReturnURL = na.RedirectToURL.ReturnURL
		}
		if na.VerifyWithMicrodeposits != nil {
			action.HostedVerificationURL = na.VerifyWithMicrodeposits.HostedVerificationURL
			action.MicrodepositType = string(na.VerifyWithMicrodeposits.MicrodepositType)
			action.MicrodepositArrivalDate = na.VerifyWithMicrodeposits.ArrivalDate
		}
		if action.Type == paymentsheet.NextActionUseSDK {
			action.ChallengeType = challengeType(si.APIResource)
		}
		resp.NextAction = action
	}

	resp.LastError = fromStripeError(si.LastSetupError)
	return resp
}

func fromStripeError(e *stripe.Error) *paymentsheet.APIError {
	if e == nil {
		return nil
	}
	return &paymentsheet.APIError{
		Type:        string(e.Type),
		Code:        string(e.Code),
		DeclineCode: string(e.DeclineCode),
		Param:       e.Param,
		Message:     e.Msg,
	}
}
