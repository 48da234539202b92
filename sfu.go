package paymentsheet

// ResolveEffectiveSFU computes the save intent sent with a confirmation.
//
// Signals are applied in priority order, highest first:
//  1. The customer checked "save" on a new payment method: off_session.
//  2. A per-payment-method-type override in payment mode, including "none".
//  3. The top-level SetupFutureUsage of the mode.
//  4. Otherwise absent ("").
//
// An unchecked box is not an opinion and falls through to 2 and 3. A nil
// per-type map also falls through to 3.
func ResolveEffectiveSFU(confirmType ConfirmPaymentMethodType, paymentMethodType PaymentMethodType, intentConfig *IntentConfiguration) SetupFutureUsage {
	if n, ok := confirmType.(*NewConfirmType); ok && n.ShouldSave {
		return SetupFutureUsageOffSession
	}

	if intentConfig == nil {
		return ""
	}

	switch mode := intentConfig.Mode.(type) {
	case *PaymentMode:
		if mode.PaymentMethodOptions != nil {
			if v, ok := mode.PaymentMethodOptions.SetupFutureUsageValues[paymentMethodType]; ok {
				return v
			}
		}
		return mode.SetupFutureUsage
	case *SetupMode:
		return mode.SetupFutureUsage
	default:
		return ""
	}
}

// IntentConfigurationFor returns the configuration SFU and mandate resolution
// run against. Created intents are described by what the server reported.
func IntentConfigurationFor(intent Intent) *IntentConfiguration {
	switch in := intent.(type) {
	case *DeferredIntent:
		return in.Configuration
	case *PaymentIntent:
		return &IntentConfiguration{Mode: &PaymentMode{
			Amount:           in.Amount,
			Currency:         in.Currency,
			SetupFutureUsage: in.SetupFutureUsage,
			CaptureMethod:    in.CaptureMethod,
		}}
	case *SetupIntent:
		// Setup intents always save for merchant-initiated reuse.
		return &IntentConfiguration{Mode: &SetupMode{SetupFutureUsage: SetupFutureUsageOffSession}}
	default:
		return nil
	}
}
