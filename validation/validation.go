package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/text/currency"

	"github.com/mark3labs/paymentsheet-go"
)

var (
	// connectedAccountRegex matches connected account ids ("acct_" followed by alphanumerics)
	connectedAccountRegex = regexp.MustCompile(`^acct_[A-Za-z0-9]+$`)

	validate = newValidator()
)

type paymentModeRules struct {
	Amount           int64  `validate:"gt=0"`
	Currency         string `validate:"required,currency"`
	SetupFutureUsage string `validate:"sfu"`
	CaptureMethod    string `validate:"omitempty,oneof=automatic automatic_async manual"`
}

type setupModeRules struct {
	Currency         string `validate:"omitempty,currency"`
	SetupFutureUsage string `validate:"required,sfu"`
}

type configurationRules struct {
	ReturnURL string `validate:"omitempty,url"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return ValidateCurrency(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("sfu", func(fl validator.FieldLevel) bool {
		return paymentsheet.SetupFutureUsage(fl.Field().String()).Valid()
	})
	return v
}

// ValidateAmount validates that an amount in minor units is positive.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be greater than 0, got: %d", amount)
	}
	return nil
}

// ValidateCurrency validates a three-letter ISO 4217 code in either case.
func ValidateCurrency(code string) error {
	if code == "" {
		return fmt.Errorf("currency cannot be empty")
	}
	if len(code) != 3 {
		return fmt.Errorf("invalid currency format: %s (expected 3 letters)", code)
	}
	if _, err := currency.ParseISO(strings.ToUpper(code)); err != nil {
		return fmt.Errorf("unknown currency: %s", code)
	}
	return nil
}

// ValidateOnBehalfOf validates an optional connected account id.
func ValidateOnBehalfOf(account string) error {
	if account == "" {
		return nil
	}
	if !connectedAccountRegex.MatchString(account) {
		return fmt.Errorf("invalid connected account: %s (expected acct_ followed by alphanumerics)", account)
	}
	return nil
}

// ValidateIntentConfiguration checks a deferred intent configuration before
// any network call. All problems are reported together, wrapped in
// paymentsheet.ErrInvalidIntentConfiguration.
func ValidateIntentConfiguration(config *paymentsheet.IntentConfiguration) error {
	if config == nil {
		return fmt.Errorf("%w: configuration cannot be nil", paymentsheet.ErrInvalidIntentConfiguration)
	}

	var result *multierror.Error
	if err := modeErrors(config.Mode); err != nil {
		result = multierror.Append(result, err.Errors...)
	}

	for _, t := range config.PaymentMethodTypes {
		if _, err := paymentsheet.ParsePaymentMethodType(t); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := ValidateOnBehalfOf(config.OnBehalfOf); err != nil {
		result = multierror.Append(result, err)
	}

	if config.ConfirmHandler == nil {
		result = multierror.Append(result, paymentsheet.ErrMissingConfirmHandler)
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", paymentsheet.ErrInvalidIntentConfiguration, err)
	}
	return nil
}

// ValidateMode checks a payment or setup mode on its own, e.g. one received
// by a merchant backend.
func ValidateMode(mode paymentsheet.Mode) error {
	if err := modeErrors(mode); err != nil {
		return fmt.Errorf("%w: %w", paymentsheet.ErrInvalidIntentConfiguration, err)
	}
	return nil
}

func modeErrors(m paymentsheet.Mode) *multierror.Error {
	var result *multierror.Error

	switch mode := m.(type) {
	case *paymentsheet.PaymentMode:
		result = appendStructErrors(result, "payment mode", paymentModeRules{
			Amount:           mode.Amount,
			Currency:         mode.Currency,
			SetupFutureUsage: string(mode.SetupFutureUsage),
			CaptureMethod:    string(mode.CaptureMethod),
		})
		if mode.PaymentMethodOptions != nil {
			for pmType, sfu := range mode.PaymentMethodOptions.SetupFutureUsageValues {
				if _, err := paymentsheet.ParsePaymentMethodType(string(pmType)); err != nil {
					result = multierror.Append(result, fmt.Errorf("payment method options: %w", err))
				}
				if !sfu.Valid() || !sfu.IsSet() {
					result = multierror.Append(result, fmt.Errorf("payment method options: invalid setup_future_usage %q for %s", sfu, pmType))
				}
			}
		}
	case *paymentsheet.SetupMode:
		result = appendStructErrors(result, "setup mode", setupModeRules{
			Currency:         mode.Currency,
			SetupFutureUsage: string(mode.SetupFutureUsage),
		})
		if mode.SetupFutureUsage == paymentsheet.SetupFutureUsageNone {
			result = multierror.Append(result, fmt.Errorf("setup mode: setup_future_usage cannot be none"))
		}
	case nil:
		result = multierror.Append(result, fmt.Errorf("mode cannot be nil"))
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported mode %T", mode))
	}
	return result
}

// ValidateConfiguration checks the merchant configuration.
func ValidateConfiguration(config *paymentsheet.Configuration) error {
	if config == nil {
		return nil
	}

	var result *multierror.Error
	result = appendStructErrors(result, "configuration", configurationRules{ReturnURL: config.ReturnURL})

	if config.Shipping != nil {
		if config.Shipping.Name == "" {
			result = multierror.Append(result, fmt.Errorf("shipping: name cannot be empty"))
		}
		if config.Shipping.Address.Line1 == "" {
			result = multierror.Append(result, fmt.Errorf("shipping: address line1 cannot be empty"))
		}
	}

	return result.ErrorOrNil()
}

// ValidateConfirmationParams checks a built payload before it is sent.
func ValidateConfirmationParams(params *paymentsheet.ConfirmationTokenParams) error {
	if params == nil {
		return fmt.Errorf("%w: params cannot be nil", paymentsheet.ErrInvalidParams)
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if !params.SetupFutureUsage.Valid() {
		return fmt.Errorf("%w: invalid setup_future_usage %q", paymentsheet.ErrInvalidParams, params.SetupFutureUsage)
	}
	if params.SetAsDefaultPaymentMethod != nil && !*params.SetAsDefaultPaymentMethod {
		return fmt.Errorf("%w: set_as_default_payment_method must be true or omitted", paymentsheet.ErrInvalidParams)
	}
	return nil
}

func appendStructErrors(result *multierror.Error, prefix string, rules interface{}) *multierror.Error {
	err := validate.Struct(rules)
	if err == nil {
		return result
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return multierror.Append(result, fmt.Errorf("%s: %w", prefix, err))
	}
	for _, fe := range fieldErrs {
		result = multierror.Append(result, fmt.Errorf("%s: %s failed %q (value %v)", prefix, fe.Field(), fe.Tag(), fe.Value()))
	}
	return result
}
