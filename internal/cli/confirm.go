package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/paymentsheet-go"
	"github.com/mark3labs/paymentsheet-go/challenge"
	"github.com/mark3labs/paymentsheet-go/confirmation"
	httpps "github.com/mark3labs/paymentsheet-go/http"
	"github.com/mark3labs/paymentsheet-go/microdeposit"
	"github.com/mark3labs/paymentsheet-go/nextaction"
	"github.com/mark3labs/paymentsheet-go/stripeapi"
)

// errConfirmationCanceled is returned when the customer or a signal ended the confirmation.
var errConfirmationCanceled = errors.New("confirmation canceled")

// confirmOutput is printed when a confirmation ends.
type confirmOutput struct {
	Result       string                `json:"result"`
	IntentID     string                `json:"intentId,omitempty"`
	IntentStatus string                `json:"intentStatus,omitempty"`
	Error        string                `json:"error,omitempty"`
	Microdeposit *microdeposit.Session `json:"microdeposit,omitempty"`
}

func newConfirmCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm an intent with a payment method",
		Long: `Confirm an existing intent (--client-secret) or a deferred intent created
through a merchant backend (--backend-url with --mode, --amount, --currency).

The payment method is one of:
  --payment-method pm_...        a saved payment method
  --card-token tok_...           a tokenized card
  --us-bank-account ROUTING:ACCT a US bank account verified with microdeposits`,
		Example: `  paymentsheet confirm --client-secret pi_123_secret_abc --payment-method pm_card_visa
  paymentsheet confirm --backend-url http://localhost:4242 --mode payment --amount 1000 --currency usd --card-token tok_visa --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConfirm(cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("client-secret", "", "client secret of an existing payment or setup intent")
	flags.String("backend-url", "", "merchant backend that creates deferred intents")
	flags.String("mode", httpps.ModePayment, "deferred intent mode: payment or setup")
	flags.Int64("amount", 0, "deferred payment amount in the smallest currency unit")
	flags.String("currency", "", "deferred intent currency")
	flags.String("setup-future-usage", "", "deferred intent setup_future_usage")
	flags.String("customer", "", "customer the payment method belongs to")

	flags.String("payment-method", "", "saved payment method id")
	flags.String("payment-method-type", string(paymentsheet.PaymentMethodTypeCard), "type of the saved payment method")
	flags.String("card-token", "", "card token to create a payment method from")
	flags.String("us-bank-account", "", "US bank account as ROUTING:ACCOUNT")
	flags.String("name", "", "billing name")
	flags.String("email", "", "billing email")
	flags.Bool("save", false, "save the new payment method for future payments")

	flags.String("merchant-name", "", "merchant display name")
	flags.String("return-url", "", "return URL for redirect-based payment methods")
	flags.Bool("no-browser", false, "print redirect URLs instead of opening a browser")
	flags.String("captcha-token", "", "passive captcha token to attach")
	flags.String("attestation-key", "", "PEM file with the device attestation key")
	flags.String("attestation-key-id", "", "id of the registered device attestation key")
	flags.String("app-id", "", "application id for device attestation")

	return cmd
}

func (a *app) runConfirm(cmd *cobra.Command) error {
	v := a.v

	client, err := a.paymentsClient()
	if err != nil {
		return err
	}

	option, err := paymentOptionFromFlags(v.GetString("payment-method"), v.GetString("payment-method-type"),
		v.GetString("card-token"), v.GetString("us-bank-account"), &paymentsheet.BillingDetails{
			Name:  v.GetString("name"),
			Email: v.GetString("email"),
		}, v.GetBool("save"))
	if err != nil {
		return err
	}

	intent, err := a.intentFromFlags()
	if err != nil {
		return err
	}

	manager, err := microdeposit.NewManager(client, microdeposit.DefaultConfig, microdeposit.WithLogger(a.logger))
	if err != nil {
		return err
	}

	tokens, err := a.tokenFetcher()
	if err != nil {
		return err
	}

	var session *microdeposit.Session
	orchestrator, err := confirmation.New(client, intent,
		confirmation.WithConfiguration(&paymentsheet.Configuration{
			MerchantDisplayName: v.GetString("merchant-name"),
			ReturnURL:           v.GetString("return-url"),
			CustomerID:          v.GetString("customer"),
		}),
		confirmation.WithNextActionHandlers(
			nextaction.NewRedirectHandler(a.opener(cmd.OutOrStdout()), nextaction.WithLogger(a.logger)),
			&microdeposit.Handler{Manager: manager, Notify: func(ctx context.Context, s *microdeposit.Session) error {
				session = s
				a.logger.Info("microdeposit verification started", "session", s.ID, "arrives_at", s.ArrivesAt, "url", s.HostedVerificationURL)
				return nil
			}},
		),
		confirmation.WithTokenFetcher(tokens),
		confirmation.WithPaymentCallback(func(event paymentsheet.PaymentEvent) {
			a.logger.Debug("payment event", "type", event.Type, "intent", event.IntentID, "status", event.Status, "duration", event.Duration)
		}),
		confirmation.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	result := orchestrator.Confirm(ctx, option)

	out := confirmOutput{Result: result.Status.String()}
	if result.Intent != nil {
		out.IntentID = result.Intent.ID
		out.IntentStatus = string(result.Intent.Status)
		out.Microdeposit = session
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}
	if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}

	switch result.Status {
	case paymentsheet.ResultFailed:
		a.reporter.CaptureResult(result, map[string]string{"command": "confirm"})
		return fmt.Errorf("confirmation failed: %w", result.Err)
	case paymentsheet.ResultCanceled:
		return errConfirmationCanceled
	}
	return nil
}

// intentFromFlags returns an existing intent for --client-secret, or a
// deferred intent created through the merchant backend.
func (a *app) intentFromFlags() (paymentsheet.Intent, error) {
	v := a.v

	if secret := v.GetString("client-secret"); secret != "" {
		kind, err := paymentsheet.IntentKindFromClientSecret(secret)
		if err != nil {
			return nil, err
		}
		if kind == paymentsheet.IntentKindSetup {
			return &paymentsheet.SetupIntent{ClientSecret: secret}, nil
		}
		return &paymentsheet.PaymentIntent{ClientSecret: secret}, nil
	}

	backendURL := v.GetString("backend-url")
	if backendURL == "" {
		return nil, fmt.Errorf("either --client-secret or --backend-url is required")
	}
	backend, err := httpps.NewMerchantClient(backendURL, httpps.WithClientLogger(a.logger))
	if err != nil {
		return nil, err
	}

	var mode paymentsheet.Mode
	switch v.GetString("mode") {
	case httpps.ModePayment:
		mode = &paymentsheet.PaymentMode{
			Amount:           v.GetInt64("amount"),
			Currency:         v.GetString("currency"),
			SetupFutureUsage: paymentsheet.SetupFutureUsage(v.GetString("setup-future-usage")),
		}
	case httpps.ModeSetup:
		mode = &paymentsheet.SetupMode{
			Currency:         v.GetString("currency"),
			SetupFutureUsage: paymentsheet.SetupFutureUsage(v.GetString("setup-future-usage")),
		}
	default:
		return nil, fmt.Errorf("unknown mode %q: expected payment or setup", v.GetString("mode"))
	}

	config := &paymentsheet.IntentConfiguration{Mode: mode}
	config.ConfirmHandler = backend.ConfirmHandler(config, v.GetString("customer"))
	return &paymentsheet.DeferredIntent{Configuration: config}, nil
}

// paymentOptionFromFlags builds the selected payment option. Exactly one
// source must be given.
func paymentOptionFromFlags(paymentMethod, paymentMethodType, cardToken, bankAccount string, billing *paymentsheet.BillingDetails, save bool) (paymentsheet.PaymentOption, error) {
	given := 0
	for _, s := range []string{paymentMethod, cardToken, bankAccount} {
		if s != "" {
			given++
		}
	}
	if given != 1 {
		return nil, fmt.Errorf("exactly one of --payment-method, --card-token or --us-bank-account is required")
	}
	if billing != nil && billing.Name == "" && billing.Email == "" {
		billing = nil
	}

	switch {
	case paymentMethod != "":
		pmType, err := paymentsheet.ParsePaymentMethodType(paymentMethodType)
		if err != nil {
			return nil, err
		}
		return &paymentsheet.SavedOption{
			PaymentMethod: paymentsheet.PaymentMethodReference{ID: paymentMethod, Type: pmType},
		}, nil

	case cardToken != "":
		return &paymentsheet.NewOption{
			Params: paymentsheet.PaymentMethodParams{
				Type:           paymentsheet.PaymentMethodTypeCard,
				BillingDetails: billing,
				Card:           &paymentsheet.CardParams{Token: cardToken},
			},
			ShouldSave: save,
		}, nil

	default:
		routing, account, ok := strings.Cut(bankAccount, ":")
		if !ok || routing == "" || account == "" {
			return nil, fmt.Errorf("invalid --us-bank-account %q: expected ROUTING:ACCOUNT", bankAccount)
		}
		if billing == nil || billing.Name == "" {
			return nil, fmt.Errorf("--name is required for US bank accounts")
		}
		return &paymentsheet.NewOption{
			Params: paymentsheet.PaymentMethodParams{
				Type:           paymentsheet.PaymentMethodTypeUSBankAccount,
				BillingDetails: billing,
				USBankAccount: &paymentsheet.USBankAccountParams{
					AccountHolderType: "individual",
					RoutingNumber:     routing,
					AccountNumber:     account,
				},
			},
			PaymentMethodOptions: &paymentsheet.PaymentMethodOptions{
				USBankAccount: &paymentsheet.USBankAccountOptions{VerificationMethod: "microdeposits"},
			},
			ShouldSave: save,
		}, nil
	}
}

// tokenFetcher collects the configured fraud signals. Nothing is fetched
// when neither a captcha token nor an attestation key is given.
func (a *app) tokenFetcher() (*challenge.Fetcher, error) {
	v := a.v

	var captcha challenge.TokenProvider
	if token := v.GetString("captcha-token"); token != "" {
		captcha = challenge.TokenProviderFunc(func(ctx context.Context) (string, error) {
			return token, nil
		})
	}

	var attestation challenge.TokenProvider
	if path := v.GetString("attestation-key"); path != "" {
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read attestation key: %w", err)
		}
		attestor, err := challenge.NewAttestor(v.GetString("attestation-key-id"), v.GetString("app-id"), string(pem))
		if err != nil {
			return nil, err
		}
		attestation = attestor
	}

	return challenge.NewFetcher(captcha, attestation, challenge.WithLogger(a.logger)), nil
}

// opener opens redirect URLs in the browser, or prints them with --no-browser.
func (a *app) opener(w io.Writer) nextaction.Opener {
	if !a.v.GetBool("no-browser") {
		return nextaction.OpenBrowser
	}
	return func(ctx context.Context, url string) error {
		_, err := fmt.Fprintf(w, "Complete the required action at:\n  %s\n", url)
		return err
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var (
	_ paymentsheet.PaymentsAPI = (*stripeapi.Client)(nil)
	_ microdeposit.Verifier    = (*stripeapi.Client)(nil)
)
