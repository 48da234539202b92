package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"github.com/mark3labs/paymentsheet-go"
)

// StripeIntentCreator creates intents with a secret key. With server-side
// confirmation enabled the intent is confirmed on creation, so the client
// only has to handle a next action if one is required.
type StripeIntentCreator struct {
	api       *client.API
	backends  *stripe.Backends
	confirm   bool
	returnURL string
	logger    *slog.Logger
	now       func() time.Time
}

// CreatorOption configures a StripeIntentCreator.
type CreatorOption func(*StripeIntentCreator) error

// WithServerSideConfirmation confirms intents on creation. returnURL is used
// for redirect-based payment methods unless the request carries its own.
func WithServerSideConfirmation(returnURL string) CreatorOption {
	return func(c *StripeIntentCreator) error {
		c.confirm = true
		c.returnURL = returnURL
		return nil
	}
}

// WithBackends overrides the stripe-go backends, e.g. to point at a test server.
func WithBackends(backends *stripe.Backends) CreatorOption {
	return func(c *StripeIntentCreator) error {
		if backends == nil {
			return fmt.Errorf("backends cannot be nil")
		}
		c.backends = backends
		return nil
	}
}

// WithCreatorLogger sets the logger.
func WithCreatorLogger(logger *slog.Logger) CreatorOption {
	return func(c *StripeIntentCreator) error {
		c.logger = logger
		return nil
	}
}

// NewStripeIntentCreator creates an intent creator authenticated with a secret key.
func NewStripeIntentCreator(secretKey string, opts ...CreatorOption) (*StripeIntentCreator, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key cannot be empty")
	}

	c := &StripeIntentCreator{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	// A nil backends value selects the default API hosts.
	c.api = client.New(secretKey, c.backends)
	return c, nil
}

// CreateIntent implements IntentCreator.
func (c *StripeIntentCreator) CreateIntent(ctx context.Context, req *CreateIntentRequest, mode paymentsheet.Mode) (*CreateIntentResponse, error) {
	switch m := mode.(type) {
	case *paymentsheet.PaymentMode:
		return c.createPaymentIntent(ctx, req, m)
	case *paymentsheet.SetupMode:
		return c.createSetupIntent(ctx, req, m)
	default:
		return nil, fmt.Errorf("%w: unsupported mode %T", paymentsheet.ErrInvalidIntentConfiguration, mode)
	}
}

func (c *StripeIntentCreator) createPaymentIntent(ctx context.Context, req *CreateIntentRequest, mode *paymentsheet.PaymentMode) (*CreateIntentResponse, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(mode.Amount),
		Currency:      stripe.String(mode.Currency),
		PaymentMethod: stripe.String(req.PaymentMethodID),
	}
	params.Context = ctx

	if len(req.PaymentMethodTypes) > 0 {
		params.PaymentMethodTypes = stripe.StringSlice(req.PaymentMethodTypes)
	} else {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		}
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	if req.OnBehalfOf != "" {
		params.OnBehalfOf = stripe.String(req.OnBehalfOf)
	}
	if mode.CaptureMethod != "" {
		params.CaptureMethod = stripe.String(string(mode.CaptureMethod))
	}

	// "none" is never sent top-level. The per-type entry carries the resolved
	// value so it cannot reopen or override what the checkbox decided.
	pmType := paymentsheet.PaymentMethodType(req.PaymentMethodType)
	sfu := req.EffectiveSetupFutureUsage(mode)
	if sfu.Saves() {
		params.SetupFutureUsage = stripe.String(string(sfu))
	}
	if pmType != "" && (req.ShouldSavePaymentMethod || hasTypeOverride(mode, pmType)) {
		params.AddExtra(fmt.Sprintf("payment_method_options[%s][setup_future_usage]", pmType), string(sfu))
	}

	if c.confirm {
		params.Confirm = stripe.Bool(true)
		if returnURL := c.returnURLFor(req); returnURL != "" {
			params.ReturnURL = stripe.String(returnURL)
		}
		if mandate := c.mandateFor(ctx, pmType, sfu); mandate != nil {
			params.MandateData = paymentIntentMandate(mandate)
		}
	}

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("payment intent created", "intent", pi.ID, "status", pi.Status, "confirmed", c.confirm)
	return &CreateIntentResponse{
		ClientSecret: pi.ClientSecret,
		IntentID:     pi.ID,
		Status:       string(pi.Status),
	}, nil
}

func (c *StripeIntentCreator) createSetupIntent(ctx context.Context, req *CreateIntentRequest, mode *paymentsheet.SetupMode) (*CreateIntentResponse, error) {
	params := &stripe.SetupIntentParams{
		PaymentMethod: stripe.String(req.PaymentMethodID),
	}
	params.Context = ctx

	pmType := paymentsheet.PaymentMethodType(req.PaymentMethodType)
	usage := req.EffectiveSetupFutureUsage(mode)
	if usage.Saves() {
		params.Usage = stripe.String(string(usage))
	}

	if len(req.PaymentMethodTypes) > 0 {
		params.PaymentMethodTypes = stripe.StringSlice(req.PaymentMethodTypes)
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	if req.OnBehalfOf != "" {
		params.OnBehalfOf = stripe.String(req.OnBehalfOf)
	}

	if c.confirm {
		params.Confirm = stripe.Bool(true)
		if returnURL := c.returnURLFor(req); returnURL != "" {
			params.ReturnURL = stripe.String(returnURL)
		}
		if mandate := c.mandateFor(ctx, pmType, usage); mandate != nil {
			params.MandateData = setupIntentMandate(mandate)
		}
	}

	si, err := c.api.SetupIntents.New(params)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("setup intent created", "intent", si.ID, "status", si.Status, "confirmed", c.confirm)
	return &CreateIntentResponse{
		ClientSecret: si.ClientSecret,
		IntentID:     si.ID,
		Status:       string(si.Status),
	}, nil
}

// mandateFor synthesizes the mandate a server-side confirmation needs,
// accepted with the client info recorded in ctx.
func (c *StripeIntentCreator) mandateFor(ctx context.Context, pmType paymentsheet.PaymentMethodType, sfu paymentsheet.SetupFutureUsage) *paymentsheet.MandateData {
	return paymentsheet.RequiresMandate(pmType, sfu, nil, mandateContext(ctx, c.now))
}

func (c *StripeIntentCreator) returnURLFor(req *CreateIntentRequest) string {
	if req.ReturnURL != "" {
		return req.ReturnURL
	}
	return c.returnURL
}
