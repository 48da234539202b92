// Package stripeapi implements paymentsheet.PaymentsAPI against the Stripe
// REST API using the publishable key and intent client secrets, the way a
// client-side integration confirms intents.
package stripeapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/form"

	"github.com/mark3labs/paymentsheet-go"
	"github.com/mark3labs/paymentsheet-go/encoding"
	"github.com/mark3labs/paymentsheet-go/retry"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.stripe.com"

// Client talks to the payments API. It is safe for concurrent use.
type Client struct {
	publishableKey string
	stripeAccount  string
	baseURL        string
	httpClient     *http.Client
	backend        stripe.Backend
	logger         *slog.Logger
	timeouts       paymentsheet.TimeoutConfig
	retrieveRetry  retry.Config
	idempotencyKey func() string
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// WithBaseURL points the client at another API host, e.g. a test server.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) error {
		if url == "" {
			return fmt.Errorf("base URL cannot be empty")
		}
		c.baseURL = url
		return nil
	}
}

// WithHTTPClient sets the HTTP client used by the backend.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) error {
		c.httpClient = client
		return nil
	}
}

// WithStripeAccount makes every call on behalf of a connected account.
func WithStripeAccount(account string) ClientOption {
	return func(c *Client) error {
		c.stripeAccount = account
		return nil
	}
}

// WithLogger sets the logger for the client and its backend.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithTimeouts sets per-call timeouts.
func WithTimeouts(timeouts paymentsheet.TimeoutConfig) ClientOption {
	return func(c *Client) error {
		if err := timeouts.Validate(); err != nil {
			return err
		}
		c.timeouts = timeouts
		return nil
	}
}

// WithRetrieveRetry sets the backoff used when retrieving an intent fails
// with a network error. Confirm calls are never retried.
func WithRetrieveRetry(config retry.Config) ClientOption {
	return func(c *Client) error {
		c.retrieveRetry = config
		return nil
	}
}

// WithIdempotencyKeyFunc overrides how idempotency keys are generated.
func WithIdempotencyKeyFunc(fn func() string) ClientOption {
	return func(c *Client) error {
		c.idempotencyKey = fn
		return nil
	}
}

// NewClient creates a client authenticated with a publishable key.
func NewClient(publishableKey string, opts ...ClientOption) (*Client, error) {
	if publishableKey == "" {
		return nil, fmt.Errorf("publishable key cannot be empty")
	}

	c := &Client{
		publishableKey: publishableKey,
		baseURL:        DefaultBaseURL,
		httpClient:     &http.Client{},
		logger:         slog.Default(),
		timeouts:       paymentsheet.DefaultTimeouts,
		retrieveRetry:  retry.DefaultConfig,
		idempotencyKey: uuid.NewString,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.backend = stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(c.baseURL),
		HTTPClient:        c.httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &leveledLogger{logger: c.logger},
	})

	return c, nil
}

// ConfirmIntent implements paymentsheet.PaymentsAPI.
func (c *Client) ConfirmIntent(ctx context.Context, kind paymentsheet.IntentKind, clientSecret string, params *paymentsheet.ConfirmationTokenParams) (*paymentsheet.IntentStatusResponse, error) {
	id, err := paymentsheet.IntentIDFromClientSecret(clientSecret)
	if err != nil {
		return nil, err
	}

	body, err := encoding.EncodeConfirmParams(kind, params)
	if err != nil {
		return nil, paymentsheet.NewPaymentError(paymentsheet.ErrCodeValidation, "invalid confirmation params", err)
	}
	body.Add("client_secret", clientSecret)
	body.Add("expand[0]", "payment_method")

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.ConfirmTimeout)
	defer cancel()

	c.logger.Debug("confirming intent", "kind", kind, "intent", id)

	switch kind {
	case paymentsheet.IntentKindPayment:
		var pi stripe.PaymentIntent
		if err := c.call(ctx, http.MethodPost, "/v1/payment_intents/"+id+"/confirm", body, true, &pi); err != nil {
			return nil, err
		}
		return fromPaymentIntent(&pi), nil
	case paymentsheet.IntentKindSetup:
		var si stripe.SetupIntent
		if err := c.call(ctx, http.MethodPost, "/v1/setup_intents/"+id+"/confirm", body, true, &si); err != nil {
			return nil, err
		}
		return fromSetupIntent(&si), nil
	default:
		return nil, fmt.Errorf("%w: unknown intent kind %q", paymentsheet.ErrInvalidIntent, kind)
	}
}

// RetrieveIntent implements paymentsheet.PaymentsAPI. Network errors are
// retried with backoff; API errors are returned immediately.
func (c *Client) RetrieveIntent(ctx context.Context, clientSecret string) (*paymentsheet.IntentStatusResponse, error) {
	kind, err := paymentsheet.IntentKindFromClientSecret(clientSecret)
	if err != nil {
		return nil, err
	}
	id, err := paymentsheet.IntentIDFromClientSecret(clientSecret)
	if err != nil {
		return nil, err
	}

	return retry.WithRetry(ctx, c.retrieveRetry, isNetworkError, func() (*paymentsheet.IntentStatusResponse, error) {
		return c.retrieveOnce(ctx, kind, id, clientSecret)
	})
}

func (c *Client) retrieveOnce(ctx context.Context, kind paymentsheet.IntentKind, id, clientSecret string) (*paymentsheet.IntentStatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.RetrieveTimeout)
	defer cancel()

	query := &form.Values{}
	query.Add("client_secret", clientSecret)
	query.Add("expand[0]", "payment_method")

	if kind == paymentsheet.IntentKindSetup {
		var si stripe.SetupIntent
		if err := c.call(ctx, http.MethodGet, "/v1/setup_intents/"+id, query, false, &si); err != nil {
			return nil, err
		}
		return fromSetupIntent(&si), nil
	}

	var pi stripe.PaymentIntent
	if err := c.call(ctx, http.MethodGet, "/v1/payment_intents/"+id, query, false, &pi); err != nil {
		return nil, err
	}
	return fromPaymentIntent(&pi), nil
}

// CreatePaymentMethod implements paymentsheet.PaymentsAPI.
func (c *Client) CreatePaymentMethod(ctx context.Context, params *paymentsheet.PaymentMethodParams) (*paymentsheet.PaymentMethodReference, error) {
	body, err := encoding.EncodePaymentMethodParams(params)
	if err != nil {
		return nil, paymentsheet.NewPaymentError(paymentsheet.ErrCodeValidation, "invalid payment method params", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.ConfirmTimeout)
	defer cancel()

	var pm stripe.PaymentMethod
	if err := c.call(ctx, http.MethodPost, "/v1/payment_methods", body, true, &pm); err != nil {
		return nil, err
	}

	return &paymentsheet.PaymentMethodReference{ID: pm.ID, Type: paymentsheet.PaymentMethodType(pm.Type)}, nil
}

func (c *Client) call(ctx context.Context, method, path string, body *form.Values, idempotent bool, v stripe.LastResponseSetter) error {
	params := &stripe.Params{Context: ctx}
	if idempotent {
		params.IdempotencyKey = stripe.String(c.idempotencyKey())
	}
	if c.stripeAccount != "" {
		params.StripeAccount = stripe.String(c.stripeAccount)
	}

	err := c.backend.CallRaw(method, path, c.publishableKey, body, params, v)
	if err == nil {
		return nil
	}
	return c.mapError(ctx, path, err)
}

func (c *Client) mapError(ctx context.Context, path string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		apiErr := &paymentsheet.APIError{
			Type:        string(stripeErr.Type),
			Code:        string(stripeErr.Code),
			DeclineCode: string(stripeErr.DeclineCode),
			Param:       stripeErr.Param,
			Message:     stripeErr.Msg,
			HTTPStatus:  stripeErr.HTTPStatusCode,
			RequestID:   stripeErr.RequestID,
		}
		c.logger.Warn("payments API error", "path", path, "code", apiErr.Code, "status", apiErr.HTTPStatus, "request_id", apiErr.RequestID)
		return paymentsheet.NewPaymentError(paymentsheet.ErrCodeAPIError, "payments API rejected the request", apiErr).
			WithDetails("path", path)
	}

	// Cancellation is the caller's decision, not a transport failure.
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}

	c.logger.Warn("payments API unreachable", "path", path, "error", err)
	return paymentsheet.NewPaymentError(paymentsheet.ErrCodeNetworkError, "payments API request failed",
		fmt.Errorf("%w: %w", paymentsheet.ErrNetworkError, err)).WithDetails("path", path)
}

func isNetworkError(err error) bool {
	return errors.Is(err, paymentsheet.ErrNetworkError)
}
