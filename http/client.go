package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mark3labs/paymentsheet-go"
)

// ErrBackendRejected is returned when the merchant backend answers with an error status.
var ErrBackendRejected = errors.New("merchant backend rejected the request")

// BackendError is the error returned for a non-2xx response from the merchant backend.
type BackendError struct {
	StatusCode int
	Body       ErrorResponse
}

func (e *BackendError) Error() string {
	if e.Body.Error == "" {
		return fmt.Sprintf("%s: status %d", ErrBackendRejected, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrBackendRejected, e.StatusCode, e.Body.Error)
}

// Is makes errors.Is(err, ErrBackendRejected) match.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackendRejected
}

// AuthorizationProvider returns an Authorization header value for each
// request. Useful for tokens that need to be refreshed.
type AuthorizationProvider func(ctx context.Context) (string, error)

// MerchantClient calls the merchant backend's intent creation endpoint.
type MerchantClient struct {
	client                *resty.Client
	authorizationProvider AuthorizationProvider
	logger                *slog.Logger
}

// ClientOption configures a MerchantClient.
type ClientOption func(*MerchantClient) error

// WithHTTPClient sets a custom underlying HTTP client. It replaces the
// client configured so far, so pass it before the other options.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *MerchantClient) error {
		if httpClient == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		baseURL := c.client.BaseURL
		c.client = resty.NewWithClient(httpClient).SetBaseURL(baseURL)
		return nil
	}
}

// WithTimeout bounds each request.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *MerchantClient) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: timeout must be positive", paymentsheet.ErrInvalidTimeout)
		}
		c.client.SetTimeout(timeout)
		return nil
	}
}

// WithAuthorization sets a static Authorization header value,
// e.g. "Bearer your-api-key".
func WithAuthorization(value string) ClientOption {
	return func(c *MerchantClient) error {
		c.client.SetHeader("Authorization", value)
		return nil
	}
}

// WithAuthorizationProvider sets a provider for the Authorization header.
// It takes precedence over WithAuthorization.
func WithAuthorizationProvider(provider AuthorizationProvider) ClientOption {
	return func(c *MerchantClient) error {
		c.authorizationProvider = provider
		return nil
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *MerchantClient) error {
		c.logger = logger
		return nil
	}
}

// NewMerchantClient creates a client for the backend at baseURL.
func NewMerchantClient(baseURL string, opts ...ClientOption) (*MerchantClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	c := &MerchantClient{
		client: resty.New().SetBaseURL(baseURL).SetTimeout(paymentsheet.DefaultTimeouts.ConfirmTimeout),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// CreateIntent posts req to the backend and returns the created intent.
func (c *MerchantClient) CreateIntent(ctx context.Context, req *CreateIntentRequest) (*CreateIntentResponse, error) {
	var result CreateIntentResponse
	var errBody ErrorResponse

	r := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&result).
		SetError(&errBody)

	if c.authorizationProvider != nil {
		auth, err := c.authorizationProvider(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get authorization: %w", err)
		}
		r.SetHeader("Authorization", auth)
	}

	resp, err := r.Post(IntentsPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", paymentsheet.ErrNetworkError, err)
	}

	if resp.IsError() {
		c.logger.Warn("merchant backend rejected intent request", "status", resp.StatusCode(), "code", errBody.Code)
		return nil, &BackendError{StatusCode: resp.StatusCode(), Body: errBody}
	}
	if result.ClientSecret == "" {
		return nil, fmt.Errorf("%w: response has no client secret", ErrBackendRejected)
	}

	return &result, nil
}

// ConfirmHandler returns a paymentsheet.ConfirmHandler that creates the
// intent described by config through the backend. config is read at call
// time, so later changes to it are picked up:
//
//	config := &paymentsheet.IntentConfiguration{Mode: mode}
//	config.ConfirmHandler = client.ConfirmHandler(config, customerID)
func (c *MerchantClient) ConfirmHandler(config *paymentsheet.IntentConfiguration, customerID string) paymentsheet.ConfirmHandler {
	return func(ctx context.Context, paymentMethod paymentsheet.PaymentMethodReference, shouldSave bool) (string, error) {
		req, err := NewCreateIntentRequest(config, paymentMethod, shouldSave)
		if err != nil {
			return "", err
		}
		req.CustomerID = customerID

		resp, err := c.CreateIntent(ctx, req)
		if err != nil {
			return "", err
		}
		c.logger.Debug("merchant backend created intent", "intent", resp.IntentID, "status", resp.Status)
		return resp.ClientSecret, nil
	}
}
