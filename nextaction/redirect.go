// Package nextaction provides next action handlers that need no native UI.
package nextaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/browser"

	"github.com/mark3labs/paymentsheet-go"
	"github.com/mark3labs/paymentsheet-go/retry"
)

// Opener presents a URL to the customer, e.g. by launching a browser.
type Opener func(ctx context.Context, url string) error

// DefaultPollConfig waits up to roughly ten minutes for the customer to
// finish a redirect.
var DefaultPollConfig = retry.Config{
	MaxAttempts:  120,
	InitialDelay: time.Second,
	MaxDelay:     5 * time.Second,
	Multiplier:   1.5,
}

// RedirectHandler opens redirect and hosted verification URLs and waits for
// the intent to leave requires_action by polling its status.
type RedirectHandler struct {
	open       Opener
	pollConfig retry.Config
	priority   int
	logger     *slog.Logger
}

// RedirectOption configures a RedirectHandler.
type RedirectOption func(*RedirectHandler)

// WithPollConfig sets how the intent status is polled while the customer is away.
func WithPollConfig(config retry.Config) RedirectOption {
	return func(h *RedirectHandler) {
		h.pollConfig = config
	}
}

// WithPriority sets the handler priority. Lower numbers win.
func WithPriority(priority int) RedirectOption {
	return func(h *RedirectHandler) {
		h.priority = priority
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RedirectOption {
	return func(h *RedirectHandler) {
		h.logger = logger
	}
}

// NewRedirectHandler creates a handler that presents URLs with open.
// A nil opener uses the system browser.
func NewRedirectHandler(open Opener, opts ...RedirectOption) *RedirectHandler {
	if open == nil {
		open = OpenBrowser
	}
	h := &RedirectHandler{
		open:       open,
		pollConfig: DefaultPollConfig,
		priority:   10,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CanHandle implements paymentsheet.NextActionHandler.
func (h *RedirectHandler) CanHandle(action *paymentsheet.NextAction) bool {
	return actionURL(action) != ""
}

// Priority implements paymentsheet.NextActionHandler.
func (h *RedirectHandler) Priority() int {
	return h.priority
}

// Handle implements paymentsheet.NextActionHandler. It reports success once
// the intent no longer requires action and was not sent back to
// requires_payment_method. The caller still re-verifies the final status.
func (h *RedirectHandler) Handle(ctx context.Context, action *paymentsheet.NextAction, poll paymentsheet.StatusPoller) paymentsheet.NextActionOutcome {
	target := actionURL(action)
	if target == "" {
		return paymentsheet.NextActionOutcome{Status: paymentsheet.NextActionFailed, Err: paymentsheet.ErrNoNextActionHandler}
	}

	h.logger.Info("opening next action", "type", action.Type, "url", target)
	if err := h.open(ctx, target); err != nil {
		return paymentsheet.NextActionOutcome{
			Status: paymentsheet.NextActionFailed,
			Err:    fmt.Errorf("failed to open %s: %w", action.Type, err),
		}
	}

	latest, err := retry.Poll(ctx, h.pollConfig, leftAction, func(ctx context.Context) (*paymentsheet.IntentStatusResponse, error) {
		return poll(ctx)
	})
	switch {
	case ctx.Err() != nil, errors.Is(err, retry.ErrNotSettled):
		h.logger.Info("next action abandoned", "type", action.Type)
		return paymentsheet.NextActionOutcome{Status: paymentsheet.NextActionCanceled}
	case err != nil:
		return paymentsheet.NextActionOutcome{Status: paymentsheet.NextActionFailed, Err: err}
	case latest.Status == paymentsheet.IntentStatusRequiresPaymentMethod:
		var cause error = paymentsheet.ErrNextActionFailed
		if latest.LastError != nil {
			cause = fmt.Errorf("%w: %w", paymentsheet.ErrNextActionFailed, latest.LastError)
		}
		return paymentsheet.NextActionOutcome{Status: paymentsheet.NextActionFailed, Err: cause}
	default:
		return paymentsheet.NextActionOutcome{Status: paymentsheet.NextActionSucceeded}
	}
}

func leftAction(resp *paymentsheet.IntentStatusResponse) bool {
	return resp.Status != paymentsheet.IntentStatusRequiresAction
}

func actionURL(action *paymentsheet.NextAction) string {
	if action == nil {
		return ""
	}
	switch action.Type {
	case paymentsheet.NextActionRedirectToURL:
		return action.RedirectURL
	case paymentsheet.NextActionVerifyWithMicrodeposits:
		return action.HostedVerificationURL
	}
	return ""
}

// OpenBrowser opens url in the system browser.
func OpenBrowser(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return browser.OpenURL(url)
}
