// Package confirmation drives a single payment confirmation from the
// customer's selected payment option to a terminal result.
package confirmation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/mark3labs/paymentsheet-go"
	"github.com/mark3labs/paymentsheet-go/retry"
	"github.com/mark3labs/paymentsheet-go/validation"
)

// TokenFetcher collects the fraud signals attached to a confirmation.
// *challenge.Fetcher implements it.
type TokenFetcher interface {
	Fetch(ctx context.Context) *paymentsheet.RadarOptions
}

// Orchestrator confirms one intent. It runs one confirmation at a time and,
// once a confirmation has ended, refuses every further attempt.
type Orchestrator struct {
	api           paymentsheet.PaymentsAPI
	configuration *paymentsheet.Configuration
	builder       *paymentsheet.ParamsBuilder

	handlers       []paymentsheet.NextActionHandler
	external       paymentsheet.ExternalPaymentMethodConfirmHandler
	tokens         TokenFetcher
	mandateData    *paymentsheet.MandateData
	mandateContext paymentsheet.MandateContextProvider
	session        *paymentsheet.ElementsSession
	callback       paymentsheet.PaymentCallback
	pollConfig     retry.Config
	logger         *slog.Logger
	now            func() time.Time

	machine *stateless.StateMachine

	mu      sync.Mutex
	intent  paymentsheet.Intent
	running bool
	result  *paymentsheet.Result
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithConfiguration sets the merchant configuration.
func WithConfiguration(config *paymentsheet.Configuration) Option {
	return func(o *Orchestrator) error {
		if err := validation.ValidateConfiguration(config); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		o.configuration = config
		return nil
	}
}

// WithNextActionHandlers registers handlers for customer actions.
// Multiple calls append.
func WithNextActionHandlers(handlers ...paymentsheet.NextActionHandler) Option {
	return func(o *Orchestrator) error {
		o.handlers = append(o.handlers, handlers...)
		return nil
	}
}

// WithExternalPaymentMethodHandler sets the handler for external payment methods.
func WithExternalPaymentMethodHandler(handler paymentsheet.ExternalPaymentMethodConfirmHandler) Option {
	return func(o *Orchestrator) error {
		o.external = handler
		return nil
	}
}

// WithTokenFetcher sets the source of fraud signals.
func WithTokenFetcher(fetcher TokenFetcher) Option {
	return func(o *Orchestrator) error {
		o.tokens = fetcher
		return nil
	}
}

// WithMandateData supplies explicit mandate data. It is sent unchanged
// instead of synthesized mandate data.
func WithMandateData(data *paymentsheet.MandateData) Option {
	return func(o *Orchestrator) error {
		o.mandateData = data
		return nil
	}
}

// WithMandateContext sets the provider of synthesized mandate fields.
func WithMandateContext(provider paymentsheet.MandateContextProvider) Option {
	return func(o *Orchestrator) error {
		o.mandateContext = provider
		return nil
	}
}

// WithElementsSession sets the session snapshot used for attribution and the
// set-as-default feature flag. Deferred intents carry their own snapshot,
// which takes precedence.
func WithElementsSession(session *paymentsheet.ElementsSession) Option {
	return func(o *Orchestrator) error {
		o.session = session
		return nil
	}
}

// WithPaymentCallback sets the lifecycle event callback.
func WithPaymentCallback(callback paymentsheet.PaymentCallback) Option {
	return func(o *Orchestrator) error {
		o.callback = callback
		return nil
	}
}

// WithPollConfig sets how the intent is re-verified after a next action.
func WithPollConfig(config retry.Config) Option {
	return func(o *Orchestrator) error {
		if config.MaxAttempts <= 0 {
			return fmt.Errorf("poll config: max attempts must be positive, got %d", config.MaxAttempts)
		}
		o.pollConfig = config
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		o.logger = logger
		return nil
	}
}

// New creates an orchestrator for intent.
func New(api paymentsheet.PaymentsAPI, intent paymentsheet.Intent, opts ...Option) (*Orchestrator, error) {
	if api == nil {
		return nil, fmt.Errorf("payments API cannot be nil")
	}
	if intent == nil {
		return nil, paymentsheet.ErrInvalidIntent
	}

	o := &Orchestrator{
		api:           api,
		intent:        intent,
		configuration: &paymentsheet.Configuration{},
		pollConfig:    retry.DefaultPollConfig,
		logger:        slog.Default(),
		now:           time.Now,
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	o.builder = paymentsheet.NewParamsBuilder(o.configuration, o.mandateContext)
	o.machine = newStateMachine(o.logger)
	return o, nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.machine.MustState().(State)
}

// Result returns the terminal result, or false while no confirmation has ended.
func (o *Orchestrator) Result() (paymentsheet.Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.result == nil {
		return paymentsheet.Result{}, false
	}
	return *o.result, true
}

// Confirm confirms the intent with the selected payment option. It blocks
// until the confirmation ends, including any customer action. Cancelling ctx
// ends the confirmation as canceled; a confirm call not yet sent is not sent.
//
// Once a confirmation has ended, every later call fails with
// paymentsheet.ErrAlreadyConfirmedIntent without any network call.
func (o *Orchestrator) Confirm(ctx context.Context, option paymentsheet.PaymentOption) paymentsheet.Result {
	o.mu.Lock()
	if err := o.checkMutableLocked(); err != nil {
		o.mu.Unlock()
		o.logger.Warn("confirmation rejected", "state", o.State(), "error", err)
		return paymentsheet.Failed(err, nil)
	}
	o.running = true
	intent := o.intent
	o.mu.Unlock()

	result := o.run(ctx, intent, option)

	o.mu.Lock()
	o.running = false
	o.result = &result
	o.mu.Unlock()

	return result
}

// UpdateConfiguration replaces the configuration of a deferred intent, e.g.
// after the cart total changed. It fails with
// paymentsheet.ErrAlreadyConfirmedIntent once a confirmation has ended.
func (o *Orchestrator) UpdateConfiguration(config *paymentsheet.IntentConfiguration) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.checkMutableLocked(); err != nil {
		return err
	}

	deferred, ok := o.intent.(*paymentsheet.DeferredIntent)
	if !ok {
		return fmt.Errorf("%w: only deferred intents can be reconfigured", paymentsheet.ErrInvalidIntent)
	}
	if err := validation.ValidateIntentConfiguration(config); err != nil {
		return paymentsheet.NewPaymentError(paymentsheet.ErrCodeValidation, "invalid intent configuration", err)
	}

	o.intent = &paymentsheet.DeferredIntent{
		Configuration:   config,
		ElementsSession: deferred.ElementsSession,
	}
	return nil
}

func (o *Orchestrator) checkMutableLocked() error {
	if terminal, _ := o.machine.IsInState(StateTerminal); terminal {
		return paymentsheet.NewPaymentError(
			paymentsheet.ErrCodeAlreadyConfirmedIntent,
			"confirmation already ended",
			paymentsheet.ErrAlreadyConfirmedIntent,
		)
	}
	if o.running {
		return paymentsheet.NewPaymentError(
			paymentsheet.ErrCodeConfirmationInProgress,
			"confirmation is running",
			paymentsheet.ErrConfirmationInProgress,
		)
	}
	return nil
}
