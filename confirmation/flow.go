package confirmation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/paymentsheet-go"
	"github.com/mark3labs/paymentsheet-go/retry"
	"github.com/mark3labs/paymentsheet-go/validation"
)

// attempt is the per-confirmation bookkeeping used for events and logs.
type attempt struct {
	started time.Time
	event   paymentsheet.PaymentEvent
}

// confirmRequest is what a client-side confirm call is built from.
type confirmRequest struct {
	kind          paymentsheet.IntentKind
	clientSecret  string
	confirmType   paymentsheet.ConfirmPaymentMethodType
	intentConfig  *paymentsheet.IntentConfiguration
	session       *paymentsheet.ElementsSession
	deferred      bool
	createdMethod *paymentsheet.PaymentMethodReference
}

func (o *Orchestrator) run(ctx context.Context, intent paymentsheet.Intent, option paymentsheet.PaymentOption) paymentsheet.Result {
	a := &attempt{started: o.now()}
	a.event.Deferred = isDeferred(intent)
	a.event.IntentKind = intentKind(intent)

	if err := ctx.Err(); err != nil {
		return o.finish(a, paymentsheet.Canceled(nil))
	}
	o.fire(triggerStart)

	if ext, ok := option.(*paymentsheet.ExternalOption); ok {
		a.event.IntentKind = ""
		a.event.ExternalPaymentMethodType = ext.Type
		o.emit(a, paymentsheet.PaymentEventAttempt, nil, nil)
		return o.confirmExternal(ctx, a, ext)
	}

	confirmType, err := paymentsheet.ConfirmTypeFor(option)
	if err != nil {
		o.emit(a, paymentsheet.PaymentEventAttempt, nil, nil)
		return o.finish(a, paymentsheet.Failed(
			paymentsheet.NewPaymentError(paymentsheet.ErrCodeValidation, "invalid payment option", err), nil))
	}
	a.event.PaymentMethodType = confirmType.PaymentMethodType()
	o.emit(a, paymentsheet.PaymentEventAttempt, nil, nil)

	switch in := intent.(type) {
	case *paymentsheet.DeferredIntent:
		if err := validation.ValidateIntentConfiguration(in.Configuration); err != nil {
			return o.finish(a, paymentsheet.Failed(
				paymentsheet.NewPaymentError(paymentsheet.ErrCodeValidation, "invalid intent configuration", err), nil))
		}
		return o.confirmDeferred(ctx, a, in, confirmType)

	case *paymentsheet.PaymentIntent:
		return o.confirmCreated(ctx, a, paymentsheet.IntentKindPayment, in.ClientSecret, intent, confirmType)

	case *paymentsheet.SetupIntent:
		return o.confirmCreated(ctx, a, paymentsheet.IntentKindSetup, in.ClientSecret, intent, confirmType)

	default:
		return o.finish(a, paymentsheet.Failed(
			paymentsheet.NewPaymentError(paymentsheet.ErrCodeValidation, fmt.Sprintf("unsupported intent %T", intent), paymentsheet.ErrInvalidIntent), nil))
	}
}

func (o *Orchestrator) confirmExternal(ctx context.Context, a *attempt, option *paymentsheet.ExternalOption) paymentsheet.Result {
	if o.external == nil {
		return o.finish(a, paymentsheet.Failed(
			paymentsheet.NewPaymentError(paymentsheet.ErrCodeValidation, "external payment method selected", paymentsheet.ErrNoExternalPaymentMethodHandler).
				WithDetails("type", option.Type), nil))
	}

	billing := option.BillingDetails
	if billing == nil {
		billing = o.configuration.DefaultBillingDetails
	}

	o.logger.Info("delegating external payment method", "type", option.Type)
	return o.finish(a, o.external(ctx, option.Type, billing))
}

func (o *Orchestrator) confirmCreated(
	ctx context.Context,
	a *attempt,
	kind paymentsheet.IntentKind,
	clientSecret string,
	intent paymentsheet.Intent,
	confirmType paymentsheet.ConfirmPaymentMethodType,
) paymentsheet.Result {
	secretKind, err := paymentsheet.IntentKindFromClientSecret(clientSecret)
	if err == nil && secretKind != kind {
		err = fmt.Errorf("%w: %s intent has a %s client secret", paymentsheet.ErrInvalidClientSecret, kind, secretKind)
	}
	if err != nil {
		return o.finish(a, paymentsheet.Failed(
			paymentsheet.NewPaymentError(paymentsheet.ErrCodeValidation, "invalid intent", err), nil))
	}
	if id, err := paymentsheet.IntentIDFromClientSecret(clientSecret); err == nil {
		a.event.IntentID = id
	}

	return o.confirmIntent(ctx, a, confirmRequest{
		kind:         kind,
		clientSecret: clientSecret,
		confirmType:  confirmType,
		intentConfig: paymentsheet.IntentConfigurationFor(intent),
		session:      o.session,
	})
}

// confirmDeferred creates the intent through the merchant confirm handler and
// then either confirms it client-side or adopts the server's confirmation.
func (o *Orchestrator) confirmDeferred(
	ctx context.Context,
	a *attempt,
	intent *paymentsheet.DeferredIntent,
	confirmType paymentsheet.ConfirmPaymentMethodType,
) paymentsheet.Result {
	intentConfig := intent.Configuration

	var (
		paymentMethod paymentsheet.PaymentMethodReference
		shouldSave    bool
		created       *paymentsheet.PaymentMethodReference
	)
	switch ct := confirmType.(type) {
	case *paymentsheet.SavedConfirmType:
		paymentMethod = ct.PaymentMethod
	case *paymentsheet.NewConfirmType:
		shouldSave = ct.ShouldSave
		details := ct.Params
		ref, err := await(ctx, func(ctx context.Context) (*paymentsheet.PaymentMethodReference, error) {
			return o.api.CreatePaymentMethod(ctx, &details)
		})
		if ctx.Err() != nil {
			return o.finish(a, paymentsheet.Canceled(nil))
		}
		if err == nil && (ref == nil || ref.ID == "") {
			err = paymentsheet.NewPaymentError(paymentsheet.ErrCodeUnexpectedStatus, "payment method was not created", paymentsheet.ErrUnexpectedStatus)
		}
		if err != nil {
			return o.finish(a, paymentsheet.Failed(err, nil))
		}
		paymentMethod = *ref
		created = ref
	}

	o.logger.Info("calling merchant confirm handler",
		"payment_method_type", paymentMethod.Type,
		"should_save", shouldSave)

	clientSecret, err := await(ctx, func(ctx context.Context) (string, error) {
		return intentConfig.ConfirmHandler(ctx, paymentMethod, shouldSave)
	})
	if ctx.Err() != nil {
		return o.finish(a, paymentsheet.Canceled(nil))
	}
	if err != nil {
		// Merchant errors are surfaced unchanged.
		return o.finish(a, paymentsheet.Failed(err, nil))
	}

	kind, err := paymentsheet.IntentKindFromClientSecret(clientSecret)
	if err != nil {
		return o.finish(a, paymentsheet.Failed(
			paymentsheet.NewPaymentError(paymentsheet.ErrCodeMerchantHandler, "confirm handler returned an invalid client secret", err), nil))
	}
	a.event.IntentKind = kind

	resp, err := await(ctx, func(ctx context.Context) (*paymentsheet.IntentStatusResponse, error) {
		return o.api.RetrieveIntent(ctx, clientSecret)
	})
	if ctx.Err() != nil {
		return o.finish(a, paymentsheet.Canceled(nil))
	}
	if err != nil {
		return o.finish(a, paymentsheet.Failed(err, nil))
	}
	a.event.IntentID = resp.ID

	if err := checkIntentMatches(intentConfig, kind, resp); err != nil {
		return o.finish(a, paymentsheet.Failed(err, resp))
	}

	if needsClientConfirmation(resp) {
		session := intent.ElementsSession
		if session == nil {
			session = o.session
		}
		return o.confirmIntent(ctx, a, confirmRequest{
			kind:          kind,
			clientSecret:  clientSecret,
			confirmType:   confirmType,
			intentConfig:  intentConfig,
			session:       session,
			deferred:      true,
			createdMethod: created,
		})
	}

	o.logger.Info("intent confirmed by merchant server", "intent_id", resp.ID, "status", resp.Status)
	return o.handleStatus(ctx, a, clientSecret, resp)
}

// confirmIntent builds the params and sends the one confirm call of this
// attempt. It is never retried.
func (o *Orchestrator) confirmIntent(ctx context.Context, a *attempt, req confirmRequest) paymentsheet.Result {
	var radar *paymentsheet.RadarOptions
	if o.tokens != nil {
		radar = o.tokens.Fetch(ctx)
	}

	params, err := o.builder.Build(paymentsheet.BuildRequest{
		ConfirmType:                     req.confirmType,
		IntentConfiguration:             req.intentConfig,
		ElementsSession:                 req.session,
		MandateData:                     o.mandateData,
		AllowsSetAsDefaultPaymentMethod: req.session != nil && req.session.AllowsSetAsDefaultPaymentMethod,
		Deferred:                        req.deferred,
		RadarOptions:                    radar,
		CreatedPaymentMethod:            req.createdMethod,
	})
	if err == nil {
		err = validation.ValidateConfirmationParams(params)
	}
	if err != nil {
		return o.finish(a, paymentsheet.Failed(
			paymentsheet.NewPaymentError(paymentsheet.ErrCodeValidation, "failed to build confirmation params", err), nil))
	}

	// Nothing has been sent yet, so a cancellation here suppresses the call.
	if ctx.Err() != nil {
		return o.finish(a, paymentsheet.Canceled(nil))
	}

	o.fire(triggerDispatch)
	o.logger.Info("confirming intent",
		"kind", req.kind,
		"payment_method_type", req.confirmType.PaymentMethodType(),
		"setup_future_usage", params.SetupFutureUsage,
		"mandate", params.MandateData != nil)

	resp, err := await(ctx, func(ctx context.Context) (*paymentsheet.IntentStatusResponse, error) {
		return o.api.ConfirmIntent(ctx, req.kind, req.clientSecret, params)
	})
	if ctx.Err() != nil {
		// A response arriving after cancellation is ignored.
		return o.finish(a, paymentsheet.Canceled(nil))
	}
	if err != nil {
		return o.finish(a, paymentsheet.Failed(err, nil))
	}

	return o.handleStatus(ctx, a, req.clientSecret, resp)
}

func (o *Orchestrator) handleStatus(ctx context.Context, a *attempt, clientSecret string, resp *paymentsheet.IntentStatusResponse) paymentsheet.Result {
	a.event.IntentID = resp.ID
	a.event.Status = resp.Status

	switch {
	case resp.Status.IsSuccessful():
		return o.finish(a, paymentsheet.Completed(resp))
	case resp.Status == paymentsheet.IntentStatusRequiresAction:
		return o.handleNextAction(ctx, a, clientSecret, resp)
	default:
		return o.finish(a, paymentsheet.Failed(statusError(resp), resp))
	}
}

// handleNextAction hands the action to a handler and, when the handler
// reports success, re-fetches the intent before completing. A redirect
// returning to the app is not proof of payment.
func (o *Orchestrator) handleNextAction(ctx context.Context, a *attempt, clientSecret string, resp *paymentsheet.IntentStatusResponse) paymentsheet.Result {
	handler, err := paymentsheet.SelectNextActionHandler(resp.NextAction, o.handlers)
	if err != nil {
		return o.finish(a, paymentsheet.Failed(err, resp))
	}

	o.fire(triggerRequireAction)
	o.emit(a, paymentsheet.PaymentEventRequiresAction, resp, nil)

	poll := func(ctx context.Context) (*paymentsheet.IntentStatusResponse, error) {
		return o.api.RetrieveIntent(ctx, clientSecret)
	}

	outcome := handler.Handle(ctx, resp.NextAction, poll)
	if ctx.Err() != nil {
		return o.finish(a, paymentsheet.Canceled(resp))
	}

	switch outcome.Status {
	case paymentsheet.NextActionCanceled:
		return o.finish(a, paymentsheet.Canceled(resp))
	case paymentsheet.NextActionFailed:
		cause := outcome.Err
		if cause == nil {
			cause = paymentsheet.ErrNextActionFailed
		}
		return o.finish(a, paymentsheet.Failed(
			paymentsheet.NewPaymentError(paymentsheet.ErrCodeNextAction, "next action failed", cause).
				WithDetails("type", string(resp.NextAction.Type)), resp))
	}

	if resp.NextAction.Type == paymentsheet.NextActionVerifyWithMicrodeposits {
		return o.awaitMicrodeposits(ctx, a, resp, poll)
	}

	latest, err := retry.Poll(ctx, o.pollConfig, isSettled, poll)
	if ctx.Err() != nil {
		return o.finish(a, paymentsheet.Canceled(resp))
	}
	if latest == nil {
		latest = resp
	}
	a.event.Status = latest.Status

	switch {
	case errors.Is(err, retry.ErrNotSettled):
		if latest.Status.IsSuccessful() {
			return o.finish(a, paymentsheet.Completed(latest))
		}
		// The customer left the action unfinished.
		return o.finish(a, paymentsheet.Canceled(latest))
	case err != nil:
		return o.finish(a, paymentsheet.Failed(err, latest))
	case latest.Status.IsSuccessful():
		return o.finish(a, paymentsheet.Completed(latest))
	default:
		return o.finish(a, paymentsheet.Failed(statusError(latest), latest))
	}
}

// awaitMicrodeposits completes once verification has been handed off. The
// intent stays in requires_action until the customer verifies, days later.
func (o *Orchestrator) awaitMicrodeposits(ctx context.Context, a *attempt, resp *paymentsheet.IntentStatusResponse, poll paymentsheet.StatusPoller) paymentsheet.Result {
	latest, err := await(ctx, func(ctx context.Context) (*paymentsheet.IntentStatusResponse, error) {
		return poll(ctx)
	})
	if ctx.Err() != nil {
		return o.finish(a, paymentsheet.Canceled(resp))
	}
	if err != nil {
		return o.finish(a, paymentsheet.Failed(err, resp))
	}
	if latest.Status == paymentsheet.IntentStatusRequiresAction || latest.Status.IsSuccessful() {
		return o.finish(a, paymentsheet.Completed(latest))
	}
	return o.finish(a, paymentsheet.Failed(statusError(latest), latest))
}

// finish moves the machine to the terminal state matching result and
// reports it.
func (o *Orchestrator) finish(a *attempt, result paymentsheet.Result) paymentsheet.Result {
	var (
		t         trigger
		eventType paymentsheet.PaymentEventType
	)
	switch result.Status {
	case paymentsheet.ResultCompleted:
		t, eventType = triggerComplete, paymentsheet.PaymentEventSuccess
	case paymentsheet.ResultCanceled:
		t, eventType = triggerCancel, paymentsheet.PaymentEventCanceled
	default:
		t, eventType = triggerFail, paymentsheet.PaymentEventFailure
	}
	o.fire(t)

	if result.Intent != nil {
		a.event.IntentID = result.Intent.ID
		a.event.Status = result.Intent.Status
	}
	o.emit(a, eventType, result.Intent, result.Err)

	attrs := []any{
		"result", result.Status,
		"intent_id", a.event.IntentID,
		"deferred", a.event.Deferred,
		"duration", o.now().Sub(a.started),
	}
	if result.Err != nil {
		o.logger.Warn("confirmation ended", append(attrs, "error", result.Err)...)
	} else {
		o.logger.Info("confirmation ended", attrs...)
	}
	return result
}

func (o *Orchestrator) fire(t trigger) {
	if err := o.machine.Fire(t); err != nil {
		o.logger.Error("invalid confirmation transition", "trigger", t, "state", o.State(), "error", err)
	}
}

func (o *Orchestrator) emit(a *attempt, eventType paymentsheet.PaymentEventType, resp *paymentsheet.IntentStatusResponse, err error) {
	if o.callback == nil {
		return
	}
	event := a.event
	event.Type = eventType
	event.Timestamp = o.now()
	event.Duration = event.Timestamp.Sub(a.started)
	event.Error = err
	if resp != nil {
		event.IntentID = resp.ID
		event.Status = resp.Status
	}
	o.callback(event)
}

// await runs fn and returns early with ctx.Err() when ctx is done first.
// A result produced after that is dropped.
func await[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func isSettled(resp *paymentsheet.IntentStatusResponse) bool {
	return resp.Status != paymentsheet.IntentStatusRequiresAction &&
		resp.Status != paymentsheet.IntentStatusProcessing
}

// needsClientConfirmation reports whether an intent returned by the merchant
// handler still has to be confirmed here. An intent back in
// requires_payment_method with a recorded error was already attempted by the
// server and failed.
func needsClientConfirmation(resp *paymentsheet.IntentStatusResponse) bool {
	switch resp.Status {
	case paymentsheet.IntentStatusRequiresConfirmation:
		return true
	case paymentsheet.IntentStatusRequiresPaymentMethod:
		return resp.LastError == nil
	}
	return false
}

func checkIntentMatches(config *paymentsheet.IntentConfiguration, kind paymentsheet.IntentKind, resp *paymentsheet.IntentStatusResponse) error {
	mismatch := func(field string, expected, actual interface{}) error {
		return paymentsheet.NewPaymentError(paymentsheet.ErrCodeValidation, "intent does not match intent configuration", paymentsheet.ErrIntentConfigurationMismatch).
			WithDetails("field", field).
			WithDetails("expected", expected).
			WithDetails("actual", actual)
	}

	if want := config.Mode.Kind(); kind != want {
		return mismatch("kind", want, kind)
	}
	if mode, ok := config.Mode.(*paymentsheet.PaymentMode); ok {
		if resp.Amount != mode.Amount {
			return mismatch("amount", mode.Amount, resp.Amount)
		}
		if !strings.EqualFold(resp.Currency, mode.Currency) {
			return mismatch("currency", mode.Currency, resp.Currency)
		}
	}
	return nil
}

func statusError(resp *paymentsheet.IntentStatusResponse) error {
	switch resp.Status {
	case paymentsheet.IntentStatusRequiresPaymentMethod:
		if resp.LastError != nil {
			return paymentsheet.NewPaymentError(paymentsheet.ErrCodeAPIError, "payment method was declined", resp.LastError)
		}
		return paymentsheet.NewPaymentError(paymentsheet.ErrCodeUnexpectedStatus, "intent requires a new payment method", paymentsheet.ErrUnexpectedStatus)
	case paymentsheet.IntentStatusCanceled:
		return paymentsheet.NewPaymentError(paymentsheet.ErrCodeUnexpectedStatus, "intent was canceled", paymentsheet.ErrIntentCanceled)
	default:
		return paymentsheet.NewPaymentError(paymentsheet.ErrCodeUnexpectedStatus, "unexpected intent status", paymentsheet.ErrUnexpectedStatus).
			WithDetails("status", string(resp.Status))
	}
}

func isDeferred(intent paymentsheet.Intent) bool {
	_, ok := intent.(*paymentsheet.DeferredIntent)
	return ok
}

func intentKind(intent paymentsheet.Intent) paymentsheet.IntentKind {
	switch in := intent.(type) {
	case *paymentsheet.PaymentIntent:
		return paymentsheet.IntentKindPayment
	case *paymentsheet.SetupIntent:
		return paymentsheet.IntentKindSetup
	case *paymentsheet.DeferredIntent:
		if in.Configuration != nil && in.Configuration.Mode != nil {
			return in.Configuration.Mode.Kind()
		}
	}
	return ""
}
