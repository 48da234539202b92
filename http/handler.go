package http

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mark3labs/paymentsheet-go"
	"github.com/mark3labs/paymentsheet-go/http/internal/helpers"
	"github.com/mark3labs/paymentsheet-go/validation"
)

// IntentCreator creates an intent for a validated request.
// *StripeIntentCreator implements it.
type IntentCreator interface {
	CreateIntent(ctx context.Context, req *CreateIntentRequest, mode paymentsheet.Mode) (*CreateIntentResponse, error)
}

// IntentCreatorFunc adapts a function to IntentCreator.
type IntentCreatorFunc func(ctx context.Context, req *CreateIntentRequest, mode paymentsheet.Mode) (*CreateIntentResponse, error)

// CreateIntent implements IntentCreator.
func (f IntentCreatorFunc) CreateIntent(ctx context.Context, req *CreateIntentRequest, mode paymentsheet.Mode) (*CreateIntentResponse, error) {
	return f(ctx, req, mode)
}

// Handler serves the intent creation endpoint. It is an http.Handler and
// also backs the Chi and Gin adapters.
type Handler struct {
	creator IntentCreator
	logger  *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a handler that creates intents through creator.
func NewHandler(creator IntentCreator, opts ...HandlerOption) *Handler {
	h := &Handler{
		creator: creator,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP accepts POST requests only. OPTIONS is answered for CORS preflight.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
	case http.MethodOptions:
		w.Header().Set("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		helpers.WriteJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	ctx := WithClientInfo(r.Context(), RemoteIP(r), r.UserAgent())
	status, body := h.CreateIntent(ctx, r.Body)
	helpers.WriteJSON(w, status, body)
}

// CreateIntent decodes and validates a CreateIntentRequest from body and
// creates the intent. It returns the status code and the JSON body to send:
// a *CreateIntentResponse on success, an ErrorResponse otherwise.
func (h *Handler) CreateIntent(ctx context.Context, body io.Reader) (int, interface{}) {
	var req CreateIntentRequest
	if err := helpers.DecodeJSON(body, &req); err != nil {
		h.logger.Warn("invalid intent request", "error", err)
		return helpers.ErrorResponse(err)
	}

	mode, err := h.validate(&req)
	if err != nil {
		h.logger.Warn("intent request rejected", "mode", req.Mode, "error", err)
		return helpers.ErrorResponse(err)
	}

	h.logger.Info("creating intent", "mode", req.Mode, "amount", req.Amount, "currency", req.Currency, "save", req.ShouldSavePaymentMethod)
	resp, err := h.creator.CreateIntent(ctx, &req, mode)
	if err != nil {
		h.logger.Error("intent creation failed", "mode", req.Mode, "error", err)
		return helpers.ErrorResponse(err)
	}
	if resp == nil || resp.ClientSecret == "" {
		h.logger.Error("intent created without client secret", "mode", req.Mode)
		return helpers.ErrorResponse(fmt.Errorf("intent created without client secret"))
	}

	h.logger.Info("intent created", "intent", resp.IntentID, "status", resp.Status)
	return http.StatusOK, resp
}

func (h *Handler) validate(req *CreateIntentRequest) (paymentsheet.Mode, error) {
	if req.PaymentMethodID == "" {
		return nil, fmt.Errorf("%w: paymentMethodId is required", paymentsheet.ErrInvalidIntentConfiguration)
	}

	if req.PaymentMethodType != "" {
		if _, err := paymentsheet.ParsePaymentMethodType(req.PaymentMethodType); err != nil {
			return nil, fmt.Errorf("%w: %w", paymentsheet.ErrInvalidIntentConfiguration, err)
		}
	}

	mode, err := req.ToMode()
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateMode(mode); err != nil {
		return nil, err
	}

	for _, t := range req.PaymentMethodTypes {
		if _, err := paymentsheet.ParsePaymentMethodType(t); err != nil {
			return nil, err
		}
	}
	if err := validation.ValidateOnBehalfOf(req.OnBehalfOf); err != nil {
		return nil, fmt.Errorf("%w: %w", paymentsheet.ErrInvalidIntentConfiguration, err)
	}
	return mode, nil
}
