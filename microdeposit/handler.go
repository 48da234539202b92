package microdeposit

import (
	"context"

	"github.com/mark3labs/paymentsheet-go"
)

// Handler is a next action handler for verify_with_microdeposits. It opens
// a session and hands it to Notify, e.g. to email the hosted verification
// link. The confirmation then completes while the intent keeps waiting.
type Handler struct {
	Manager *Manager

	// Notify receives every new session. Optional.
	Notify func(ctx context.Context, session *Session) error
}

// CanHandle implements paymentsheet.NextActionHandler.
func (h *Handler) CanHandle(action *paymentsheet.NextAction) bool {
	return action != nil && action.Type == paymentsheet.NextActionVerifyWithMicrodeposits
}

// Priority implements paymentsheet.NextActionHandler.
func (h *Handler) Priority() int {
	return 5
}

// Handle implements paymentsheet.NextActionHandler.
func (h *Handler) Handle(ctx context.Context, action *paymentsheet.NextAction, poll paymentsheet.StatusPoller) paymentsheet.NextActionOutcome {
	intent, err := poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return paymentsheet.NextActionOutcome{Status: paymentsheet.NextActionCanceled}
		}
		return paymentsheet.NextActionOutcome{Status: paymentsheet.NextActionFailed, Err: err}
	}
	if intent.NextAction == nil {
		intent.NextAction = action
	}

	session, err := h.Manager.Start(intent)
	if err != nil {
		return paymentsheet.NextActionOutcome{Status: paymentsheet.NextActionFailed, Err: err}
	}

	if h.Notify != nil {
		if err := h.Notify(ctx, session); err != nil {
			return paymentsheet.NextActionOutcome{Status: paymentsheet.NextActionFailed, Err: err}
		}
	}
	return paymentsheet.NextActionOutcome{Status: paymentsheet.NextActionSucceeded}
}
