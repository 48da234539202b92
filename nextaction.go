package paymentsheet

import (
	"context"
	"sort"
)

// StatusPoller re-fetches the status of the intent a next action belongs to.
type StatusPoller func(ctx context.Context) (*IntentStatusResponse, error)

// NextActionStatus is what a next action handler reports back.
type NextActionStatus int

const (
	NextActionSucceeded NextActionStatus = iota
	NextActionCanceled
	NextActionFailed
)

func (s NextActionStatus) String() string {
	switch s {
	case NextActionSucceeded:
		return "succeeded"
	case NextActionCanceled:
		return "canceled"
	case NextActionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// NextActionOutcome is the result of a next action handler. Err is set for failures.
type NextActionOutcome struct {
	Status NextActionStatus
	Err    error
}

// NextActionHandler performs a customer action such as a redirect or a
// 3DS challenge. Implementations live with the host UI.
type NextActionHandler interface {
	// CanHandle reports whether the handler can perform the action.
	CanHandle(action *NextAction) bool

	// Handle performs the action. It must return when ctx is done.
	Handle(ctx context.Context, action *NextAction, poll StatusPoller) NextActionOutcome

	// Priority orders handlers able to perform the same action.
	// Lower numbers indicate higher priority (1 > 2 > 3).
	Priority() int
}

// SelectNextActionHandler chooses the handler for an action. Among handlers
// that can perform it, the lowest priority number wins; ties keep
// registration order.
func SelectNextActionHandler(action *NextAction, handlers []NextActionHandler) (NextActionHandler, error) {
	if action == nil {
		return nil, NewPaymentError(ErrCodeNextAction, "intent requires action but no action was described", ErrNoNextActionHandler)
	}

	var candidates []handlerCandidate
	for _, h := range handlers {
		if h == nil || !h.CanHandle(action) {
			continue
		}
		candidates = append(candidates, handlerCandidate{handler: h, priority: h.Priority()})
	}

	if len(candidates) == 0 {
		return nil, NewPaymentError(ErrCodeNextAction, "no handler can perform next action", ErrNoNextActionHandler).
			WithDetails("type", string(action.Type)).
			WithDetails("challenge", action.ChallengeType)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].priority < candidates[j].priority
	})

	return candidates[0].handler, nil
}

type handlerCandidate struct {
	handler  NextActionHandler
	priority int
}
