package confirmation

import (
	"context"
	"log/slog"

	"github.com/qmuntal/stateless"
)

// State is a step of a confirmation.
type State string

const (
	StateIdle                       State = "idle"
	StateBuilding                   State = "building"
	StateAwaitingServerConfirmation State = "awaiting_server_confirmation"
	StateAwaitingNextAction         State = "awaiting_next_action"

	// StateTerminal is the superstate of the three outcomes. An orchestrator
	// never leaves it.
	StateTerminal  State = "terminal"
	StateCompleted State = "completed"
	StateCanceled  State = "canceled"
	StateFailed    State = "failed"
)

type trigger string

const (
	triggerStart         trigger = "start"
	triggerDispatch      trigger = "dispatch"
	triggerRequireAction trigger = "require_action"
	triggerComplete      trigger = "complete"
	triggerCancel        trigger = "cancel"
	triggerFail          trigger = "fail"
)

func newStateMachine(logger *slog.Logger) *stateless.StateMachine {
	machine := stateless.NewStateMachine(StateIdle)

	machine.Configure(StateIdle).
		Permit(triggerStart, StateBuilding).
		Permit(triggerCancel, StateCanceled).
		Permit(triggerFail, StateFailed)

	// Deferred intents confirmed by the merchant server go straight from
	// building to an outcome or a next action.
	machine.Configure(StateBuilding).
		Permit(triggerDispatch, StateAwaitingServerConfirmation).
		Permit(triggerRequireAction, StateAwaitingNextAction).
		Permit(triggerComplete, StateCompleted).
		Permit(triggerCancel, StateCanceled).
		Permit(triggerFail, StateFailed)

	machine.Configure(StateAwaitingServerConfirmation).
		Permit(triggerRequireAction, StateAwaitingNextAction).
		Permit(triggerComplete, StateCompleted).
		Permit(triggerCancel, StateCanceled).
		Permit(triggerFail, StateFailed)

	machine.Configure(StateAwaitingNextAction).
		Permit(triggerComplete, StateCompleted).
		Permit(triggerCancel, StateCanceled).
		Permit(triggerFail, StateFailed)

	machine.Configure(StateTerminal)
	machine.Configure(StateCompleted).SubstateOf(StateTerminal)
	machine.Configure(StateCanceled).SubstateOf(StateTerminal)
	machine.Configure(StateFailed).SubstateOf(StateTerminal)

	machine.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		logger.Debug("confirmation state changed",
			"from", t.Source,
			"to", t.Destination,
			"trigger", t.Trigger)
	})

	return machine
}
