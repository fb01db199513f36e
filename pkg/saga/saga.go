// Package saga implements C6: the per-saga state machine driving an order
// through authorization, reservation, capture and shipping, with
// compensation chains and per-state watchdog timeouts. Each downstream
// service reacts only to the event types it owns; the whole transition
// table lives here in Table and is applied by the orchestrator, matching
// SPEC_FULL.md §7's declarative-compensation propagation policy.
package saga

import (
	"time"

	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

// Default per-state watchdog budgets, per SPEC_FULL.md §4.6.
const (
	PaymentStepTimeout   = 30 * time.Second
	InventoryStepTimeout = 60 * time.Second
	ShippingStepTimeout  = 5 * time.Minute
)

// Transition describes one legal (fromState, eventIn) -> (action, toState)
// edge of SPEC_FULL.md §4.6's table, plus the compensation event to emit
// when the owning service reports failure instead of success.
type Transition struct {
	From               mmodel.SagaState
	EventIn            string
	SuccessEventOut    string
	FailureEventIn     string
	CompensationEvents []string
	To                 mmodel.SagaState
	Timeout            time.Duration
}

// Table is the full legal transition set. It is consulted by Apply to
// reject any event inconsistent with a saga's current state.
var Table = []Transition{
	{
		From:            mmodel.SagaStatePending,
		EventIn:         mmodel.EventOrderCreated,
		SuccessEventOut: mmodel.EventPaymentAuthorized,
		FailureEventIn:  mmodel.EventPaymentFailed,
		CompensationEvents: []string{
			mmodel.EventOrderFailed,
		},
		To:      mmodel.SagaStateAwaitingPayment,
		Timeout: PaymentStepTimeout,
	},
	{
		From:            mmodel.SagaStateAwaitingPayment,
		EventIn:         mmodel.EventPaymentAuthorized,
		SuccessEventOut: mmodel.EventInventoryReserved,
		FailureEventIn:  mmodel.EventInventoryFailed,
		CompensationEvents: []string{
			mmodel.EventPaymentVoid,
			mmodel.EventOrderFailed,
		},
		To:      mmodel.SagaStateReserved,
		Timeout: InventoryStepTimeout,
	},
	{
		From:            mmodel.SagaStateReserved,
		EventIn:         mmodel.EventInventoryReserved,
		SuccessEventOut: mmodel.EventPaymentCaptured,
		FailureEventIn:  mmodel.EventPaymentFailed,
		CompensationEvents: []string{
			mmodel.EventInventoryRelease,
			mmodel.EventPaymentVoid,
			mmodel.EventOrderFailed,
		},
		To:      mmodel.SagaStatePaid,
		Timeout: PaymentStepTimeout,
	},
	{
		From:            mmodel.SagaStatePaid,
		EventIn:         mmodel.EventPaymentCaptured,
		SuccessEventOut: mmodel.EventOrderCompleted,
		FailureEventIn:  mmodel.EventShippingFailed,
		CompensationEvents: []string{
			mmodel.EventOrderFailed,
		},
		To:      mmodel.SagaStateCompleted,
		Timeout: ShippingStepTimeout,
	},
}

// FindTransition returns the Table entry matching from/eventIn, or false if
// the event is inconsistent with the saga's current state -- per
// SPEC_FULL.md §4.6, such an event is logged, ack'ed and discarded rather
// than applied.
func FindTransition(from mmodel.SagaState, eventIn string) (Transition, bool) {
	for _, t := range Table {
		if t.From == from && t.EventIn == eventIn {
			return t, true
		}
	}

	return Transition{}, false
}

// Outcome is the result of applying one inbound event to a saga.
type Outcome struct {
	NoOp          bool // terminal-state absorption or inconsistent-event discard
	NextState     mmodel.SagaState
	EventsToEmit  []string
	Compensating  bool
}

// Apply computes the next state and events to emit for saga receiving
// eventIn, implementing: terminal-state absorption, monotonic-transition
// enforcement (inconsistent events are discarded as a no-op), and
// compensation-chain selection when eventIn is a known failure signal.
func Apply(current mmodel.SagaState, eventIn string) Outcome {
	if current.Terminal() {
		return Outcome{NoOp: true, NextState: current}
	}

	if transition, ok := FindTransition(current, eventIn); ok {
		return Outcome{
			NextState:    transition.To,
			EventsToEmit: []string{transition.SuccessEventOut},
		}
	}

	if transition, isFailure := findFailureTransition(current, eventIn); isFailure {
		return Outcome{
			NextState:    mmodel.SagaStateFailed,
			EventsToEmit: append([]string{}, transition.CompensationEvents...),
			Compensating: true,
		}
	}

	// Inconsistent with current state: discard as a no-op rather than error,
	// per the tie-break policy (e.g. a delayed PAYMENT_FAILED arriving after
	// PAYMENT_AUTHORIZED already advanced the saga).
	return Outcome{NoOp: true, NextState: current}
}

func findFailureTransition(from mmodel.SagaState, eventIn string) (Transition, bool) {
	for _, t := range Table {
		if t.From == from && t.FailureEventIn == eventIn && eventIn != "" {
			return t, true
		}
	}

	return Transition{}, false
}

// ApplyTimeout computes the compensation outcome for a watchdog expiry in
// state current, treating it exactly as if the owning step's failure event
// had arrived.
func ApplyTimeout(current mmodel.SagaState) Outcome {
	for _, t := range Table {
		if t.From == current {
			return Outcome{
				NextState:    mmodel.SagaStateFailed,
				EventsToEmit: append([]string{}, t.CompensationEvents...),
				Compensating: true,
			}
		}
	}

	return Outcome{NoOp: true, NextState: current}
}

// TimeoutFor returns the watchdog budget for the current state, or 0 if the
// state is terminal and has no further timeout.
func TimeoutFor(current mmodel.SagaState) time.Duration {
	for _, t := range Table {
		if t.From == current {
			return t.Timeout
		}
	}

	return 0
}
