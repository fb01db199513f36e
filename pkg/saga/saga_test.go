package saga

import (
	"testing"

	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

func TestApplyHappyPathTransitions(t *testing.T) {
	out := Apply(mmodel.SagaStatePending, mmodel.EventOrderCreated)
	if out.NoOp || out.NextState != mmodel.SagaStateAwaitingPayment {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(out.EventsToEmit) != 1 || out.EventsToEmit[0] != mmodel.EventPaymentAuthorized {
		t.Fatalf("expected PAYMENT_AUTHORIZED emitted, got %+v", out.EventsToEmit)
	}

	out = Apply(mmodel.SagaStateAwaitingPayment, mmodel.EventPaymentAuthorized)
	if out.NextState != mmodel.SagaStateReserved {
		t.Fatalf("expected RESERVED, got %+v", out)
	}

	out = Apply(mmodel.SagaStateReserved, mmodel.EventInventoryReserved)
	if out.NextState != mmodel.SagaStatePaid {
		t.Fatalf("expected PAID, got %+v", out)
	}

	out = Apply(mmodel.SagaStatePaid, mmodel.EventPaymentCaptured)
	if out.NextState != mmodel.SagaStateCompleted {
		t.Fatalf("expected COMPLETED, got %+v", out)
	}
}

func TestApplyCompensationChain(t *testing.T) {
	out := Apply(mmodel.SagaStateAwaitingPayment, mmodel.EventInventoryFailed)

	if !out.Compensating || out.NextState != mmodel.SagaStateFailed {
		t.Fatalf("expected compensating FAILED outcome, got %+v", out)
	}

	want := []string{mmodel.EventPaymentVoid, mmodel.EventOrderFailed}
	if len(out.EventsToEmit) != len(want) {
		t.Fatalf("expected %d compensation events, got %+v", len(want), out.EventsToEmit)
	}
	for i, e := range want {
		if out.EventsToEmit[i] != e {
			t.Errorf("compensation event %d = %q, want %q", i, out.EventsToEmit[i], e)
		}
	}
}

func TestApplyTerminalStateAbsorbsEvents(t *testing.T) {
	out := Apply(mmodel.SagaStateCompleted, mmodel.EventPaymentAuthorized)
	if !out.NoOp {
		t.Fatalf("expected terminal state to absorb duplicate event, got %+v", out)
	}
}

func TestApplyInconsistentEventIsDiscarded(t *testing.T) {
	// A delayed PAYMENT_FAILED after the saga already advanced past
	// AWAITING_PAYMENT should be discarded, not error.
	out := Apply(mmodel.SagaStateReserved, mmodel.EventPaymentFailed)
	if !out.NoOp || out.NextState != mmodel.SagaStateReserved {
		t.Fatalf("expected no-op discard, got %+v", out)
	}
}

func TestApplyTimeoutMatchesCompensationChain(t *testing.T) {
	out := ApplyTimeout(mmodel.SagaStateReserved)
	if !out.Compensating || out.NextState != mmodel.SagaStateFailed {
		t.Fatalf("expected timeout to compensate to FAILED, got %+v", out)
	}
}

func TestTimeoutForDefaults(t *testing.T) {
	if got := TimeoutFor(mmodel.SagaStatePending); got != PaymentStepTimeout {
		t.Errorf("TimeoutFor(PENDING) = %v, want %v", got, PaymentStepTimeout)
	}
	if got := TimeoutFor(mmodel.SagaStateAwaitingPayment); got != InventoryStepTimeout {
		t.Errorf("TimeoutFor(AWAITING_PAYMENT) = %v, want %v", got, InventoryStepTimeout)
	}
	if got := TimeoutFor(mmodel.SagaStatePaid); got != ShippingStepTimeout {
		t.Errorf("TimeoutFor(PAID) = %v, want %v", got, ShippingStepTimeout)
	}
}
