package mmodel

import "testing"

func TestSagaStateTerminal(t *testing.T) {
	tests := []struct {
		state    SagaState
		terminal bool
	}{
		{SagaStatePending, false},
		{SagaStateAwaitingPayment, false},
		{SagaStateReserved, false},
		{SagaStatePaid, false},
		{SagaStateCompleted, true},
		{SagaStateFailed, true},
	}

	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.terminal {
			t.Errorf("SagaState(%d).Terminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestOrderStatusString(t *testing.T) {
	if OrderStatusPaid.String() != "PAID" {
		t.Errorf("OrderStatusPaid.String() = %q, want PAID", OrderStatusPaid.String())
	}
	if OrderStatus(99).String() != "UNKNOWN" {
		t.Errorf("unmapped OrderStatus should stringify to UNKNOWN")
	}
}
