package idempotency

import "testing"

func TestNewLedgerAndClientKeyLedgerConstructOk(t *testing.T) {
	l := NewLedger("idempotency_ledger")
	if l == nil || l.table != "idempotency_ledger" {
		t.Fatalf("expected ledger bound to table idempotency_ledger")
	}

	c := NewClientKeyLedger("client_idempotency_keys")
	if c == nil || c.table != "client_idempotency_keys" {
		t.Fatalf("expected client ledger bound to table client_idempotency_keys")
	}
}

func TestErrDuplicateMessage(t *testing.T) {
	if ErrDuplicate == nil {
		t.Fatalf("ErrDuplicate must be non-nil")
	}
}
