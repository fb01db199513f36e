package sagaaudit

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

func TestNewRecordStringifiesStates(t *testing.T) {
	rec := NewRecord("acme", "saga-1", mmodel.SagaStateAwaitingPayment, mmodel.SagaStateReserved, "INVENTORY_RESERVED", false)

	if rec.FromState != "AWAITING_PAYMENT" {
		t.Errorf("FromState = %q, want AWAITING_PAYMENT", rec.FromState)
	}
	if rec.ToState != "RESERVED" {
		t.Errorf("ToState = %q, want RESERVED", rec.ToState)
	}
	if rec.SagaID != "saga-1" || rec.TenantID != "acme" {
		t.Errorf("SagaID/TenantID = %q/%q, want saga-1/acme", rec.SagaID, rec.TenantID)
	}
	if rec.RecordedAt.IsZero() {
		t.Error("RecordedAt should be set")
	}
}

func TestRecordMarshalsToBSON(t *testing.T) {
	rec := NewRecord("acme", "saga-1", mmodel.SagaStatePending, mmodel.SagaStateAwaitingPayment, "ORDER_CREATED", false)

	doc, err := bson.Marshal(rec)
	if err != nil {
		t.Fatalf("bson.Marshal: %v", err)
	}

	var out bson.M
	if err := bson.Unmarshal(doc, &out); err != nil {
		t.Fatalf("bson.Unmarshal: %v", err)
	}

	if out["sagaId"] != "saga-1" {
		t.Errorf("sagaId = %v, want saga-1", out["sagaId"])
	}
	if out["fromState"] != "PENDING" {
		t.Errorf("fromState = %v, want PENDING", out["fromState"])
	}
	if out["toState"] != "AWAITING_PAYMENT" {
		t.Errorf("toState = %v, want AWAITING_PAYMENT", out["toState"])
	}
	if out["compensating"] != false {
		t.Errorf("compensating = %v, want false", out["compensating"])
	}
}
