package commands

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	"github.com/DimitryIvaniuta/order-platform-sub001/components/paymentservice/internal/adapters/postgres"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/idempotency"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/outbox"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/saga"
)

var testNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newUseCase(t *testing.T, provider saga.PaymentProvider) (*UseCase, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	uc := &UseCase{
		DB:       db,
		Payments: postgres.NewPaymentRepository("payments"),
		Idem:     idempotency.NewLedger("payment_idempotency"),
		Outbox:   outbox.NewStore("payment_outbox", "payment_outbox_dead_letters"),
		Provider: provider,
		Logger:   &mlog.NoneLogger{},
	}

	return uc, mock
}

func TestHandleCommandAuthorizeSuccess(t *testing.T) {
	provider := saga.NewFakeProvider(saga.FakeProviderConfig{RiskModulo: 7, MaxAmountMinor: 100000})
	uc, mock := newUseCase(t, provider)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_idempotency").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO payment_outbox").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	payload, _ := json.Marshal(mmodel.SagaPayload{OrderID: "order-1", AmountMinor: 1000})

	err := uc.HandleCommand(context.Background(), mmodel.Event{
		SagaID: "saga-1", Type: mmodel.EventPaymentAuthorized, TenantID: "acme", Payload: payload,
	})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestHandleCommandAuthorizeDeclineStillCommits(t *testing.T) {
	provider := saga.NewFakeProvider(saga.FakeProviderConfig{RiskModulo: 7, MaxAmountMinor: 100000})
	uc, mock := newUseCase(t, provider)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_idempotency").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO payment_outbox").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	// AmountMinor divisible by RiskModulo triggers FakeProvider's decline path.
	payload, _ := json.Marshal(mmodel.SagaPayload{OrderID: "order-1", AmountMinor: 700})

	err := uc.HandleCommand(context.Background(), mmodel.Event{
		SagaID: "saga-2", Type: mmodel.EventPaymentAuthorized, TenantID: "acme", Payload: payload,
	})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestHandleCommandCaptureSuccess(t *testing.T) {
	provider := saga.NewFakeProvider(saga.FakeProviderConfig{RiskModulo: 7, MaxAmountMinor: 100000})
	uc, mock := newUseCase(t, provider)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_idempotency").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM payments").WillReturnRows(sqlmock.NewRows(
		[]string{"id", "tenant_id", "order_id", "saga_id", "status", "amount_minor", "provider_ref", "created_at", "updated_at"},
	).AddRow("saga-3", "acme", "order-1", "saga-3", mmodel.PaymentStatusAuthorized, int64(1000), "fake-ref-1", testNow, testNow))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO payment_outbox").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectCommit()

	payload, _ := json.Marshal(mmodel.SagaPayload{OrderID: "order-1", AmountMinor: 1000})

	err := uc.HandleCommand(context.Background(), mmodel.Event{
		SagaID: "saga-3", Type: mmodel.EventPaymentCaptured, TenantID: "acme", Payload: payload,
	})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestHandleCommandVoidIsBestEffortAndDoesNotEmit(t *testing.T) {
	provider := saga.NewFakeProvider(saga.FakeProviderConfig{RiskModulo: 7, MaxAmountMinor: 100000})
	uc, mock := newUseCase(t, provider)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_idempotency").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM payments").WillReturnRows(sqlmock.NewRows(
		[]string{"id", "tenant_id", "order_id", "saga_id", "status", "amount_minor", "provider_ref", "created_at", "updated_at"},
	).AddRow("saga-4", "acme", "order-1", "saga-4", mmodel.PaymentStatusAuthorized, int64(1001), "fake-ref-2", testNow, testNow))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payload, _ := json.Marshal(mmodel.SagaPayload{OrderID: "order-1", AmountMinor: 1000})

	err := uc.HandleCommand(context.Background(), mmodel.Event{
		SagaID: "saga-4", Type: mmodel.EventPaymentVoid, TenantID: "acme", Payload: payload,
	})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestHandleCommandDuplicateDeliveryIsSkipped(t *testing.T) {
	provider := saga.NewFakeProvider(saga.FakeProviderConfig{RiskModulo: 7, MaxAmountMinor: 100000})
	uc, mock := newUseCase(t, provider)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_idempotency").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	payload, _ := json.Marshal(mmodel.SagaPayload{OrderID: "order-1", AmountMinor: 1000})

	err := uc.HandleCommand(context.Background(), mmodel.Event{
		SagaID: "saga-5", Type: mmodel.EventPaymentAuthorized, TenantID: "acme", Payload: payload,
	})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
