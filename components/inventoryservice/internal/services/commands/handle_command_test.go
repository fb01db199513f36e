package commands

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	"github.com/DimitryIvaniuta/order-platform-sub001/components/inventoryservice/internal/adapters/postgres"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/idempotency"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/outbox"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/saga"
)

var testNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newUseCase(t *testing.T, stock saga.StockChecker) (*UseCase, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	uc := &UseCase{
		DB:           db,
		Reservations: postgres.NewReservationRepository("reservations"),
		Idem:         idempotency.NewLedger("inventory_idempotency"),
		Outbox:       outbox.NewStore("inventory_outbox", "inventory_outbox_dead_letters"),
		Stock:        stock,
		Logger:       &mlog.NoneLogger{},
	}

	return uc, mock
}

func TestHandleCommandReserveSuccess(t *testing.T) {
	stock := saga.NewFakeStock(saga.FakeStockConfig{InsufficientModulo: 11})
	uc, mock := newUseCase(t, stock)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inventory_idempotency").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO inventory_outbox").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	payload, _ := json.Marshal(mmodel.SagaPayload{
		OrderID: "order-1",
		Lines:   []mmodel.OrderLine{{SKU: "A", Qty: 3, PriceMin: 1000}},
	})

	err := uc.HandleCommand(context.Background(), mmodel.Event{
		SagaID: "saga-1", Type: mmodel.EventInventoryReserved, TenantID: "acme", Payload: payload,
	})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestHandleCommandReserveInsufficientStillCommits(t *testing.T) {
	stock := saga.NewFakeStock(saga.FakeStockConfig{InsufficientModulo: 11})
	uc, mock := newUseCase(t, stock)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inventory_idempotency").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO inventory_outbox").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectCommit()

	// Qty divisible by InsufficientModulo triggers FakeStock's decline path.
	payload, _ := json.Marshal(mmodel.SagaPayload{
		OrderID: "order-1",
		Lines:   []mmodel.OrderLine{{SKU: "A", Qty: 22, PriceMin: 1000}},
	})

	err := uc.HandleCommand(context.Background(), mmodel.Event{
		SagaID: "saga-2", Type: mmodel.EventInventoryReserved, TenantID: "acme", Payload: payload,
	})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestHandleCommandReleaseMarksReservationsReleased(t *testing.T) {
	stock := saga.NewFakeStock(saga.FakeStockConfig{InsufficientModulo: 11})
	uc, mock := newUseCase(t, stock)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inventory_idempotency").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM reservations").WillReturnRows(sqlmock.NewRows(
		[]string{"id", "tenant_id", "order_id", "saga_id", "sku", "qty", "status", "created_at", "updated_at"},
	).AddRow("saga-3:A", "acme", "order-1", "saga-3", "A", int32(3), mmodel.ReservationStatusReserved, testNow, testNow))
	mock.ExpectExec("UPDATE reservations SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payload, _ := json.Marshal(mmodel.SagaPayload{OrderID: "order-1"})

	err := uc.HandleCommand(context.Background(), mmodel.Event{
		SagaID: "saga-3", Type: mmodel.EventInventoryRelease, TenantID: "acme", Payload: payload,
	})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestHandleCommandDuplicateDeliveryIsSkipped(t *testing.T) {
	stock := saga.NewFakeStock(saga.FakeStockConfig{InsufficientModulo: 11})
	uc, mock := newUseCase(t, stock)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inventory_idempotency").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	payload, _ := json.Marshal(mmodel.SagaPayload{OrderID: "order-1"})

	err := uc.HandleCommand(context.Background(), mmodel.Event{
		SagaID: "saga-4", Type: mmodel.EventInventoryReserved, TenantID: "acme", Payload: payload,
	})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
