package commands

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	"github.com/DimitryIvaniuta/order-platform-sub001/components/orderservice/internal/adapters/postgres"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/idempotency"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/outbox"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/saga"
)

func TestHandleEventAdvancesSagaAndEmitsCommand(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO order_idempotency").WillReturnResult(sqlmock.NewResult(0, 1))

	sagaRows := sqlmock.NewRows([]string{
		"id", "tenant_id", "user_id", "order_id", "state", "last_event_type", "last_event_ts", "attempts", "created_at", "updated_at",
	}).AddRow("saga-1", "acme", "user-1", nil, int16(mmodel.SagaStatePending), "", now, int32(0), now, now)
	mock.ExpectQuery("SELECT (.+) FROM sagas").WillReturnRows(sagaRows)

	mock.ExpectExec("UPDATE sagas SET").WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery("INSERT INTO order_outbox").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	mock.ExpectCommit()

	uc := &UseCase{
		DB:       db,
		SagaRepo: postgres.NewSagaRepository("sagas"),
		Idem:     idempotency.NewLedger("order_idempotency"),
		Outbox:   outbox.NewStore("order_outbox", "order_outbox_dead_letters"),
		Watchdog: saga.NewWatchdog(func(string, string) {}),
		Logger:   &mlog.NoneLogger{},
	}

	err = uc.HandleEvent(context.Background(), "acme", "saga-1", mmodel.EventOrderCreated, nil)
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestHandleEventSkipsDuplicateDelivery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO order_idempotency").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	uc := &UseCase{
		DB:       db,
		SagaRepo: postgres.NewSagaRepository("sagas"),
		Idem:     idempotency.NewLedger("order_idempotency"),
		Outbox:   outbox.NewStore("order_outbox", "order_outbox_dead_letters"),
		Watchdog: saga.NewWatchdog(func(string, string) {}),
		Logger:   &mlog.NoneLogger{},
	}

	if err := uc.HandleEvent(context.Background(), "acme", "saga-1", mmodel.EventOrderCreated, nil); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
