package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/mock/gomock"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
)

var errPublishFailed = errors.New("publish failed")

func leaseRows(sagaIDs ...string) *sqlmock.Rows {
	cols := []string{
		"id", "created_on", "tenant_id", "saga_id", "aggregate_type", "aggregate_id",
		"event_type", "event_key", "payload", "headers_json", "attempts", "lease_until",
		"created_at", "updated_at",
	}
	rows := sqlmock.NewRows(cols)
	now := time.Now().UTC()
	for i, sagaID := range sagaIDs {
		rows.AddRow(int64(i+1), now, "acme", sagaID, "order", nil, "ORDER_CREATED", &sagaID,
			[]byte(`{}`), []byte(`{}`), int32(0), nil, now, now)
	}
	return rows
}

func TestPublisherDrainOnceFansOutAcrossKeysAndDeletesPublished(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM order_outbox").WillReturnRows(leaseRows("saga-1", "saga-2"))
	mock.ExpectExec("UPDATE order_outbox").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE order_outbox").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectExec("DELETE FROM order_outbox").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM order_outbox").WillReturnResult(sqlmock.NewResult(0, 1))

	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	sender.EXPECT().Publish(gomock.Any(), "order.events.v1", "saga-1", gomock.Any(), gomock.Any()).Return(nil)
	sender.EXPECT().Publish(gomock.Any(), "order.events.v1", "saga-2", gomock.Any(), gomock.Any()).Return(nil)

	store := NewStore("order_outbox", "order_outbox_dead_letters")
	pub := NewPublisher(store, db, sender, &mlog.NoneLogger{}, func(string) string { return "order.events.v1" })

	if err := pub.drainOnce(context.Background(), "acme"); err != nil {
		t.Fatalf("drainOnce: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPublisherDrainOnceStopsKeyOnPublishFailureWithoutBlockingOthers(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM order_outbox").WillReturnRows(leaseRows("saga-1", "saga-2"))
	mock.ExpectExec("UPDATE order_outbox").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE order_outbox").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Only saga-2 publishes successfully, so only its row is deleted; saga-1's
	// row is left for the lease to expire and retry.
	mock.ExpectExec("DELETE FROM order_outbox").WillReturnResult(sqlmock.NewResult(0, 1))

	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	sender.EXPECT().Publish(gomock.Any(), gomock.Any(), "saga-1", gomock.Any(), gomock.Any()).Return(errPublishFailed)
	sender.EXPECT().Publish(gomock.Any(), gomock.Any(), "saga-2", gomock.Any(), gomock.Any()).Return(nil)

	store := NewStore("order_outbox", "order_outbox_dead_letters")
	pub := NewPublisher(store, db, sender, &mlog.NoneLogger{}, func(string) string { return "order.events.v1" })
	pub.backoffBase = time.Millisecond
	pub.backoffMax = time.Millisecond

	if err := pub.drainOnce(context.Background(), "acme"); err != nil {
		t.Fatalf("drainOnce: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
