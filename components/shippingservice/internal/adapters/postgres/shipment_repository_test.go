package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

func TestShipmentRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO shipments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}

	repo := NewShipmentRepository("")

	err = repo.Create(context.Background(), tx, mmodel.Shipment{
		ID: "saga-1", TenantID: "acme", OrderID: "order-1", SagaID: "saga-1",
		Status: mmodel.ShipmentStatusScheduled, CarrierRef: "fake-carrier-order-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
