package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

func TestSagaRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO sagas").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}

	repo := NewSagaRepository("")

	now := time.Now().UTC()
	err = repo.Create(context.Background(), tx, mmodel.Saga{
		ID: "saga-1", TenantID: "acme", UserID: "user-1",
		State: mmodel.SagaStatePending, CreatedAt: now, UpdatedAt: now,
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

func TestSagaRepositoryGetForUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "tenant_id", "user_id", "order_id", "state", "last_event_type", "last_event_ts", "attempts", "created_at", "updated_at",
	}).AddRow("saga-1", "acme", "user-1", nil, int16(mmodel.SagaStatePending), "", now, int32(0), now, now)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM sagas").WillReturnRows(rows)

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}

	repo := NewSagaRepository("")

	s, err := repo.GetForUpdate(context.Background(), tx, "saga-1")
	if err != nil {
		t.Fatalf("GetForUpdate: %v", err)
	}
	if s.State != mmodel.SagaStatePending {
		t.Errorf("State = %v, want Pending", s.State)
	}

	_ = tx.Rollback()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
