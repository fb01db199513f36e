package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

func TestUserRepositoryFindByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	tenantRoles := `{"acme":["buyer"]}`
	rows := sqlmock.NewRows([]string{
		"id", "username", "password_hash", "scopes", "tenant_roles", "created_at", "updated_at",
	}).AddRow("user-1", "alice", []byte("$2a$hash"), pq.StringArray{"orders.write", "orders.read"}, []byte(tenantRoles), now, now)

	mock.ExpectQuery("SELECT (.+) FROM users").WillReturnRows(rows)

	repo := NewUserRepository("")

	u, err := repo.FindByUsername(context.Background(), db, "alice")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("Username = %q, want alice", u.Username)
	}
	if len(u.Scopes) != 2 || u.Scopes[0] != "orders.write" {
		t.Errorf("Scopes = %+v, want [orders.write orders.read]", u.Scopes)
	}
	if roles, ok := u.TenantRoles["acme"]; !ok || roles[0] != "buyer" {
		t.Errorf("TenantRoles = %+v, want acme:[buyer]", u.TenantRoles)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUserRepositoryFindByUsernameNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM users").WillReturnError(errors.New("no rows"))

	repo := NewUserRepository("")

	if _, err := repo.FindByUsername(context.Background(), db, "ghost"); err == nil {
		t.Fatal("FindByUsername: expected error, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
