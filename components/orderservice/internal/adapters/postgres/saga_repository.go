package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

// Querier is the read-only handle GetByID needs. *sql.DB satisfies it
// directly; so does mpostgres's dbresolver.DB wrapper, letting a caller
// route this read at the replica without GetByID itself depending on
// dbresolver.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SagaRepository is the orchestrator's view of the saga coordinator table:
// one row per order lifecycle, advanced by HandleEvent under row-level
// locking so two concurrent deliveries for the same sagaId never race.
type SagaRepository struct {
	table   string
	builder sq.StatementBuilderType
}

// NewSagaRepository builds a SagaRepository over table (default "sagas").
func NewSagaRepository(table string) *SagaRepository {
	if table == "" {
		table = "sagas"
	}

	return &SagaRepository{table: table, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// Create inserts a new saga row in PENDING state, the first write of the
// order-creation transaction.
func (r *SagaRepository) Create(ctx context.Context, db *sql.Tx, s mmodel.Saga) error {
	query, args, err := r.builder.Insert(r.table).
		Columns("id", "tenant_id", "user_id", "order_id", "state", "last_event_type", "last_event_ts", "attempts", "created_at", "updated_at").
		Values(s.ID, s.TenantID, s.UserID, s.OrderID, int16(s.State), s.LastEventType, s.LastEventTS, s.Attempts, s.CreatedAt, s.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("orderservice: build saga insert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("orderservice: insert saga: %w", err)
	}

	return nil
}

// GetForUpdate loads a saga row with FOR UPDATE, locking it for the
// duration of the caller's transaction.
func (r *SagaRepository) GetForUpdate(ctx context.Context, db *sql.Tx, sagaID string) (mmodel.Saga, error) {
	query, args, err := r.builder.Select(
		"id", "tenant_id", "user_id", "order_id", "state", "last_event_type", "last_event_ts", "attempts", "created_at", "updated_at",
	).From(r.table).
		Where(sq.Eq{"id": sagaID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return mmodel.Saga{}, fmt.Errorf("orderservice: build saga select: %w", err)
	}

	var (
		s     mmodel.Saga
		state int16
	)

	if err := db.QueryRowContext(ctx, query, args...).Scan(
		&s.ID, &s.TenantID, &s.UserID, &s.OrderID, &state, &s.LastEventType, &s.LastEventTS, &s.Attempts, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return mmodel.Saga{}, fmt.Errorf("orderservice: select saga %s: %w", sagaID, err)
	}

	s.State = mmodel.SagaState(state)

	return s, nil
}

// Advance persists the saga's new state and bookkeeping fields.
func (r *SagaRepository) Advance(ctx context.Context, db *sql.Tx, sagaID string, next mmodel.SagaState, eventType string) error {
	now := time.Now().UTC()

	query, args, err := r.builder.Update(r.table).
		Set("state", int16(next)).
		Set("last_event_type", eventType).
		Set("last_event_ts", now).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("updated_at", now).
		Where(sq.Eq{"id": sagaID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("orderservice: build saga advance: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("orderservice: advance saga %s: %w", sagaID, err)
	}

	return nil
}

// GetByID loads a saga row without locking, for the gateway's read path.
func (r *SagaRepository) GetByID(ctx context.Context, db Querier, sagaID string) (mmodel.Saga, error) {
	query, args, err := r.builder.Select(
		"id", "tenant_id", "user_id", "order_id", "state", "last_event_type", "last_event_ts", "attempts", "created_at", "updated_at",
	).From(r.table).
		Where(sq.Eq{"id": sagaID}).
		ToSql()
	if err != nil {
		return mmodel.Saga{}, fmt.Errorf("orderservice: build saga get: %w", err)
	}

	var (
		s     mmodel.Saga
		state int16
	)

	if err := db.QueryRowContext(ctx, query, args...).Scan(
		&s.ID, &s.TenantID, &s.UserID, &s.OrderID, &state, &s.LastEventType, &s.LastEventTS, &s.Attempts, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return mmodel.Saga{}, fmt.Errorf("orderservice: get saga %s: %w", sagaID, err)
	}

	s.State = mmodel.SagaState(state)

	return s, nil
}
