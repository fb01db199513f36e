package postgres

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

// SagaRepository is the gateway's write-once/read-many view of the saga
// coordinator table: it inserts the PENDING row that kicks off a saga and
// reads it back for the status-projection endpoint, but never advances a
// saga's state -- that is exclusively the orchestrator's job, in
// components/orderservice. Both sides address the same physical "sagas"
// table, which is why this repository's columns and query shapes mirror
// orderservice's postgres.SagaRepository exactly; it cannot import that
// package directly across the internal/ boundary, so the narrow subset
// needed here is duplicated rather than shared.
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

// Create inserts a new saga row in PENDING state, part of the same local
// transaction that persists the Order and the ORDER_CREATED outbox row.
func (r *SagaRepository) Create(ctx context.Context, db *sql.Tx, s mmodel.Saga) error {
	query, args, err := r.builder.Insert(r.table).
		Columns("id", "tenant_id", "user_id", "order_id", "state", "last_event_type", "last_event_ts", "attempts", "created_at", "updated_at").
		Values(s.ID, s.TenantID, s.UserID, s.OrderID, int16(s.State), s.LastEventType, s.LastEventTS, s.Attempts, s.CreatedAt, s.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("gateway: build saga insert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("gateway: insert saga: %w", err)
	}

	return nil
}

// GetByID loads a saga row without locking, for the read-path endpoint.
func (r *SagaRepository) GetByID(ctx context.Context, db *sql.DB, sagaID string) (mmodel.Saga, error) {
	query, args, err := r.builder.Select(
		"id", "tenant_id", "user_id", "order_id", "state", "last_event_type", "last_event_ts", "attempts", "created_at", "updated_at",
	).From(r.table).
		Where(sq.Eq{"id": sagaID}).
		ToSql()
	if err != nil {
		return mmodel.Saga{}, fmt.Errorf("gateway: build saga get: %w", err)
	}

	var (
		s     mmodel.Saga
		state int16
	)

	if err := db.QueryRowContext(ctx, query, args...).Scan(
		&s.ID, &s.TenantID, &s.UserID, &s.OrderID, &state, &s.LastEventType, &s.LastEventTS, &s.Attempts, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return mmodel.Saga{}, fmt.Errorf("gateway: get saga %s: %w", sagaID, err)
	}

	s.State = mmodel.SagaState(state)

	return s, nil
}
