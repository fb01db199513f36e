package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

// ReservationRepository persists the inventory-service's view of one order's
// per-SKU reservations -- one row per line, keyed by (saga_id, sku), each
// with its own status.
type ReservationRepository struct {
	table   string
	builder sq.StatementBuilderType
}

// NewReservationRepository builds a ReservationRepository over table
// (default "reservations").
func NewReservationRepository(table string) *ReservationRepository {
	if table == "" {
		table = "reservations"
	}

	return &ReservationRepository{table: table, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// UpsertLine writes (or updates) one SKU's reservation row for a saga,
// keyed by (saga_id, sku) so a retried command is idempotent at the
// storage layer in addition to the idempotency ledger's own guard.
func (r *ReservationRepository) UpsertLine(ctx context.Context, db *sql.Tx, res mmodel.Reservation) error {
	now := time.Now().UTC()

	query, args, err := r.builder.Insert(r.table).
		Columns("id", "tenant_id", "order_id", "saga_id", "sku", "qty", "status", "created_at", "updated_at").
		Values(res.ID, res.TenantID, res.OrderID, res.SagaID, res.SKU, res.Qty, int16(res.Status), now, now).
		Suffix("ON CONFLICT (saga_id, sku) DO UPDATE SET status = EXCLUDED.status, qty = EXCLUDED.qty, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("inventoryservice: build reservation upsert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inventoryservice: upsert reservation for saga %s sku %s: %w", res.SagaID, res.SKU, err)
	}

	return nil
}

// ListBySagaID loads every line reserved for a saga, used by release to
// know which SKUs to give back.
func (r *ReservationRepository) ListBySagaID(ctx context.Context, db *sql.Tx, sagaID string) ([]mmodel.Reservation, error) {
	query, args, err := r.builder.Select(
		"id", "tenant_id", "order_id", "saga_id", "sku", "qty", "status", "created_at", "updated_at",
	).From(r.table).Where(sq.Eq{"saga_id": sagaID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("inventoryservice: build reservation list: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inventoryservice: list reservations for saga %s: %w", sagaID, err)
	}
	defer rows.Close()

	var out []mmodel.Reservation
	for rows.Next() {
		var (
			res    mmodel.Reservation
			status int16
		)
		if err := rows.Scan(&res.ID, &res.TenantID, &res.OrderID, &res.SagaID, &res.SKU, &res.Qty, &status, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("inventoryservice: scan reservation row: %w", err)
		}
		res.Status = mmodel.ReservationStatus(status)
		out = append(out, res)
	}

	return out, rows.Err()
}

// ReleaseAll marks every reservation row for a saga RELEASED, the
// compensating action on PAYMENT_FAILED/timeout.
func (r *ReservationRepository) ReleaseAll(ctx context.Context, db *sql.Tx, sagaID string) error {
	query, args, err := r.builder.Update(r.table).
		Set("status", int16(mmodel.ReservationStatusReleased)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"saga_id": sagaID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("inventoryservice: build reservation release: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inventoryservice: release reservations for saga %s: %w", sagaID, err)
	}

	return nil
}
