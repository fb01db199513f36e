package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

// OrderRepository is the gateway's sole write path for the Order aggregate:
// a row is created once, synchronously, in the same transaction as the
// owning Saga and its ORDER_CREATED outbox row, and never mutated again --
// every later state change downstream services apply lives on the Saga
// row, not here, so GetBySagaID's caller derives a presentable order
// status from the saga's current state rather than from a column no
// service updates.
type OrderRepository struct {
	table   string
	builder sq.StatementBuilderType
}

// NewOrderRepository builds an OrderRepository over table (default "orders").
func NewOrderRepository(table string) *OrderRepository {
	if table == "" {
		table = "orders"
	}

	return &OrderRepository{table: table, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// Create inserts the order row backing a newly accepted command.
func (r *OrderRepository) Create(ctx context.Context, db *sql.Tx, o mmodel.Order) error {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("gateway: marshal order lines: %w", err)
	}

	query, args, err := r.builder.Insert(r.table).
		Columns("id", "tenant_id", "saga_id", "customer_id", "status", "currency_code", "total_amount_minor", "lines", "created_at", "updated_at").
		Values(o.ID, o.TenantID, o.SagaID, o.CustomerID, int16(o.Status), o.CurrencyCode, o.TotalAmountMinor, lines, o.CreatedAt, o.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("gateway: build order insert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("gateway: insert order: %w", err)
	}

	return nil
}

// ListByTenant returns tenantID's orders newest-first, one page at a time.
// Pages are offset-based (page*limit) rather than keyset: the gateway's
// order volume per tenant is small enough that offset drift between pages
// under concurrent inserts is an acceptable tradeoff for the simpler query.
func (r *OrderRepository) ListByTenant(ctx context.Context, db *sql.DB, tenantID string, page, limit int) ([]mmodel.Order, error) {
	query, args, err := r.builder.Select(
		"id", "tenant_id", "saga_id", "customer_id", "status", "currency_code", "total_amount_minor", "lines", "created_at", "updated_at",
	).From(r.table).
		Where(sq.Eq{"tenant_id": tenantID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(page * limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("gateway: build order list: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("gateway: list orders for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var orders []mmodel.Order

	for rows.Next() {
		var (
			o        mmodel.Order
			status   int16
			linesRaw []byte
		)

		if err := rows.Scan(
			&o.ID, &o.TenantID, &o.SagaID, &o.CustomerID, &status, &o.CurrencyCode, &o.TotalAmountMinor, &linesRaw, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("gateway: scan order row: %w", err)
		}

		o.Status = mmodel.OrderStatus(status)

		if len(linesRaw) > 0 {
			if err := json.Unmarshal(linesRaw, &o.Lines); err != nil {
				return nil, fmt.Errorf("gateway: unmarshal order lines: %w", err)
			}
		}

		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gateway: iterate order rows: %w", err)
	}

	return orders, nil
}

// GetBySagaID loads the order owned by sagaID.
func (r *OrderRepository) GetBySagaID(ctx context.Context, db *sql.DB, sagaID string) (mmodel.Order, error) {
	query, args, err := r.builder.Select(
		"id", "tenant_id", "saga_id", "customer_id", "status", "currency_code", "total_amount_minor", "lines", "created_at", "updated_at",
	).From(r.table).
		Where(sq.Eq{"saga_id": sagaID}).
		ToSql()
	if err != nil {
		return mmodel.Order{}, fmt.Errorf("gateway: build order get: %w", err)
	}

	var (
		o       mmodel.Order
		status  int16
		linesRaw []byte
	)

	if err := db.QueryRowContext(ctx, query, args...).Scan(
		&o.ID, &o.TenantID, &o.SagaID, &o.CustomerID, &status, &o.CurrencyCode, &o.TotalAmountMinor, &linesRaw, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return mmodel.Order{}, fmt.Errorf("gateway: get order for saga %s: %w", sagaID, err)
	}

	o.Status = mmodel.OrderStatus(status)

	if len(linesRaw) > 0 {
		if err := json.Unmarshal(linesRaw, &o.Lines); err != nil {
			return mmodel.Order{}, fmt.Errorf("gateway: unmarshal order lines: %w", err)
		}
	}

	return o, nil
}
