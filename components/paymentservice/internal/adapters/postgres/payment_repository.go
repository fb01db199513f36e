package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

// PaymentRepository persists the payment-service's view of one order's
// authorization/capture/void lifecycle.
type PaymentRepository struct {
	table   string
	builder sq.StatementBuilderType
}

// NewPaymentRepository builds a PaymentRepository over table.
func NewPaymentRepository(table string) *PaymentRepository {
	if table == "" {
		table = "payments"
	}

	return &PaymentRepository{table: table, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// Upsert writes a payment row keyed by sagaId -- one payment authorization
// per saga, so retried commands update the same row rather than creating
// duplicates outside the idempotency ledger's own protection.
func (r *PaymentRepository) Upsert(ctx context.Context, db *sql.Tx, p mmodel.Payment) error {
	now := time.Now().UTC()

	query, args, err := r.builder.Insert(r.table).
		Columns("id", "tenant_id", "order_id", "saga_id", "status", "amount_minor", "provider_ref", "created_at", "updated_at").
		Values(p.ID, p.TenantID, p.OrderID, p.SagaID, int16(p.Status), p.AmountMinor, p.ProviderRef, now, now).
		Suffix("ON CONFLICT (saga_id) DO UPDATE SET status = EXCLUDED.status, provider_ref = EXCLUDED.provider_ref, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("paymentservice: build payment upsert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("paymentservice: upsert payment for saga %s: %w", p.SagaID, err)
	}

	return nil
}

// GetBySagaID loads the payment row for a saga, used before issuing a
// capture/void so the provider ref is available.
func (r *PaymentRepository) GetBySagaID(ctx context.Context, db *sql.Tx, sagaID string) (mmodel.Payment, error) {
	query, args, err := r.builder.Select(
		"id", "tenant_id", "order_id", "saga_id", "status", "amount_minor", "provider_ref", "created_at", "updated_at",
	).From(r.table).Where(sq.Eq{"saga_id": sagaID}).ToSql()
	if err != nil {
		return mmodel.Payment{}, fmt.Errorf("paymentservice: build payment select: %w", err)
	}

	var (
		p      mmodel.Payment
		status int16
	)

	if err := db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.TenantID, &p.OrderID, &p.SagaID, &status, &p.AmountMinor, &p.ProviderRef, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return mmodel.Payment{}, fmt.Errorf("paymentservice: select payment for saga %s: %w", sagaID, err)
	}

	p.Status = mmodel.PaymentStatus(status)

	return p, nil
}
