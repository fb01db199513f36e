package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

// ShipmentRepository persists the shipping-service's audit record of a
// completed order -- written strictly after the saga has already reached
// COMPLETED, so there is no load-lock-advance dance here, just an insert.
type ShipmentRepository struct {
	table   string
	builder sq.StatementBuilderType
}

// NewShipmentRepository builds a ShipmentRepository over table (default
// "shipments").
func NewShipmentRepository(table string) *ShipmentRepository {
	if table == "" {
		table = "shipments"
	}

	return &ShipmentRepository{table: table, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// Create inserts one shipment row keyed by sagaId, ON CONFLICT DO NOTHING so
// a duplicate ORDER_COMPLETED delivery never double-books a shipment.
func (r *ShipmentRepository) Create(ctx context.Context, db *sql.Tx, s mmodel.Shipment) error {
	now := time.Now().UTC()

	query, args, err := r.builder.Insert(r.table).
		Columns("id", "tenant_id", "order_id", "saga_id", "status", "carrier_ref", "created_at", "updated_at").
		Values(s.ID, s.TenantID, s.OrderID, s.SagaID, int16(s.Status), s.CarrierRef, now, now).
		Suffix("ON CONFLICT (saga_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("shippingservice: build shipment insert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("shippingservice: insert shipment for saga %s: %w", s.SagaID, err)
	}

	return nil
}
