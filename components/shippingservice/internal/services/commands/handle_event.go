// Package commands implements the shipping-service's reaction to
// ORDER_COMPLETED: schedule a shipment and record SHIPPING_SCHEDULED or
// SHIPPING_FAILED purely for audit. The saga itself is already terminal by
// the time this runs -- see the package-level design note in DESIGN.md for
// why a shipping failure here never reopens the order.
package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	"github.com/DimitryIvaniuta/order-platform-sub001/components/shippingservice/internal/adapters/postgres"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/idempotency"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/outbox"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/saga"
)

// UseCase wires the shipping-service's dependencies.
type UseCase struct {
	DB        *sql.DB
	Shipments *postgres.ShipmentRepository
	Idem      *idempotency.Ledger
	Outbox    *outbox.Store
	Scheduler saga.ShippingScheduler
	Logger    mlog.Logger
}

// HandleEvent reacts to one inbound delivery from order.events.v1, ignoring
// every event type except ORDER_COMPLETED.
func (uc *UseCase) HandleEvent(ctx context.Context, event mmodel.Event) error {
	if event.Type != mmodel.EventOrderCompleted {
		return nil
	}

	var payload mmodel.SagaPayload
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("shippingservice: unmarshal payload: %w", err)
		}
	}

	tx, err := uc.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("shippingservice: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := uc.Idem.TryInsert(ctx, tx, idempotency.Record{
		TenantID: event.TenantID, SagaID: event.SagaID, EventType: "cmd:" + event.Type,
	})
	if err != nil {
		return fmt.Errorf("shippingservice: idempotency check: %w", err)
	}
	if !inserted {
		return tx.Commit()
	}

	resultType := mmodel.EventShippingScheduled
	status := mmodel.ShipmentStatusScheduled

	carrierRef, err := uc.Scheduler.Schedule(ctx, payload.OrderID)
	if err != nil {
		resultType = mmodel.EventShippingFailed
		status = mmodel.ShipmentStatusFailed
	}

	if err := uc.Shipments.Create(ctx, tx, mmodel.Shipment{
		ID: event.SagaID, TenantID: event.TenantID, OrderID: payload.OrderID,
		SagaID: event.SagaID, Status: status, CarrierRef: carrierRef,
	}); err != nil {
		return fmt.Errorf("shippingservice: persist shipment: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("shippingservice: marshal result payload: %w", err)
	}

	envelope := mmodel.Event{
		SagaID: event.SagaID, Type: resultType, TenantID: event.TenantID,
		TS: time.Now().UTC(), Payload: body,
	}

	envBody, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("shippingservice: marshal result envelope: %w", err)
	}

	if _, err := uc.Outbox.SaveEvent(ctx, tx, event.TenantID, event.SagaID, "shipment", &event.SagaID, resultType, &event.SagaID, envBody, json.RawMessage(`{}`)); err != nil {
		return fmt.Errorf("shippingservice: save outbox result: %w", err)
	}

	return tx.Commit()
}
