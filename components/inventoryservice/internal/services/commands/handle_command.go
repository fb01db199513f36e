// Package commands implements the inventory-service's reaction to the two
// commands the orchestrator routes onto inventory.events.v1: reserve every
// line of an order, or release a saga's reservations on compensation.
package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	"github.com/DimitryIvaniuta/order-platform-sub001/components/inventoryservice/internal/adapters/postgres"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/idempotency"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/outbox"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/saga"
)

// UseCase wires the inventory-service's dependencies: its own Postgres
// repository, the idempotency ledger, the outbox store publishing results
// back to the orchestrator, and the stock checker every reservation draws
// against.
type UseCase struct {
	DB           *sql.DB
	Reservations *postgres.ReservationRepository
	Idem         *idempotency.Ledger
	Outbox       *outbox.Store
	Stock        saga.StockChecker
	Logger       mlog.Logger
}

// HandleCommand reacts to one inbound command from inventory.events.v1.
func (uc *UseCase) HandleCommand(ctx context.Context, event mmodel.Event) error {
	var payload mmodel.SagaPayload
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("inventoryservice: unmarshal payload: %w", err)
		}
	}

	switch event.Type {
	case mmodel.EventInventoryReserved:
		return uc.reserve(ctx, event, payload)
	case mmodel.EventInventoryRelease:
		return uc.release(ctx, event, payload)
	default:
		uc.Logger.Infof("inventoryservice: ignoring unknown command type %s", event.Type)
		return nil
	}
}

// reserve draws down the stock ledger for every line on the order inside
// one transaction. At the first short SKU it stops drawing, stores every
// line as INSUFFICIENT and commits with EventInventoryFailed; stock already
// drawn through Stock.Reserve for earlier lines is not released here.
func (uc *UseCase) reserve(ctx context.Context, event mmodel.Event, payload mmodel.SagaPayload) error {
	tx, err := uc.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("inventoryservice: begin reserve tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := uc.Idem.TryInsert(ctx, tx, idempotency.Record{
		TenantID: event.TenantID, SagaID: event.SagaID, EventType: "cmd:" + event.Type,
	})
	if err != nil {
		return fmt.Errorf("inventoryservice: idempotency check: %w", err)
	}
	if !inserted {
		return tx.Commit()
	}

	resultType := mmodel.EventInventoryReserved
	status := mmodel.ReservationStatusReserved

	for _, line := range payload.Lines {
		if err := uc.Stock.Reserve(ctx, line.SKU, line.Qty); err != nil {
			resultType = mmodel.EventInventoryFailed
			status = mmodel.ReservationStatusInsufficient
			break
		}
	}

	for _, line := range payload.Lines {
		if err := uc.Reservations.UpsertLine(ctx, tx, mmodel.Reservation{
			ID: event.SagaID + ":" + line.SKU, TenantID: event.TenantID, OrderID: payload.OrderID,
			SagaID: event.SagaID, SKU: line.SKU, Qty: line.Qty, Status: status,
		}); err != nil {
			return fmt.Errorf("inventoryservice: persist reservation line %s: %w", line.SKU, err)
		}
	}

	return uc.emitResult(ctx, tx, event, resultType, payload)
}

// release gives every reserved line on a saga back to the stock ledger,
// the compensating action fired on payment failure or a saga timeout.
// Like paymentservice's void, release is best-effort: a stock-ledger
// error is logged, not propagated, since the saga is already compensating.
func (uc *UseCase) release(ctx context.Context, event mmodel.Event, payload mmodel.SagaPayload) error {
	tx, err := uc.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("inventoryservice: begin release tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := uc.Idem.TryInsert(ctx, tx, idempotency.Record{
		TenantID: event.TenantID, SagaID: event.SagaID, EventType: "cmd:" + event.Type,
	})
	if err != nil {
		return fmt.Errorf("inventoryservice: idempotency check: %w", err)
	}
	if !inserted {
		return tx.Commit()
	}

	reserved, err := uc.Reservations.ListBySagaID(ctx, tx, event.SagaID)
	if err != nil {
		return fmt.Errorf("inventoryservice: list reservations for release: %w", err)
	}

	for _, r := range reserved {
		if r.Status != mmodel.ReservationStatusReserved {
			continue
		}
		if err := uc.Stock.Release(ctx, r.SKU, r.Qty); err != nil {
			uc.Logger.Errorf("inventoryservice: release stock failed for saga %s sku %s: %v", event.SagaID, r.SKU, err)
		}
	}

	if err := uc.Reservations.ReleaseAll(ctx, tx, event.SagaID); err != nil {
		return fmt.Errorf("inventoryservice: mark reservations released: %w", err)
	}

	return tx.Commit()
}

func (uc *UseCase) emitResult(ctx context.Context, tx *sql.Tx, event mmodel.Event, resultType string, payload mmodel.SagaPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("inventoryservice: marshal result payload: %w", err)
	}

	envelope := mmodel.Event{
		SagaID: event.SagaID, Type: resultType, TenantID: event.TenantID,
		TS: time.Now().UTC(), Payload: body,
	}

	envBody, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("inventoryservice: marshal result envelope: %w", err)
	}

	if _, err := uc.Outbox.SaveEvent(ctx, tx, event.TenantID, event.SagaID, "reservation", &event.SagaID, resultType, &event.SagaID, envBody, json.RawMessage(`{}`)); err != nil {
		return fmt.Errorf("inventoryservice: save outbox result: %w", err)
	}

	return tx.Commit()
}
