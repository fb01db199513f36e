// Package commands implements the payment-service's reaction to the three
// commands the orchestrator routes onto payment.events.v1: authorize,
// capture and void, each guarded by the idempotency ledger and writing its
// result back to the orchestrator through the outbox.
package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	"github.com/DimitryIvaniuta/order-platform-sub001/components/paymentservice/internal/adapters/postgres"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/idempotency"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/outbox"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/saga"
)

// UseCase wires the payment-service's dependencies: its own Postgres
// repository, the idempotency ledger, the outbox store publishing results
// back to the orchestrator, and the fake payment provider.
type UseCase struct {
	DB       *sql.DB
	Payments *postgres.PaymentRepository
	Idem     *idempotency.Ledger
	Outbox   *outbox.Store
	Provider saga.PaymentProvider
	Logger   mlog.Logger
}

// HandleCommand reacts to one inbound command from payment.events.v1.
func (uc *UseCase) HandleCommand(ctx context.Context, event mmodel.Event) error {
	var payload mmodel.SagaPayload
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("paymentservice: unmarshal payload: %w", err)
		}
	}

	switch event.Type {
	case mmodel.EventPaymentAuthorized:
		return uc.authorize(ctx, event, payload)
	case mmodel.EventPaymentCaptured:
		return uc.capture(ctx, event, payload)
	case mmodel.EventPaymentVoid:
		return uc.void(ctx, event, payload)
	default:
		uc.Logger.Infof("paymentservice: ignoring unknown command type %s", event.Type)
		return nil
	}
}

func (uc *UseCase) authorize(ctx context.Context, event mmodel.Event, payload mmodel.SagaPayload) error {
	tx, err := uc.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("paymentservice: begin authorize tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := uc.Idem.TryInsert(ctx, tx, idempotency.Record{
		TenantID: event.TenantID, SagaID: event.SagaID, EventType: "cmd:" + event.Type,
	})
	if err != nil {
		return fmt.Errorf("paymentservice: idempotency check: %w", err)
	}
	if !inserted {
		return tx.Commit()
	}

	resultType := mmodel.EventPaymentAuthorized
	status := mmodel.PaymentStatusAuthorized
	providerRef := ""

	ref, err := uc.Provider.Authorize(ctx, payload.OrderID, payload.AmountMinor)
	if err != nil {
		resultType = mmodel.EventPaymentFailed
		status = mmodel.PaymentStatusFailed
	} else {
		providerRef = ref
	}

	if err := uc.Payments.Upsert(ctx, tx, mmodel.Payment{
		ID: event.SagaID, TenantID: event.TenantID, OrderID: payload.OrderID, SagaID: event.SagaID,
		Status: status, AmountMinor: payload.AmountMinor, ProviderRef: providerRef,
	}); err != nil {
		return fmt.Errorf("paymentservice: persist authorization: %w", err)
	}

	payload.ProviderRef = providerRef

	return uc.emitResult(ctx, tx, event, resultType, payload)
}

func (uc *UseCase) capture(ctx context.Context, event mmodel.Event, payload mmodel.SagaPayload) error {
	tx, err := uc.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("paymentservice: begin capture tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := uc.Idem.TryInsert(ctx, tx, idempotency.Record{
		TenantID: event.TenantID, SagaID: event.SagaID, EventType: "cmd:" + event.Type,
	})
	if err != nil {
		return fmt.Errorf("paymentservice: idempotency check: %w", err)
	}
	if !inserted {
		return tx.Commit()
	}

	existing, err := uc.Payments.GetBySagaID(ctx, tx, event.SagaID)
	if err != nil {
		return fmt.Errorf("paymentservice: load payment for capture: %w", err)
	}

	resultType := mmodel.EventPaymentCaptured
	if err := uc.Provider.Capture(ctx, existing.ProviderRef, existing.AmountMinor); err != nil {
		existing.Status = mmodel.PaymentStatusFailed
		resultType = mmodel.EventPaymentFailed
	} else {
		existing.Status = mmodel.PaymentStatusCaptured
	}

	if err := uc.Payments.Upsert(ctx, tx, existing); err != nil {
		return fmt.Errorf("paymentservice: persist capture: %w", err)
	}

	return uc.emitResult(ctx, tx, event, resultType, payload)
}

func (uc *UseCase) void(ctx context.Context, event mmodel.Event, payload mmodel.SagaPayload) error {
	tx, err := uc.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("paymentservice: begin void tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := uc.Idem.TryInsert(ctx, tx, idempotency.Record{
		TenantID: event.TenantID, SagaID: event.SagaID, EventType: "cmd:" + event.Type,
	})
	if err != nil {
		return fmt.Errorf("paymentservice: idempotency check: %w", err)
	}
	if !inserted {
		return tx.Commit()
	}

	existing, err := uc.Payments.GetBySagaID(ctx, tx, event.SagaID)
	if err != nil {
		return fmt.Errorf("paymentservice: load payment for void: %w", err)
	}

	// Void is a best-effort compensation: a failure here is logged, not
	// propagated, since the saga is already compensating and cannot retry
	// this step without a dedicated reconciliation job.
	if err := uc.Provider.Void(ctx, existing.ProviderRef); err != nil {
		uc.Logger.Errorf("paymentservice: void failed for saga %s: %v", event.SagaID, err)
	}

	existing.Status = mmodel.PaymentStatusVoided

	if err := uc.Payments.Upsert(ctx, tx, existing); err != nil {
		return fmt.Errorf("paymentservice: persist void: %w", err)
	}

	return tx.Commit()
}

func (uc *UseCase) emitResult(ctx context.Context, tx *sql.Tx, event mmodel.Event, resultType string, payload mmodel.SagaPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("paymentservice: marshal result payload: %w", err)
	}

	envelope := mmodel.Event{
		SagaID: event.SagaID, Type: resultType, TenantID: event.TenantID,
		TS: time.Now().UTC(), Payload: body,
	}

	envBody, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("paymentservice: marshal result envelope: %w", err)
	}

	if _, err := uc.Outbox.SaveEvent(ctx, tx, event.TenantID, event.SagaID, "payment", &event.SagaID, resultType, &event.SagaID, envBody, json.RawMessage(`{}`)); err != nil {
		return fmt.Errorf("paymentservice: save outbox result: %w", err)
	}

	return tx.Commit()
}
