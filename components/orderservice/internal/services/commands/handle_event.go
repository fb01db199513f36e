// Package commands holds the orchestrator's use-case layer: one entry point,
// HandleEvent, which is the only place SPEC_FULL.md §4.6's transition table
// is actually driven against live state, grounded on the teacher's
// components/consumer/internal/services/commands use-case shape
// (UseCase struct injected with repositories, one method per inbound
// message kind).
package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	"github.com/DimitryIvaniuta/order-platform-sub001/components/orderservice/internal/adapters/postgres"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/idempotency"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/outbox"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/saga"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/sagaaudit"
)

// TxBeginner is the handle HandleEvent/HandleTimeout need to open their
// transaction. *sql.DB satisfies it directly; so does mpostgres's
// dbresolver.DB wrapper (BeginTx delegates to the resolver's primary pool),
// letting orderservice wire the primary/replica split in without touching
// every call site that already only needs BeginTx.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// UseCase wires the orchestrator's dependencies: the saga table, the
// idempotency ledger guarding against redelivery, the outbox store that
// makes command dispatch transactional with the state transition, and the
// watchdog that arms/cancels per-state timeouts.
type UseCase struct {
	DB        TxBeginner
	SagaRepo  *postgres.SagaRepository
	Idem      *idempotency.Ledger
	Outbox    *outbox.Store
	Watchdog  *saga.Watchdog
	Audit     *sagaaudit.Writer
	Logger    mlog.Logger
}

// recordAudit appends a forensic transition record after the owning
// transaction has already committed. The audit trail is best-effort: a
// Mongo hiccup here must never roll back or retry a committed saga
// transition, so failures are only logged.
func (uc *UseCase) recordAudit(ctx context.Context, tenantID, sagaID string, from, to mmodel.SagaState, eventType string, compensating bool) {
	if uc.Audit == nil {
		return
	}

	rec := sagaaudit.NewRecord(tenantID, sagaID, from, to, eventType, compensating)
	if err := uc.Audit.Append(ctx, rec); err != nil {
		uc.Logger.Warnf("orderservice: saga audit append failed for %s: %v", sagaID, err)
	}
}

// commandTopicFor maps an emitted event type to the bus topic of the
// service that owns acting on it. Event types with no downstream command
// (the terminal ORDER_COMPLETED/ORDER_FAILED) return ok=false: they are
// still persisted to the outbox on TopicOrderEvents for read-model/audit
// consumers, never dispatched as a command.
func commandTopicFor(eventType string) (topic string, ok bool) {
	switch eventType {
	case mmodel.EventPaymentAuthorized, mmodel.EventPaymentVoid, mmodel.EventPaymentCaptured:
		return mmodel.TopicPaymentEvents, true
	case mmodel.EventInventoryReserved, mmodel.EventInventoryRelease:
		return mmodel.TopicInventoryEvents, true
	default:
		return mmodel.TopicOrderEvents, false
	}
}

// TopicForEventType exports commandTopicFor's routing decision for the
// outbox publisher's topicFor callback, so a row's destination topic is
// computed the same way at dispatch time as it was at emit time.
func TopicForEventType(eventType string) string {
	topic, _ := commandTopicFor(eventType)
	return topic
}

// HandleEvent applies one inbound event to the named saga: idempotency
// guard, load-lock-advance under a single transaction, outbox dispatch of
// whatever the transition emits, and watchdog rearm. It is the single
// choreography hub every downstream service's result event passes through.
func (uc *UseCase) HandleEvent(ctx context.Context, tenantID, sagaID, eventType string, payload json.RawMessage) error {
	tx, err := uc.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("orderservice: begin handle-event tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := uc.Idem.TryInsert(ctx, tx, idempotency.Record{
		TenantID:  tenantID,
		SagaID:    sagaID,
		EventType: eventType,
	})
	if err != nil {
		return fmt.Errorf("orderservice: idempotency check: %w", err)
	}

	if !inserted {
		uc.Logger.Infof("orderservice: duplicate event %s for saga %s, skipping", eventType, sagaID)
		return tx.Commit()
	}

	current, err := uc.SagaRepo.GetForUpdate(ctx, tx, sagaID)
	if err != nil {
		return fmt.Errorf("orderservice: load saga %s: %w", sagaID, err)
	}

	outcome := saga.Apply(current.State, eventType)

	if outcome.NoOp {
		uc.Logger.Infof("orderservice: event %s is a no-op for saga %s in state %s", eventType, sagaID, current.State)
		return tx.Commit()
	}

	if err := uc.SagaRepo.Advance(ctx, tx, sagaID, outcome.NextState, eventType); err != nil {
		return fmt.Errorf("orderservice: advance saga %s: %w", sagaID, err)
	}

	for _, emitType := range outcome.EventsToEmit {
		topic, _ := commandTopicFor(emitType)

		envelope := mmodel.Event{
			SagaID:   sagaID,
			Type:     emitType,
			TenantID: tenantID,
			TS:       time.Now().UTC(),
			Payload:  payload,
		}
		if outcome.Compensating {
			envelope.Reason = "compensation"
		}

		body, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("orderservice: marshal envelope for %s: %w", emitType, err)
		}

		headers, err := json.Marshal(map[string]string{"topic": topic})
		if err != nil {
			return fmt.Errorf("orderservice: marshal headers for %s: %w", emitType, err)
		}

		if _, err := uc.Outbox.SaveEvent(ctx, tx, tenantID, sagaID, "saga", &sagaID, emitType, &sagaID, body, headers); err != nil {
			return fmt.Errorf("orderservice: save outbox event %s: %w", emitType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("orderservice: commit handle-event tx: %w", err)
	}

	uc.recordAudit(ctx, tenantID, sagaID, current.State, outcome.NextState, eventType, outcome.Compensating)

	if outcome.NextState.Terminal() {
		uc.Watchdog.Cancel(sagaID)
	} else if timeout := saga.TimeoutFor(outcome.NextState); timeout > 0 {
		uc.Watchdog.Arm(sagaID, outcome.NextState.String(), timeout)
	}

	return nil
}

// HandleTimeout applies a watchdog expiry exactly like a failure event,
// reusing the same transactional path as HandleEvent. tenantID is derived
// from the locked saga row since the watchdog callback only carries a
// sagaId.
func (uc *UseCase) HandleTimeout(ctx context.Context, sagaID string) error {
	tx, err := uc.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("orderservice: begin timeout tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := uc.SagaRepo.GetForUpdate(ctx, tx, sagaID)
	if err != nil {
		return fmt.Errorf("orderservice: load saga %s: %w", sagaID, err)
	}

	if current.State.Terminal() {
		return tx.Commit()
	}

	tenantID := current.TenantID

	outcome := saga.ApplyTimeout(current.State)

	if err := uc.SagaRepo.Advance(ctx, tx, sagaID, outcome.NextState, "TIMEOUT"); err != nil {
		return fmt.Errorf("orderservice: advance saga %s on timeout: %w", sagaID, err)
	}

	for _, emitType := range outcome.EventsToEmit {
		topic, _ := commandTopicFor(emitType)

		envelope := mmodel.Event{
			SagaID: sagaID, Type: emitType, TenantID: tenantID,
			TS: time.Now().UTC(), Reason: "timeout",
		}

		body, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("orderservice: marshal timeout envelope for %s: %w", emitType, err)
		}

		headers, err := json.Marshal(map[string]string{"topic": topic})
		if err != nil {
			return fmt.Errorf("orderservice: marshal timeout headers for %s: %w", emitType, err)
		}

		if _, err := uc.Outbox.SaveEvent(ctx, tx, tenantID, sagaID, "saga", &sagaID, emitType, &sagaID, body, headers); err != nil {
			return fmt.Errorf("orderservice: save timeout outbox event %s: %w", emitType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("orderservice: commit timeout tx: %w", err)
	}

	uc.recordAudit(ctx, tenantID, sagaID, current.State, outcome.NextState, "TIMEOUT", outcome.Compensating)

	uc.Watchdog.Cancel(sagaID)

	return nil
}
