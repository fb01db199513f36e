// Package idempotency implements C7: the per-service ledger that de-dupes
// inbound commands/events by (tenantId, sagaId, eventType), plus the
// gateway's supplemented client-idempotency-key check.
package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/constant"
)

// DB is the narrow database surface this package needs, satisfied by
// *sql.Tx so the ledger insert can share the caller's transaction.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Record is one ledger row.
type Record struct {
	TenantID        string
	SagaID          string
	EventType       string
	InboundOffset   int64
	Result          string
	OutboundEventID *string
}

// Ledger is the per-service idempotency table.
type Ledger struct {
	table   string
	builder sq.StatementBuilderType
}

// NewLedger builds a Ledger over table.
func NewLedger(table string) *Ledger {
	return &Ledger{table: table, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// TryInsert attempts to insert rec inside the caller's transaction. It
// returns (true, nil) if this call won the race and the effect should be
// applied; (false, nil) if a row already exists for this
// (tenantId, sagaId, eventType) and the caller must ack without effect.
func (l *Ledger) TryInsert(ctx context.Context, db DB, rec Record) (bool, error) {
	query, args, err := l.builder.Insert(l.table).
		Columns("tenant_id", "saga_id", "event_type", "inbound_offset", "result", "outbound_event_id", "created_at").
		Values(rec.TenantID, rec.SagaID, rec.EventType, rec.InboundOffset, rec.Result, rec.OutboundEventID, time.Now().UTC()).
		Suffix("ON CONFLICT (tenant_id, saga_id, event_type) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("idempotency: build insert: %w", err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("idempotency: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("idempotency: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return false, nil
	}

	return true, nil
}

// RecordOutboundEvent attaches the emitted event's id to an existing ledger
// row, so a publisher crash can match re-emission back to the same effect.
func (l *Ledger) RecordOutboundEvent(ctx context.Context, db DB, tenantID, sagaID, eventType, outboundEventID string) error {
	query, args, err := l.builder.Update(l.table).
		Set("outbound_event_id", outboundEventID).
		Where(sq.Eq{"tenant_id": tenantID, "saga_id": sagaID, "event_type": eventType}).
		ToSql()
	if err != nil {
		return fmt.Errorf("idempotency: build update: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("idempotency: update outbound event id: %w", err)
	}

	return nil
}

// ErrDuplicate is returned by the client-key check when a key was already
// seen within its retention window.
var ErrDuplicate = errors.New(constant.ErrIdempotencyConflict.Error())

const clientKeyRetention = time.Minute

// ClientKeyLedger is the gateway's supplemented Idempotency-Key check,
// scoped by (tenantId, idempotencyKey) with a 1-minute retention window, so
// scenario 4 (duplicate POST /orders) is satisfied without requiring the
// client to pre-mint a sagaId.
type ClientKeyLedger struct {
	table   string
	builder sq.StatementBuilderType
}

// NewClientKeyLedger builds a ClientKeyLedger over table.
func NewClientKeyLedger(table string) *ClientKeyLedger {
	return &ClientKeyLedger{table: table, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// TryClaim attempts to claim idempotencyKey for tenantID, returning the
// previously stored sagaId if the key was already claimed within the
// retention window, or ("", true, nil) if this call won the race.
func (c *ClientKeyLedger) TryClaim(ctx context.Context, db DB, tenantID, idempotencyKey, sagaID string) (existingSagaID string, claimed bool, err error) {
	now := time.Now().UTC()

	insertQuery, insertArgs, err := c.builder.Insert(c.table).
		Columns("tenant_id", "idempotency_key", "saga_id", "created_at").
		Values(tenantID, idempotencyKey, sagaID, now).
		Suffix("ON CONFLICT (tenant_id, idempotency_key) DO NOTHING").
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("idempotency: build claim insert: %w", err)
	}

	result, err := db.ExecContext(ctx, insertQuery, insertArgs...)
	if err != nil {
		return "", false, fmt.Errorf("idempotency: claim insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("idempotency: claim rows affected: %w", err)
	}

	if rowsAffected > 0 {
		return "", true, nil
	}

	selectQuery, selectArgs, err := c.builder.Select("saga_id", "created_at").
		From(c.table).
		Where(sq.Eq{"tenant_id": tenantID, "idempotency_key": idempotencyKey}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("idempotency: build claim select: %w", err)
	}

	var (
		storedSagaID string
		createdAt    time.Time
	)

	if err := db.QueryRowContext(ctx, selectQuery, selectArgs...).Scan(&storedSagaID, &createdAt); err != nil {
		return "", false, fmt.Errorf("idempotency: claim select: %w", err)
	}

	if now.Sub(createdAt) > clientKeyRetention {
		// Outside the retention window: treat as a fresh key. The caller is
		// responsible for re-inserting with an updated created_at if it
		// wants to reuse this exact row; simplest correct behavior here is
		// to let the caller retry TryClaim after deleting the stale row.
		return "", true, nil
	}

	return storedSagaID, false, nil
}
