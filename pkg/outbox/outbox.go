// Package outbox implements C3 (outbox store) and C4 (outbox publisher): a
// transactional write path and a lease-based drain loop, grounded on the
// teacher's own outbox test-fixture contracts (SecureRandomFloat64, a DLQ
// concept named by outbox_dlq_test.go without a shipped implementation) and
// built against Masterminds/squirrel + jackc/pgx/v5/stdlib via the same
// database/sql surface common/mpostgres.PostgresConnection already exposes.
package outbox

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// Row mirrors SPEC_FULL.md §3's OutboxRow shape.
type Row struct {
	ID            int64
	CreatedOn     time.Time
	TenantID      string
	SagaID        string
	AggregateType string
	AggregateID   *string
	EventType     string
	EventKey      *string
	Payload       json.RawMessage
	HeadersJSON   json.RawMessage
	Attempts      int32
	LeaseUntil    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DB is the subset of *sql.DB / dbresolver.DB this package needs, satisfied
// both by a real pooled connection and by a *sql.Tx for the transactional
// write path.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const attemptsCap = 12

// Store is the outbox table's data-access layer.
type Store struct {
	table          string
	deadLetterTable string
	builder        sq.StatementBuilderType
}

// NewStore builds a Store over the given outbox table names.
func NewStore(table, deadLetterTable string) *Store {
	return &Store{
		table:           table,
		deadLetterTable: deadLetterTable,
		builder:         sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// SaveEvent inserts one outbox row. db MUST be the same *sql.Tx that also
// writes the aggregate-state change, or the outbox stops being
// transactional.
func (s *Store) SaveEvent(ctx context.Context, db DB, tenantID, sagaID, aggregateType string, aggregateID *string, eventType string, eventKey *string, payload, headers json.RawMessage) (*Row, error) {
	now := time.Now().UTC()
	createdOn := now.Truncate(24 * time.Hour)

	query, args, err := s.builder.Insert(s.table).
		Columns("created_on", "tenant_id", "saga_id", "aggregate_type", "aggregate_id", "event_type", "event_key", "payload", "headers_json", "attempts", "lease_until", "created_at", "updated_at").
		Values(createdOn, tenantID, sagaID, aggregateType, aggregateID, eventType, eventKey, payload, headers, 0, nil, now, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("outbox: build insert: %w", err)
	}

	var id int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return nil, fmt.Errorf("outbox: insert event: %w", err)
	}

	return &Row{
		ID: id, CreatedOn: createdOn, TenantID: tenantID, SagaID: sagaID,
		AggregateType: aggregateType, AggregateID: aggregateID, EventType: eventType,
		EventKey: eventKey, Payload: payload, HeadersJSON: headers,
		Attempts: 0, CreatedAt: now, UpdatedAt: now,
	}, nil
}

// LeaseBatchForTenant atomically selects up to batchSize eligible rows for
// tenantID using FOR UPDATE SKIP LOCKED, bumps attempts and sets
// lease_until, and returns them. Multiple concurrent callers observe
// disjoint subsets because of SKIP LOCKED.
func (s *Store) LeaseBatchForTenant(ctx context.Context, db *sql.DB, tenantID string, batchSize int, leaseDuration time.Duration) ([]Row, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("outbox: begin lease tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	selectQuery, selectArgs, err := s.builder.Select(
		"id", "created_on", "tenant_id", "saga_id", "aggregate_type", "aggregate_id",
		"event_type", "event_key", "payload", "headers_json", "attempts", "lease_until",
		"created_at", "updated_at",
	).From(s.table).
		Where(sq.Eq{"tenant_id": tenantID}).
		Where(sq.Or{sq.Eq{"lease_until": nil}, sq.Lt{"lease_until": time.Now().UTC()}}).
		OrderBy("created_at ASC").
		Limit(uint64(batchSize)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("outbox: build lease select: %w", err)
	}

	rows, err := tx.QueryContext(ctx, selectQuery, selectArgs...)
	if err != nil {
		return nil, fmt.Errorf("outbox: lease select: %w", err)
	}

	var leased []Row

	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.CreatedOn, &r.TenantID, &r.SagaID, &r.AggregateType, &r.AggregateID,
			&r.EventType, &r.EventKey, &r.Payload, &r.HeadersJSON, &r.Attempts, &r.LeaseUntil,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("outbox: scan lease row: %w", err)
		}
		leased = append(leased, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: lease rows iteration: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("outbox: close lease rows: %w", err)
	}

	newLeaseUntil := time.Now().UTC().Add(leaseDuration)

	for i := range leased {
		updateQuery, updateArgs, err := s.builder.Update(s.table).
			Set("lease_until", newLeaseUntil).
			Set("attempts", leased[i].Attempts+1).
			Set("updated_at", time.Now().UTC()).
			Where(sq.Eq{"id": leased[i].ID, "created_on": leased[i].CreatedOn}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("outbox: build lease update: %w", err)
		}

		if _, err := tx.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
			return nil, fmt.Errorf("outbox: lease update: %w", err)
		}

		leased[i].LeaseUntil = &newLeaseUntil
		leased[i].Attempts++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("outbox: commit lease tx: %w", err)
	}

	return leased, nil
}

// Key identifies one outbox row by its composite primary key.
type Key struct {
	ID        int64
	CreatedOn time.Time
}

// DeleteByKeys hard-deletes published rows, the preferred terminal action
// per SPEC_FULL.md §3's invariant in favor of keeping partitions small.
func (s *Store) DeleteByKeys(ctx context.Context, db DB, keys []Key) error {
	if len(keys) == 0 {
		return nil
	}

	for _, k := range keys {
		query, args, err := s.builder.Delete(s.table).
			Where(sq.Eq{"id": k.ID, "created_on": k.CreatedOn}).
			ToSql()
		if err != nil {
			return fmt.Errorf("outbox: build delete: %w", err)
		}

		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("outbox: delete row %d/%s: %w", k.ID, k.CreatedOn, err)
		}
	}

	return nil
}

// Quarantine moves a row that exceeded the attempts cap into the
// dead-letter table instead of deleting it, per SPEC_FULL.md §4.3.
func (s *Store) Quarantine(ctx context.Context, db DB, row Row, reason string) error {
	query, args, err := s.builder.Insert(s.deadLetterTable).
		Columns("id", "created_on", "tenant_id", "saga_id", "aggregate_type", "aggregate_id",
			"event_type", "event_key", "payload", "headers_json", "attempts", "reason", "quarantined_at").
		Values(row.ID, row.CreatedOn, row.TenantID, row.SagaID, row.AggregateType, row.AggregateID,
			row.EventType, row.EventKey, row.Payload, row.HeadersJSON, row.Attempts, reason, time.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("outbox: build quarantine insert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("outbox: quarantine insert: %w", err)
	}

	return s.DeleteByKeys(ctx, db, []Key{{ID: row.ID, CreatedOn: row.CreatedOn}})
}

// ExceedsAttemptsCap reports whether row has exhausted its retry budget.
func ExceedsAttemptsCap(row Row) bool { return row.Attempts >= attemptsCap }

// SecureRandomFloat64 returns a float64 in [0,1) sourced from crypto/rand,
// matching the contract the teacher's outbox test fixtures exercise under
// that exact name -- a non-blocking PRNG read usable for backoff jitter
// without pulling in math/rand's global lock.
func SecureRandomFloat64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable on this host;
		// fall back to a fixed midpoint rather than panicking the publisher.
		return 0.5
	}

	// Use the top 53 bits for a uniform float64 in [0,1), matching the
	// standard library's own math/rand.Float64 construction.
	n := binary.BigEndian.Uint64(buf[:]) >> 11

	return float64(n) / float64(1<<53)
}

// BackoffDuration computes a truncated-exponential backoff with jitter for
// the given attempt count (1-indexed), capped at maxBackoff.
func BackoffDuration(attempt int, base, maxBackoff time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	backoff := base
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
			break
		}
	}

	jitterFactor := 0.5 + SecureRandomFloat64()*0.5 // 50%-100% of computed backoff

	return time.Duration(float64(backoff) * jitterFactor)
}

// NewEventKey mints a fresh event key when the caller has none; in this
// domain eventKey is always set to sagaId by callers, but this stays
// available for standalone aggregate events with no saga.
func NewEventKey() string { return uuid.NewString() }
