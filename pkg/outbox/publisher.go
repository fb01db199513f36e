package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
)

// maxDrainWorkers bounds the fan-out across distinct saga/event keys within
// one drainOnce batch, per SPEC_FULL.md §4.4.
const maxDrainWorkers = 8

// Sender is the narrow bus-publish capability the outbox publisher needs;
// satisfied by pkg/bus's Publisher. Kept as a local interface so pkg/outbox
// does not import pkg/bus (the dependency runs the other way at the
// service-wiring layer).
type Sender interface {
	Publish(ctx context.Context, topic, key string, body []byte, headers map[string]string) error
}

// Publisher drains leased outbox rows to the bus for one tenant, fanning
// out across distinct event keys with a bounded worker pool while
// preserving per-sagaId ordering: rows sharing a key are always published
// serially, in lease order, by the same worker.
type Publisher struct {
	store         *Store
	db            *sql.DB
	sender        Sender
	logger        mlog.Logger
	topicFor      func(eventType string) string
	batchSize     int
	leaseDuration time.Duration
	backoffBase   time.Duration
	backoffMax    time.Duration
	pollInterval  time.Duration
}

// NewPublisher builds a Publisher. topicFor maps an event type to the bus
// topic it belongs on (order/payment/inventory/shipping events, per
// SPEC_FULL.md §6).
func NewPublisher(store *Store, db *sql.DB, sender Sender, logger mlog.Logger, topicFor func(string) string) *Publisher {
	return &Publisher{
		store:         store,
		db:            db,
		sender:        sender,
		logger:        logger,
		topicFor:      topicFor,
		batchSize:     100,
		leaseDuration: 30 * time.Second,
		backoffBase:   200 * time.Millisecond,
		backoffMax:    10 * time.Second,
		pollInterval:  500 * time.Millisecond,
	}
}

// Run loops until ctx is cancelled, draining tenantID's outbox on each tick.
func (p *Publisher) Run(ctx context.Context, tenantID string) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.drainOnce(ctx, tenantID); err != nil {
				p.logger.Errorf("outbox publisher: drain tenant %s: %v", tenantID, err)
			}
		}
	}
}

func (p *Publisher) drainOnce(ctx context.Context, tenantID string) error {
	batch, err := p.store.LeaseBatchForTenant(ctx, p.db, tenantID, p.batchSize, p.leaseDuration)
	if err != nil {
		return fmt.Errorf("lease batch: %w", err)
	}

	groups := make(map[string][]Row, len(batch))
	order := make([]string, 0, len(batch))

	for _, row := range batch {
		if ExceedsAttemptsCap(row) {
			if err := p.store.Quarantine(ctx, p.db, row, "attempts cap exceeded"); err != nil {
				p.logger.Errorf("outbox publisher: quarantine row %d: %v", row.ID, err)
			}
			continue
		}

		key := row.SagaID
		if row.EventKey != nil && *row.EventKey != "" {
			key = *row.EventKey
		}

		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		published []Key
		sem       = make(chan struct{}, maxDrainWorkers)
	)

	for _, key := range order {
		rows := groups[key]

		sem <- struct{}{}
		wg.Add(1)

		go func(key string, rows []Row) {
			defer func() {
				<-sem
				wg.Done()
			}()

			keyPublished := p.publishKeySerially(ctx, key, rows)

			mu.Lock()
			published = append(published, keyPublished...)
			mu.Unlock()
		}(key, rows)
	}

	wg.Wait()

	if len(published) == 0 {
		return nil
	}

	if err := p.store.DeleteByKeys(ctx, p.db, published); err != nil {
		return fmt.Errorf("delete published rows: %w", err)
	}

	return nil
}

// publishKeySerially publishes rows sharing one saga/event key in lease
// order on the calling goroutine, so a slow or backed-off publish for one
// key never stalls the other workers' keys.
func (p *Publisher) publishKeySerially(ctx context.Context, key string, rows []Row) []Key {
	published := make([]Key, 0, len(rows))

	for _, row := range rows {
		headers := map[string]string{
			"tenantId":      row.TenantID,
			"correlationId": row.SagaID,
			"eventType":     row.EventType,
		}

		topic := p.topicFor(row.EventType)

		if err := p.sender.Publish(ctx, topic, key, row.Payload, headers); err != nil {
			// Do not delete: the lease will expire and the row becomes
			// eligible for retry; attempts already incremented on lease.
			p.logger.Warnf("outbox publisher: publish row %d failed, will retry on lease expiry: %v", row.ID, err)

			backoff := BackoffDuration(int(row.Attempts), p.backoffBase, p.backoffMax)
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}

			// A failure for this row means later rows sharing its key would
			// arrive out of order if published now; stop this key's worker
			// and let the whole remaining chain retry on lease expiry.
			break
		}

		published = append(published, Key{ID: row.ID, CreatedOn: row.CreatedOn})
	}

	return published
}
