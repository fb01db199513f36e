// Package bus implements C5: the RabbitMQ-backed consumer runtime and
// publisher, grounded on the teacher's
// components/transaction/internal/adapters/rabbitmq test suite -- the
// ConsumerRoutes shape, default worker/prefetch values, manual ack/nack,
// retry-count header tracking and DLQ naming convention -- reimplemented
// from scratch because the runtime itself lived in the dropped lib-commons
// module and only its call sites and tests were retrieved.
package bus

import (
	"context"
	"fmt"
	"math"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/google/uuid"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
)

const (
	defaultNumWorkers = 5
	defaultPrefetch   = 10
	maxRetries        = 5
	dlqSuffix         = ".dlq"
)

// headerRetryCount is the amqp.Table key tracking how many times a message
// has been redelivered via the retry-republish path.
const headerRetryCount = "x-retry-count"

// allowlisted headers carried across a retry republish; anything else is
// dropped to avoid leaking broker-internal or sensitive headers forward.
var retryHeaderAllowlist = []string{
	"x-correlation-id",
	"x-midaz-header-id",
	"content-type",
	"tenantId",
	"correlationId",
	"eventType",
}

// QueueHandlerFunc processes one message body and returns an error to
// trigger the retry/DLQ path, or nil to ack.
type QueueHandlerFunc func(ctx context.Context, body []byte) error

// ConsumerRoutes registers queue handlers and runs a bounded worker pool
// per queue against a single AMQP channel, with manual ack standing in for
// "commit no earlier than completion".
type ConsumerRoutes struct {
	conn *amqp.Connection

	Logger mlog.Logger

	NumbersOfWorkers  int
	NumbersOfPrefetch int

	routes map[string]QueueHandlerFunc
}

// NewConsumerRoutes builds a ConsumerRoutes bound to an already-established
// AMQP connection. Not concurrency-safe by design -- Register is meant to
// be called only during single-threaded service startup, before
// RunConsumers.
func NewConsumerRoutes(conn *amqp.Connection, logger mlog.Logger) *ConsumerRoutes {
	return &ConsumerRoutes{
		conn:   conn,
		Logger: logger,
		routes: make(map[string]QueueHandlerFunc),
	}
}

// Register binds handler to queue. Not concurrency-safe; call only during
// startup.
func (c *ConsumerRoutes) Register(queue string, handler QueueHandlerFunc) {
	if c.routes == nil {
		c.routes = make(map[string]QueueHandlerFunc)
	}
	c.routes[queue] = handler
}

func (c *ConsumerRoutes) effectiveWorkers() int {
	if c.NumbersOfWorkers <= 0 {
		return defaultNumWorkers
	}
	return c.NumbersOfWorkers
}

func (c *ConsumerRoutes) effectivePrefetch() int {
	if c.NumbersOfPrefetch <= 0 {
		return defaultPrefetch
	}
	return c.NumbersOfPrefetch
}

// RunConsumers launches NumbersOfWorkers goroutines per registered queue,
// each on its own channel with QoS set to NumbersOfPrefetch (so effective
// in-flight capacity per queue is workers * prefetch). No-op if zero routes
// are registered.
func (c *ConsumerRoutes) RunConsumers(ctx context.Context) error {
	if len(c.routes) == 0 {
		return nil
	}

	workers := c.effectiveWorkers()
	prefetch := c.effectivePrefetch()

	var wg sync.WaitGroup

	for queue, handler := range c.routes {
		dlq, err := buildDLQName(queue)
		if err != nil {
			return fmt.Errorf("bus: %w", err)
		}

		for w := 0; w < workers; w++ {
			ch, err := c.conn.Channel()
			if err != nil {
				return fmt.Errorf("bus: open channel for queue %s worker %d: %w", queue, w, err)
			}

			if err := ch.Qos(prefetch, 0, false); err != nil {
				return fmt.Errorf("bus: set qos for queue %s worker %d: %w", queue, w, err)
			}

			deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
			if err != nil {
				return fmt.Errorf("bus: consume queue %s worker %d: %w", queue, w, err)
			}

			wg.Add(1)
			go c.worker(ctx, &wg, queue, dlq, w, handler, deliveries, ch)
		}
	}

	wg.Wait()

	return nil
}

func (c *ConsumerRoutes) worker(ctx context.Context, wg *sync.WaitGroup, queue, dlq string, workerID int, handler QueueHandlerFunc, deliveries <-chan amqp.Delivery, ch *amqp.Channel) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}

			c.handleDelivery(ctx, queue, dlq, workerID, handler, d, ch)
		}
	}
}

func (c *ConsumerRoutes) handleDelivery(ctx context.Context, queue, dlq string, workerID int, handler QueueHandlerFunc, d amqp.Delivery, ch *amqp.Channel) {
	headerID := headerIDFor(d.Headers)

	if err := handler(ctx, d.Body); err != nil {
		c.Logger.Errorf("bus: queue=%s worker=%d headerID=%s handler error: %v", queue, workerID, headerID, err)
		c.handleBusinessError(ctx, queue, dlq, workerID, d, ch, err)
		return
	}

	if err := d.Ack(false); err != nil {
		c.Logger.Errorf("bus: queue=%s worker=%d ack error: %v", queue, workerID, err)
	}
}

// businessErrorContext groups the inputs handleBusinessError routes on.
type businessErrorContext struct {
	queue      string
	workerID   int
	retryCount int
	logger     mlog.Logger
	msg        *amqp.Delivery
	conn       *amqp.Channel
	err        error
}

func (c *ConsumerRoutes) handleBusinessError(ctx context.Context, queue, dlq string, workerID int, d amqp.Delivery, ch *amqp.Channel, handlerErr error) {
	retryCount := getRetryCount(d.Headers)

	bec := businessErrorContext{
		queue:      queue,
		workerID:   workerID,
		retryCount: retryCount,
		logger:     c.Logger,
		msg:        &d,
		conn:       ch,
		err:        handlerErr,
	}

	if bec.retryCount >= maxRetries-1 {
		c.publishToDLQ(ctx, dlq, d, ch, handlerErr)

		if err := d.Ack(false); err != nil {
			c.Logger.Errorf("bus: queue=%s ack after dlq error: %v", queue, err)
		}

		return
	}

	headers := copyHeadersSafe(d.Headers)
	headers[headerRetryCount] = safeIncrementRetryCount(retryCount)

	if err := ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         d.Body,
	}); err != nil {
		c.Logger.Errorf("bus: queue=%s republish for retry failed: %v", queue, err)
	}

	if err := d.Ack(false); err != nil {
		c.Logger.Errorf("bus: queue=%s ack after republish error: %v", queue, err)
	}
}

func (c *ConsumerRoutes) publishToDLQ(ctx context.Context, dlq string, d amqp.Delivery, ch *amqp.Channel, reason error) {
	headers := copyHeadersSafe(d.Headers)
	headers["x-dlq-reason"] = reason.Error()
	headers["x-dlq-original-queue"] = d.RoutingKey

	if err := ch.PublishWithContext(ctx, "", dlq, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         d.Body,
	}); err != nil {
		c.Logger.Errorf("bus: publish to dlq %s failed: %v", dlq, err)
	}
}

// buildDLQName appends dlqSuffix to queue, panicking on an empty queue name
// since that indicates a wiring bug, not a runtime condition to recover
// from.
func buildDLQName(queue string) (string, error) {
	if queue == "" {
		panic("bus: buildDLQName called with empty queue name")
	}

	return queue + dlqSuffix, nil
}

// getRetryCount reads the retry-count header, tolerating both int32 and
// int64 encodings (amqp091-go may deliver either depending on how the
// header was originally set).
func getRetryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}

	switch v := headers[headerRetryCount].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// safeIncrementRetryCount increments count, saturating at math.MaxInt32
// instead of overflowing.
func safeIncrementRetryCount(count int) int32 {
	if count >= math.MaxInt32-1 {
		return math.MaxInt32
	}

	return int32(count + 1)
}

// copyHeadersSafe returns a non-nil amqp.Table containing only the
// allowlisted headers from src, so a retry republish never forwards
// broker-internal or sensitive headers it didn't originate.
func copyHeadersSafe(src amqp.Table) amqp.Table {
	dst := amqp.Table{}

	if src == nil {
		return dst
	}

	for _, key := range retryHeaderAllowlist {
		if v, ok := src[key]; ok {
			dst[key] = v
		}
	}

	return dst
}

func headerIDFor(headers amqp.Table) string {
	if headers != nil {
		if v, ok := headers["x-midaz-header-id"].(string); ok && v != "" {
			return v
		}
	}

	return uuid.NewString()
}
