package bus

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
)

// Publisher sends messages to topic exchanges, keyed by sagaId so the
// broker's partitioner pins ordering per saga. Satisfies outbox.Sender.
type Publisher struct {
	channel *amqp.Channel
	logger  mlog.Logger
}

// NewPublisher wraps an already-open AMQP channel.
func NewPublisher(channel *amqp.Channel, logger mlog.Logger) *Publisher {
	return &Publisher{channel: channel, logger: logger}
}

// Publish sends body to topic with routing key = key (the sagaId), carrying
// headers as amqp.Table entries exactly as the outbox publisher supplies
// them (tenantId/correlationId/eventType).
func (p *Publisher) Publish(ctx context.Context, topic, key string, body []byte, headers map[string]string) error {
	table := amqp.Table{}
	for k, v := range headers {
		table[k] = v
	}

	err := p.channel.PublishWithContext(ctx, topic, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      table,
		Body:         body,
	})
	if err != nil {
		p.logger.Errorf("bus: publish to exchange=%s key=%s failed: %v", topic, key, err)
		return fmt.Errorf("bus: publish: %w", err)
	}

	return nil
}
