package bootstrap

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/DimitryIvaniuta/order-platform-sub001/common"
	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	"github.com/DimitryIvaniuta/order-platform-sub001/components/shippingservice/internal/services/commands"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/bus"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

// shippingQueue is this service's own queue bound to the order.events.v1
// exchange -- a distinct queue from the orchestrator's, so both receive
// their own copy of every event rather than competing for the same one.
const shippingQueue = mmodel.TopicOrderEvents + ".shipping"

// Consumer registers the shipping-service's single inbound queue against
// the order.events.v1 exchange, reacting only to ORDER_COMPLETED and
// discarding every other event type it sees go by.
type Consumer struct {
	routes    *bus.ConsumerRoutes
	publisher *bus.Publisher
	useCase   *commands.UseCase
}

// NewConsumer builds a Consumer wired to conn.
func NewConsumer(conn *amqp.Connection, logger mlog.Logger, numWorkers, numPrefetch int, useCase *commands.UseCase) *Consumer {
	routes := bus.NewConsumerRoutes(conn, logger)
	routes.NumbersOfWorkers = numWorkers
	routes.NumbersOfPrefetch = numPrefetch

	c := &Consumer{useCase: useCase}
	routes.Register(shippingQueue, c.handle)
	c.routes = routes

	ch, err := conn.Channel()
	if err != nil {
		panic(err)
	}
	c.publisher = bus.NewPublisher(ch, logger)

	return c
}

// Publisher exposes the bus publisher for the outbox drain loop.
func (c *Consumer) Publisher() *bus.Publisher { return c.publisher }

// Run starts the consumer worker pools; implements common.App.
func (c *Consumer) Run(l *common.Launcher) error {
	return c.routes.RunConsumers(context.Background())
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var event mmodel.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return err
	}

	return c.useCase.HandleEvent(ctx, event)
}
