package bootstrap

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/DimitryIvaniuta/order-platform-sub001/common"
	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	"github.com/DimitryIvaniuta/order-platform-sub001/components/paymentservice/internal/services/commands"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/bus"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

// Consumer registers the payment-service's single inbound queue
// (payment.events.v1, carrying authorize/capture/void commands from the
// orchestrator) and funnels every delivery into UseCase.HandleCommand.
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
	routes.Register(mmodel.TopicPaymentEvents, c.handle)
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

	return c.useCase.HandleCommand(ctx, event)
}
