package bootstrap

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/DimitryIvaniuta/order-platform-sub001/common"
	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	"github.com/DimitryIvaniuta/order-platform-sub001/components/orderservice/internal/services/commands"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/bus"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/mmodel"
)

// Orchestrator is the order-service's MultiQueueConsumer analogue: it
// registers one handler per inbound topic/queue, all funnelling into the
// same UseCase.HandleEvent, per the teacher's
// components/consumer/internal/bootstrap/MultiQueueConsumer shape.
type Orchestrator struct {
	routes    *bus.ConsumerRoutes
	publisher *bus.Publisher
	useCase   *commands.UseCase
}

// NewOrchestrator builds an Orchestrator wired to conn, registering queue
// handlers for every topic a downstream service reports results on.
func NewOrchestrator(conn *amqp.Connection, logger mlog.Logger, numWorkers, numPrefetch int, useCase *commands.UseCase) *Orchestrator {
	routes := bus.NewConsumerRoutes(conn, logger)
	routes.NumbersOfWorkers = numWorkers
	routes.NumbersOfPrefetch = numPrefetch

	o := &Orchestrator{useCase: useCase}

	// order.events.v1 carries both the gateway's initial ORDER_CREATED and
	// the payment and inventory services' result events (PAYMENT_AUTHORIZED,
	// PAYMENT_FAILED, INVENTORY_RESERVED, INVENTORY_FAILED,
	// PAYMENT_CAPTURED); the shipping service publishes its results to
	// shipping.events.v1 instead. payment.events.v1/
	// inventory.events.v1 are the outbound command topics this service
	// publishes to -- it never consumes its own commands back.
	routes.Register(mmodel.TopicOrderEvents, o.handleOrderEvent)

	o.routes = routes

	ch, err := conn.Channel()
	if err != nil {
		panic(err)
	}

	o.publisher = bus.NewPublisher(ch, logger)

	return o
}

// Publisher exposes the bus publisher for the outbox drain loop to send
// through.
func (o *Orchestrator) Publisher() *bus.Publisher { return o.publisher }

// Run starts the consumer worker pools; it implements common.App so it can
// be driven by the shared Launcher.
func (o *Orchestrator) Run(l *common.Launcher) error {
	return o.routes.RunConsumers(context.Background())
}

func (o *Orchestrator) handleOrderEvent(ctx context.Context, body []byte) error {
	return o.dispatch(ctx, body)
}

func (o *Orchestrator) dispatch(ctx context.Context, body []byte) error {
	var event mmodel.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return err
	}

	return o.useCase.HandleEvent(ctx, event.TenantID, event.SagaID, event.Type, event.Payload)
}
