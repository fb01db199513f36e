package bootstrap

import (
	"context"

	"github.com/DimitryIvaniuta/order-platform-sub001/common"
	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/outbox"
)

// Service is the shipping-service's application glue.
type Service struct {
	*Consumer
	OutboxPub *outbox.Publisher
	Logger    mlog.Logger
}

type outboxRunner struct{ pub *outbox.Publisher }

func (r outboxRunner) Run(l *common.Launcher) error {
	r.pub.Run(context.Background(), "default")
	return nil
}

// Run starts the order-event consumer and the outbox drain loop.
func (s *Service) Run() {
	common.NewLauncher(
		common.WithLogger(s.Logger),
		common.RunApp("Shipping Order Event Consumer", s.Consumer),
		common.RunApp("Shipping Outbox Publisher", outboxRunner{pub: s.OutboxPub}),
	).Run()
}
