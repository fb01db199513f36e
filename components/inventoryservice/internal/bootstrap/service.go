package bootstrap

import (
	"context"

	"github.com/DimitryIvaniuta/order-platform-sub001/common"
	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/outbox"
)

// Service is the inventory-service's application glue.
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

// Run starts the command consumer and the outbox drain loop.
func (s *Service) Run() {
	common.NewLauncher(
		common.WithLogger(s.Logger),
		common.RunApp("Inventory Command Consumer", s.Consumer),
		common.RunApp("Inventory Outbox Publisher", outboxRunner{pub: s.OutboxPub}),
	).Run()
}
