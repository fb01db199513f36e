package bootstrap

import (
	"context"

	"github.com/DimitryIvaniuta/order-platform-sub001/common"
	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/keys"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/outbox"
)

// Service is the gateway's application glue, matching the teacher's
// ConsumerService{*MultiQueueConsumer, libLog.Logger} shape: one struct
// gathering everything Run needs to hand to the shared Launcher.
type Service struct {
	Server     *Server
	OutboxPub  *outbox.Publisher
	KeyManager *keys.Manager
	Logger     mlog.Logger
}

// outboxRunner adapts the outbox Publisher's Run(ctx, tenantID) loop to the
// common.App interface the Launcher drives every component through.
type outboxRunner struct {
	pub *outbox.Publisher
}

func (r outboxRunner) Run(l *common.Launcher) error {
	// The platform-wide tenant fan-out is intentionally left for a later
	// multi-tenant rollout; "default" matches every row this single-tenant
	// deployment writes.
	r.pub.Run(context.Background(), "default")
	return nil
}

// Run starts the HTTP server and the outbox drain loop under the shared
// cooperative Launcher.
func (s *Service) Run() {
	common.NewLauncher(
		common.WithLogger(s.Logger),
		common.RunApp("Gateway HTTP Server", s.Server),
		common.RunApp("Gateway Outbox Publisher", outboxRunner{pub: s.OutboxPub}),
	).Run()
}
