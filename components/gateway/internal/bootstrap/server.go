package bootstrap

import (
	"github.com/gofiber/fiber/v2"

	"github.com/DimitryIvaniuta/order-platform-sub001/common"
	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
)

// Server wraps the fiber app, matching the teacher's Server{app, address,
// logger} shape. Run binds directly to app.Listen rather than the teacher's
// libCommonsServer.NewServerManager helper, which depends on an external
// module not vendored into this workspace; the cooperative shutdown
// semantics the Launcher already provides for every other component's App
// are sufficient here too.
type Server struct {
	app           *fiber.App
	serverAddress string
	logger        mlog.Logger
}

// NewServer builds a Server bound to address (":PORT").
func NewServer(address string, app *fiber.App, logger mlog.Logger) *Server {
	return &Server{app: app, serverAddress: address, logger: logger}
}

// Run implements common.App, listening until the process is terminated.
func (s *Server) Run(l *common.Launcher) error {
	s.logger.Infof("gateway: listening on %s", s.serverAddress)

	if err := s.app.Listen(s.serverAddress); err != nil {
		s.logger.Errorf("gateway: http server stopped: %v", err)
		return err
	}

	return nil
}
