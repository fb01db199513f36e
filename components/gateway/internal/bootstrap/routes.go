package bootstrap

import (
	"github.com/gofiber/fiber/v2"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	httpx "github.com/DimitryIvaniuta/order-platform-sub001/common/net/http"
	"github.com/DimitryIvaniuta/order-platform-sub001/components/gateway/internal/services/handlers"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/authn"
)

// NewRouter wires the gateway's full HTTP surface, matching the teacher's
// ledger routes.go shape (middleware chain, health/version endpoints) cut
// down to the six endpoints this bounded context exposes.
func NewRouter(lg mlog.Logger, jwt *authn.Middleware, oh *handlers.OrderHandlers, ah *handlers.AuthHandlers, issuerURL string) *fiber.App {
	f := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	f.Use(httpx.WithCORS())
	f.Use(httpx.WithCorrelationID())
	f.Use(httpx.WithHTTPLogging(httpx.WithCustomLogger(lg)))

	f.Post("/oauth/token", httpx.WithBody(new(handlers.TokenInput), ah.Token))
	f.Get("/.well-known/openid-configuration", ah.OpenIDConfiguration(issuerURL))
	f.Get("/.well-known/jwks.json", ah.JWKS)

	f.Post("/orders", jwt.Protect(), authn.RequireScope("orders.write"), httpx.WithBody(new(handlers.CreateOrderInput), oh.CreateOrder))
	f.Get("/orders", jwt.Protect(), authn.RequireScope("orders.read"), oh.ListOrders)
	f.Get("/orders/:sagaId", jwt.Protect(), authn.RequireScope("orders.read"), httpx.ParseUUIDPathParameters, oh.GetOrder)

	f.Get("/health", httpx.Ping)
	f.Get("/version", httpx.Version("1.0.0"))

	return f
}
