package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	gid "github.com/google/uuid"
)

// WithCorrelationID propagates the caller's X-Correlation-ID if present and well-formed,
// otherwise mints a fresh one. The header is size-capped and trimmed per request so a
// misbehaving upstream cannot smuggle arbitrary-length values into logs or the outbox.
func WithCorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		cid := strings.TrimSpace(c.Get(headerCorrelationID))

		if cid == "" || len(cid) > maxCorrelationIDLength {
			cid = gid.New().String()
		}

		c.Set(headerCorrelationID, cid)
		c.Request().Header.Set(headerCorrelationID, cid)

		return c.Next()
	}
}

// CorrelationIDFromFiberCtx reads the correlation id set by WithCorrelationID.
func CorrelationIDFromFiberCtx(c *fiber.Ctx) string {
	return c.Get(headerCorrelationID)
}
