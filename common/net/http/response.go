package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// problemJSON is the shape returned for every error response, always
// carrying the correlation id so a client can match it back to logs.
func problemJSON(c *fiber.Ctx, status int, code, title, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"code":          code,
		"title":         title,
		"message":       message,
		"correlationId": c.Get(headerCorrelationID),
	})
}

// BadRequest returns HTTP 400 with the given error body.
func BadRequest(c *fiber.Ctx, err error) error {
	switch e := err.(type) {
	case ValidationKnownFieldsError:
		return c.Status(fiber.StatusBadRequest).JSON(e)
	default:
		return problemJSON(c, fiber.StatusBadRequest, "", "Bad Request", err.Error())
	}
}

// Unauthorized returns HTTP 401.
func Unauthorized(c *fiber.Ctx, code, title, message string) error {
	return problemJSON(c, fiber.StatusUnauthorized, code, title, message)
}

// Forbidden returns HTTP 403.
func Forbidden(c *fiber.Ctx, code, title, message string) error {
	return problemJSON(c, fiber.StatusForbidden, code, title, message)
}

// NotFound returns HTTP 404.
func NotFound(c *fiber.Ctx, code, title, message string) error {
	return problemJSON(c, fiber.StatusNotFound, code, title, message)
}

// Conflict returns HTTP 409.
func Conflict(c *fiber.Ctx, code, title, message string) error {
	return problemJSON(c, fiber.StatusConflict, code, title, message)
}

// UnprocessableEntity returns HTTP 422.
func UnprocessableEntity(c *fiber.Ctx, code, title, message string) error {
	return problemJSON(c, fiber.StatusUnprocessableEntity, code, title, message)
}

// InternalServerError returns HTTP 500.
func InternalServerError(c *fiber.Ctx, code, title, message string) error {
	return problemJSON(c, fiber.StatusInternalServerError, code, title, message)
}

// ServiceUnavailable returns HTTP 503 in the fallback-contract shape named
// by SPEC_FULL.md §6 for upstream failures surfaced to the gateway client.
func ServiceUnavailable(c *fiber.Ctx, message, upstream, path string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"timestamp":     time.Now().UTC(),
		"status":        fiber.StatusServiceUnavailable,
		"error":         "Service Unavailable",
		"message":       message,
		"upstream":      upstream,
		"path":          path,
		"correlationId": c.Get(headerCorrelationID),
	})
}

// JSONResponseError writes a plain ResponseError as JSON using its Code as
// the HTTP status when it looks like a valid status, otherwise 500.
func JSONResponseError(c *fiber.Ctx, err ResponseError) error {
	status := err.Code
	if status < 100 || status > 599 {
		status = fiber.StatusInternalServerError
	}

	return c.Status(status).JSON(err)
}
