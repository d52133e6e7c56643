// middleware/context.go
package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"mission-control/logging"
)

// RequestContextMiddleware copies the fiber request id into the request's
// user context so service logs carry it. Mount it after requestid.New().
func RequestContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
		if id == "" {
			id = c.Get(fiber.HeaderXRequestID)
		}
		if id != "" {
			c.SetUserContext(logging.WithRequestID(c.UserContext(), id))
		}
		return c.Next()
	}
}
