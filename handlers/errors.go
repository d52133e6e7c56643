package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"mission-control/logging"
	"mission-control/services"
)

// StatusFor maps a lifecycle failure to its HTTP status.
func StatusFor(err error) int {
	switch services.KindOf(err) {
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindGone:
		return fiber.StatusGone
	case services.KindConflict:
		return fiber.StatusConflict
	case services.KindInvalidInput:
		return fiber.StatusBadRequest
	case services.KindUpstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, logger *slog.Logger, err error) error {
	status := StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		logging.LogErrorContext(c.UserContext(), logger, "request failed", err)
	}
	return c.Status(status).JSON(fiber.Map{"detail": services.Message(err)})
}

func badRequest(c *fiber.Ctx, detail string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": detail})
}
