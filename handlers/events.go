package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"mission-control/services"
)

func SetupEventRoutes(app *fiber.App, svc *services.EventService, logger *slog.Logger) {
	app.Get("/events/:code", func(c *fiber.Ctx) error {
		e, err := svc.GetEvent(c.UserContext(), c.Params("code"))
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(e)
	})

	app.Post("/events", func(c *fiber.Ctx) error {
		var in services.CreateEventInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "Invalid request body")
		}
		e, err := svc.CreateEvent(c.UserContext(), in)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.Status(fiber.StatusCreated).JSON(e)
	})
}
