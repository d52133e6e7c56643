package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"mission-control/biome"
	"mission-control/services"
)

// SetupBiomeRoutes exposes biome lookups. Any integer pair classifies;
// map bounds only apply to participant positions.
func SetupBiomeRoutes(app *fiber.App, svc *services.LifecycleService) {
	app.Get("/biome", func(c *fiber.Ctx) error {
		x, errX := strconv.Atoi(c.Query("x"))
		y, errY := strconv.Atoi(c.Query("y"))
		if errX != nil || errY != nil {
			return badRequest(c, "x and y must be integers")
		}
		quadrant, category := svc.Biome(x, y)
		return c.JSON(fiber.Map{
			"x":            x,
			"y":            y,
			"quadrant":     quadrant,
			"biome":        category,
			"display_name": category.DisplayName(),
		})
	})

	app.Get("/biomes/catalog", func(c *fiber.Ctx) error {
		if name := c.Query("biome"); name != "" {
			rows := biome.CatalogFor(biome.Category(strings.ToUpper(name)))
			if rows == nil {
				rows = []biome.StarPattern{}
			}
			return c.JSON(rows)
		}
		return c.JSON(biome.Catalog())
	})
}
