// handlers/participants.go
package handlers

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"mission-control/models"
	"mission-control/services"
	"mission-control/utils"
)

type participantHandler struct {
	svc    *services.LifecycleService
	logger *slog.Logger
}

func SetupParticipantRoutes(app *fiber.App, svc *services.LifecycleService, logger *slog.Logger) {
	h := &participantHandler{svc: svc, logger: logger}

	// Fixed paths are registered before /:id so they are never read as ids.
	app.Post("/participants/init", h.init)
	app.Post("/participants/register", h.register)

	app.Get("/participants/:id", h.get)
	app.Post("/participants/:id/avatar", h.uploadAvatar)
	app.Post("/participants/:id/evidence", h.uploadEvidence)
	app.Patch("/participants/:id/location", h.confirmLocation)
	app.Patch("/participants/:id", h.override)

	app.Get("/events/:code/check-username/:username", h.checkUsername)
}

func (h *participantHandler) get(c *fiber.Ctx) error {
	p, err := h.svc.GetParticipant(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(p)
}

func (h *participantHandler) init(c *fiber.Ctx) error {
	var in services.InitInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	out, err := h.svc.Init(c.UserContext(), in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(out)
}

func (h *participantHandler) checkUsername(c *fiber.Ctx) error {
	username := c.Params("username")
	available, err := h.svc.CheckUsername(c.UserContext(), c.Params("code"), username)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"available": available, "username": username})
}

// formAsset reads one multipart file. ok is false when the field is absent.
func formAsset(c *fiber.Ctx, field string) (services.Asset, bool, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return services.Asset{}, false, nil
	}
	data, err := utils.ReadFormFile(fh)
	if err != nil {
		return services.Asset{}, true, err
	}
	return services.Asset{
		Data:        data,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Filename:    fh.Filename,
	}, true, nil
}

// uploadAvatar leaves absent fields as empty assets so the participant
// lookup runs before the form is judged incomplete.
func (h *participantHandler) uploadAvatar(c *fiber.Ctx) error {
	assets := make(map[string]services.Asset, 2)
	for _, field := range []string{"portrait", "icon"} {
		a, _, err := formAsset(c, field)
		if err != nil {
			return badRequest(c, "Failed to read "+field)
		}
		assets[field] = a
	}

	out, err := h.svc.UploadAvatar(c.UserContext(), c.Params("id"), assets["portrait"], assets["icon"])
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"status":       "success",
		"portrait_url": out.PortraitURL,
		"icon_url":     out.IconURL,
	})
}

func (h *participantHandler) register(c *fiber.Ctx) error {
	var in services.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if in.ParticipantID == "" {
		return badRequest(c, "participant_id is required")
	}
	p, err := h.svc.Register(c.UserContext(), in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(p)
}

func (h *participantHandler) uploadEvidence(c *fiber.Ctx) error {
	files := make(map[string]services.Asset, len(services.EvidenceAssets))
	for _, spec := range services.EvidenceAssets {
		a, ok, err := formAsset(c, spec.Field)
		if err != nil {
			return badRequest(c, "Failed to read "+spec.Field)
		}
		if ok {
			files[spec.Field] = a
		}
	}

	out, err := h.svc.UploadEvidence(c.UserContext(), c.Params("id"), files)
	if err != nil {
		if out != nil && services.KindOf(err) == services.KindUpstream {
			h.logger.WarnContext(c.UserContext(), "evidence partially stored",
				"participant_id", c.Params("id"), "stored", len(out.EvidenceURLs), "error", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"detail":        services.Message(err),
				"evidence_urls": out.EvidenceURLs,
			})
		}
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"status":        "success",
		"evidence_urls": out.EvidenceURLs,
	})
}

func (h *participantHandler) confirmLocation(c *fiber.Ctx) error {
	x, errX := strconv.Atoi(c.Query("x"))
	y, errY := strconv.Atoi(c.Query("y"))
	if errX != nil || errY != nil {
		return badRequest(c, "x and y must be integers")
	}

	out, err := h.svc.ConfirmLocation(c.UserContext(), c.Params("id"), x, y)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"status":             "success",
		"x":                  out.X,
		"y":                  out.Y,
		"location_confirmed": out.LocationConfirmed,
		"biome":              out.Biome,
	})
}

// overrideRequest is the PATCH body. Absent fields stay untouched.
type overrideRequest struct {
	Level0Complete       *bool `json:"level_0_complete"`
	Level1Complete       *bool `json:"level_1_complete"`
	Level2Complete       *bool `json:"level_2_complete"`
	Level3Complete       *bool `json:"level_3_complete"`
	Level4Complete       *bool `json:"level_4_complete"`
	Level5Complete       *bool `json:"level_5_complete"`
	CompletionPercentage *int  `json:"completion_percentage"`
}

func (r overrideRequest) input() services.OverrideInput {
	return services.OverrideInput{
		Levels: [models.LevelCount]*bool{
			r.Level0Complete, r.Level1Complete, r.Level2Complete,
			r.Level3Complete, r.Level4Complete, r.Level5Complete,
		},
		CompletionPercentage: r.CompletionPercentage,
	}
}

func (h *participantHandler) override(c *fiber.Ctx) error {
	var req overrideRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}
	p, err := h.svc.Override(c.UserContext(), c.Params("id"), req.input())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(p)
}
