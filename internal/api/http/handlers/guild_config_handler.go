package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tickit/guild-ticket-service/internal/api/dto"
	"github.com/tickit/guild-ticket-service/internal/service"
	apperrors "github.com/tickit/guild-ticket-service/pkg/util"
)

// GuildConfigHandler manages guild configuration endpoints.
type GuildConfigHandler struct {
	service *service.GuildService
}

// NewGuildConfigHandler constructs handler.
func NewGuildConfigHandler(guildService *service.GuildService) *GuildConfigHandler {
	return &GuildConfigHandler{service: guildService}
}

// GetConfig GET /guilds/:guildId/config.
func (h *GuildConfigHandler) GetConfig(c *fiber.Ctx) error {
	view, err := h.service.GetConfig(c.UserContext(), c.Params("guildId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewGuildResponse(view)})
}

// PutConfig PUT /guilds/:guildId/config.
func (h *GuildConfigHandler) PutConfig(c *fiber.Ctx) error {
	var req dto.PutGuildConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Config == nil {
		return apperrors.NewValidationError("config is required", nil)
	}

	view, err := h.service.PutConfig(c.UserContext(), c.Params("guildId"), req.Config.ToDomainConfig())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewGuildResponse(view)})
}
