package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tickit/guild-ticket-service/internal/api/http/handlers"
	"github.com/tickit/guild-ticket-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	GuildConfig    *handlers.GuildConfigHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.GuildAuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	guild := app.Group("/guilds/:guildId", cfg.AuthMiddleware.Handle)

	guild.Get("/config", cfg.GuildConfig.GetConfig)
	guild.Put("/config", cfg.GuildConfig.PutConfig)

	guild.Get("/tickets", cfg.Tickets.ListTickets)
	guild.Post("/tickets", cfg.Tickets.CreateTicket)
	guild.Get("/tickets/:ticketId", cfg.Tickets.GetTicket)
	guild.Patch("/tickets/:ticketId", cfg.Tickets.UpdateTicket)
	guild.Delete("/tickets/:ticketId", cfg.Tickets.ArchiveTicket)

	guild.Get("/jobs/:jobId", cfg.Tickets.GetJobStatus)
}
