package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tickit/guild-ticket-service/internal/api/dto"
	"github.com/tickit/guild-ticket-service/internal/domain"
	"github.com/tickit/guild-ticket-service/internal/queue"
	"github.com/tickit/guild-ticket-service/internal/service"
	apperrors "github.com/tickit/guild-ticket-service/pkg/util"
)

// TicketsHandler manages guild ticket endpoints. Reads answer from the
// store; writes are acknowledged with a job id and applied async.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /guilds/:guildId/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query := service.ListQuery{
		Status: c.Query("status"),
		Page:   parseIntQuery(c, "page", 1),
		Limit:  parseIntQuery(c, "limit", 0),
	}

	tickets, page, err := h.service.List(c.UserContext(), c.Params("guildId"), query)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewListTicketsResponse(tickets, page))
}

// GetTicket GET /guilds/:guildId/tickets/:ticketId.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.Get(c.UserContext(), c.Params("guildId"), c.Params("ticketId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// CreateTicket POST /guilds/:guildId/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	accepted, err := h.service.Create(c.UserContext(), c.Params("guildId"), service.CreateTicketInput{
		CreatedBy:      req.CreatedBy,
		Subject:        req.Subject,
		InitialMessage: req.InitialMessage,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.EnqueuedResponse{
		Success:  true,
		Message:  "ticket creation queued",
		TicketID: accepted.TicketID,
		JobID:    accepted.JobID,
	})
}

// UpdateTicket PATCH /guilds/:guildId/tickets/:ticketId.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	patch := queue.TicketPatch{Subject: req.Subject}
	if req.Status != nil {
		status := domain.TicketStatus(*req.Status)
		patch.Status = &status
	}
	if req.Message != nil {
		if req.Message.AuthorID == "" || req.Message.Content == "" {
			return apperrors.NewValidationError("message requires authorId and content", nil)
		}
		patch.Message = &domain.TicketMessage{
			AuthorID:  req.Message.AuthorID,
			Content:   req.Message.Content,
			Timestamp: time.Now().UTC(),
		}
	}

	accepted, err := h.service.Update(c.UserContext(), c.Params("guildId"), c.Params("ticketId"), patch)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.EnqueuedResponse{
		Success:  true,
		Message:  "ticket update queued",
		TicketID: accepted.TicketID,
		JobID:    accepted.JobID,
	})
}

// ArchiveTicket DELETE /guilds/:guildId/tickets/:ticketId.
func (h *TicketsHandler) ArchiveTicket(c *fiber.Ctx) error {
	accepted, err := h.service.Archive(c.UserContext(), c.Params("guildId"), c.Params("ticketId"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.EnqueuedResponse{
		Success:  true,
		Message:  "ticket archive queued",
		TicketID: accepted.TicketID,
		JobID:    accepted.JobID,
	})
}

// GetJobStatus GET /guilds/:guildId/jobs/:jobId.
func (h *TicketsHandler) GetJobStatus(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	status, err := h.service.JobStatus(c.UserContext(), jobID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.JobStatusResponse{
		JobID:  jobID,
		Status: string(status),
	}})
}

func parseIntQuery(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
