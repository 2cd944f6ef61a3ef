package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tickit/guild-ticket-service/internal/domain"
	"github.com/tickit/guild-ticket-service/internal/queue"
	"github.com/tickit/guild-ticket-service/internal/repository"
	"github.com/tickit/guild-ticket-service/internal/tenant"
	"github.com/tickit/guild-ticket-service/pkg/util"
)

const defaultPageLimit = 50

// Pagination describes one page of a listing.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// ListQuery selects a page of tickets.
type ListQuery struct {
	Status string
	Page   int
	Limit  int
}

// CreateTicketInput is the accepted creation request.
type CreateTicketInput struct {
	CreatedBy      string
	Subject        string
	InitialMessage string
}

// Enqueued reports the async acceptance of a mutation.
type Enqueued struct {
	TicketID string
	JobID    string
}

// TicketServiceDependencies bundles dependencies.
type TicketServiceDependencies struct {
	Guilds   repository.GuildRepository
	Resolver *tenant.Resolver
	Queue    *queue.Manager
	Status   queue.StatusStore
	Logger   *zap.Logger
}

// TicketService serves reads directly and funnels every write through
// the job queue, so mutations per guild apply in order.
type TicketService struct {
	deps TicketServiceDependencies
}

// NewTicketService creates a ticket service instance.
func NewTicketService(deps TicketServiceDependencies) *TicketService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketService{deps: deps}
}

// List returns one page of the guild's tickets, newest first.
func (s *TicketService) List(ctx context.Context, guildID string, query ListQuery) ([]domain.Ticket, Pagination, error) {
	handle, err := s.deps.Resolver.Resolve(ctx, guildID)
	if err != nil {
		return nil, Pagination{}, err
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	filter := repository.TicketFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if query.Status != "" {
		status := domain.TicketStatus(query.Status)
		if !status.Valid() {
			return nil, Pagination{}, util.NewValidationError("unknown ticket status", map[string]any{
				"status": query.Status,
			})
		}
		filter.Status = &status
	}

	tickets, total, err := handle.Tickets.List(ctx, filter)
	if err != nil {
		return nil, Pagination{}, err
	}

	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return tickets, Pagination{Total: total, Page: page, Limit: limit, Pages: pages}, nil
}

// Get returns one ticket.
func (s *TicketService) Get(ctx context.Context, guildID, ticketID string) (*domain.Ticket, error) {
	handle, err := s.deps.Resolver.Resolve(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return handle.Tickets.Get(ctx, ticketID)
}

// Create mints the ticket id synchronously and enqueues the persistence
// job, so the caller gets the id back before the write lands.
func (s *TicketService) Create(ctx context.Context, guildID string, input CreateTicketInput) (*Enqueued, error) {
	if strings.TrimSpace(input.CreatedBy) == "" {
		return nil, util.NewValidationError("createdBy is required", nil)
	}
	if strings.TrimSpace(input.Subject) == "" {
		return nil, util.NewValidationError("subject is required", nil)
	}

	guild, err := s.deps.Guilds.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	seq, err := s.deps.Guilds.NextTicketSeq(ctx, guildID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ticket := domain.Ticket{
		TicketID:  fmt.Sprintf("%s%04d", guild.Config.Prefix(), seq),
		CreatedBy: input.CreatedBy,
		Subject:   input.Subject,
		Status:    domain.TicketStatusOpen,
		CreatedAt: now,
	}
	if strings.TrimSpace(input.InitialMessage) != "" {
		ticket.Messages = []domain.TicketMessage{{
			AuthorID:  input.CreatedBy,
			Content:   input.InitialMessage,
			Timestamp: now,
		}}
	}

	job := s.deps.Queue.Enqueue(queue.TopicTicketCreation, queue.TicketCreationPayload{
		GuildID: guildID,
		Ticket:  ticket,
	}, queue.EnqueueOptions{})

	s.deps.Logger.Info("ticket creation accepted",
		zap.String("guild_id", guildID),
		zap.String("ticket_id", ticket.TicketID),
		zap.String("job_id", job.ID))
	return &Enqueued{TicketID: ticket.TicketID, JobID: job.ID}, nil
}

// Update enqueues a partial update for an existing ticket.
func (s *TicketService) Update(ctx context.Context, guildID, ticketID string, patch queue.TicketPatch) (*Enqueued, error) {
	if patch.Empty() {
		return nil, util.NewValidationError("update requires at least one field", nil)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, util.NewValidationError("unknown ticket status", map[string]any{
			"status": string(*patch.Status),
		})
	}

	job := s.deps.Queue.Enqueue(queue.TopicTicketUpdate, queue.TicketUpdatePayload{
		GuildID:  guildID,
		TicketID: ticketID,
		Patch:    patch,
	}, queue.EnqueueOptions{})
	return &Enqueued{TicketID: ticketID, JobID: job.ID}, nil
}

// Archive enqueues the archive transition for a ticket.
func (s *TicketService) Archive(ctx context.Context, guildID, ticketID string) (*Enqueued, error) {
	job := s.deps.Queue.Enqueue(queue.TopicTicketArchive, queue.TicketArchivePayload{
		GuildID:  guildID,
		TicketID: ticketID,
	}, queue.EnqueueOptions{})
	return &Enqueued{TicketID: ticketID, JobID: job.ID}, nil
}

// JobStatus reports the observable state of an accepted job.
func (s *TicketService) JobStatus(ctx context.Context, jobID string) (queue.Status, error) {
	return s.deps.Status.Get(ctx, jobID)
}
