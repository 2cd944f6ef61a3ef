package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tickit/guild-ticket-service/internal/domain"
	"github.com/tickit/guild-ticket-service/internal/events"
	"github.com/tickit/guild-ticket-service/internal/queue"
	"github.com/tickit/guild-ticket-service/internal/repository"
	"github.com/tickit/guild-ticket-service/internal/tenant"
	"github.com/tickit/guild-ticket-service/pkg/util"
)

// Dependencies bundles the collaborators the job handlers need.
type Dependencies struct {
	Resolver   *tenant.Resolver
	Guilds     repository.GuildRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// Worker owns the ticket lifecycle job handlers. Every write to a
// ticket store flows through here, one job at a time per topic.
type Worker struct {
	deps Dependencies
}

// NewWorker constructs the worker.
func NewWorker(deps Dependencies) *Worker {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Worker{deps: deps}
}

// Register binds the ticket topic handlers onto the queue manager.
func (w *Worker) Register(m *queue.Manager) {
	m.RegisterHandler(queue.TopicTicketCreation, w.handleCreation)
	m.RegisterHandler(queue.TopicTicketUpdate, w.handleUpdate)
	m.RegisterHandler(queue.TopicTicketArchive, w.handleArchive)
}

func (w *Worker) handleCreation(ctx context.Context, job *queue.Job) error {
	payload, ok := job.Payload.(queue.TicketCreationPayload)
	if !ok {
		return util.NewValidationError("unexpected payload for ticket creation", nil)
	}

	handle, err := w.deps.Resolver.Resolve(ctx, payload.GuildID)
	if err != nil {
		return err
	}

	err = handle.Tickets.Create(ctx, &payload.Ticket)
	if errors.Is(err, repository.ErrDuplicateTicket) {
		// Redelivery after the insert already landed; the counters may
		// still be pending, so fall through to the stats adjustment.
		w.deps.Logger.Debug("ticket already created",
			zap.String("guild_id", payload.GuildID),
			zap.String("ticket_id", payload.Ticket.TicketID))
	} else if err != nil {
		return err
	}

	// Counters last: a failed adjustment fails the job, and the
	// duplicate guard above makes the retried insert a no-op.
	if err := w.deps.Guilds.AdjustStats(ctx, payload.GuildID, domain.StatsDelta{Total: 1, Open: 1}); err != nil {
		return err
	}

	w.publish(ctx, events.EventTicketCreated, payload.GuildID, payload.Ticket.TicketID, events.TicketCreatedPayload{
		CreatedBy: payload.Ticket.CreatedBy,
		Subject:   payload.Ticket.Subject,
	})
	return nil
}

func (w *Worker) handleUpdate(ctx context.Context, job *queue.Job) error {
	payload, ok := job.Payload.(queue.TicketUpdatePayload)
	if !ok {
		return util.NewValidationError("unexpected payload for ticket update", nil)
	}

	handle, err := w.deps.Resolver.Resolve(ctx, payload.GuildID)
	if err != nil {
		return err
	}

	ticket, err := handle.Tickets.Get(ctx, payload.TicketID)
	if err != nil {
		return err
	}

	oldStatus := ticket.Status
	patch := payload.Patch

	if patch.Subject != nil {
		ticket.Subject = *patch.Subject
	}
	if patch.Message != nil {
		msg := *patch.Message
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now().UTC()
		}
		ticket.Messages = append(ticket.Messages, msg)
	}
	if patch.Status != nil {
		next := *patch.Status
		if !oldStatus.CanTransitionTo(next) {
			return util.NewValidationError("invalid status transition", map[string]interface{}{
				"from": string(oldStatus),
				"to":   string(next),
			})
		}
		ticket.Status = next
		if next == domain.TicketStatusClosed && ticket.ClosedAt == nil {
			now := time.Now().UTC()
			ticket.ClosedAt = &now
		}
	}

	if err := handle.Tickets.Update(ctx, ticket); err != nil {
		return err
	}

	w.publish(ctx, events.EventTicketUpdated, payload.GuildID, payload.TicketID, events.TicketUpdatedPayload{
		OldStatus: oldStatus,
		NewStatus: ticket.Status,
		Commented: patch.Message != nil,
	})
	return nil
}

func (w *Worker) handleArchive(ctx context.Context, job *queue.Job) error {
	payload, ok := job.Payload.(queue.TicketArchivePayload)
	if !ok {
		return util.NewValidationError("unexpected payload for ticket archive", nil)
	}

	handle, err := w.deps.Resolver.Resolve(ctx, payload.GuildID)
	if err != nil {
		return err
	}

	ticket, err := handle.Tickets.Get(ctx, payload.TicketID)
	if err != nil {
		return err
	}

	delta := domain.StatsDelta{Open: -1, Resolved: 1}

	if ticket.Status == domain.TicketStatusArchived {
		if job.Attempts == 0 {
			// First delivery; someone else already archived this ticket.
			return nil
		}
		// Retried delivery: the transition landed on an earlier attempt
		// but the counter adjustment did not. Finish it.
		return w.deps.Guilds.AdjustStats(ctx, payload.GuildID, delta)
	}

	previous := ticket.Status
	ticket.Status = domain.TicketStatusArchived
	if ticket.ClosedAt == nil {
		now := time.Now().UTC()
		ticket.ClosedAt = &now
	}

	if err := handle.Tickets.Update(ctx, ticket); err != nil {
		return err
	}

	// Counters last so a failed adjustment fails the job and retries.
	if err := w.deps.Guilds.AdjustStats(ctx, payload.GuildID, delta); err != nil {
		return err
	}

	w.publish(ctx, events.EventTicketArchived, payload.GuildID, payload.TicketID, events.TicketArchivedPayload{
		PreviousStatus: previous,
	})
	return nil
}

func (w *Worker) publish(ctx context.Context, eventType events.EventType, guildID, ticketID string, payload interface{}) {
	if w.deps.Dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		GuildID:   guildID,
		TicketID:  ticketID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if err := w.deps.Dispatcher.Publish(ctx, event); err != nil {
		w.deps.Logger.Warn("event publish failed",
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
