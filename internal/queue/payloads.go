package queue

import "github.com/tickit/guild-ticket-service/internal/domain"

// TicketCreationPayload carries a fully formed ticket to persist.
type TicketCreationPayload struct {
	GuildID string
	Ticket  domain.Ticket
}

// TicketPatch is the partial update applied by the update handler.
// Nil fields are left unchanged.
type TicketPatch struct {
	Subject *string
	Status  *domain.TicketStatus
	Message *domain.TicketMessage
}

// Empty reports whether the patch changes anything.
func (p TicketPatch) Empty() bool {
	return p.Subject == nil && p.Status == nil && p.Message == nil
}

// TicketUpdatePayload targets an existing ticket with a patch.
type TicketUpdatePayload struct {
	GuildID  string
	TicketID string
	Patch    TicketPatch
}

// TicketArchivePayload requests the archive transition for a ticket.
type TicketArchivePayload struct {
	GuildID  string
	TicketID string
}
